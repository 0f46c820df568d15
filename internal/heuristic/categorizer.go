// Package heuristic implements the deterministic, rule-based classifiers
// the pipeline falls back to when the remote enrichment service is
// unavailable, and the trend scorer that is authoritative even when it is
// not.
package heuristic

import (
	"strings"

	"github.com/toolradar/toolradar/internal/radar"
)

// categoryKeywords is the ordered keyword-set lookup backing Categorize.
// Order matters: the first category whose set intersects the text wins.
var categoryKeywords = []struct {
	category radar.Category
	keywords []string
}{
	{radar.CategoryVideo, []string{"video", "movie", "animation", "film", "youtube", "tiktok", "video editing"}},
	{radar.CategoryText, []string{"text", "writing", "content", "copywriting", "article", "blog", "document"}},
	{radar.CategoryProductivity, []string{"productivity", "task", "workflow", "automation", "efficiency", "management", "organize"}},
	{radar.CategoryMarketing, []string{"marketing", "seo", "social media", "advertising", "email", "promotion", "sales"}},
	{radar.CategoryEducation, []string{"education", "learning", "tutoring", "course", "teaching", "training", "study"}},
	{radar.CategoryAudio, []string{"audio", "music", "voice", "sound", "podcast", "speech"}},
}

// Categorize assigns a category from the fixed vocabulary by ordered
// keyword-set lookup over the lower-cased name and description. The first
// category with a keyword hit wins; the default is Other.
func Categorize(name, description string) radar.Category {
	text := strings.ToLower(name + " " + description)
	for _, entry := range categoryKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(text, keyword) {
				return entry.category
			}
		}
	}
	return radar.CategoryOther
}

// InferCategory is like Categorize but returns empty when nothing matches,
// leaving the decision to a later stage. Used during normalization.
func InferCategory(name, description string) radar.Category {
	text := strings.ToLower(name + " " + description)
	for _, entry := range categoryKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(text, keyword) {
				return entry.category
			}
		}
	}
	return ""
}
