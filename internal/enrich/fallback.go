package enrich

import (
	"fmt"
	"strings"

	"github.com/toolradar/toolradar/internal/heuristic"
	"github.com/toolradar/toolradar/internal/radar"
)

// painIndicators are scanned in order; the first one found in the
// description names the friction the tool is assumed to remove.
var painIndicators = []string{
	"difficult",
	"hard",
	"time-consuming",
	"expensive",
	"manual",
	"tedious",
	"slow",
}

const defaultPainPoint = "improves efficiency"

// fallbackIdeas are canned per-category product ideas used when the
// remote provider is unavailable.
var fallbackIdeas = map[radar.Category][]string{
	radar.CategoryVideo:        {"automated clip editor", "caption generator"},
	radar.CategoryText:         {"writing assistant", "content rewriter"},
	radar.CategoryProductivity: {"task automation board", "time tracking dashboard"},
	radar.CategoryMarketing:    {"campaign scheduler", "audience analytics service"},
	radar.CategoryEducation:    {"course recommendation engine", "learning progress tracker"},
	radar.CategoryAudio:        {"voice transcription tool", "podcast cleanup service"},
	radar.CategoryOther:        {"workflow assistant", "automation toolkit"},
}

func extractPainPoint(description string) string {
	lower := strings.ToLower(description)
	for _, indicator := range painIndicators {
		if strings.Contains(lower, indicator) {
			return fmt.Sprintf("solves %s friction", indicator)
		}
	}
	return defaultPainPoint
}

func ideasFor(category radar.Category) []string {
	ideas, ok := fallbackIdeas[category]
	if !ok {
		ideas = fallbackIdeas[radar.CategoryOther]
	}
	out := make([]string, len(ideas))
	copy(out, ideas)
	return out
}

// fallbackRecord enriches a candidate purely from local heuristics.
func (c *Coordinator) fallbackRecord(candidate radar.NormalizedCandidate) radar.EnrichedRecord {
	category := candidate.Category
	if !category.Valid() {
		category = heuristic.Categorize(candidate.Name, candidate.Description)
	}
	return radar.EnrichedRecord{
		ToolName:    candidate.Name,
		Description: candidate.Description,
		Category:    category,
		Votes:       candidate.Votes,
		Link:        candidate.Link,
		Trend:       c.heuristicTrend(candidate),
		PainPoint:   extractPainPoint(candidate.Description),
		Ideas:       ideasFor(category),
		Date:        candidate.Date,
		Source:      candidate.Source,
	}
}
