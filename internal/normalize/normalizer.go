// Package normalize turns raw connector candidates into clean, canonical,
// relevance-checked candidates, and collapses within-run duplicates.
package normalize

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/toolradar/toolradar/internal/heuristic"
	"github.com/toolradar/toolradar/internal/logging"
	"github.com/toolradar/toolradar/internal/radar"
)

const (
	maxNameLen        = 100
	minNameLen        = 3
	maxDescriptionLen = 500
	maxSentences      = 3
	// Word-set Jaccard similarity at or above this treats a sentence as a
	// repeat of an earlier one.
	sentenceSimilarity = 0.8
	// Votes above this are treated as junk data and clamped.
	maxVotes = 10000
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespace   = regexp.MustCompile(`\s+`)
	descJunkRe   = regexp.MustCompile(`[^\w\s\-.,!?:;]`)
	namePrefixes = []*regexp.Regexp{
		regexp.MustCompile(`^\s*[-*_]\s*`),
		regexp.MustCompile(`\s*[-*_]\s*$`),
		regexp.MustCompile(`^\[.*?\]\s*`),
		regexp.MustCompile(`\s*\[.*?\]\s*$`),
		regexp.MustCompile(`^\s*\d+\.\s*`),
		regexp.MustCompile(`^\s*\d+\)\s*`),
		regexp.MustCompile(`🚀\s*|✨\s*|🎯\s*|⭐\s*`),
	}

	// Ordered: the first matching pattern wins. Star and N/5 ratings are
	// scaled by ten so they stay comparable with vote counts.
	votePatterns = []struct {
		re    *regexp.Regexp
		scale float64
	}{
		{regexp.MustCompile(`(?i)(\d+)\s*votes?`), 1},
		{regexp.MustCompile(`(?i)(\d+)\s*upvotes?`), 1},
		{regexp.MustCompile(`(?i)(\d+)\s*points?`), 1},
		{regexp.MustCompile(`★\s*(\d+(?:\.\d+)?)`), 10},
		{regexp.MustCompile(`(\d+(?:\.\d+)?)\s*/\s*5`), 10},
	}

	// Query parameters stripped during link canonicalization, in
	// addition to the whole utm_ family.
	trackingParams = []string{"ref", "source", "fbclid", "gclid"}
)

// Config controls normalizer behavior.
type Config struct {
	// MaxCandidateAge bounds how old a candidate's date may be; older
	// dates are clamped. Defaults to one year.
	MaxCandidateAge time.Duration
}

// Normalizer cleans and canonicalizes raw candidates.
type Normalizer struct {
	cfg    Config
	clock  radar.Clock
	logger *zap.Logger
}

// New constructs a Normalizer.
func New(cfg Config, clock radar.Clock, logger *zap.Logger) *Normalizer {
	if cfg.MaxCandidateAge <= 0 {
		cfg.MaxCandidateAge = 365 * 24 * time.Hour
	}
	return &Normalizer{
		cfg:    cfg,
		clock:  clock,
		logger: logging.OrNop(logger),
	}
}

// Normalize cleans one candidate. The second return value is false when the
// candidate is rejected: empty name or link after cleaning, name length out
// of bounds, or no relevance keyword hit.
func (n *Normalizer) Normalize(raw radar.RawCandidate) (radar.NormalizedCandidate, bool) {
	name := CleanName(raw.Title)
	description := CleanDescription(raw.Summary)
	link := CanonicalizeLink(raw.Link, raw.Source)

	if name == "" || link == "" {
		n.logger.Debug("candidate rejected: missing name or link",
			zap.String("source", raw.Source),
			zap.String("title", raw.Title),
		)
		return radar.NormalizedCandidate{}, false
	}
	if nameLen := len([]rune(name)); nameLen < minNameLen || nameLen > maxNameLen {
		n.logger.Debug("candidate rejected: name length out of bounds",
			zap.String("source", raw.Source),
			zap.String("name", name),
		)
		return radar.NormalizedCandidate{}, false
	}
	if !Relevant(name, description) {
		n.logger.Debug("candidate rejected: relevance check failed",
			zap.String("source", raw.Source),
			zap.String("name", name),
		)
		return radar.NormalizedCandidate{}, false
	}

	votes := raw.Votes
	if !raw.VotesKnown {
		votes = ExtractVotes(raw.Summary)
	}
	if votes < 0 {
		votes = 0
	}
	if votes > maxVotes {
		votes = maxVotes
	}

	category := radar.Category(strings.TrimSpace(raw.Category))
	if !category.Valid() {
		category = heuristic.InferCategory(name, description)
	}

	return radar.NormalizedCandidate{
		Name:        name,
		Description: description,
		Link:        link,
		Votes:       votes,
		Date:        n.clampDate(raw.PublishedAt),
		Category:    category,
		Source:      raw.Source,
	}, true
}

// NormalizeAll maps Normalize over a slice, dropping rejected candidates.
func (n *Normalizer) NormalizeAll(raws []radar.RawCandidate) []radar.NormalizedCandidate {
	out := make([]radar.NormalizedCandidate, 0, len(raws))
	for _, raw := range raws {
		if cand, ok := n.Normalize(raw); ok {
			out = append(out, cand)
		}
	}
	n.logger.Info("normalization complete",
		zap.Int("in", len(raws)),
		zap.Int("out", len(out)),
	)
	return out
}

func (n *Normalizer) clampDate(date time.Time) time.Time {
	now := n.clock.Now()
	if date.IsZero() {
		return now
	}
	oldest := now.Add(-n.cfg.MaxCandidateAge)
	if date.After(now) {
		return now
	}
	if date.Before(oldest) {
		return oldest
	}
	return date
}

// CleanName strips markup, decorations and boilerplate prefixes from a raw
// title and collapses whitespace. The result is capped at 100 characters.
func CleanName(name string) string {
	cleaned := htmlTagRe.ReplaceAllString(name, "")
	for _, re := range namePrefixes {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = whitespace.ReplaceAllString(strings.TrimSpace(cleaned), " ")
	return truncate(cleaned, maxNameLen)
}

// CleanDescription strips markup and special characters, collapses
// near-duplicate sentences, and caps the result at 500 characters.
func CleanDescription(description string) string {
	cleaned := htmlTagRe.ReplaceAllString(description, "")
	cleaned = descJunkRe.ReplaceAllString(cleaned, " ")
	cleaned = whitespace.ReplaceAllString(strings.TrimSpace(cleaned), " ")

	sentences := strings.Split(cleaned, ". ")
	unique := make([]string, 0, len(sentences))
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		repeat := false
		for _, existing := range unique {
			if jaccard(sentence, existing) >= sentenceSimilarity {
				repeat = true
				break
			}
		}
		if !repeat {
			unique = append(unique, sentence)
		}
		if len(unique) == maxSentences {
			break
		}
	}

	return truncate(strings.Join(unique, ". "), maxDescriptionLen)
}

// truncate caps s at n runes, trimming any trailing space the cut exposes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}

// ExtractVotes pulls a numeric score out of free text, trying the vote
// patterns in order and taking the first match. Returns 0 when nothing
// matches.
func ExtractVotes(text string) int {
	for _, p := range votePatterns {
		match := p.re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		return int(value * p.scale)
	}
	return 0
}

// CanonicalizeLink strips tracking query parameters and resolves relative
// paths against the source's base URL. Canonicalization is idempotent:
// applying it to an already-canonical link returns it unchanged. Returns
// empty on anything that cannot become an absolute http(s) URL.
func CanonicalizeLink(link, source string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		base := SourceBaseURL(source)
		if base == "" {
			return ""
		}
		resolved, err := url.Parse(base)
		if err != nil {
			return ""
		}
		rel, err := url.Parse(link)
		if err != nil {
			return ""
		}
		link = resolved.ResolveReference(rel).String()
	}

	parsed, err := url.Parse(link)
	if err != nil || parsed.Host == "" {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}

	query := parsed.Query()
	for key := range query {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			query.Del(key)
			continue
		}
		for _, tracked := range trackingParams {
			if lower == tracked {
				query.Del(key)
				break
			}
		}
	}
	parsed.RawQuery = query.Encode()
	parsed.Fragment = ""
	return parsed.String()
}

// jaccard computes word-set Jaccard similarity of two sentences.
func jaccard(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}
