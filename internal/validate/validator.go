// Package validate enforces the output schema on enriched records before
// they reach persistence. It sanitizes shape only; content is never
// re-derived here.
package validate

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/toolradar/toolradar/internal/logging"
	"github.com/toolradar/toolradar/internal/radar"
)

const (
	maxPainPointLen = 1000
	maxIdeaLen      = 300
	maxIdeas        = 3
	maxLinkLen      = 500
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Validator sanitizes enriched records. Records missing a tool name are
// dropped; out-of-vocabulary fields are coerced, never dropped.
type Validator struct {
	clock  radar.Clock
	logger *zap.Logger
}

// New builds a validator.
func New(clock radar.Clock, logger *zap.Logger) *Validator {
	return &Validator{clock: clock, logger: logging.OrNop(logger)}
}

// Validate returns the sanitized record and whether it survived.
func (v *Validator) Validate(rec radar.EnrichedRecord) (radar.EnrichedRecord, bool) {
	rec.ToolName = collapse(rec.ToolName)
	if rec.ToolName == "" {
		v.logger.Warn("dropping record without tool name",
			zap.String("link", rec.Link))
		return radar.EnrichedRecord{}, false
	}

	if !rec.Category.Valid() {
		v.logger.Warn("coercing invalid category",
			zap.String("tool", rec.ToolName),
			zap.String("category", string(rec.Category)))
		rec.Category = radar.CategoryOther
	}
	if !rec.Trend.Valid() {
		v.logger.Warn("coercing invalid trend signal",
			zap.String("tool", rec.ToolName),
			zap.String("trend", string(rec.Trend)))
		rec.Trend = radar.TrendStable
	}

	if rec.Votes < 0 {
		rec.Votes = 0
	}

	rec.Description = collapse(rec.Description)
	rec.PainPoint = capWithEllipsis(collapse(rec.PainPoint), maxPainPointLen)
	rec.Ideas = sanitizeIdeas(rec.Ideas)

	if len(rec.Link) > maxLinkLen {
		v.logger.Warn("truncating overlong link", zap.String("tool", rec.ToolName))
		rec.Link = rec.Link[:maxLinkLen]
	}

	if rec.Date.IsZero() && v.clock != nil {
		rec.Date = v.clock.Now()
	}

	return rec, true
}

// ValidateAll filters a batch, keeping only surviving records.
func (v *Validator) ValidateAll(records []radar.EnrichedRecord) []radar.EnrichedRecord {
	out := make([]radar.EnrichedRecord, 0, len(records))
	for _, rec := range records {
		if clean, ok := v.Validate(rec); ok {
			out = append(out, clean)
		}
	}
	return out
}

func sanitizeIdeas(ideas []string) []string {
	cleaned := make([]string, 0, len(ideas))
	for _, idea := range ideas {
		idea = collapse(idea)
		if idea == "" {
			continue
		}
		if n := []rune(idea); len(n) > maxIdeaLen {
			idea = string(n[:maxIdeaLen])
		}
		cleaned = append(cleaned, idea)
		if len(cleaned) == maxIdeas {
			break
		}
	}
	return cleaned
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func capWithEllipsis(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
