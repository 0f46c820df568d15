package normalize

import (
	"strings"

	"go.uber.org/zap"

	"github.com/toolradar/toolradar/internal/logging"
	"github.com/toolradar/toolradar/internal/radar"
)

// Deduplicator collapses candidates that refer to the same item within a
// single run. It is not safe for concurrent use; the run loop owns it.
type Deduplicator struct {
	seenLinks map[string]struct{}
	seenNames map[string]struct{}
	logger    *zap.Logger
}

// NewDeduplicator builds an empty, run-scoped Deduplicator.
func NewDeduplicator(logger *zap.Logger) *Deduplicator {
	return &Deduplicator{
		seenLinks: make(map[string]struct{}),
		seenNames: make(map[string]struct{}),
		logger:    logging.OrNop(logger),
	}
}

// Dedupe returns the input with at most one candidate per canonical link,
// first seen wins. A secondary pass collapses candidates whose names are
// identical after case-folding, absorbing cross-source republication.
func (d *Deduplicator) Dedupe(candidates []radar.NormalizedCandidate) []radar.NormalizedCandidate {
	out := make([]radar.NormalizedCandidate, 0, len(candidates))
	for _, cand := range candidates {
		if _, dup := d.seenLinks[cand.Link]; dup {
			continue
		}
		name := strings.ToLower(cand.Name)
		if _, dup := d.seenNames[name]; dup {
			continue
		}
		d.seenLinks[cand.Link] = struct{}{}
		d.seenNames[name] = struct{}{}
		out = append(out, cand)
	}
	if dropped := len(candidates) - len(out); dropped > 0 {
		d.logger.Info("within-run duplicates collapsed",
			zap.Int("in", len(candidates)),
			zap.Int("dropped", dropped),
		)
	}
	return out
}
