package heuristic

import (
	"regexp"
	"strings"

	"github.com/toolradar/toolradar/internal/radar"
)

// TrendInput carries the objective signals the scorer works from.
type TrendInput struct {
	Votes int
	// Text is the combined name and description of the tool.
	Text string
	// AgeDays is the candidate's age at scoring time.
	AgeDays int
	// HistoricalVotes holds vote counts of prior sightings of the same
	// tool, when known. Empty means no history.
	HistoricalVotes []int
}

// TrendPolicy scores a tool's momentum. Implementations must be pure:
// identical inputs always yield the identical signal.
type TrendPolicy interface {
	Score(in TrendInput) radar.TrendSignal
}

// TrendWeights is the tunable weight table behind the default scorer. The
// defaults are empirical; they were carried over as-is rather than re-tuned.
type TrendWeights struct {
	StableBase int

	HighVoteThreshold int
	HighVoteRising    int
	LowVoteThreshold  int
	LowVoteDeclining  int

	RisingKeywordHit    int
	DecliningKeywordHit int

	FreshAgeDays   int
	FreshRising    int
	StaleAgeDays   int
	StaleDeclining int

	HistoryGrowthRatio float64
	HistoryShrinkRatio float64
	HistoryRising      int
	HistoryDeclining   int
	HistoryStable      int

	BreakthroughRising int
}

// DefaultTrendWeights returns the weight table the pipeline ships with.
func DefaultTrendWeights() TrendWeights {
	return TrendWeights{
		StableBase:          50,
		HighVoteThreshold:   100,
		HighVoteRising:      30,
		LowVoteThreshold:    10,
		LowVoteDeclining:    20,
		RisingKeywordHit:    15,
		DecliningKeywordHit: 25,
		FreshAgeDays:        7,
		FreshRising:         20,
		StaleAgeDays:        30,
		StaleDeclining:      15,
		HistoryGrowthRatio:  1.5,
		HistoryShrinkRatio:  0.5,
		HistoryRising:       25,
		HistoryDeclining:    25,
		HistoryStable:       25,
		BreakthroughRising:  20,
	}
}

var (
	risingKeywords = []string{
		"ai", "gpt", "chatgpt", "openai", "automatically", "auto",
		"new", "latest", "innovative", "breakthrough", "revolutionary",
	}
	decliningKeywords = []string{
		"deprecated", "old", "legacy", "outdated", "discontinued",
	}
	breakthroughPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)first.*ai.*tool`),
		regexp.MustCompile(`(?i)worlds first`),
		regexp.MustCompile(`(?i)breakthrough.*ai`),
		regexp.MustCompile(`(?i)revolutionary.*approach`),
		regexp.MustCompile(`(?i)game changer`),
		regexp.MustCompile(`(?i)paradigm shift`),
	}
)

// TrendScorer is the default TrendPolicy: a deterministic accumulator over
// votes, keyword frequency, recency and optional vote history. It is the
// authoritative tie-breaker against the remote classifier, since it is
// grounded in objective signals rather than open-ended generation.
type TrendScorer struct {
	weights TrendWeights
}

// NewTrendScorer builds a scorer with the given weights.
func NewTrendScorer(weights TrendWeights) *TrendScorer {
	return &TrendScorer{weights: weights}
}

// NewDefaultTrendScorer builds a scorer with the shipped weight table.
func NewDefaultTrendScorer() *TrendScorer {
	return NewTrendScorer(DefaultTrendWeights())
}

// Score classifies the input as Rising, Stable or Declining.
func (s *TrendScorer) Score(in TrendInput) radar.TrendSignal {
	w := s.weights
	rising, stable, declining := 0, w.StableBase, 0

	if in.Votes >= w.HighVoteThreshold {
		rising += w.HighVoteRising
	} else if in.Votes <= w.LowVoteThreshold {
		declining += w.LowVoteDeclining
	}

	text := strings.ToLower(in.Text)
	for _, keyword := range risingKeywords {
		if strings.Contains(text, keyword) {
			rising += w.RisingKeywordHit
		}
	}
	for _, keyword := range decliningKeywords {
		if strings.Contains(text, keyword) {
			declining += w.DecliningKeywordHit
		}
	}

	if in.AgeDays <= w.FreshAgeDays {
		rising += w.FreshRising
	} else if in.AgeDays >= w.StaleAgeDays {
		declining += w.StaleDeclining
	}

	if len(in.HistoricalVotes) > 0 {
		best := 0
		for _, v := range in.HistoricalVotes {
			if v > best {
				best = v
			}
		}
		switch {
		case float64(in.Votes) > float64(best)*w.HistoryGrowthRatio:
			rising += w.HistoryRising
		case float64(in.Votes) < float64(best)*w.HistoryShrinkRatio:
			declining += w.HistoryDeclining
		default:
			stable += w.HistoryStable
		}
	}

	for _, pattern := range breakthroughPatterns {
		if pattern.MatchString(text) {
			rising += w.BreakthroughRising
			break
		}
	}

	// Order-sensitive decision rule.
	switch {
	case rising > stable && rising > declining:
		return radar.TrendRising
	case declining > stable:
		return radar.TrendDeclining
	default:
		return radar.TrendStable
	}
}
