package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolradar/toolradar/internal/radar"
)

func TestTrendScorerClassification(t *testing.T) {
	t.Parallel()

	scorer := NewDefaultTrendScorer()

	tests := []struct {
		name string
		in   TrendInput
		want radar.TrendSignal
	}{
		{
			name: "fresh high-vote launch rises",
			in: TrendInput{
				Votes:   150,
				Text:    "revolutionary new breakthrough automation tool launched this week",
				AgeDays: 2,
			},
			want: radar.TrendRising,
		},
		{
			name: "stale deprecated tool declines",
			in: TrendInput{
				Votes:   5,
				Text:    "deprecated legacy tool, discontinued",
				AgeDays: 60,
			},
			want: radar.TrendDeclining,
		},
		{
			name: "middling tool stays stable",
			in: TrendInput{
				Votes:   40,
				Text:    "a solid productivity tool",
				AgeDays: 15,
			},
			want: radar.TrendStable,
		},
		{
			name: "breakthrough phrasing lifts rising",
			in: TrendInput{
				Votes:   60,
				Text:    "worlds first ai tool for podcast editing, a real game changer",
				AgeDays: 3,
			},
			want: radar.TrendRising,
		},
		{
			name: "low votes alone are not enough to decline",
			in: TrendInput{
				Votes:   3,
				Text:    "small helper utility",
				AgeDays: 10,
			},
			want: radar.TrendStable,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, scorer.Score(tc.in))
		})
	}
}

func TestTrendScorerDeterminism(t *testing.T) {
	t.Parallel()

	scorer := NewDefaultTrendScorer()
	in := TrendInput{
		Votes:   150,
		Text:    "revolutionary new breakthrough automation tool launched this week",
		AgeDays: 2,
	}

	first := scorer.Score(in)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, scorer.Score(in))
	}
}

func TestTrendScorerHistory(t *testing.T) {
	t.Parallel()

	scorer := NewDefaultTrendScorer()

	// Votes well above the best historical sighting push the signal up.
	grew := scorer.Score(TrendInput{
		Votes:           150,
		Text:            "scheduling helper",
		AgeDays:         14,
		HistoricalVotes: []int{10, 20},
	})
	assert.Equal(t, radar.TrendRising, grew)

	// Votes collapsing below half the best sighting, on a stale item,
	// pull it down.
	shrank := scorer.Score(TrendInput{
		Votes:           4,
		Text:            "scheduling helper",
		AgeDays:         45,
		HistoricalVotes: []int{200},
	})
	assert.Equal(t, radar.TrendDeclining, shrank)

	// Comparable votes reinforce stability.
	flat := scorer.Score(TrendInput{
		Votes:           90,
		Text:            "scheduling helper",
		AgeDays:         14,
		HistoricalVotes: []int{90},
	})
	assert.Equal(t, radar.TrendStable, flat)
}
