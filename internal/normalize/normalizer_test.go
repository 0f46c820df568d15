package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolradar/toolradar/internal/radar"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newTestNormalizer(now time.Time) *Normalizer {
	return New(Config{}, fixedClock{now: now}, nil)
}

func TestNormalizeAcceptsCleanCandidate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	n := newTestNormalizer(now)

	cand, ok := n.Normalize(radar.RawCandidate{
		Source:      "producthunt",
		Title:       "🚀 FlowPilot",
		Summary:     "<p>Workflow automation assistant for busy teams.</p>",
		Link:        "https://flowpilot.io/?utm_source=ph&utm_medium=feed",
		Votes:       42,
		VotesKnown:  true,
		PublishedAt: now.Add(-48 * time.Hour),
	})
	require.True(t, ok)
	assert.Equal(t, "FlowPilot", cand.Name)
	assert.Equal(t, "Workflow automation assistant for busy teams.", cand.Description)
	assert.Equal(t, "https://flowpilot.io/", cand.Link)
	assert.Equal(t, 42, cand.Votes)
	assert.Equal(t, radar.CategoryProductivity, cand.Category)
	assert.Equal(t, now.Add(-48*time.Hour), cand.Date)
}

func TestNormalizeRejections(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	n := newTestNormalizer(now)

	tests := []struct {
		name string
		raw  radar.RawCandidate
	}{
		{
			name: "empty name after cleaning",
			raw: radar.RawCandidate{
				Source:  "producthunt",
				Title:   "🚀 ",
				Summary: "an ai tool",
				Link:    "https://example.com/tool",
			},
		},
		{
			name: "missing link",
			raw: radar.RawCandidate{
				Source:  "producthunt",
				Title:   "FlowPilot",
				Summary: "an ai tool",
			},
		},
		{
			name: "name too short",
			raw: radar.RawCandidate{
				Source:  "producthunt",
				Title:   "Ab",
				Summary: "an ai tool",
				Link:    "https://example.com/tool",
			},
		},
		{
			name: "not relevant",
			raw: radar.RawCandidate{
				Source:  "producthunt",
				Title:   "Sourdough Diary",
				Summary: "my notes on baking bread",
				Link:    "https://example.com/bread",
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, ok := n.Normalize(tc.raw)
			assert.False(t, ok)
		})
	}
}

func TestNormalizeClampsDates(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	n := newTestNormalizer(now)

	base := radar.RawCandidate{
		Source:  "producthunt",
		Title:   "FlowPilot",
		Summary: "workflow automation assistant",
		Link:    "https://flowpilot.io/",
	}

	future := base
	future.PublishedAt = now.Add(24 * time.Hour)
	cand, ok := n.Normalize(future)
	require.True(t, ok)
	assert.Equal(t, now, cand.Date)

	ancient := base
	ancient.PublishedAt = now.AddDate(-3, 0, 0)
	cand, ok = n.Normalize(ancient)
	require.True(t, ok)
	assert.Equal(t, now.Add(-365*24*time.Hour), cand.Date)

	absent := base
	cand, ok = n.Normalize(absent)
	require.True(t, ok)
	assert.Equal(t, now, cand.Date)
}

func TestNormalizeClampsVotes(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	n := newTestNormalizer(now)

	raw := radar.RawCandidate{
		Source:     "producthunt",
		Title:      "FlowPilot",
		Summary:    "workflow automation assistant",
		Link:       "https://flowpilot.io/",
		Votes:      2_000_000,
		VotesKnown: true,
	}
	cand, ok := n.Normalize(raw)
	require.True(t, ok)
	assert.Equal(t, 10000, cand.Votes)

	raw.Votes = -5
	cand, ok = n.Normalize(raw)
	require.True(t, ok)
	assert.Equal(t, 0, cand.Votes)
}

func TestExtractVotes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want int
	}{
		{"this launch got 120 votes already", 120},
		{"87 upvotes and climbing", 87},
		{"45 points on the front page", 45},
		{"rated ★ 4.5 by early users", 45},
		{"scored 4.5/5 in reviews", 45},
		{"no numbers here", 0},
		{"", 0},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ExtractVotes(tc.text), tc.text)
	}
}

func TestCanonicalizeLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		link   string
		source string
		want   string
	}{
		{
			name: "strips tracking params",
			link: "https://example.com/tool?utm_source=feed&utm_campaign=x&id=7",
			want: "https://example.com/tool?id=7",
		},
		{
			name: "strips ref and fragment",
			link: "https://example.com/tool?ref=producthunt#pricing",
			want: "https://example.com/tool",
		},
		{
			name:   "resolves relative against source base",
			link:   "/posts/flowpilot",
			source: "producthunt",
			want:   "https://www.producthunt.com/posts/flowpilot",
		},
		{
			name: "rejects non-http scheme",
			link: "ftp://example.com/tool",
			want: "",
		},
		{
			name:   "rejects relative link with unknown source",
			link:   "/posts/flowpilot",
			source: "mystery",
			want:   "",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CanonicalizeLink(tc.link, tc.source))
		})
	}
}

func TestCanonicalizeLinkIdempotent(t *testing.T) {
	t.Parallel()

	links := []string{
		"https://example.com/tool?utm_source=feed&id=7",
		"https://example.com/tool?ref=producthunt",
		"https://www.producthunt.com/posts/flowpilot",
	}
	for _, link := range links {
		once := CanonicalizeLink(link, "producthunt")
		require.NotEmpty(t, once)
		assert.Equal(t, once, CanonicalizeLink(once, "producthunt"))
	}
}

func TestCleanDescriptionCollapsesRepeats(t *testing.T) {
	t.Parallel()

	desc := "Automate your reports in seconds. Automate all your reports in seconds. Works with every spreadsheet."
	got := CleanDescription(desc)
	assert.Equal(t, "Automate your reports in seconds. Works with every spreadsheet.", got)
}

func TestCleanNameDecorations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"🚀 FlowPilot", "FlowPilot"},
		{"1. FlowPilot", "FlowPilot"},
		{"[Launch] FlowPilot", "FlowPilot"},
		{"- FlowPilot -", "FlowPilot"},
		{"FlowPilot   beta", "FlowPilot beta"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, CleanName(tc.in), tc.in)
	}
}
