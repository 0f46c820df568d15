package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolradar/toolradar/internal/radar"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func validRecord() radar.EnrichedRecord {
	return radar.EnrichedRecord{
		ToolName:    "FlowPilot",
		Description: "workflow automation",
		Category:    radar.CategoryProductivity,
		Votes:       42,
		Link:        "https://flowpilot.io/",
		Trend:       radar.TrendRising,
		PainPoint:   "report building eats afternoons",
		Ideas:       []string{"reporting bot"},
		Date:        time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
		Source:      "producthunt",
	}
}

func TestValidatePassesCleanRecord(t *testing.T) {
	t.Parallel()

	v := New(nil, nil)
	out, ok := v.Validate(validRecord())
	require.True(t, ok)
	assert.Equal(t, validRecord(), out)
}

func TestValidateDropsMissingName(t *testing.T) {
	t.Parallel()

	v := New(nil, nil)
	rec := validRecord()
	rec.ToolName = "   "
	_, ok := v.Validate(rec)
	assert.False(t, ok)
}

func TestValidateCoercesVocabularies(t *testing.T) {
	t.Parallel()

	v := New(nil, nil)
	rec := validRecord()
	rec.Category = "Hardware"
	rec.Trend = "Skyrocketing"

	out, ok := v.Validate(rec)
	require.True(t, ok)
	assert.Equal(t, radar.CategoryOther, out.Category)
	assert.Equal(t, radar.TrendStable, out.Trend)
}

func TestValidateCapsPainPoint(t *testing.T) {
	t.Parallel()

	v := New(nil, nil)
	rec := validRecord()
	rec.PainPoint = strings.Repeat("x", 1200)

	out, ok := v.Validate(rec)
	require.True(t, ok)
	assert.Len(t, out.PainPoint, 1003)
	assert.True(t, strings.HasSuffix(out.PainPoint, "..."))
}

func TestValidateSanitizesIdeas(t *testing.T) {
	t.Parallel()

	v := New(nil, nil)
	rec := validRecord()
	rec.Ideas = []string{
		"  first   idea  ",
		"",
		strings.Repeat("y", 400),
		"fourth",
		"fifth",
	}

	out, ok := v.Validate(rec)
	require.True(t, ok)
	require.Len(t, out.Ideas, 3)
	assert.Equal(t, "first idea", out.Ideas[0])
	assert.Len(t, out.Ideas[1], 300)
	assert.Equal(t, "fourth", out.Ideas[2])
}

func TestValidateDefaultsDate(t *testing.T) {
	t.Parallel()

	clk := fixedClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	v := New(clk, nil)
	rec := validRecord()
	rec.Date = time.Time{}

	out, ok := v.Validate(rec)
	require.True(t, ok)
	assert.Equal(t, clk.now, out.Date)
}

func TestValidateAllFilters(t *testing.T) {
	t.Parallel()

	v := New(nil, nil)
	bad := validRecord()
	bad.ToolName = ""

	out := v.ValidateAll([]radar.EnrichedRecord{validRecord(), bad, validRecord()})
	assert.Len(t, out, 2)
}

func TestValidateClampsNegativeVotes(t *testing.T) {
	t.Parallel()

	v := New(nil, nil)
	rec := validRecord()
	rec.Votes = -7

	out, ok := v.Validate(rec)
	require.True(t, ok)
	assert.Zero(t, out.Votes)
}
