package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolradar/toolradar/internal/radar"
)

func record(name, link string, votes int, date time.Time) radar.EnrichedRecord {
	return radar.EnrichedRecord{
		ToolName: name,
		Category: radar.CategoryProductivity,
		Votes:    votes,
		Link:     link,
		Trend:    radar.TrendStable,
		Ideas:    []string{"an idea"},
		Date:     date,
	}
}

func TestInsertBatchSkipsDuplicates(t *testing.T) {
	t.Parallel()

	s := New(nil)
	ctx := context.Background()
	now := time.Now().UTC()

	inserted, err := s.InsertBatch(ctx, []radar.EnrichedRecord{
		record("FlowPilot", "https://flowpilot.io/", 10, now),
		record("EchoLab", "https://echolab.fm/", 5, now),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// Same name with different case still collides.
	inserted, err = s.InsertBatch(ctx, []radar.EnrichedRecord{
		record("flowpilot", "https://flowpilot.io/", 99, now),
	})
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Equal(t, 2, s.Len())
}

func TestExists(t *testing.T) {
	t.Parallel()

	s := New(nil)
	ctx := context.Background()
	_, err := s.InsertBatch(ctx, []radar.EnrichedRecord{
		record("FlowPilot", "https://flowpilot.io/", 10, time.Now().UTC()),
	})
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "FLOWPILOT", "https://flowpilot.io/")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "FlowPilot", "https://other.example/")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLatestOrdersByDate(t *testing.T) {
	t.Parallel()

	s := New(nil)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.InsertBatch(ctx, []radar.EnrichedRecord{
		record("Old", "https://old.example/", 1, base.AddDate(0, 0, -10)),
		record("New", "https://new.example/", 1, base),
		record("Middle", "https://middle.example/", 1, base.AddDate(0, 0, -5)),
	})
	require.NoError(t, err)

	tools, err := s.Latest(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "New", tools[0].ToolName)
	assert.Equal(t, "Middle", tools[1].ToolName)

	tools, err = s.Latest(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "Old", tools[0].ToolName)
}

func TestByCategoryFiltersAndSorts(t *testing.T) {
	t.Parallel()

	s := New(nil)
	ctx := context.Background()
	now := time.Now().UTC()

	audio := record("EchoLab", "https://echolab.fm/", 80, now)
	audio.Category = radar.CategoryAudio
	stale := record("OldTimer", "https://oldtimer.example/", 500, now.AddDate(0, -2, 0))
	stale.Category = radar.CategoryAudio

	_, err := s.InsertBatch(ctx, []radar.EnrichedRecord{
		record("FlowPilot", "https://flowpilot.io/", 10, now),
		audio,
		stale,
	})
	require.NoError(t, err)

	tools, err := s.ByCategory(ctx, radar.CategoryAudio, now.AddDate(0, -1, 0), 10)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "EchoLab", tools[0].ToolName)
}

func TestRunLogRoundTrip(t *testing.T) {
	t.Parallel()

	s := New(nil)
	ctx := context.Background()

	_, err := s.LatestRunLog(ctx)
	assert.ErrorIs(t, err, radar.ErrNotFound)

	first := radar.RunLog{ID: "run-1", StartedAt: time.Now().Add(-time.Hour), Status: radar.RunSuccess}
	second := radar.RunLog{ID: "run-2", StartedAt: time.Now(), Status: radar.RunPartial}
	require.NoError(t, s.SaveRunLog(ctx, first))
	require.NoError(t, s.SaveRunLog(ctx, second))

	latest, err := s.LatestRunLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.ID)
}
