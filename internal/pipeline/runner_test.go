package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolradar/toolradar/internal/enrich"
	"github.com/toolradar/toolradar/internal/normalize"
	"github.com/toolradar/toolradar/internal/persist"
	"github.com/toolradar/toolradar/internal/publisher/memory"
	"github.com/toolradar/toolradar/internal/radar"
	memstore "github.com/toolradar/toolradar/internal/store/memory"
	"github.com/toolradar/toolradar/internal/validate"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type stubConnector struct {
	name       string
	candidates []radar.RawCandidate
	err        error
}

func (c *stubConnector) Name() string { return c.name }

func (c *stubConnector) Fetch(context.Context, int) ([]radar.RawCandidate, error) {
	return c.candidates, c.err
}

type recordingArchiver struct {
	mu    sync.Mutex
	paths []string
}

func (a *recordingArchiver) Put(_ context.Context, path, _ string, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, path)
	return "mem://" + path, nil
}

func rawTool(source, name string, votes int, published time.Time) radar.RawCandidate {
	return radar.RawCandidate{
		Source:      source,
		Title:       name,
		Summary:     name + " is a workflow automation tool for busy teams",
		Link:        fmt.Sprintf("https://%s.example.com/", name),
		Votes:       votes,
		VotesKnown:  true,
		PublishedAt: published,
	}
}

func newTestRunner(t *testing.T, cfg Config, store radar.Store, clock radar.Clock, connectors ...radar.Connector) (*Runner, *memory.Publisher, *recordingArchiver) {
	t.Helper()

	pub := memory.New()
	arch := &recordingArchiver{}
	if cfg.Topic == "" {
		cfg.Topic = "runs"
	}
	runner := NewRunner(cfg, RunnerDeps{
		Connectors: connectors,
		Normalizer: normalize.New(normalize.Config{}, clock, nil),
		Dedupe:     normalize.NewDeduplicator(nil),
		Enricher:   enrich.NewCoordinator(enrich.Config{}, nil, nil, nil, clock, nil),
		Validator:  validate.New(clock, nil),
		Persister:  persist.New(store, persist.Config{}, nil),
		Store:      store,
		Archiver:   arch,
		Publisher:  pub,
		Clock:      clock,
	})
	return runner, pub, arch
}

func TestRunSuccess(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)}
	store := memstore.New(clock)
	conn := &stubConnector{name: "producthunt", candidates: []radar.RawCandidate{
		rawTool("producthunt", "flowpilot", 120, clock.now.Add(-48*time.Hour)),
		rawTool("producthunt", "echolab", 40, clock.now.Add(-24*time.Hour)),
	}}

	runner, pub, arch := newTestRunner(t, Config{}, store, clock, conn)

	report, err := runner.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, radar.RunSuccess, report.Status)
	assert.Equal(t, 2, report.Collected)
	assert.Equal(t, 2, report.Analyzed)
	assert.Equal(t, 2, report.Saved)
	assert.Zero(t, report.Duplicates)
	assert.Zero(t, report.Failed)
	assert.Empty(t, report.SourceErrors)
	assert.Equal(t, 2, store.Len())

	log, err := store.LatestRunLog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.RunID, log.ID)
	assert.Equal(t, radar.RunSuccess, log.Status)
	assert.Equal(t, 2, log.Saved)
	assert.Empty(t, log.Error)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "runs", msgs[0].Topic)

	require.Len(t, arch.paths, 1)
	assert.Equal(t, report.RunID+"/producthunt.json", arch.paths[0])
}

func TestRunPartialOnSourceFailure(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)}
	store := memstore.New(clock)
	good := &stubConnector{name: "producthunt", candidates: []radar.RawCandidate{
		rawTool("producthunt", "flowpilot", 120, clock.now.Add(-48*time.Hour)),
	}}
	bad := &stubConnector{name: "hackernews", err: fmt.Errorf("fetch new stories: 503")}

	runner, _, _ := newTestRunner(t, Config{}, store, clock, good, bad)

	report, err := runner.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, radar.RunPartial, report.Status)
	assert.Equal(t, 1, report.Collected)
	assert.Equal(t, 1, report.Saved)
	require.Contains(t, report.SourceErrors, "hackernews")

	log, err := store.LatestRunLog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, radar.RunPartial, log.Status)
	assert.Contains(t, log.Error, "hackernews")
}

func TestRunFailedWhenAllSourcesFail(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)}
	store := memstore.New(clock)
	bad := &stubConnector{name: "hackernews", err: fmt.Errorf("fetch new stories: 503")}

	runner, _, _ := newTestRunner(t, Config{}, store, clock, bad)

	report, err := runner.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, radar.RunFailed, report.Status)
	assert.Zero(t, report.Collected)
}

func TestRunFailedWhenNothingSurvives(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)}
	store := memstore.New(clock)
	conn := &stubConnector{name: "producthunt", candidates: []radar.RawCandidate{
		{
			Source:      "producthunt",
			Title:       "Sourdough Diary",
			Summary:     "Notes on keeping a starter fed and baking bread at home",
			Link:        "https://example.com/sourdough-diary",
			PublishedAt: clock.now.Add(-24 * time.Hour),
		},
	}}

	runner, _, _ := newTestRunner(t, Config{}, store, clock, conn)

	report, err := runner.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, radar.RunFailed, report.Status)
	assert.Equal(t, 1, report.Collected)
	assert.Zero(t, report.Analyzed)
	assert.Zero(t, report.Saved)
	assert.Empty(t, report.SourceErrors)

	log, err := store.LatestRunLog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, radar.RunFailed, log.Status)
	assert.NotEmpty(t, log.Error)
}

func TestRunDeduplicatesAcrossSources(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)}
	store := memstore.New(clock)
	shared := rawTool("producthunt", "flowpilot", 120, clock.now.Add(-48*time.Hour))
	first := &stubConnector{name: "producthunt", candidates: []radar.RawCandidate{shared}}
	dup := shared
	dup.Source = "futurepedia"
	second := &stubConnector{name: "futurepedia", candidates: []radar.RawCandidate{dup}}

	runner, _, _ := newTestRunner(t, Config{}, store, clock, first, second)

	report, err := runner.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Collected)
	assert.Equal(t, 1, report.Analyzed)
	assert.Equal(t, 1, report.Saved)
	assert.Equal(t, 1, store.Len())
}

func TestRunSecondPassIsIdempotent(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)}
	store := memstore.New(clock)
	conn := &stubConnector{name: "producthunt", candidates: []radar.RawCandidate{
		rawTool("producthunt", "flowpilot", 120, clock.now.Add(-48*time.Hour)),
	}}

	runner, _, _ := newTestRunner(t, Config{}, store, clock, conn)

	_, err := runner.Run(context.Background(), Options{})
	require.NoError(t, err)

	report, err := runner.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Zero(t, report.Saved)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, radar.RunSuccess, report.Status)
	assert.Equal(t, 1, store.Len())
}

func TestRunCooldown(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)}
	store := memstore.New(clock)
	require.NoError(t, store.SaveRunLog(context.Background(), radar.RunLog{
		ID:        "earlier",
		StartedAt: clock.now.Add(-10 * time.Minute),
		Status:    radar.RunSuccess,
	}))
	conn := &stubConnector{name: "producthunt", candidates: []radar.RawCandidate{
		rawTool("producthunt", "flowpilot", 120, clock.now.Add(-48*time.Hour)),
	}}

	runner, _, _ := newTestRunner(t, Config{Cooldown: time.Hour}, store, clock, conn)

	_, err := runner.Run(context.Background(), Options{})
	require.ErrorIs(t, err, ErrCooldown)

	report, err := runner.Run(context.Background(), Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Saved)
}

func TestRunSourceFilter(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)}
	store := memstore.New(clock)
	wanted := &stubConnector{name: "producthunt", candidates: []radar.RawCandidate{
		rawTool("producthunt", "flowpilot", 120, clock.now.Add(-48*time.Hour)),
	}}
	ignored := &stubConnector{name: "hackernews", candidates: []radar.RawCandidate{
		rawTool("hackernews", "echolab", 40, clock.now.Add(-24*time.Hour)),
	}}

	runner, _, _ := newTestRunner(t, Config{}, store, clock, wanted, ignored)

	report, err := runner.Run(context.Background(), Options{Sources: []string{"ProductHunt"}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Collected)
	assert.Equal(t, 1, report.Saved)
}
