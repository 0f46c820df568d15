// Package pipeline orchestrates a full discovery run: collect from
// every source, normalize, deduplicate, enrich, validate and persist,
// then record and publish the run outcome.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toolradar/toolradar/internal/logging"
	"github.com/toolradar/toolradar/internal/metrics"
	"github.com/toolradar/toolradar/internal/normalize"
	"github.com/toolradar/toolradar/internal/persist"
	"github.com/toolradar/toolradar/internal/progress"
	"github.com/toolradar/toolradar/internal/radar"
)

// Enricher turns normalized candidates into enriched records.
type Enricher interface {
	Enrich(ctx context.Context, candidates []radar.NormalizedCandidate) []radar.EnrichedRecord
}

// Persister writes enriched records to durable storage.
type Persister interface {
	PersistCheckpointedWithProgress(ctx context.Context, records []radar.EnrichedRecord, progress persist.ProgressFunc) radar.PersistStats
}

// Validator filters and sanitizes enriched records before persistence.
type Validator interface {
	ValidateAll(records []radar.EnrichedRecord) []radar.EnrichedRecord
}

// Config tunes runner behavior.
type Config struct {
	// LimitPerSource caps candidates fetched from each connector.
	LimitPerSource int
	// Cooldown rejects a new run while the previous one started less
	// than this long ago. Zero disables the guard.
	Cooldown time.Duration
	// Topic names the pub/sub topic for run summaries. Empty disables
	// publishing.
	Topic string
}

// Options selects per-invocation behavior.
type Options struct {
	// RunID identifies the run; one is generated when empty.
	RunID string
	// Sources restricts the run to the named connectors. Empty runs all.
	Sources []string
	// LimitPerSource overrides the configured cap when positive.
	LimitPerSource int
	// Force bypasses the cooldown guard.
	Force bool
}

// RunReport summarizes one completed run.
type RunReport struct {
	RunID        string            `json:"run_id"`
	Collected    int               `json:"collected"`
	Analyzed     int               `json:"analyzed"`
	Saved        int               `json:"saved"`
	Duplicates   int               `json:"duplicates"`
	Failed       int               `json:"failed"`
	Duration     time.Duration     `json:"duration"`
	Status       radar.RunStatus   `json:"status"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
}

// ErrCooldown is returned when a run is requested while the previous
// one started too recently. Force overrides it.
var ErrCooldown = fmt.Errorf("previous run is too recent")

// Runner drives the pipeline end to end.
type Runner struct {
	cfg        Config
	connectors []radar.Connector
	normalizer *normalize.Normalizer
	dedupe     *normalize.Deduplicator
	enricher   Enricher
	validator  Validator
	persister  Persister
	store      radar.Store
	archiver   radar.Archiver
	publisher  radar.Publisher
	tracker    *progress.Tracker
	clock      radar.Clock
	logger     *zap.Logger
}

// RunnerDeps bundles the collaborators a Runner needs.
type RunnerDeps struct {
	Connectors []radar.Connector
	Normalizer *normalize.Normalizer
	Dedupe     *normalize.Deduplicator
	Enricher   Enricher
	Validator  Validator
	Persister  Persister
	Store      radar.Store
	Archiver   radar.Archiver
	Publisher  radar.Publisher
	Tracker    *progress.Tracker
	Clock      radar.Clock
	Logger     *zap.Logger
}

// NewRunner wires a runner. Archiver and Publisher may be nil; the
// corresponding steps are skipped.
func NewRunner(cfg Config, deps RunnerDeps) *Runner {
	if cfg.LimitPerSource <= 0 {
		cfg.LimitPerSource = 30
	}
	if deps.Tracker == nil {
		deps.Tracker = progress.NewTracker()
	}
	return &Runner{
		cfg:        cfg,
		connectors: deps.Connectors,
		normalizer: deps.Normalizer,
		dedupe:     deps.Dedupe,
		enricher:   deps.Enricher,
		validator:  deps.Validator,
		persister:  deps.Persister,
		store:      deps.Store,
		archiver:   deps.Archiver,
		publisher:  deps.Publisher,
		tracker:    deps.Tracker,
		clock:      deps.Clock,
		logger:     logging.OrNop(deps.Logger),
	}
}

// Run executes one full discovery pass and returns its report. Source
// failures degrade the run to partial instead of aborting it; an
// unreachable store or a run with no usable candidates marks it failed.
func (r *Runner) Run(ctx context.Context, opts Options) (RunReport, error) {
	started := r.clock.Now()

	if !opts.Force && r.cfg.Cooldown > 0 {
		last, err := r.store.LatestRunLog(ctx)
		if err == nil && started.Sub(last.StartedAt) < r.cfg.Cooldown {
			return RunReport{}, ErrCooldown
		}
	}

	if err := r.store.Ping(ctx); err != nil {
		return RunReport{}, fmt.Errorf("store unreachable: %w", err)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := radar.RunLog{
		ID:        runID,
		StartedAt: started,
		Status:    radar.RunRunning,
	}
	if err := r.store.SaveRunLog(ctx, log); err != nil {
		return RunReport{}, fmt.Errorf("record run start: %w", err)
	}

	r.logger.Info("run started",
		zap.String("run_id", runID),
		zap.Int("connectors", len(r.selectConnectors(opts.Sources))))

	r.tracker.Begin(runID, started)
	raws, sourceErrs := r.collect(ctx, runID, opts)
	r.tracker.SetCollected(len(raws), r.clock.Now())

	r.tracker.SetStage(progress.StageEnriching, r.clock.Now())
	candidates := r.dedupe.Dedupe(r.normalizer.NormalizeAll(raws))
	records := r.enricher.Enrich(ctx, candidates)
	r.tracker.SetAnalyzed(len(records), r.clock.Now())

	r.tracker.SetStage(progress.StagePersisting, r.clock.Now())
	valid := r.validator.ValidateAll(records)
	stats := r.persister.PersistCheckpointedWithProgress(ctx, valid, func(done, total int, _ radar.PersistStats) {
		r.tracker.SetChunks(done, total, r.clock.Now())
	})
	metrics.ObservePersisted(stats.Success, stats.Duplicate, stats.Failed)
	r.tracker.Finish(r.clock.Now())

	finished := r.clock.Now()
	report := RunReport{
		RunID:      runID,
		Collected:  len(raws),
		Analyzed:   len(records),
		Saved:      stats.Success,
		Duplicates: stats.Duplicate,
		Failed:     stats.Failed,
		Duration:   finished.Sub(started),
		Status:     r.status(len(records), sourceErrs, stats),
	}
	if len(sourceErrs) > 0 {
		report.SourceErrors = sourceErrs
	}

	log.FinishedAt = finished
	log.Collected = report.Collected
	log.Analyzed = report.Analyzed
	log.Saved = report.Saved
	log.Duplicates = report.Duplicates
	log.Failed = report.Failed
	log.Status = report.Status
	log.Error = joinErrors(sourceErrs)
	if log.Status == radar.RunFailed && log.Error == "" {
		log.Error = "no usable candidates after collection and cleaning"
	}
	if err := r.store.SaveRunLog(ctx, log); err != nil {
		r.logger.Error("record run finish", zap.String("run_id", runID), zap.Error(err))
	}

	metrics.ObserveRun(string(report.Status), report.Duration)
	r.publish(ctx, log)

	r.logger.Info("run finished",
		zap.String("run_id", runID),
		zap.String("status", string(report.Status)),
		zap.Int("collected", report.Collected),
		zap.Int("saved", report.Saved),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// collect fans out over the selected connectors and gathers whatever
// each one returns. A failing source is logged and reported, never
// fatal to the others.
func (r *Runner) collect(ctx context.Context, runID string, opts Options) ([]radar.RawCandidate, map[string]string) {
	limit := r.cfg.LimitPerSource
	if opts.LimitPerSource > 0 {
		limit = opts.LimitPerSource
	}
	selected := r.selectConnectors(opts.Sources)

	var (
		mu         sync.Mutex
		raws       []radar.RawCandidate
		sourceErrs = make(map[string]string)
		wg         sync.WaitGroup
	)
	for _, conn := range selected {
		wg.Add(1)
		go func(conn radar.Connector) {
			defer wg.Done()
			candidates, err := conn.Fetch(ctx, limit)
			if err != nil {
				metrics.ObserveSourceFailure(conn.Name())
				r.logger.Warn("source fetch failed",
					zap.String("source", conn.Name()),
					zap.Error(err))
				mu.Lock()
				sourceErrs[conn.Name()] = err.Error()
				mu.Unlock()
				return
			}
			metrics.ObserveCollected(conn.Name(), len(candidates))
			r.archive(ctx, runID, conn.Name(), candidates)
			mu.Lock()
			raws = append(raws, candidates...)
			mu.Unlock()
		}(conn)
	}
	wg.Wait()
	return raws, sourceErrs
}

func (r *Runner) selectConnectors(names []string) []radar.Connector {
	if len(names) == 0 {
		return r.connectors
	}
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	var selected []radar.Connector
	for _, conn := range r.connectors {
		if _, ok := wanted[strings.ToLower(conn.Name())]; ok {
			selected = append(selected, conn)
		}
	}
	return selected
}

// archive snapshots the raw candidates a source produced so a run can
// be replayed or debugged later.
func (r *Runner) archive(ctx context.Context, runID, source string, candidates []radar.RawCandidate) {
	if r.archiver == nil || len(candidates) == 0 {
		return
	}
	data, err := json.Marshal(candidates)
	if err != nil {
		r.logger.Warn("marshal archive payload", zap.String("source", source), zap.Error(err))
		return
	}
	path := fmt.Sprintf("%s/%s.json", runID, source)
	uri, err := r.archiver.Put(ctx, path, "application/json", data)
	if err != nil {
		r.logger.Warn("archive source payload",
			zap.String("source", source),
			zap.Error(err))
		return
	}
	if uri != "" {
		r.logger.Debug("archived source payload",
			zap.String("source", source),
			zap.String("uri", uri))
	}
}

func (r *Runner) publish(ctx context.Context, log radar.RunLog) {
	if r.publisher == nil || r.cfg.Topic == "" {
		return
	}
	id, err := r.publisher.Publish(ctx, r.cfg.Topic, log)
	if err != nil {
		r.logger.Warn("publish run summary", zap.String("run_id", log.ID), zap.Error(err))
		return
	}
	r.logger.Debug("published run summary",
		zap.String("run_id", log.ID),
		zap.String("message_id", id))
}

// status derives the overall run outcome. A run that yields no usable
// candidates is failed, whether sources errored or everything was
// rejected; isolated source errors or record failures make it partial.
func (r *Runner) status(analyzed int, sourceErrs map[string]string, stats radar.PersistStats) radar.RunStatus {
	if analyzed == 0 {
		return radar.RunFailed
	}
	if len(sourceErrs) > 0 || stats.Failed > 0 {
		return radar.RunPartial
	}
	return radar.RunSuccess
}

func joinErrors(sourceErrs map[string]string) string {
	if len(sourceErrs) == 0 {
		return ""
	}
	names := make([]string, 0, len(sourceErrs))
	for name := range sourceErrs {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, sourceErrs[name]))
	}
	return strings.Join(parts, "; ")
}
