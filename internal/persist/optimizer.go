// Package persist writes validated records into the store in adaptive,
// concurrency-bounded chunks with cross-run duplicate suppression.
package persist

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/toolradar/toolradar/internal/logging"
	"github.com/toolradar/toolradar/internal/radar"
)

const (
	defaultMaxWorkers       = 4
	defaultCheckpointWindow = 100
)

// ProgressFunc receives cumulative stats after each chunk finishes.
type ProgressFunc func(chunksDone, chunksTotal int, stats radar.PersistStats)

// Config tunes the optimizer.
type Config struct {
	// MaxWorkers caps concurrent chunk writes against the store.
	MaxWorkers int
	// ChunkSize forces a fixed chunk size; zero selects adaptively
	// from the batch volume.
	ChunkSize int
	// CheckpointWindow sizes the windows of PersistCheckpointed.
	CheckpointWindow int
}

// Optimizer batches validated records into the store. Chunk failures are
// isolated: they count toward Failed without aborting other chunks.
type Optimizer struct {
	store  radar.Store
	cfg    Config
	logger *zap.Logger
}

// New builds an optimizer around the store.
func New(store radar.Store, cfg Config, logger *zap.Logger) *Optimizer {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultMaxWorkers
	}
	if cfg.CheckpointWindow <= 0 {
		cfg.CheckpointWindow = defaultCheckpointWindow
	}
	return &Optimizer{store: store, cfg: cfg, logger: logging.OrNop(logger)}
}

// chunkSizeFor picks a chunk size from the total volume.
func chunkSizeFor(n int) int {
	switch {
	case n < 20:
		return n
	case n < 100:
		return 20
	case n < 500:
		return 50
	case n < 2000:
		return 100
	default:
		return 200
	}
}

func compositeKey(rec radar.EnrichedRecord) string {
	return strings.ToLower(strings.TrimSpace(rec.ToolName)) + "|" + rec.Link
}

// prefilter drops within-batch duplicates by (lowercased name, link).
func prefilter(records []radar.EnrichedRecord) ([]radar.EnrichedRecord, int) {
	seen := make(map[string]struct{}, len(records))
	unique := make([]radar.EnrichedRecord, 0, len(records))
	dropped := 0
	for _, rec := range records {
		k := compositeKey(rec)
		if _, ok := seen[k]; ok {
			dropped++
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, rec)
	}
	return unique, dropped
}

// Persist writes the records and returns aggregate counts. For an input
// of N records, Success+Failed+Duplicate always equals N.
func (o *Optimizer) Persist(ctx context.Context, records []radar.EnrichedRecord) radar.PersistStats {
	return o.PersistWithProgress(ctx, records, nil)
}

// PersistWithProgress is Persist with a per-chunk progress callback.
func (o *Optimizer) PersistWithProgress(ctx context.Context, records []radar.EnrichedRecord, progress ProgressFunc) radar.PersistStats {
	start := time.Now()
	if len(records) == 0 {
		return radar.PersistStats{Elapsed: time.Since(start)}
	}

	unique, dropped := prefilter(records)
	stats := radar.PersistStats{Duplicate: dropped}

	size := o.cfg.ChunkSize
	if size <= 0 {
		size = chunkSizeFor(len(unique))
	}
	chunks := chunk(unique, size)

	o.logger.Info("persisting batch",
		zap.Int("records", len(records)),
		zap.Int("unique", len(unique)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", size))

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		sem  = make(chan struct{}, o.cfg.MaxWorkers)
		done = 0
	)
	for i, c := range chunks {
		wg.Add(1)
		go func(num int, chunk []radar.EnrichedRecord) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			chunkStats := o.processChunk(ctx, num, chunk)

			mu.Lock()
			stats.Add(chunkStats)
			done++
			if progress != nil {
				progress(done, len(chunks), stats)
			}
			mu.Unlock()
		}(i+1, c)
	}
	wg.Wait()

	stats.Elapsed = time.Since(start)
	return stats
}

// processChunk checks each record against the store and inserts the new
// ones. A store failure marks the affected records failed; other chunks
// are untouched.
func (o *Optimizer) processChunk(ctx context.Context, num int, records []radar.EnrichedRecord) radar.PersistStats {
	var stats radar.PersistStats

	if err := ctx.Err(); err != nil {
		stats.Failed = len(records)
		return stats
	}

	fresh := make([]radar.EnrichedRecord, 0, len(records))
	for _, rec := range records {
		exists, err := o.store.Exists(ctx, rec.ToolName, rec.Link)
		if err != nil {
			o.logger.Warn("existence check failed",
				zap.Int("chunk", num),
				zap.String("tool", rec.ToolName),
				zap.Error(err))
			stats.Failed++
			continue
		}
		if exists {
			stats.Duplicate++
			continue
		}
		fresh = append(fresh, rec)
	}

	if len(fresh) == 0 {
		return stats
	}

	inserted, err := o.store.InsertBatch(ctx, fresh)
	if err != nil {
		perr := &radar.PersistenceError{Chunk: num, Err: err}
		o.logger.Error("chunk insert failed", zap.Error(perr))
		stats.Failed += len(fresh)
		return stats
	}

	stats.Success += inserted
	// Anything the store skipped raced in from a concurrent run after
	// the existence check passed.
	stats.Duplicate += len(fresh) - inserted
	return stats
}

// PersistCheckpointed processes records in fixed windows so a failure in
// a very large batch only needs the failed window retried.
func (o *Optimizer) PersistCheckpointed(ctx context.Context, records []radar.EnrichedRecord) radar.PersistStats {
	return o.PersistCheckpointedWithProgress(ctx, records, nil)
}

// PersistCheckpointedWithProgress is PersistCheckpointed with a
// per-chunk progress callback.
func (o *Optimizer) PersistCheckpointedWithProgress(ctx context.Context, records []radar.EnrichedRecord, progress ProgressFunc) radar.PersistStats {
	start := time.Now()
	var stats radar.PersistStats

	window := o.cfg.CheckpointWindow
	for i := 0; i < len(records); i += window {
		end := i + window
		if end > len(records) {
			end = len(records)
		}
		windowStats := o.PersistWithProgress(ctx, records[i:end], progress)
		stats.Add(windowStats)
		o.logger.Info("checkpoint complete",
			zap.Int("checkpoint", i/window+1),
			zap.Int("success", stats.Success),
			zap.Int("failed", stats.Failed),
			zap.Int("duplicate", stats.Duplicate))
	}

	stats.Elapsed = time.Since(start)
	return stats
}

func chunk(records []radar.EnrichedRecord, size int) [][]radar.EnrichedRecord {
	if size <= 0 {
		size = len(records)
	}
	var chunks [][]radar.EnrichedRecord
	for i := 0; i < len(records); i += size {
		end := i + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[i:end])
	}
	return chunks
}
