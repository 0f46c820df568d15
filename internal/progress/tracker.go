// Package progress tracks the live state of an in-flight discovery run
// so the API can report it without touching the store.
package progress

import (
	"sync"
	"time"
)

// Stage names a pipeline phase.
type Stage string

// Pipeline stages in execution order.
const (
	StageIdle       Stage = "idle"
	StageCollecting Stage = "collecting"
	StageEnriching  Stage = "enriching"
	StagePersisting Stage = "persisting"
	StageDone       Stage = "done"
)

// Snapshot is a point-in-time view of the current run.
type Snapshot struct {
	RunID      string    `json:"run_id"`
	Stage      Stage     `json:"stage"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	Collected  int       `json:"collected"`
	Analyzed   int       `json:"analyzed"`
	ChunksDone int       `json:"chunks_done"`
	ChunksAll  int       `json:"chunks_total"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
}

// Tracker holds the snapshot of the run in flight. The zero value is
// usable and reports an idle pipeline.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Stage: StageIdle}}
}

// Begin resets the tracker for a new run.
func (t *Tracker) Begin(runID string, startedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = Snapshot{
		RunID:     runID,
		Stage:     StageCollecting,
		StartedAt: startedAt,
		UpdatedAt: startedAt,
	}
}

// SetStage advances the run to the named stage.
func (t *Tracker) SetStage(stage Stage, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Stage = stage
	t.snap.UpdatedAt = at
}

// SetCollected records the collection outcome.
func (t *Tracker) SetCollected(n int, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Collected = n
	t.snap.UpdatedAt = at
}

// SetAnalyzed records the enrichment outcome.
func (t *Tracker) SetAnalyzed(n int, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Analyzed = n
	t.snap.UpdatedAt = at
}

// SetChunks records persistence chunk progress.
func (t *Tracker) SetChunks(done, total int, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.ChunksDone = done
	t.snap.ChunksAll = total
	t.snap.UpdatedAt = at
}

// Finish marks the run complete.
func (t *Tracker) Finish(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Stage = StageDone
	t.snap.UpdatedAt = at
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.snap.Stage == "" {
		return Snapshot{Stage: StageIdle}
	}
	return t.snap
}
