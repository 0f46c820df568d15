// Package radar defines the core types and interfaces for the tool-discovery
// pipeline: candidate records at each stage, the fixed classification
// vocabularies, and the contracts implemented by connectors, stores and
// supporting providers.
package radar

import (
	"context"
	"time"
)

// Category is the fixed classification vocabulary for discovered tools.
type Category string

// Supported tool categories.
const (
	CategoryVideo        Category = "Video"
	CategoryText         Category = "Text"
	CategoryProductivity Category = "Productivity"
	CategoryMarketing    Category = "Marketing"
	CategoryEducation    Category = "Education"
	CategoryAudio        Category = "Audio"
	CategoryOther        Category = "Other"
)

// Categories lists every valid category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryVideo,
		CategoryText,
		CategoryProductivity,
		CategoryMarketing,
		CategoryEducation,
		CategoryAudio,
		CategoryOther,
	}
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryVideo, CategoryText, CategoryProductivity,
		CategoryMarketing, CategoryEducation, CategoryAudio, CategoryOther:
		return true
	}
	return false
}

// TrendSignal describes a tool's momentum.
type TrendSignal string

// Supported trend signals.
const (
	TrendRising    TrendSignal = "Rising"
	TrendStable    TrendSignal = "Stable"
	TrendDeclining TrendSignal = "Declining"
)

// TrendSignals lists every valid signal in a stable order.
func TrendSignals() []TrendSignal {
	return []TrendSignal{TrendRising, TrendStable, TrendDeclining}
}

// Valid reports whether s is one of the fixed trend signals.
func (s TrendSignal) Valid() bool {
	switch s {
	case TrendRising, TrendStable, TrendDeclining:
		return true
	}
	return false
}

// RawCandidate is an unvalidated tool mention exactly as a connector
// extracted it from its source. It only lives until normalization.
type RawCandidate struct {
	// Source names the connector that produced the candidate.
	Source string
	// Title is the source's raw item title.
	Title string
	// Summary is the raw body or description, markup included.
	Summary string
	// Link is the raw, possibly relative, item URL.
	Link string
	// Votes is the structured score when the source supplies one.
	Votes int
	// VotesKnown marks whether Votes came from the source or defaulted.
	VotesKnown bool
	// PublishedAt is the raw item timestamp; zero when absent.
	PublishedAt time.Time
	// Category is the source-supplied category, usually empty.
	Category string
}

// NormalizedCandidate is a cleaned, relevance-checked candidate ready for
// enrichment. Name and Link are guaranteed non-empty.
type NormalizedCandidate struct {
	Name        string
	Description string
	// Link is absolute with tracking parameters stripped; the primary
	// deduplication key.
	Link  string
	Votes int
	// Date is clamped into [now-1y, now].
	Date time.Time
	// Category is the inferred or supplied category; may be empty, in
	// which case enrichment decides.
	Category Category
	Source   string
}

// EnrichedRecord carries the full analysis attached to a candidate.
type EnrichedRecord struct {
	ToolName    string
	Description string
	Category    Category
	Votes       int
	Link        string
	Trend       TrendSignal
	// PainPoint is the distilled user friction the tool addresses.
	PainPoint string
	// Ideas holds 1-3 derived product-idea strings.
	Ideas  []string
	Date   time.Time
	Source string
}

// StoredTool is an EnrichedRecord as persisted, with store-assigned identity.
type StoredTool struct {
	ID        int64
	CreatedAt time.Time
	EnrichedRecord
}

// RunStatus summarizes how a pipeline invocation ended.
type RunStatus string

// Supported run statuses.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// RunLog is the durable record of one pipeline invocation.
type RunLog struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Collected  int
	Analyzed   int
	Saved      int
	Duplicates int
	Failed     int
	Status     RunStatus
	Error      string
}

// Duration returns the wall-clock length of the run.
func (l RunLog) Duration() time.Duration {
	if l.FinishedAt.IsZero() || l.StartedAt.IsZero() {
		return 0
	}
	return l.FinishedAt.Sub(l.StartedAt)
}

// PersistStats aggregates the outcome of a batch persistence pass.
type PersistStats struct {
	Success   int
	Failed    int
	Duplicate int
	Elapsed   time.Duration
}

// Total returns the number of records accounted for by the stats.
func (s PersistStats) Total() int {
	return s.Success + s.Failed + s.Duplicate
}

// Add accumulates other into s.
func (s *PersistStats) Add(other PersistStats) {
	s.Success += other.Success
	s.Failed += other.Failed
	s.Duplicate += other.Duplicate
}

// Connector fetches raw candidate mentions from one external source.
type Connector interface {
	// Name identifies the connector in logs, run reports and archives.
	Name() string
	// Fetch returns up to limit raw candidates. It fails with a
	// *TransientFetchError when the source could not be reached after
	// retries and a *ParseError when the payload was malformed.
	Fetch(ctx context.Context, limit int) ([]RawCandidate, error)
}

// Store is the queryable persistence layer shared across runs. It is the
// sole serialization point for cross-run consistency.
type Store interface {
	// Exists reports whether a tool with the given name and canonical
	// link is already persisted.
	Exists(ctx context.Context, name, link string) (bool, error)
	// InsertBatch persists the records and returns the inserted count.
	InsertBatch(ctx context.Context, records []EnrichedRecord) (int, error)
	// Latest returns persisted tools ordered by recency.
	Latest(ctx context.Context, limit, offset int) ([]StoredTool, error)
	// ByCategory returns tools in a category discovered since the cutoff.
	ByCategory(ctx context.Context, category Category, since time.Time, limit int) ([]StoredTool, error)
	// SaveRunLog upserts the run log for a pipeline invocation.
	SaveRunLog(ctx context.Context, log RunLog) error
	// LatestRunLog returns the most recently started run log, or
	// ErrNotFound when no run has been recorded.
	LatestRunLog(ctx context.Context) (RunLog, error)
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// Archiver stores raw connector payloads for debugging and replay.
type Archiver interface {
	// Put writes data under path and returns the archive URI.
	Put(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// Publisher emits run summaries to downstream consumers.
type Publisher interface {
	// Publish sends the payload to the topic and returns a message ID.
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// RetryPolicy decides whether and when failed remote operations retry.
type RetryPolicy interface {
	// ShouldRetry reports whether the attempt (zero-based) should be
	// retried after err.
	ShouldRetry(err error, attempt int) bool
	// Backoff returns the wait duration before the next attempt.
	Backoff(attempt int) time.Duration
}
