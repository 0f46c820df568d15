// Package memory provides an in-memory Store used by tests and local
// development runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/toolradar/toolradar/internal/radar"
)

// Store keeps tools and run logs in process memory. Safe for concurrent
// use.
type Store struct {
	mu      sync.RWMutex
	tools   []radar.StoredTool
	index   map[string]struct{}
	runLogs map[string]radar.RunLog
	clock   radar.Clock
	nextID  int64
}

var _ radar.Store = (*Store)(nil)

// New builds an empty store. A nil clock falls back to time.Now.
func New(clock radar.Clock) *Store {
	return &Store{
		index:   make(map[string]struct{}),
		runLogs: make(map[string]radar.RunLog),
		clock:   clock,
		nextID:  1,
	}
}

func key(name, link string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + link
}

func (s *Store) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now().UTC()
}

// Exists reports whether a tool with the name and link is persisted.
func (s *Store) Exists(_ context.Context, name, link string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[key(name, link)]
	return ok, nil
}

// InsertBatch persists records, skipping ones already present.
func (s *Store) InsertBatch(_ context.Context, records []radar.EnrichedRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, rec := range records {
		k := key(rec.ToolName, rec.Link)
		if _, ok := s.index[k]; ok {
			continue
		}
		s.index[k] = struct{}{}
		s.tools = append(s.tools, radar.StoredTool{
			ID:             s.nextID,
			CreatedAt:      s.now(),
			EnrichedRecord: rec,
		})
		s.nextID++
		inserted++
	}
	return inserted, nil
}

// Latest returns tools ordered by discovery date, newest first.
func (s *Store) Latest(_ context.Context, limit, offset int) ([]radar.StoredTool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := make([]radar.StoredTool, len(s.tools))
	copy(sorted, s.tools)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.After(sorted[j].Date)
		}
		return sorted[i].ID > sorted[j].ID
	})

	if offset >= len(sorted) {
		return nil, nil
	}
	sorted = sorted[offset:]
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// ByCategory returns tools in a category discovered since the cutoff,
// most voted first.
func (s *Store) ByCategory(_ context.Context, category radar.Category, since time.Time, limit int) ([]radar.StoredTool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []radar.StoredTool
	for _, tool := range s.tools {
		if tool.Category != category {
			continue
		}
		if !since.IsZero() && tool.Date.Before(since) {
			continue
		}
		out = append(out, tool)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Votes > out[j].Votes
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// SaveRunLog upserts the run log.
func (s *Store) SaveRunLog(_ context.Context, log radar.RunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runLogs[log.ID] = log
	return nil
}

// LatestRunLog returns the most recently started run log.
func (s *Store) LatestRunLog(_ context.Context) (radar.RunLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest radar.RunLog
	found := false
	for _, log := range s.runLogs {
		if !found || log.StartedAt.After(latest.StartedAt) {
			latest = log
			found = true
		}
	}
	if !found {
		return radar.RunLog{}, radar.ErrNotFound
	}
	return latest, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Len reports how many tools are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tools)
}
