package radar

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by store lookups that match nothing.
var ErrNotFound = errors.New("not found")

// TransientFetchError marks a network or HTTP failure against a source.
// Connectors retry these; when retries are exhausted the error is surfaced
// and the run proceeds without that source.
type TransientFetchError struct {
	Source string
	Err    error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("transient fetch failure from %s: %v", e.Source, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// ParseError marks a malformed source payload. It is source-local: the item
// or source is skipped and the run is never aborted because of it.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed payload from %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EnrichmentProviderError marks an exhausted remote classification call.
// The coordinator reacts by falling back to the local heuristics for the
// affected batch; it never propagates past the coordinator.
type EnrichmentProviderError struct {
	Attempts int
	Err      error
}

func (e *EnrichmentProviderError) Error() string {
	return fmt.Sprintf("enrichment provider failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *EnrichmentProviderError) Unwrap() error { return e.Err }

// PersistenceError marks a chunk-level store failure. Other chunks are
// unaffected; the chunk's remaining records are counted as failed.
type PersistenceError struct {
	Chunk int
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in chunk %d: %v", e.Chunk, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
