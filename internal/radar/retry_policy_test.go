package radar

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "net failure" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return e.timeout }

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(3, time.Millisecond, 10*time.Millisecond)

	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"nil error", nil, 0, false},
		{"plain error retries", fmt.Errorf("boom"), 0, true},
		{"attempts exhausted", fmt.Errorf("boom"), 3, false},
		{"context canceled", context.Canceled, 0, false},
		{"deadline exceeded", context.DeadlineExceeded, 0, false},
		{"parse error never retries", &ParseError{Source: "rss", Err: fmt.Errorf("bad xml")}, 0, false},
		{"wrapped parse error", fmt.Errorf("fetch: %w", &ParseError{Source: "rss"}), 0, false},
		{"net timeout retries", timeoutErr{timeout: true}, 0, true},
		{"net non-timeout retries", timeoutErr{timeout: false}, 0, true},
		{
			"connection refused retries",
			fmt.Errorf("fetch items: %w", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}),
			0,
			true,
		},
		{
			"connection reset retries",
			&net.OpError{Op: "read", Err: syscall.ECONNRESET},
			0,
			true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, p.ShouldRetry(tt.err, tt.attempt))
		})
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(5, 100*time.Millisecond, time.Second)

	for attempt := 0; attempt < 5; attempt++ {
		d := p.Backoff(attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestNewRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(0, 0, 0)
	assert.Equal(t, 3, p.MaxAttempts())
}
