// Package connector implements the source connectors that feed the
// pipeline: syndication feeds, item-API sources and scraped listing
// pages. Every connector returns RawCandidates and the shared error
// taxonomy: *radar.TransientFetchError after exhausted retries,
// *radar.ParseError for malformed payloads.
package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/toolradar/toolradar/internal/radar"
	"github.com/toolradar/toolradar/internal/ratelimit"
)

const defaultUserAgent = "toolradar-bot/1.0"

// statusError marks a non-2xx response. 5xx and 429 are retryable.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (e *statusError) retryable() bool {
	return e.code >= http.StatusInternalServerError || e.code == http.StatusTooManyRequests
}

// httpFetcher is the shared retrying GET used by the feed and item-API
// connectors. Requests pass through a per-host rate limiter.
type httpFetcher struct {
	client    *http.Client
	retry     radar.RetryPolicy
	limiter   *ratelimit.Limiter
	userAgent string
	accept    string
}

func newHTTPFetcher(retry radar.RetryPolicy, timeout time.Duration, maxRPS float64, userAgent, accept string) *httpFetcher {
	if retry == nil {
		retry = radar.NewExponentialRetryPolicy()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &httpFetcher{
		client:    &http.Client{Timeout: timeout},
		retry:     retry,
		limiter:   ratelimit.New(ratelimit.Config{DefaultRPS: maxRPS, DefaultBurst: 2}),
		userAgent: userAgent,
		accept:    accept,
	}
}

// get fetches the URL with retries on transient failures. The caller
// wraps the returned error into the source's TransientFetchError.
func (f *httpFetcher) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	attempt := 0
	for {
		body, err := f.do(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			break
		}
		if !f.retry.ShouldRetry(err, attempt) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.retry.Backoff(attempt)):
		}
		attempt++
	}
	return nil, lastErr
}

func (f *httpFetcher) do(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx, url); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if f.accept != "" {
		req.Header.Set("Accept", f.accept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", url, err)
	}
	return body, nil
}
