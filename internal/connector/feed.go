package connector

import (
	"bytes"
	"context"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/toolradar/toolradar/internal/logging"
	"github.com/toolradar/toolradar/internal/normalize"
	"github.com/toolradar/toolradar/internal/radar"
)

// FeedConfig configures a syndication-feed connector.
type FeedConfig struct {
	// Name identifies the source, e.g. "producthunt" or "futurepedia".
	Name string
	// URL is the RSS/Atom feed location.
	URL string
	// UserAgent overrides the default bot user agent.
	UserAgent string
	Timeout   time.Duration
	// MaxRPS caps requests per second against the feed host. Zero
	// disables limiting.
	MaxRPS float64
}

// FeedConnector fetches candidates from an RSS or Atom feed.
type FeedConnector struct {
	cfg     FeedConfig
	fetcher *httpFetcher
	parser  *gofeed.Parser
	logger  *zap.Logger
}

var _ radar.Connector = (*FeedConnector)(nil)

// NewFeedConnector builds a feed connector.
func NewFeedConnector(cfg FeedConfig, retry radar.RetryPolicy, logger *zap.Logger) *FeedConnector {
	return &FeedConnector{
		cfg: cfg,
		fetcher: newHTTPFetcher(retry, cfg.Timeout, cfg.MaxRPS, cfg.UserAgent,
			"application/rss+xml, application/atom+xml, application/xml, text/xml"),
		parser: gofeed.NewParser(),
		logger: logging.OrNop(logger),
	}
}

// Name identifies the connector.
func (c *FeedConnector) Name() string { return c.cfg.Name }

// Fetch pulls the feed and returns up to limit relevant candidates.
func (c *FeedConnector) Fetch(ctx context.Context, limit int) ([]radar.RawCandidate, error) {
	body, err := c.fetcher.get(ctx, c.cfg.URL)
	if err != nil {
		return nil, &radar.TransientFetchError{Source: c.cfg.Name, Err: err}
	}

	feed, err := c.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &radar.ParseError{Source: c.cfg.Name, Err: err}
	}

	candidates := make([]radar.RawCandidate, 0, limit)
	for _, item := range feed.Items {
		if limit > 0 && len(candidates) >= limit {
			break
		}
		if item == nil || item.Title == "" {
			continue
		}
		if !normalize.Relevant(item.Title, item.Description) {
			continue
		}

		candidate := radar.RawCandidate{
			Source:  c.cfg.Name,
			Title:   item.Title,
			Summary: item.Description,
			Link:    item.Link,
		}
		if item.PublishedParsed != nil {
			candidate.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			candidate.PublishedAt = *item.UpdatedParsed
		}
		if len(item.Categories) > 0 {
			candidate.Category = item.Categories[0]
		}
		candidates = append(candidates, candidate)
	}

	c.logger.Info("feed fetched",
		zap.String("source", c.cfg.Name),
		zap.Int("items", len(feed.Items)),
		zap.Int("relevant", len(candidates)))
	return candidates, nil
}
