package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/toolradar/toolradar/internal/logging"
	"github.com/toolradar/toolradar/internal/normalize"
	"github.com/toolradar/toolradar/internal/radar"
)

const hnItemWorkers = 4

// Prefixes social-news titles carry that say nothing about the tool.
var hnTitlePrefixRe = regexp.MustCompile(`(?i)^(show hn:|ask hn:|launch hn:|tell hn:)\s*`)

// HackerNewsConfig configures the item-API connector.
type HackerNewsConfig struct {
	// Name identifies the source, defaults to "hackernews".
	Name string
	// BaseURL is the API root, e.g. https://hacker-news.firebaseio.com/v0.
	BaseURL string
	// WebURL is the site root used for items without an external link.
	WebURL    string
	UserAgent string
	Timeout   time.Duration
	// MaxRPS caps requests per second against the item API. Zero
	// disables limiting.
	MaxRPS float64
}

// HackerNewsConnector fetches new stories from a HackerNews-style JSON
// item API.
type HackerNewsConnector struct {
	cfg     HackerNewsConfig
	fetcher *httpFetcher
	logger  *zap.Logger
}

var _ radar.Connector = (*HackerNewsConnector)(nil)

// NewHackerNewsConnector builds the connector.
func NewHackerNewsConnector(cfg HackerNewsConfig, retry radar.RetryPolicy, logger *zap.Logger) *HackerNewsConnector {
	if cfg.Name == "" {
		cfg.Name = "hackernews"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://hacker-news.firebaseio.com/v0"
	}
	if cfg.WebURL == "" {
		cfg.WebURL = "https://news.ycombinator.com"
	}
	return &HackerNewsConnector{
		cfg:     cfg,
		fetcher: newHTTPFetcher(retry, cfg.Timeout, cfg.MaxRPS, cfg.UserAgent, "application/json"),
		logger:  logging.OrNop(logger),
	}
}

// Name identifies the connector.
func (c *HackerNewsConnector) Name() string { return c.cfg.Name }

type hnItem struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	URL     string `json:"url"`
	Score   int    `json:"score"`
	Time    int64  `json:"time"`
	Dead    bool   `json:"dead"`
	Deleted bool   `json:"deleted"`
}

// Fetch lists the newest stories and resolves up to limit of them into
// candidates. Individual item failures are skipped, not fatal.
func (c *HackerNewsConnector) Fetch(ctx context.Context, limit int) ([]radar.RawCandidate, error) {
	body, err := c.fetcher.get(ctx, c.cfg.BaseURL+"/newstories.json")
	if err != nil {
		return nil, &radar.TransientFetchError{Source: c.cfg.Name, Err: err}
	}

	var ids []int
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, &radar.ParseError{Source: c.cfg.Name, Err: err}
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	items := c.fetchItems(ctx, ids)

	candidates := make([]radar.RawCandidate, 0, len(items))
	for _, item := range items {
		if candidate, ok := c.toCandidate(item); ok {
			candidates = append(candidates, candidate)
		}
	}

	c.logger.Info("item api fetched",
		zap.String("source", c.cfg.Name),
		zap.Int("stories", len(ids)),
		zap.Int("relevant", len(candidates)))
	return candidates, nil
}

// fetchItems resolves story details under a small worker cap, keeping
// the input order for deterministic output.
func (c *HackerNewsConnector) fetchItems(ctx context.Context, ids []int) []hnItem {
	results := make([]*hnItem, len(ids))
	var wg sync.WaitGroup
	sem := make(chan struct{}, hnItemWorkers)

	for i, id := range ids {
		wg.Add(1)
		go func(slot, storyID int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			body, err := c.fetcher.get(ctx, fmt.Sprintf("%s/item/%d.json", c.cfg.BaseURL, storyID))
			if err != nil {
				c.logger.Debug("story fetch failed",
					zap.Int("id", storyID), zap.Error(err))
				return
			}
			var item hnItem
			if err := json.Unmarshal(body, &item); err != nil {
				c.logger.Debug("story decode failed",
					zap.Int("id", storyID), zap.Error(err))
				return
			}
			results[slot] = &item
		}(i, id)
	}
	wg.Wait()

	items := make([]hnItem, 0, len(ids))
	for _, item := range results {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items
}

func (c *HackerNewsConnector) toCandidate(item hnItem) (radar.RawCandidate, bool) {
	if item.Type != "story" || item.Dead || item.Deleted || item.Title == "" {
		return radar.RawCandidate{}, false
	}

	title := strings.TrimSpace(hnTitlePrefixRe.ReplaceAllString(item.Title, ""))
	if !normalize.Relevant(title, item.Text) {
		return radar.RawCandidate{}, false
	}

	link := item.URL
	if link == "" {
		link = fmt.Sprintf("%s/item?id=%d", c.cfg.WebURL, item.ID)
	}
	summary := item.Text
	if summary == "" {
		summary = title
	}

	candidate := radar.RawCandidate{
		Source:     c.cfg.Name,
		Title:      title,
		Summary:    summary,
		Link:       link,
		Votes:      item.Score,
		VotesKnown: true,
	}
	if item.Time > 0 {
		candidate.PublishedAt = time.Unix(item.Time, 0).UTC()
	}
	return candidate, true
}
