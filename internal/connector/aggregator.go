package connector

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/toolradar/toolradar/internal/logging"
	"github.com/toolradar/toolradar/internal/normalize"
	"github.com/toolradar/toolradar/internal/radar"
)

// AggregatorConfig configures a scraped listing-page connector. The
// selectors address one listed tool card and its fields.
type AggregatorConfig struct {
	// Name identifies the source, e.g. "futurepedia".
	Name string
	// URL is the listing page.
	URL string
	// ItemSelector matches one tool card.
	ItemSelector string
	// NameSelector, DescriptionSelector, LinkSelector and VotesSelector
	// are resolved relative to the card.
	NameSelector        string
	DescriptionSelector string
	LinkSelector        string
	VotesSelector       string
	UserAgent           string
	Timeout             time.Duration
}

// AggregatorConnector scrapes a hyperlinked listing page for tool cards.
type AggregatorConnector struct {
	cfg    AggregatorConfig
	retry  radar.RetryPolicy
	logger *zap.Logger
}

var _ radar.Connector = (*AggregatorConnector)(nil)

// NewAggregatorConnector builds the connector.
func NewAggregatorConnector(cfg AggregatorConfig, retry radar.RetryPolicy, logger *zap.Logger) *AggregatorConnector {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if retry == nil {
		retry = radar.NewExponentialRetryPolicy()
	}
	return &AggregatorConnector{cfg: cfg, retry: retry, logger: logging.OrNop(logger)}
}

// Name identifies the connector.
func (c *AggregatorConnector) Name() string { return c.cfg.Name }

// Fetch scrapes the listing page, retrying transient failures.
func (c *AggregatorConnector) Fetch(ctx context.Context, limit int) ([]radar.RawCandidate, error) {
	var (
		candidates []radar.RawCandidate
		lastErr    error
	)
	attempt := 0
	for {
		candidates, lastErr = c.scrape(ctx, limit)
		if lastErr == nil {
			return candidates, nil
		}
		if !c.retry.ShouldRetry(lastErr, attempt) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &radar.TransientFetchError{Source: c.cfg.Name, Err: ctx.Err()}
		case <-time.After(c.retry.Backoff(attempt)):
		}
		attempt++
	}
	return nil, &radar.TransientFetchError{Source: c.cfg.Name, Err: lastErr}
}

func (c *AggregatorConnector) scrape(ctx context.Context, limit int) ([]radar.RawCandidate, error) {
	collector := colly.NewCollector(colly.UserAgent(c.cfg.UserAgent))
	collector.SetRequestTimeout(c.cfg.Timeout)

	var (
		candidates []radar.RawCandidate
		scrapeErr  error
	)

	collector.OnHTML(c.cfg.ItemSelector, func(e *colly.HTMLElement) {
		if limit > 0 && len(candidates) >= limit {
			return
		}
		candidate, ok := c.parseCard(e)
		if ok {
			candidates = append(candidates, candidate)
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		scrapeErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(c.cfg.URL)
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, err
		}
	}
	if scrapeErr != nil {
		return nil, scrapeErr
	}

	c.logger.Info("listing scraped",
		zap.String("source", c.cfg.Name),
		zap.Int("relevant", len(candidates)))
	return candidates, nil
}

// parseCard extracts one candidate from a tool card via goquery
// selections.
func (c *AggregatorConnector) parseCard(e *colly.HTMLElement) (radar.RawCandidate, bool) {
	card := e.DOM

	name := text(card, c.cfg.NameSelector)
	if name == "" {
		return radar.RawCandidate{}, false
	}
	description := text(card, c.cfg.DescriptionSelector)
	if !normalize.Relevant(name, description) {
		return radar.RawCandidate{}, false
	}

	link, _ := card.Find(c.cfg.LinkSelector).First().Attr("href")
	if link == "" {
		if href, ok := card.Attr("href"); ok {
			link = href
		}
	}
	link = e.Request.AbsoluteURL(link)

	candidate := radar.RawCandidate{
		Source:  c.cfg.Name,
		Title:   name,
		Summary: description,
		Link:    link,
	}
	if c.cfg.VotesSelector != "" {
		if votesText := text(card, c.cfg.VotesSelector); votesText != "" {
			candidate.Votes = normalize.ExtractVotes(votesText)
			candidate.VotesKnown = candidate.Votes > 0
		}
	}
	return candidate, true
}

func text(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(sel.Find(selector).First().Text())
}
