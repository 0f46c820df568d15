package enrich

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/toolradar/toolradar/internal/heuristic"
	"github.com/toolradar/toolradar/internal/logging"
	"github.com/toolradar/toolradar/internal/metrics"
	"github.com/toolradar/toolradar/internal/radar"
)

const defaultBatchSize = 10

// Config holds coordinator tuning knobs.
type Config struct {
	// BatchSize bounds how many candidates share one remote call.
	BatchSize int
}

// Coordinator drives the remote classification call, reconciles its
// output with the local heuristics, and falls back entirely to the
// heuristics when the provider is unavailable. Enrich never fails.
type Coordinator struct {
	cfg    Config
	client ChatClient
	scorer heuristic.TrendPolicy
	retry  radar.RetryPolicy
	clock  radar.Clock
	logger *zap.Logger
}

// NewCoordinator wires a coordinator. A nil client disables the remote
// path; every batch then takes the heuristic route.
func NewCoordinator(cfg Config, client ChatClient, scorer heuristic.TrendPolicy, retry radar.RetryPolicy, clock radar.Clock, logger *zap.Logger) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if scorer == nil {
		scorer = heuristic.NewDefaultTrendScorer()
	}
	if retry == nil {
		retry = radar.NewExponentialRetryPolicy()
	}
	return &Coordinator{
		cfg:    cfg,
		client: client,
		scorer: scorer,
		retry:  retry,
		clock:  clock,
		logger: logging.OrNop(logger),
	}
}

// Enrich processes candidates in bounded batches and returns one record
// per candidate. Provider failures degrade a batch to the heuristic path
// instead of propagating.
func (c *Coordinator) Enrich(ctx context.Context, candidates []radar.NormalizedCandidate) []radar.EnrichedRecord {
	records := make([]radar.EnrichedRecord, 0, len(candidates))
	for start := 0; start < len(candidates); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		records = append(records, c.enrichBatch(ctx, candidates[start:end])...)
	}
	return records
}

func (c *Coordinator) enrichBatch(ctx context.Context, batch []radar.NormalizedCandidate) []radar.EnrichedRecord {
	if c.client != nil {
		remote, err := c.callProvider(ctx, batch)
		if err == nil {
			metrics.ObserveEnrichment("remote")
			return c.reconcile(batch, remote)
		}
		c.logger.Warn("enrichment provider exhausted, using heuristics",
			zap.Int("batch_size", len(batch)),
			zap.Error(err))
	}
	metrics.ObserveEnrichment("fallback")

	records := make([]radar.EnrichedRecord, 0, len(batch))
	for _, candidate := range batch {
		records = append(records, c.fallbackRecord(candidate))
	}
	return records
}

// callProvider runs the remote exchange with retries and returns the
// parsed analyzed_tools entries.
func (c *Coordinator) callProvider(ctx context.Context, batch []radar.NormalizedCandidate) ([]remoteTool, error) {
	prompt, err := buildPrompt(batch)
	if err != nil {
		return nil, &radar.EnrichmentProviderError{Attempts: 0, Err: err}
	}

	var lastErr error
	attempt := 0
	for {
		content, err := c.client.Complete(ctx, systemPrompt, prompt)
		if err == nil {
			tools, perr := parseAnalyzedTools(content)
			if perr == nil {
				return tools, nil
			}
			err = perr
		}
		lastErr = err

		if !c.retry.ShouldRetry(err, attempt) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &radar.EnrichmentProviderError{Attempts: attempt + 1, Err: ctx.Err()}
		case <-time.After(c.retry.Backoff(attempt)):
		}
		attempt++
	}
	return nil, &radar.EnrichmentProviderError{Attempts: attempt + 1, Err: lastErr}
}

// reconcile joins remote results back onto the batch by tool name. A
// remote item with no counterpart in the batch is dropped; a candidate
// the provider skipped gets the heuristic treatment. The heuristic trend
// always overrides the remote guess.
func (c *Coordinator) reconcile(batch []radar.NormalizedCandidate, remote []remoteTool) []radar.EnrichedRecord {
	byName := make(map[string]remoteTool, len(remote))
	for _, item := range remote {
		name := strings.ToLower(strings.TrimSpace(item.ToolName))
		if name == "" || item.Category == "" || item.PainPoint == "" {
			c.logger.Warn("dropping incomplete provider item",
				zap.String("tool_name", item.ToolName))
			continue
		}
		if _, seen := byName[name]; !seen {
			byName[name] = item
		}
	}

	records := make([]radar.EnrichedRecord, 0, len(batch))
	for _, candidate := range batch {
		item, ok := byName[strings.ToLower(candidate.Name)]
		if !ok {
			c.logger.Debug("provider skipped candidate, using heuristics",
				zap.String("name", candidate.Name))
			records = append(records, c.fallbackRecord(candidate))
			continue
		}

		category := radar.Category(item.Category)
		if !category.Valid() {
			c.logger.Warn("coercing unknown category",
				zap.String("name", candidate.Name),
				zap.String("category", item.Category))
			category = radar.CategoryOther
		}

		ideas := []string(item.Ideas)
		if len(ideas) > 3 {
			ideas = ideas[:3]
		}

		trend := c.heuristicTrend(candidate)
		if remote := radar.TrendSignal(item.Trend); remote.Valid() && remote != trend {
			c.logger.Debug("overriding provider trend",
				zap.String("name", candidate.Name),
				zap.String("provider", item.Trend),
				zap.String("heuristic", string(trend)))
		}

		records = append(records, radar.EnrichedRecord{
			ToolName:    candidate.Name,
			Description: candidate.Description,
			Category:    category,
			Votes:       candidate.Votes,
			Link:        candidate.Link,
			Trend:       trend,
			PainPoint:   item.PainPoint,
			Ideas:       ideas,
			Date:        candidate.Date,
			Source:      candidate.Source,
		})
	}
	return records
}

// heuristicTrend scores the candidate from objective signals. It is the
// authoritative trend source; the remote guess is advisory only.
func (c *Coordinator) heuristicTrend(candidate radar.NormalizedCandidate) radar.TrendSignal {
	ageDays := 0
	if c.clock != nil && !candidate.Date.IsZero() {
		ageDays = int(c.clock.Now().Sub(candidate.Date).Hours() / 24)
		if ageDays < 0 {
			ageDays = 0
		}
	}
	return c.scorer.Score(heuristic.TrendInput{
		Votes:   candidate.Votes,
		Text:    candidate.Name + " " + candidate.Description,
		AgeDays: ageDays,
	})
}
