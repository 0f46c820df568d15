package cmd

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/toolradar/toolradar/internal/archive"
	"github.com/toolradar/toolradar/internal/clock/system"
	"github.com/toolradar/toolradar/internal/config"
	"github.com/toolradar/toolradar/internal/connector"
	"github.com/toolradar/toolradar/internal/enrich"
	"github.com/toolradar/toolradar/internal/logging"
	"github.com/toolradar/toolradar/internal/normalize"
	"github.com/toolradar/toolradar/internal/persist"
	"github.com/toolradar/toolradar/internal/pipeline"
	"github.com/toolradar/toolradar/internal/progress"
	pubsubpub "github.com/toolradar/toolradar/internal/publisher/pubsub"
	"github.com/toolradar/toolradar/internal/radar"
	"github.com/toolradar/toolradar/internal/store/memory"
	"github.com/toolradar/toolradar/internal/store/postgres"
	"github.com/toolradar/toolradar/internal/validate"
)

// services bundles the long-lived collaborators the commands share.
type services struct {
	cfg     config.Config
	logger  *zap.Logger
	store   radar.Store
	runner  *pipeline.Runner
	tracker *progress.Tracker

	pgStore      *postgres.Store
	pubsubClient *pubsub.Client
}

// buildServices initializes every service a run needs from the config.
// It fails fast when a critical dependency cannot be reached.
func buildServices(ctx context.Context, cfg config.Config) (*services, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	clock := system.New()
	s := &services{cfg: cfg, logger: logger, tracker: progress.NewTracker()}

	if cfg.DB.DSN != "" {
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
		s.pgStore = pg
		s.store = pg
		logger.Info("using postgres store")
	} else {
		s.store = memory.New(clock)
		logger.Warn("db.dsn not set, using in-memory store; data is lost on exit")
	}

	archiver, err := buildArchiver(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	var publisher radar.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		s.pubsubClient = client
		publisher = pubsubpub.New(client)
		logger.Info("publishing run summaries",
			zap.String("project", cfg.PubSub.ProjectID),
			zap.String("topic", cfg.PubSub.TopicName))
	}

	var chat enrich.ChatClient
	if cfg.Enrichment.APIKey != "" {
		chat = enrich.NewOpenAIClient(enrich.ClientConfig{
			Endpoint: cfg.Enrichment.Endpoint,
			Model:    cfg.Enrichment.Model,
			APIKey:   cfg.Enrichment.APIKey,
			Timeout:  cfg.EnrichmentTimeout(),
		})
	} else {
		logger.Warn("enrichment.api_key not set, analysis falls back to heuristics")
	}

	retry := radar.NewRetryPolicy(
		cfg.HTTP.MaxRetries,
		time.Duration(cfg.HTTP.BackoffInitialMs)*time.Millisecond,
		time.Duration(cfg.HTTP.BackoffMaxMs)*time.Millisecond,
	)

	s.runner = pipeline.NewRunner(pipeline.Config{
		LimitPerSource: cfg.Sources.LimitPerSource,
		Topic:          cfg.PubSub.TopicName,
	}, pipeline.RunnerDeps{
		Connectors: buildConnectors(cfg, retry, logger),
		Normalizer: normalize.New(normalize.Config{}, clock, logger.Named("normalize")),
		Dedupe:     normalize.NewDeduplicator(logger.Named("dedupe")),
		Enricher: enrich.NewCoordinator(enrich.Config{
			BatchSize: cfg.Enrichment.BatchSize,
		}, chat, nil, retry, clock, logger.Named("enrich")),
		Validator: validate.New(clock, logger.Named("validate")),
		Persister: persist.New(s.store, persist.Config{
			MaxWorkers:       cfg.Persist.MaxWorkers,
			ChunkSize:        cfg.Persist.ChunkSize,
			CheckpointWindow: cfg.Persist.CheckpointWindow,
		}, logger.Named("persist")),
		Store:     s.store,
		Archiver:  archiver,
		Publisher: publisher,
		Tracker:   s.tracker,
		Clock:     clock,
		Logger:    logger.Named("pipeline"),
	})

	return s, nil
}

func buildConnectors(cfg config.Config, retry radar.RetryPolicy, logger *zap.Logger) []radar.Connector {
	var connectors []radar.Connector
	timeout := cfg.HTTPTimeout()

	if cfg.Sources.HackerNews.Enabled {
		connectors = append(connectors, connector.NewHackerNewsConnector(connector.HackerNewsConfig{
			BaseURL:   cfg.Sources.HackerNews.BaseURL,
			WebURL:    cfg.Sources.HackerNews.WebURL,
			UserAgent: cfg.HTTP.UserAgent,
			Timeout:   timeout,
			MaxRPS:    cfg.HTTP.MaxRPS,
		}, retry, logger.Named("hackernews")))
	}
	for _, feed := range cfg.Sources.Feeds {
		connectors = append(connectors, connector.NewFeedConnector(connector.FeedConfig{
			Name:      feed.Name,
			URL:       feed.URL,
			UserAgent: cfg.HTTP.UserAgent,
			Timeout:   timeout,
			MaxRPS:    cfg.HTTP.MaxRPS,
		}, retry, logger.Named(feed.Name)))
	}
	for _, agg := range cfg.Sources.Aggregators {
		connectors = append(connectors, connector.NewAggregatorConnector(connector.AggregatorConfig{
			Name:                agg.Name,
			URL:                 agg.URL,
			ItemSelector:        agg.ItemSelector,
			NameSelector:        agg.NameSelector,
			DescriptionSelector: agg.DescriptionSelector,
			LinkSelector:        agg.LinkSelector,
			VotesSelector:       agg.VotesSelector,
			UserAgent:           cfg.HTTP.UserAgent,
			Timeout:             timeout,
		}, retry, logger.Named(agg.Name)))
	}
	return connectors
}

func buildArchiver(ctx context.Context, cfg config.Config) (radar.Archiver, error) {
	switch cfg.Archive.Backend {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		archiver, err := archive.NewGCS(client, archive.GCSConfig{
			Bucket: cfg.Archive.GCSBucket,
			Prefix: cfg.Archive.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("init gcs archiver: %w", err)
		}
		return archiver, nil
	case "local":
		archiver, err := archive.NewLocal(archive.LocalConfig{BaseDir: cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local archiver: %w", err)
		}
		return archiver, nil
	default:
		return archive.NoopArchiver{}, nil
	}
}

// Close releases every service that holds external resources.
func (s *services) Close() {
	if s.pubsubClient != nil {
		if err := s.pubsubClient.Close(); err != nil {
			s.logger.Warn("close pubsub client", zap.Error(err))
		}
	}
	if s.pgStore != nil {
		s.pgStore.Close()
	}
	_ = s.logger.Sync()
}
