package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudpayments-tap/extractor/internal/repository/inmemory"
	"github.com/cloudpayments-tap/extractor/pkg/checkpointer"
	"github.com/cloudpayments-tap/extractor/pkg/clickhouse"
	"github.com/cloudpayments-tap/extractor/pkg/cloudpayments"
	"github.com/cloudpayments-tap/extractor/pkg/data/clickhouse/bookmark"
	"github.com/cloudpayments-tap/extractor/pkg/extractor"
	"github.com/cloudpayments-tap/extractor/pkg/metrics"
	"github.com/cloudpayments-tap/extractor/pkg/retry"
	"github.com/cloudpayments-tap/extractor/pkg/utils"
)

func run(c *cli.Context) error {
	// Build configuration from CLI flags
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}
	now := time.Now()
	if err := cfg.Validate(now); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"baseURL", cfg.BaseURL,
		"startDate", cfg.StartDate,
		"timeZone", cfg.TimeZone,
		"requestTimeout", cfg.RequestTimeout,
		"maxAttempts", cfg.MaxAttempts,
		"retryWait", cfg.RetryWait,
		"extraRetryStatuses", cfg.ExtraRetryStatuses,
		"requestsPerSecond", cfg.RequestsPerSecond,
		"hasMorePath", cfg.HasMorePath,
		"stateStore", cfg.StateStore,
		"bookmarkTableName", cfg.BookmarkTableName,
		"checkpointInterval", cfg.CheckpointInterval,
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
		"environment", cfg.Environment,
		"region", cfg.Region,
		"cloudProvider", cfg.CloudProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Prometheus metrics with labels for multi-instance filtering
	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metrics.Labels{
		Environment:   cfg.Environment,
		Region:        cfg.Region,
		CloudProvider: cfg.CloudProvider,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg.StateStore, cfg.ClickHouse, cfg.BookmarkTableName, sugar)
	if err != nil {
		return err
	}
	defer closeStore()

	var metricsServer *metrics.Server
	if cfg.MetricsPort > 0 {
		metricsServer = metrics.NewServer(cfg.MetricsAddr(), registry)
		sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())
	}

	err = extract(ctx, cfg, runDeps{
		store:         store,
		out:           c.App.Writer,
		log:           sugar,
		metrics:       m,
		metricsServer: metricsServer,
		now:           now,
	})
	if errors.Is(err, context.Canceled) {
		sugar.Infow("exiting due to context cancellation")
		return nil
	}
	if err != nil {
		sugar.Errorw("run failed", "error", err)
		return err
	}
	sugar.Info("shutdown complete")
	return nil
}

// runDeps carries what extract needs besides the configuration.
type runDeps struct {
	store         checkpointer.Checkpointer
	out           io.Writer
	log           *zap.SugaredLogger
	metrics       *metrics.Metrics
	metricsServer *metrics.Server
	httpClient    *http.Client
	retryTimer    retry.Timer
	now           time.Time
}

// extract resumes the payments stream from the stored bookmark and writes RECORD and STATE
// messages to deps.out until every window up to deps.now is exhausted. Bookmarks are persisted
// by checkpointer.Start running next to the stream consumer.
func extract(ctx context.Context, cfg *Config, deps runDeps) error {
	log := deps.log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	stream := cfg.Stream()

	resume, err := loadBookmark(ctx, cfg, deps.store, stream.Name)
	if err != nil {
		return err
	}
	if resume.ReplicationValue.IsZero() {
		log.Infow("bookmark not found, starting from the start date", "startDate", cfg.StartDate)
	} else {
		log.Infow("resuming from bookmark", "bookmark", resume.ReplicationValue)
	}

	client, err := cloudpayments.NewClient(cloudpayments.Config{
		BaseURL:            cfg.BaseURL,
		PublicID:           cfg.PublicID,
		APISecret:          cfg.APISecret,
		Timeout:            cfg.RequestTimeout,
		ExtraRetryStatuses: cfg.ExtraRetryStatuses,
		RequestsPerSecond:  cfg.RequestsPerSecond,
		HTTPClient:         deps.httpClient,
	}, log, deps.metrics)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	out := newSingerWriter(deps.out)
	state := checkpointer.NewState(resume)
	tracker := &stateTracker{state: state, out: out, stream: stream}

	ex, err := extractor.New(extractor.Config{
		Stream:    stream,
		StartDate: cfg.StartDate,
		Location:  cfg.Location,
		TimeZone:  cfg.TimeZone,
		Bookmark:  resume,
		Now:       deps.now,
		Retry: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			Wait:        cfg.RetryWait,
			Timer:       deps.retryTimer,
		},
	}, client, tracker, log, deps.metrics)
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}

	if err := out.WriteSchema(stream); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	// Background services stop once the stream is drained.
	bgCtx, stopBackground := context.WithCancel(gctx)
	defer stopBackground()

	g.Go(func() error {
		cpCfg := checkpointer.DefaultConfig()
		cpCfg.Interval = cfg.CheckpointInterval
		return checkpointer.Start(bgCtx, state, deps.store, cpCfg, log, deps.metrics)
	})
	if deps.metricsServer != nil {
		g.Go(func() error {
			return deps.metricsServer.Run(bgCtx)
		})
	}
	g.Go(func() error {
		defer stopBackground()
		return consume(ex.Stream(gctx), stream.Name, out)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Infow("extraction complete", "bookmark", state.Bookmark().ReplicationValue)
	return nil
}

func consume(s *extractor.Stream, stream string, out *singerWriter) error {
	for s.Next() {
		if err := out.WriteRecord(stream, s.Record()); err != nil {
			return err
		}
	}
	return s.Err()
}

// loadBookmark reads the resume point from the store, falling back to the state file.
func loadBookmark(ctx context.Context, cfg *Config, store checkpointer.Checkpointer, stream string) (checkpointer.Bookmark, error) {
	b, exists, err := store.Read(ctx, stream)
	if err != nil {
		return checkpointer.Bookmark{}, fmt.Errorf("failed to read bookmark: %w", err)
	}
	if exists {
		return b, nil
	}
	if cfg.StateFile != "" {
		b, exists, err = readStateFile(cfg.StateFile, stream)
		if err != nil {
			return checkpointer.Bookmark{}, err
		}
		if exists {
			return b, nil
		}
	}
	return checkpointer.Bookmark{Stream: stream}, nil
}

// stateTracker records every checkpoint in the shared state and echoes it as a STATE message.
type stateTracker struct {
	state  *checkpointer.State
	out    *singerWriter
	stream extractor.StreamConfig
}

func (t *stateTracker) Checkpoint(b checkpointer.Bookmark) error {
	if err := t.state.Checkpoint(b); err != nil {
		return err
	}
	return t.out.WriteState(t.stream, b)
}

// openStore returns the configured bookmark store and a function releasing it.
func openStore(
	ctx context.Context,
	kind string,
	chCfg clickhouse.Config,
	tableName string,
	sugar *zap.SugaredLogger,
) (bookmark.Repository, func(), error) {
	switch kind {
	case storeMemory:
		sugar.Warn("bookmarks are kept in memory and will not survive this run")
		return inmemory.NewBookmarkRepository(), func() {}, nil
	case storeClickHouse:
		chClient, err := clickhouse.New(ctx, chCfg, sugar)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create ClickHouse client: %w", err)
		}
		sugar.Info("ClickHouse client created successfully")

		repo, err := bookmark.NewRepository(ctx, chClient, chCfg.Cluster, chCfg.Database, tableName)
		if err != nil {
			chClient.Close()
			return nil, nil, fmt.Errorf("failed to create bookmark repository: %w", err)
		}
		return repo, func() {
			if err := chClient.Close(); err != nil {
				sugar.Warnw("failed to close ClickHouse client", "error", err)
			}
		}, nil
	default:
		return nil, nil, validateStateStore(kind)
	}
}
