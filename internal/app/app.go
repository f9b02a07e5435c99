// Package app wires configuration into the registry, pipeline and query
// components shared by the monitor CLI and the climated service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/climate-data-monitor/internal/adapter/kafka"
	"github.com/couchcryptid/climate-data-monitor/internal/adapter/postgres"
	"github.com/couchcryptid/climate-data-monitor/internal/adapter/redis"
	"github.com/couchcryptid/climate-data-monitor/internal/adapter/s3"
	"github.com/couchcryptid/climate-data-monitor/internal/config"
	"github.com/couchcryptid/climate-data-monitor/internal/domain"
	"github.com/couchcryptid/climate-data-monitor/internal/observability"
	"github.com/couchcryptid/climate-data-monitor/internal/pipeline"
	"github.com/couchcryptid/climate-data-monitor/internal/query"
	"github.com/couchcryptid/climate-data-monitor/internal/registry"
	"github.com/couchcryptid/climate-data-monitor/internal/validation"
)

// App holds the wired components. History is nil unless history.dsn is set.
type App struct {
	Registry *registry.Registry
	Analyzer *query.Analyzer
	Pipeline *pipeline.Pipeline
	History  *postgres.HistoryStore
	// DefaultPackage is registry.package, the target of runs and the default
	// package for queries.
	DefaultPackage string

	closers []func() error
}

// New connects every configured backend. Kafka, Redis and Postgres are
// optional and skipped when their address is empty.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{DefaultPackage: cfg.Registry.Package}

	backend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Registry = registry.New(backend, nil, logger)
	cached := registry.NewCachedRegistry(a.Registry, cfg.Registry.CacheSize, metrics)

	engine, err := domain.NewEngine(cfg.Thresholds)
	if err != nil {
		return nil, err
	}

	var pipeOpts []pipeline.Option
	var queryOpts []query.Option

	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		n := kafka.NewNotifier(brokers, cfg.Kafka.Topic, logger)
		a.closers = append(a.closers, n.Close)
		pipeOpts = append(pipeOpts, pipeline.WithNotifier(n))
		logger.Info("kafka notifications enabled", "brokers", brokers, "topic", cfg.Kafka.Topic)
	}

	if cfg.Redis.Addr != "" {
		idx, err := redis.NewIndex(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix, logger)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, idx.Close)
		pipeOpts = append(pipeOpts, pipeline.WithIndexer(idx))
		queryOpts = append(queryOpts, query.WithIndex(idx))
		logger.Info("redis package index enabled", "addr", cfg.Redis.Addr)
	}

	if cfg.History.DSN != "" {
		h, err := postgres.Open(ctx, cfg.History.DSN, logger)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.History = h
		a.closers = append(a.closers, h.Close)
		pipeOpts = append(pipeOpts, pipeline.WithHistory(h))
	}

	settings, err := Settings(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Analyzer = query.NewAnalyzer(cached, logger, queryOpts...)
	a.Pipeline = pipeline.New(settings, engine, a.Registry, logger, metrics, pipeOpts...)
	return a, nil
}

// Settings derives pipeline settings from cfg.
func Settings(cfg *config.Config) (pipeline.Settings, error) {
	s := pipeline.Settings{
		SourceURL:       cfg.Climate.SourceURL,
		DownloadDir:     cfg.Climate.DownloadDir,
		OutputDir:       cfg.Quality.OutputDir,
		PackageName:     cfg.Registry.Package,
		Push:            cfg.Registry.PushEnabled,
		EnforceMinScore: cfg.Quality.EnforceMinScore,
		MaxPushAttempts: cfg.Registry.MaxPushAttempts,
	}
	if cfg.Filtering.Enabled {
		start, end, err := cfg.Filtering.DateRange()
		if err != nil {
			return pipeline.Settings{}, err
		}
		s.Filters = validation.Filters{
			StationIDs: cfg.Filtering.StationIDs,
			Elements:   cfg.Filtering.Elements(),
			Start:      start,
			End:        end,
		}
	}
	return s, nil
}

func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (registry.Backend, error) {
	loc := cfg.Location
	if !loc.Remote() {
		b, err := registry.NewLocalBackend(loc.Path)
		if err != nil {
			return nil, fmt.Errorf("open local registry %s: %w", loc.Path, err)
		}
		return b, nil
	}
	b, err := s3.NewBackend(ctx, s3.Config{
		Region:          cfg.AWS.Region,
		Bucket:          loc.Bucket,
		Prefix:          loc.Prefix,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		SessionToken:    cfg.AWS.SessionToken,
		Endpoint:        cfg.AWS.Endpoint,
		ForcePathStyle:  cfg.AWS.ForcePathStyle,
		SkipAccessCheck: !cfg.AWS.TestBucketAccess,
	}, logger)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Close releases every connection opened by New.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
