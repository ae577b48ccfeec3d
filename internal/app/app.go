// Package app wires configuration into a running pipeline: weather source,
// stores, cache, publisher, and geocoder.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	kafkaadapter "github.com/couchcryptid/mapshield-weather/internal/adapter/kafka"
	"github.com/couchcryptid/mapshield-weather/internal/adapter/mapbox"
	"github.com/couchcryptid/mapshield-weather/internal/adapter/memory"
	"github.com/couchcryptid/mapshield-weather/internal/adapter/nws"
	"github.com/couchcryptid/mapshield-weather/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/mapshield-weather/internal/adapter/redis"
	"github.com/couchcryptid/mapshield-weather/internal/config"
	"github.com/couchcryptid/mapshield-weather/internal/domain"
	"github.com/couchcryptid/mapshield-weather/internal/observability"
	"github.com/couchcryptid/mapshield-weather/internal/pipeline"
)

// App holds the wired service and the resources that must be closed with it.
type App struct {
	Service  *pipeline.Service
	Geocoder domain.Geocoder

	closers []func() error
	logger  *slog.Logger
}

// New builds and initializes the service described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{logger: logger}

	scorer, err := domain.ScorerByName(cfg.RiskStrategy)
	if err != nil {
		return nil, err
	}

	var (
		sites     pipeline.SiteStore
		snapshots pipeline.SnapshotStore
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL, 5)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		store := postgres.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		sites, snapshots = store, store
		logger.Info("using postgres store")
	} else {
		store := memory.NewStore(0)
		sites, snapshots = store, store
		logger.Warn("DATABASE_URL not set, using in-memory store")
	}

	if cfg.RedisURL != "" {
		client, err := redisadapter.NewClient(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		snapshots = redisadapter.NewCachedSnapshotStore(snapshots, client, cfg.RedisTTL, logger, metrics)
		logger.Info("redis snapshot cache enabled", "ttl", cfg.RedisTTL)
	}

	var publisher pipeline.Publisher
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSnapshotTopic, logger)
		a.closers = append(a.closers, writer.Close)
		publisher = writer
		logger.Info("snapshot publishing enabled", "topic", cfg.KafkaSnapshotTopic)
	}

	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		a.Geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	source := nws.NewClient(cfg.NWSBaseURL, cfg.NWSUserAgent, cfg.NWSTimeout, logger, metrics)
	a.Service = pipeline.New(source, sites, snapshots, publisher, pipeline.Options{
		Scorer:      scorer,
		Concurrency: cfg.RefreshConcurrency,
		StaleAfter:  cfg.RefreshStaleAfter,
	}, logger, metrics)

	if err := a.Service.Initialize(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize service: %w", err)
	}
	return a, nil
}

// Close shuts the service down and releases resources in reverse order.
func (a *App) Close() error {
	if a.Service != nil {
		a.Service.Shutdown()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("close resources", "error", err)
		return err
	}
	return nil
}
