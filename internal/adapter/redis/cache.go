// Package redis caches each site's latest snapshot in Redis in front of a
// durable snapshot store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
	"github.com/couchcryptid/mapshield-weather/internal/observability"
	"github.com/couchcryptid/mapshield-weather/internal/pipeline"
	"github.com/go-redis/redis/v8"
)

const keyPrefix = "mapshield:snapshot:latest:"

// kvClient is the subset of *redis.Client the cache uses.
type kvClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewClient connects using a redis:// URL.
func NewClient(rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// CachedSnapshotStore decorates a pipeline.SnapshotStore. Latest-snapshot
// reads are served from Redis when present; every other call goes to the
// inner store. Redis failures are logged and fall through to the inner store.
type CachedSnapshotStore struct {
	pipeline.SnapshotStore
	client  kvClient
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCachedSnapshotStore wraps inner with a Redis cache whose entries expire after ttl.
func NewCachedSnapshotStore(inner pipeline.SnapshotStore, client kvClient, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *CachedSnapshotStore {
	return &CachedSnapshotStore{
		SnapshotStore: inner,
		client:        client,
		ttl:           ttl,
		logger:        logger,
		metrics:       metrics,
	}
}

// CreateSnapshot writes snap to the inner store and caches it unless the
// cached entry is newer.
func (c *CachedSnapshotStore) CreateSnapshot(ctx context.Context, snap domain.SiteWeatherSnapshot) error {
	if err := c.SnapshotStore.CreateSnapshot(ctx, snap); err != nil {
		return err
	}
	if cached, ok := c.cached(ctx, snap.SiteID); ok && cached.CreatedAt.After(snap.CreatedAt) {
		c.logger.Debug("keeping newer cached snapshot", "site_id", snap.SiteID, "cached_id", cached.ID, "snapshot_id", snap.ID)
		return nil
	}
	c.put(ctx, snap)
	return nil
}

func (c *CachedSnapshotStore) cached(ctx context.Context, siteID string) (domain.SiteWeatherSnapshot, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+siteID).Bytes()
	if err != nil {
		return domain.SiteWeatherSnapshot{}, false
	}
	var snap domain.SiteWeatherSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.SiteWeatherSnapshot{}, false
	}
	return snap, true
}

func (c *CachedSnapshotStore) LatestSnapshot(ctx context.Context, siteID string) (domain.SiteWeatherSnapshot, error) {
	raw, err := c.client.Get(ctx, keyPrefix+siteID).Bytes()
	switch {
	case err == nil:
		var snap domain.SiteWeatherSnapshot
		if jerr := json.Unmarshal(raw, &snap); jerr == nil {
			c.metrics.SnapshotCache.WithLabelValues("hit").Inc()
			return snap, nil
		}
		c.metrics.SnapshotCache.WithLabelValues("error").Inc()
		c.logger.Warn("discarding malformed cached snapshot", "site_id", siteID)
	case errors.Is(err, redis.Nil):
		c.metrics.SnapshotCache.WithLabelValues("miss").Inc()
	default:
		c.metrics.SnapshotCache.WithLabelValues("error").Inc()
		c.logger.Warn("snapshot cache read failed", "site_id", siteID, "error", err)
	}

	snap, err := c.SnapshotStore.LatestSnapshot(ctx, siteID)
	if err != nil {
		return domain.SiteWeatherSnapshot{}, err
	}
	c.put(ctx, snap)
	return snap, nil
}

func (c *CachedSnapshotStore) DeleteSnapshotsBySite(ctx context.Context, siteID string) error {
	if err := c.SnapshotStore.DeleteSnapshotsBySite(ctx, siteID); err != nil {
		return err
	}
	if err := c.client.Del(ctx, keyPrefix+siteID).Err(); err != nil {
		c.logger.Warn("snapshot cache delete failed", "site_id", siteID, "error", err)
	}
	return nil
}

func (c *CachedSnapshotStore) put(ctx context.Context, snap domain.SiteWeatherSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+snap.SiteID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("snapshot cache write failed", "site_id", snap.SiteID, "error", err)
	}
}
