package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
	"github.com/couchcryptid/mapshield-weather/internal/observability"
	"github.com/google/uuid"
)

// Aggregator refreshes one site: fetch, extract alerts, score, persist, then
// swap the live view and publish.
type Aggregator struct {
	source    WeatherSource
	store     SnapshotStore
	scorer    domain.Scorer
	live      *LiveView
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	newID     func() string
}

// NewAggregator creates an Aggregator. publisher may be nil.
func NewAggregator(source WeatherSource, store SnapshotStore, scorer domain.Scorer, live *LiveView, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		source:    source,
		store:     store,
		scorer:    scorer,
		live:      live,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		newID:     uuid.NewString,
	}
}

// RefreshSite fetches current weather for the site's centroid and records a
// new snapshot.
//
// A location outside coverage is not an error: it returns a snapshot with no
// alerts and Supported false, held in the live view but never persisted. Fetch failures return the
// upstream error and leave the stored and live snapshots untouched. When the
// store write fails the live view is still updated and a
// *domain.PersistenceError is returned with the snapshot.
func (a *Aggregator) RefreshSite(ctx context.Context, site domain.Site) (domain.SiteWeatherSnapshot, error) {
	lat, lon := site.Polygon.Centroid()

	obs, err := a.source.Fetch(ctx, lat, lon)
	if errors.Is(err, domain.ErrLocationUnsupported) {
		a.logger.Debug("site outside weather coverage",
			"site_id", site.ID, "site_name", site.Name, "lat", lat, "lon", lon)
		snap := domain.UnsupportedSnapshot(site)
		a.live.Put(snap)
		return snap, nil
	}
	if err != nil {
		return domain.SiteWeatherSnapshot{}, err
	}

	alerts := domain.ExtractAlerts(site.Name, obs.Hazards)
	risk := a.scorer.Score(obs.Current, alerts)
	snap := domain.NewSnapshot(a.newID(), site, obs.Current, alerts, risk)

	if err := a.store.CreateSnapshot(ctx, snap); err != nil {
		a.live.Put(snap)
		a.logger.Error("persist snapshot failed",
			"site_id", site.ID, "site_name", site.Name, "error", err)
		return snap, &domain.PersistenceError{Op: "create snapshot", Err: err}
	}
	a.live.Put(snap)

	a.publish(ctx, snap)
	return snap, nil
}

func (a *Aggregator) publish(ctx context.Context, snap domain.SiteWeatherSnapshot) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, snap); err != nil {
		a.metrics.PublishErrors.Inc()
		a.logger.Warn("publish snapshot failed", "site_id", snap.SiteID, "error", err)
		return
	}
	a.metrics.SnapshotsPublished.Inc()
}
