package pipeline

import (
	"context"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
)

// WeatherSource runs the point -> forecast -> gridpoint chain for a coordinate.
type WeatherSource interface {
	Fetch(ctx context.Context, lat, lon float64) (domain.Observation, error)
}

// SiteStore persists the site catalog. Get, Update and Delete return
// domain.ErrNotFound for unknown IDs.
type SiteStore interface {
	CreateSite(ctx context.Context, site domain.Site) error
	GetSite(ctx context.Context, id string) (domain.Site, error)
	ListSites(ctx context.Context) ([]domain.Site, error)
	UpdateSite(ctx context.Context, site domain.Site) error
	DeleteSite(ctx context.Context, id string) error
}

// SnapshotStore keeps one record per refresh. Latest is derived by creation
// time; LatestSnapshot returns domain.ErrNotFound when a site has none.
type SnapshotStore interface {
	CreateSnapshot(ctx context.Context, snap domain.SiteWeatherSnapshot) error
	LatestSnapshot(ctx context.Context, siteID string) (domain.SiteWeatherSnapshot, error)
	AllLatestSnapshots(ctx context.Context) ([]domain.SiteWeatherSnapshot, error)
	SnapshotHistory(ctx context.Context, siteID string, since time.Time) ([]domain.SiteWeatherSnapshot, error)
	DeleteSnapshotsBySite(ctx context.Context, siteID string) error
}

// Publisher emits refreshed snapshots to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, snap domain.SiteWeatherSnapshot) error
}

// SiteRefresher refreshes a single site.
type SiteRefresher interface {
	RefreshSite(ctx context.Context, site domain.Site) (domain.SiteWeatherSnapshot, error)
}
