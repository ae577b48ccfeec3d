package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
	"github.com/couchcryptid/mapshield-weather/internal/observability"
)

// ErrNotReady is returned by Service operations before Initialize or after Shutdown.
var ErrNotReady = errors.New("service is not initialized")

// DefaultStaleAfter is the staleness threshold used when Options leaves it unset.
const DefaultStaleAfter = 6 * time.Hour

// Options tunes a Service.
type Options struct {
	Scorer      domain.Scorer
	Concurrency int
	StaleAfter  time.Duration
}

// Service is the handle owning the live view, the aggregator and the
// orchestrator for one process. Callers construct it once and pass it around.
type Service struct {
	sites        *SiteService
	aggregator   *Aggregator
	orchestrator *Orchestrator
	live         *LiveView
	snapshots    SnapshotStore
	logger       *slog.Logger

	mu    sync.Mutex
	ready atomic.Bool
	done  bool
}

// New wires a Service. publisher may be nil.
func New(source WeatherSource, sites SiteStore, snapshots SnapshotStore, publisher Publisher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if opts.Scorer == nil {
		opts.Scorer = domain.AdditiveScorer{}
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	live := NewLiveView()
	agg := NewAggregator(source, snapshots, opts.Scorer, live, publisher, logger, metrics)
	return &Service{
		sites:        NewSiteService(sites, snapshots, live, logger),
		aggregator:   agg,
		orchestrator: NewOrchestrator(agg, sites, snapshots, live, opts.Concurrency, opts.StaleAfter, logger, metrics),
		live:         live,
		snapshots:    snapshots,
		logger:       logger,
	}
}

// Initialize loads the latest stored snapshot of every site into the live
// view. Calling it again after success is a no-op.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return ErrNotReady
	}
	if s.ready.Load() {
		return nil
	}

	latest, err := s.snapshots.AllLatestSnapshots(ctx)
	if err != nil {
		return &domain.PersistenceError{Op: "load latest snapshots", Err: err}
	}
	s.live.Replace(latest)
	s.ready.Store(true)
	s.logger.Info("service initialized", "snapshots", len(latest))
	return nil
}

// Shutdown marks the service stopped. It is safe to call more than once.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.ready.Store(false)
	s.logger.Info("service shut down")
}

// CheckReadiness returns nil once the service is initialized and not shut down.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return ErrNotReady
	}
	return nil
}

// Sites returns the site catalog service.
func (s *Service) Sites() *SiteService {
	return s.sites
}

// RefreshDue refreshes sites whose snapshot is missing or stale.
func (s *Service) RefreshDue(ctx context.Context, trigger string) (Summary, error) {
	if err := s.CheckReadiness(ctx); err != nil {
		return Summary{}, err
	}
	return s.orchestrator.RefreshDue(ctx, trigger)
}

// RefreshSites refreshes the given sites, or every site when ids is empty.
func (s *Service) RefreshSites(ctx context.Context, ids []string) (Summary, error) {
	if err := s.CheckReadiness(ctx); err != nil {
		return Summary{}, err
	}
	return s.orchestrator.RefreshSites(ctx, TriggerManual, ids)
}

// LatestSnapshot returns the site's current snapshot from the live view,
// falling back to the store.
func (s *Service) LatestSnapshot(ctx context.Context, siteID string) (domain.SiteWeatherSnapshot, error) {
	if snap, ok := s.live.Get(siteID); ok {
		return snap, nil
	}
	snap, err := s.snapshots.LatestSnapshot(ctx, siteID)
	if err != nil {
		return domain.SiteWeatherSnapshot{}, wrapStoreErr("latest snapshot", err)
	}
	s.live.Put(snap)
	return snap, nil
}

// History returns the site's snapshots from the last days days with daily
// averages. An unknown site returns domain.ErrNotFound.
func (s *Service) History(ctx context.Context, siteID string, days int) (domain.HistoryReport, error) {
	if _, err := s.sites.Get(ctx, siteID); err != nil {
		return domain.HistoryReport{}, err
	}
	if days <= 0 {
		days = 7
	}
	since := domain.Now().Add(-time.Duration(days) * 24 * time.Hour)
	snaps, err := s.snapshots.SnapshotHistory(ctx, siteID, since)
	if err != nil {
		return domain.HistoryReport{}, &domain.PersistenceError{Op: "snapshot history", Err: err}
	}
	return domain.SummarizeHistory(siteID, days, snaps), nil
}

// MergedAlerts returns every site's current alerts folded by hazard.
func (s *Service) MergedAlerts() []domain.MergedAlert {
	return s.live.MergedAlerts()
}

// Snapshots returns the live view's current snapshots.
func (s *Service) Snapshots() []domain.SiteWeatherSnapshot {
	return s.live.All()
}
