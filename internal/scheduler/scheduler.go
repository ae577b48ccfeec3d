// Package scheduler runs the due-site refresh on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/observability"
	"github.com/couchcryptid/mapshield-weather/internal/pipeline"
	"github.com/go-co-op/gocron"
)

// Refresher runs one refresh batch over due sites.
type Refresher interface {
	RefreshDue(ctx context.Context, trigger string) (pipeline.Summary, error)
}

// Scheduler periodically refreshes sites whose snapshot is missing or stale.
// Runs never overlap: a tick that fires while a run is in progress is skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	spec      string
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler for the given cron spec (five fields, UTC).
func New(spec string, refresher Refresher, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		spec:      spec,
		logger:    logger,
		metrics:   metrics,
	}
}

// Start registers the refresh job and starts the scheduler. Runs use a
// context derived from ctx that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	if _, err := s.scheduler.Cron(s.spec).SingletonMode().Do(s.run); err != nil {
		cancel()
		return fmt.Errorf("schedule refresh %q: %w", s.spec, err)
	}
	s.ctx, s.cancel = runCtx, cancel

	s.scheduler.StartAsync()
	s.metrics.SchedulerActive.Set(1)
	s.logger.Info("scheduler started", "schedule", s.spec)
	return nil
}

// Stop cancels an in-progress run and stops future ticks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.scheduler.Stop()
	s.cancel = nil
	s.metrics.SchedulerActive.Set(0)
	s.logger.Info("scheduler stopped")
}

// RunNow performs one scheduled run synchronously.
func (s *Scheduler) RunNow() {
	s.run()
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	summary, err := s.refresher.RefreshDue(ctx, pipeline.TriggerSchedule)
	if err != nil {
		s.logger.Error("scheduled refresh failed", "error", err,
			"sites_updated", summary.SitesUpdated, "total_sites", summary.TotalSites)
		return
	}
	s.logger.Info("scheduled refresh complete",
		"sites_updated", summary.SitesUpdated,
		"total_sites", summary.TotalSites,
		"failed", summary.Failed,
	)
}
