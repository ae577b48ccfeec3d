package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
	"github.com/couchcryptid/mapshield-weather/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Refresh triggers, used as the trigger label on RefreshRuns.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerJob      = "job"
)

// Summary reports a refresh batch. SitesUpdated counts attempted sites
// regardless of their outcome; TotalSites is the size of the set considered.
type Summary struct {
	SitesUpdated int         `json:"sites_updated"`
	TotalSites   int         `json:"total_sites"`
	Succeeded    int         `json:"succeeded"`
	Unsupported  int         `json:"unsupported"`
	Failed       int         `json:"failed"`
	Errors       []SiteError `json:"errors,omitempty"`
}

// SiteError is one failed site in a batch.
type SiteError struct {
	SiteID   string `json:"site_id"`
	SiteName string `json:"site_name"`
	Error    string `json:"error"`
}

type siteOutcome struct {
	attempted bool
	outcome   string
	err       error
}

// Orchestrator runs refresh batches. Sites are refreshed by a bounded pool of
// workers; one site failing never stops the others.
type Orchestrator struct {
	refresher   SiteRefresher
	sites       SiteStore
	snapshots   SnapshotStore
	live        *LiveView
	concurrency int
	staleAfter  time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewOrchestrator creates an Orchestrator. A concurrency of 1 refreshes sites
// one after another. live may be nil.
func NewOrchestrator(refresher SiteRefresher, sites SiteStore, snapshots SnapshotStore, live *LiveView, concurrency int, staleAfter time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		refresher:   refresher,
		sites:       sites,
		snapshots:   snapshots,
		live:        live,
		concurrency: concurrency,
		staleAfter:  staleAfter,
		logger:      logger,
		metrics:     metrics,
	}
}

// RefreshAll refreshes the given sites. Per-site failures are logged and
// counted. The returned error is non-nil only when ctx ends before every
// site was attempted; the summary still covers the attempted sites.
func (o *Orchestrator) RefreshAll(ctx context.Context, trigger string, sites []domain.Site) (Summary, error) {
	start := time.Now()
	o.metrics.RefreshRuns.WithLabelValues(trigger).Inc()
	o.logger.Info("refresh started", "trigger", trigger, "sites", len(sites), "concurrency", o.concurrency)

	results := make([]siteOutcome, len(sites))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, site := range sites {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = o.refreshOne(ctx, site)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{TotalSites: len(sites)}
	for i, r := range results {
		if !r.attempted {
			continue
		}
		summary.SitesUpdated++
		switch r.outcome {
		case observability.OutcomeUpdated:
			summary.Succeeded++
		case observability.OutcomeUnsupported:
			summary.Unsupported++
		case observability.OutcomeFailed:
			summary.Failed++
			summary.Errors = append(summary.Errors, SiteError{
				SiteID:   sites[i].ID,
				SiteName: sites[i].Name,
				Error:    r.err.Error(),
			})
		}
	}

	elapsed := time.Since(start)
	o.metrics.RefreshDuration.Observe(elapsed.Seconds())
	o.logger.Info("refresh finished",
		"trigger", trigger,
		"attempted", summary.SitesUpdated,
		"total", summary.TotalSites,
		"succeeded", summary.Succeeded,
		"unsupported", summary.Unsupported,
		"failed", summary.Failed,
		"duration", elapsed,
	)

	if summary.SitesUpdated < len(sites) {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("refresh interrupted after %d of %d sites: %w", summary.SitesUpdated, len(sites), err)
		}
	}
	return summary, nil
}

func (o *Orchestrator) refreshOne(ctx context.Context, site domain.Site) siteOutcome {
	snap, err := o.refresher.RefreshSite(ctx, site)
	switch {
	case err != nil:
		o.metrics.SiteRefresh.WithLabelValues(observability.OutcomeFailed).Inc()
		attrs := []any{"site_id", site.ID, "site_name", site.Name, "error", err}
		var upErr *domain.UpstreamError
		if errors.As(err, &upErr) {
			attrs = append(attrs, "stage", upErr.Stage, "status", upErr.StatusCode)
		}
		o.logger.Error("site refresh failed", attrs...)
		return siteOutcome{attempted: true, outcome: observability.OutcomeFailed, err: err}
	case !snap.Supported:
		o.metrics.SiteRefresh.WithLabelValues(observability.OutcomeUnsupported).Inc()
		return siteOutcome{attempted: true, outcome: observability.OutcomeUnsupported}
	default:
		o.metrics.SiteRefresh.WithLabelValues(observability.OutcomeUpdated).Inc()
		o.logger.Debug("site refreshed",
			"site_id", site.ID, "risk_score", snap.RiskScore, "risk_level", snap.RiskLevel, "alerts", len(snap.Alerts))
		return siteOutcome{attempted: true, outcome: observability.OutcomeUpdated}
	}
}

// RefreshDue refreshes every catalog site whose latest snapshot is missing or
// older than the staleness threshold. The newer of the stored and live
// snapshots counts, so unsupported sites are not retried until stale.
// TotalSites is the catalog size.
func (o *Orchestrator) RefreshDue(ctx context.Context, trigger string) (Summary, error) {
	sites, err := o.sites.ListSites(ctx)
	if err != nil {
		return Summary{}, &domain.PersistenceError{Op: "list sites", Err: err}
	}
	latest, err := o.snapshots.AllLatestSnapshots(ctx)
	if err != nil {
		return Summary{}, &domain.PersistenceError{Op: "load latest snapshots", Err: err}
	}

	bySite := make(map[string]*domain.SiteWeatherSnapshot, len(latest))
	for i := range latest {
		bySite[latest[i].SiteID] = &latest[i]
	}
	if o.live != nil {
		for _, snap := range o.live.All() {
			if cur, ok := bySite[snap.SiteID]; ok && !snap.CreatedAt.After(cur.CreatedAt) {
				continue
			}
			bySite[snap.SiteID] = &snap
		}
	}

	now := domain.Now()
	due := make([]domain.Site, 0, len(sites))
	for _, s := range sites {
		if domain.NeedsRefresh(bySite[s.ID], now, o.staleAfter) {
			due = append(due, s)
		}
	}

	summary, err := o.RefreshAll(ctx, trigger, due)
	summary.TotalSites = len(sites)
	return summary, err
}

// RefreshSites refreshes the sites with the given IDs, or the whole catalog
// when ids is empty. Unknown IDs fail the call before anything is refreshed.
func (o *Orchestrator) RefreshSites(ctx context.Context, trigger string, ids []string) (Summary, error) {
	var sites []domain.Site
	if len(ids) == 0 {
		all, err := o.sites.ListSites(ctx)
		if err != nil {
			return Summary{}, &domain.PersistenceError{Op: "list sites", Err: err}
		}
		sites = all
	} else {
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			site, err := o.sites.GetSite(ctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return Summary{}, fmt.Errorf("site %s: %w", id, err)
				}
				return Summary{}, &domain.PersistenceError{Op: "get site", Err: err}
			}
			sites = append(sites, site)
		}
	}
	return o.RefreshAll(ctx, trigger, sites)
}
