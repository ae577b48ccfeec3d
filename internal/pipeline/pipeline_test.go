package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/adapter/memory"
	"github.com/couchcryptid/mapshield-weather/internal/domain"
	"github.com/couchcryptid/mapshield-weather/internal/observability"
	"github.com/couchcryptid/mapshield-weather/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeResult struct {
	obs   domain.Observation
	err   error
	delay time.Duration
}

// fakeSource answers by centroid latitude rounded to two decimals.
type fakeSource struct {
	mu       sync.Mutex
	byLat    map[float64]fakeResult
	calls    []float64
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{byLat: make(map[float64]fakeResult)}
}

func roundLat(lat float64) float64 { return math.Round(lat*100) / 100 }

func (f *fakeSource) set(lat float64, r fakeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byLat[roundLat(lat)] = r
}

func (f *fakeSource) Fetch(ctx context.Context, lat, _ float64) (domain.Observation, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, roundLat(lat))
	r, ok := f.byLat[roundLat(lat)]
	f.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return domain.Observation{}, &domain.UpstreamError{Stage: domain.StagePoint, Err: ctx.Err()}
		}
	}
	if !ok {
		return calmObservation(), nil
	}
	return r.obs, r.err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// failingSnapshots wraps a memory store and fails snapshot writes.
type failingSnapshots struct {
	*memory.Store
	err error
}

func (f *failingSnapshots) CreateSnapshot(context.Context, domain.SiteWeatherSnapshot) error {
	return f.err
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []domain.SiteWeatherSnapshot
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, snap domain.SiteWeatherSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, snap)
	return nil
}

// --- helpers ---

func ptr(v float64) *float64 { return &v }

func calmObservation() domain.Observation {
	return domain.Observation{
		Current: domain.ForecastPeriod{Temperature: 70, PrecipitationProbability: ptr(10), WindSpeed: "5 mph"},
		Hazards: []domain.HazardEntry{},
	}
}

func stormObservation() domain.Observation {
	return domain.Observation{
		Current: domain.ForecastPeriod{Temperature: 88, PrecipitationProbability: ptr(80), WindSpeed: "30 mph"},
		Hazards: []domain.HazardEntry{{
			ValidTime: "2024-05-10T12:00:00+00:00/2024-05-11T00:00:00+00:00",
			Value:     []domain.HazardCode{{Phenomenon: "TO", Significance: "W"}},
		}},
	}
}

func serverError(stage string) fakeResult {
	return fakeResult{err: &domain.UpstreamError{Stage: stage, StatusCode: 500, Status: "Internal Server Error"}}
}

// siteAt builds a square site centred on lat/lon.
func siteAt(id, name string, lat, lon float64) domain.Site {
	const d = 0.01
	return domain.Site{
		ID:   id,
		Name: name,
		Polygon: domain.NewPolygon(
			domain.Position{lon - d, lat - d},
			domain.Position{lon + d, lat - d},
			domain.Position{lon + d, lat + d},
			domain.Position{lon - d, lat + d},
		),
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func freezeClock(t *testing.T, at time.Time) *clockwork.FakeClock {
	t.Helper()
	c := clockwork.NewFakeClockAt(at)
	domain.SetClock(c)
	t.Cleanup(func() { domain.SetClock(nil) })
	return c
}

type harness struct {
	source  *fakeSource
	store   *memory.Store
	live    *pipeline.LiveView
	agg     *pipeline.Aggregator
	orch    *pipeline.Orchestrator
	logs    *bytes.Buffer
	metrics *observability.Metrics
}

func newHarness(t *testing.T, concurrency int) *harness {
	t.Helper()
	h := &harness{
		source:  newFakeSource(),
		store:   memory.NewStore(0),
		live:    pipeline.NewLiveView(),
		logs:    &bytes.Buffer{},
		metrics: observability.NewMetricsForTesting(),
	}
	logger := testLogger(h.logs)
	h.agg = pipeline.NewAggregator(h.source, h.store, domain.AdditiveScorer{}, h.live, nil, logger, h.metrics)
	h.orch = pipeline.NewOrchestrator(h.agg, h.store, h.store, h.live, concurrency, 6*time.Hour, logger, h.metrics)
	return h
}

func (h *harness) addSites(t *testing.T, sites ...domain.Site) {
	t.Helper()
	for _, s := range sites {
		require.NoError(t, h.store.CreateSite(context.Background(), s))
	}
}

// --- orchestrator tests ---

func TestOrchestrator_RefreshAll_IsolatesFailures(t *testing.T) {
	clock := freezeClock(t, time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	h := newHarness(t, 1)

	s1 := siteAt("s1", "S1", 30.25, -97.75)
	s2 := siteAt("s2", "S2", 35.47, -97.52)
	s3 := siteAt("s3", "S3", 39.74, -104.99)
	h.addSites(t, s1, s2, s3)

	// S2 has a prior snapshot that must survive its failed refresh.
	prior := domain.SiteWeatherSnapshot{ID: "prior", SiteID: "s2", SiteName: "S2", Alerts: []domain.Alert{}, CreatedAt: clock.Now().Add(-time.Hour)}
	require.NoError(t, h.store.CreateSnapshot(ctx, prior))
	h.live.Put(prior)

	h.source.set(30.25, fakeResult{obs: stormObservation()})
	h.source.set(35.47, serverError(domain.StagePoint))
	clock.Advance(time.Minute)

	summary, err := h.orch.RefreshAll(ctx, pipeline.TriggerManual, []domain.Site{s1, s2, s3})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalSites)
	assert.Equal(t, 3, summary.SitesUpdated)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "s2", summary.Errors[0].SiteID)
	assert.Equal(t, 3, h.source.callCount(), "batch continues after S2 fails")

	latest1, err := h.store.LatestSnapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), latest1.CreatedAt)
	require.Len(t, latest1.Alerts, 1)
	assert.Equal(t, "Tornado", latest1.Alerts[0].Description)

	latest2, err := h.store.LatestSnapshot(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "prior", latest2.ID)
	live2, ok := h.live.Get("s2")
	require.True(t, ok)
	assert.Equal(t, "prior", live2.ID)

	latest3, err := h.store.LatestSnapshot(ctx, "s3")
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), latest3.CreatedAt)

	assert.Contains(t, h.logs.String(), `"msg":"site refresh failed"`)
	assert.Contains(t, h.logs.String(), `"site_id":"s2"`)
	assert.Contains(t, h.logs.String(), `"level":"ERROR"`)

	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.SiteRefresh.WithLabelValues(observability.OutcomeUpdated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SiteRefresh.WithLabelValues(observability.OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RefreshRuns.WithLabelValues(pipeline.TriggerManual)))
}

func TestOrchestrator_RefreshAll_UnsupportedIsNotFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)

	polar := siteAt("p", "Polar", 89.9, 179.9)
	h.source.set(89.9, fakeResult{err: domain.ErrLocationUnsupported})

	summary, err := h.orch.RefreshAll(ctx, pipeline.TriggerManual, []domain.Site{polar})
	require.NoError(t, err)

	want := pipeline.Summary{SitesUpdated: 1, TotalSites: 1, Unsupported: 1}
	if diff := cmp.Diff(want, summary, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	assert.NotContains(t, h.logs.String(), `"level":"ERROR"`)
	assert.Contains(t, h.logs.String(), "site outside weather coverage")
}

func TestOrchestrator_RefreshAll_BoundedConcurrency(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 3)

	var sites []domain.Site
	for i := 0; i < 9; i++ {
		lat := 30 + float64(i)
		sites = append(sites, siteAt(fmt.Sprintf("s%d", i), fmt.Sprintf("Site %d", i), lat, -97))
		h.source.set(lat, fakeResult{obs: calmObservation(), delay: 20 * time.Millisecond})
	}

	summary, err := h.orch.RefreshAll(ctx, pipeline.TriggerSchedule, sites)
	require.NoError(t, err)
	assert.Equal(t, 9, summary.Succeeded)
	assert.LessOrEqual(t, h.source.maxSeen.Load(), int32(3))
	assert.Greater(t, h.source.maxSeen.Load(), int32(1))
	assert.Equal(t, 9, h.live.Len())
}

func TestOrchestrator_RefreshAll_SequentialByDefault(t *testing.T) {
	h := newHarness(t, 1)
	sites := []domain.Site{siteAt("a", "A", 30, -97), siteAt("b", "B", 31, -97), siteAt("c", "C", 32, -97)}
	for _, lat := range []float64{30, 31, 32} {
		h.source.set(lat, fakeResult{obs: calmObservation(), delay: 5 * time.Millisecond})
	}

	_, err := h.orch.RefreshAll(context.Background(), pipeline.TriggerManual, sites)
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.source.maxSeen.Load())
	assert.Equal(t, []float64{30, 31, 32}, h.source.calls)
}

func TestOrchestrator_RefreshAll_Cancelled(t *testing.T) {
	h := newHarness(t, 1)
	sites := []domain.Site{siteAt("a", "A", 30, -97), siteAt("b", "B", 31, -97)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.orch.RefreshAll(ctx, pipeline.TriggerManual, sites)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, summary.SitesUpdated)
	assert.Equal(t, 2, summary.TotalSites)
	assert.Equal(t, 0, h.source.callCount())
}

func TestOrchestrator_RefreshAll_CancelMidBatchKeepsLastGood(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, 1)

	a := siteAt("a", "A", 30, -97)
	b := siteAt("b", "B", 31, -97)
	prior := domain.SiteWeatherSnapshot{ID: "prior-b", SiteID: "b", SiteName: "B", Alerts: []domain.Alert{}}
	require.NoError(t, h.store.CreateSnapshot(ctx, prior))

	h.source.set(30, fakeResult{obs: calmObservation()})
	h.source.set(31, fakeResult{obs: calmObservation(), delay: time.Second})

	go func() {
		for h.source.callCount() < 2 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	summary, err := h.orch.RefreshAll(ctx, pipeline.TriggerManual, []domain.Site{a, b})
	require.NoError(t, err, "both sites were attempted")
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	latest, err := h.store.LatestSnapshot(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "prior-b", latest.ID)
}

func TestOrchestrator_RefreshDue(t *testing.T) {
	clock := freezeClock(t, time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	h := newHarness(t, 1)

	fresh := siteAt("fresh", "Fresh", 30, -97)
	stale := siteAt("stale", "Stale", 31, -97)
	never := siteAt("never", "Never", 32, -97)
	h.addSites(t, fresh, stale, never)

	require.NoError(t, h.store.CreateSnapshot(ctx, domain.SiteWeatherSnapshot{ID: "f", SiteID: "fresh", CreatedAt: clock.Now().Add(-time.Hour)}))
	require.NoError(t, h.store.CreateSnapshot(ctx, domain.SiteWeatherSnapshot{ID: "s", SiteID: "stale", CreatedAt: clock.Now().Add(-7 * time.Hour)}))

	summary, err := h.orch.RefreshDue(ctx, pipeline.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SitesUpdated)
	assert.Equal(t, 3, summary.TotalSites)
	assert.ElementsMatch(t, []float64{31, 32}, h.source.calls)

	latest, err := h.store.LatestSnapshot(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "f", latest.ID)
}

func TestOrchestrator_RefreshDue_SkipsRecentlyUnsupported(t *testing.T) {
	clock := freezeClock(t, time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	h := newHarness(t, 1)

	h.addSites(t, siteAt("p", "Polar", 89.9, 179.9))
	h.source.set(89.9, fakeResult{err: domain.ErrLocationUnsupported})

	summary, err := h.orch.RefreshDue(ctx, pipeline.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unsupported)

	summary, err = h.orch.RefreshDue(ctx, pipeline.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SitesUpdated, "unsupported site is not retried while fresh")
	assert.Equal(t, 1, summary.TotalSites)
	assert.Equal(t, 1, h.source.callCount())

	clock.Advance(7 * time.Hour)
	summary, err = h.orch.RefreshDue(ctx, pipeline.TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SitesUpdated, "retried once stale")
	assert.Equal(t, 2, h.source.callCount())
}

func TestOrchestrator_RefreshDue_ListFailure(t *testing.T) {
	h := newHarness(t, 1)
	broken := pipeline.NewOrchestrator(h.agg, brokenSites{}, h.store, h.live, 1, time.Hour, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), h.metrics)

	_, err := broken.RefreshDue(context.Background(), pipeline.TriggerJob)
	var pErr *domain.PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "list sites", pErr.Op)
}

func TestOrchestrator_RefreshSites(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	a := siteAt("a", "A", 30, -97)
	b := siteAt("b", "B", 31, -97)
	h.addSites(t, a, b)

	summary, err := h.orch.RefreshSites(ctx, pipeline.TriggerManual, []string{"b", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalSites)
	assert.Equal(t, []float64{31}, h.source.calls)

	summary, err = h.orch.RefreshSites(ctx, pipeline.TriggerManual, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalSites)

	_, err = h.orch.RefreshSites(ctx, pipeline.TriggerManual, []string{"a", "missing"})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, h.source.calls, 3, "unknown id fails before any refresh")
}

func TestOrchestrator_RefreshIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	a := siteAt("a", "A", 30, -97)
	h.addSites(t, a)
	h.source.set(30, fakeResult{obs: stormObservation()})

	first, err := h.orch.RefreshSites(ctx, pipeline.TriggerManual, nil)
	require.NoError(t, err)
	second, err := h.orch.RefreshSites(ctx, pipeline.TriggerManual, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	merged := h.live.MergedAlerts()
	require.Len(t, merged, 1)
	assert.Equal(t, "A", merged[0].Site)
}

type brokenSites struct{ pipeline.SiteStore }

func (brokenSites) ListSites(context.Context) ([]domain.Site, error) {
	return nil, errors.New("connection refused")
}
