package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/couchcryptid/mapshield-weather/internal/observability"
	"github.com/couchcryptid/mapshield-weather/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	mu       sync.Mutex
	triggers []string
	ctxs     []context.Context
	summary  pipeline.Summary
	err      error
}

func (f *fakeRefresher) RefreshDue(ctx context.Context, trigger string) (pipeline.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	f.ctxs = append(f.ctxs, ctx)
	return f.summary, f.err
}

func newTestScheduler(spec string, r Refresher) (*Scheduler, *bytes.Buffer, *observability.Metrics) {
	var buf bytes.Buffer
	m := observability.NewMetricsForTesting()
	return New(spec, r, slog.New(slog.NewJSONHandler(&buf, nil)), m), &buf, m
}

func TestScheduler_StartStop(t *testing.T) {
	s, logs, m := newTestScheduler("0 */6 * * *", &fakeRefresher{})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()), "second start is a no-op")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SchedulerActive))
	assert.Contains(t, logs.String(), "scheduler started")

	s.Stop()
	s.Stop()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SchedulerActive))
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s, _, m := newTestScheduler("not a cron", &fakeRefresher{})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a cron")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SchedulerActive))
}

func TestScheduler_RunNow(t *testing.T) {
	r := &fakeRefresher{summary: pipeline.Summary{SitesUpdated: 2, TotalSites: 5}}
	s, logs, _ := newTestScheduler("0 */6 * * *", r)

	s.RunNow()
	require.Equal(t, []string{pipeline.TriggerSchedule}, r.triggers)
	assert.Contains(t, logs.String(), "scheduled refresh complete")
	assert.Contains(t, logs.String(), `"total_sites":5`)
}

func TestScheduler_RunFailureIsLogged(t *testing.T) {
	r := &fakeRefresher{err: errors.New("store unavailable")}
	s, logs, _ := newTestScheduler("0 */6 * * *", r)

	s.RunNow()
	assert.Contains(t, logs.String(), "scheduled refresh failed")
	assert.Contains(t, logs.String(), "store unavailable")
}

func TestScheduler_StopCancelsRunContext(t *testing.T) {
	r := &fakeRefresher{}
	s, _, _ := newTestScheduler("0 */6 * * *", r)

	require.NoError(t, s.Start(context.Background()))
	s.RunNow()
	s.Stop()

	require.Len(t, r.ctxs, 1)
	assert.ErrorIs(t, r.ctxs[0].Err(), context.Canceled)
}
