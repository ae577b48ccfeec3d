package pipeline_test

import (
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
	"github.com/couchcryptid/mapshield-weather/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func snapshot(id, siteID, siteName string, at time.Time, alerts ...domain.Alert) domain.SiteWeatherSnapshot {
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	return domain.SiteWeatherSnapshot{ID: id, SiteID: siteID, SiteName: siteName, CreatedAt: at, Alerts: alerts}
}

func TestLiveView_NewestWins(t *testing.T) {
	v := pipeline.NewLiveView()
	v.Put(snapshot("new", "a", "A", base.Add(time.Hour)))
	v.Put(snapshot("old", "a", "A", base))

	got, ok := v.Get("a")
	require.True(t, ok)
	assert.Equal(t, "new", got.ID)

	v.Put(snapshot("newer", "a", "A", base.Add(2*time.Hour)))
	got, _ = v.Get("a")
	assert.Equal(t, "newer", got.ID)
}

func TestLiveView_ReturnsCopies(t *testing.T) {
	v := pipeline.NewLiveView()
	v.Put(snapshot("1", "a", "A", base, domain.Alert{Description: "Tornado"}))

	got, _ := v.Get("a")
	got.Alerts[0].Description = "mutated"

	again, _ := v.Get("a")
	assert.Equal(t, "Tornado", again.Alerts[0].Description)
}

func TestLiveView_ReplaceAndRemove(t *testing.T) {
	v := pipeline.NewLiveView()
	v.Put(snapshot("x", "x", "X", base))

	v.Replace([]domain.SiteWeatherSnapshot{
		snapshot("b1", "b", "Bravo", base),
		snapshot("a1", "a", "Alpha", base),
		snapshot("b0", "b", "Bravo", base.Add(-time.Hour)),
	})
	assert.Equal(t, 2, v.Len())
	_, ok := v.Get("x")
	assert.False(t, ok)

	all := v.All()
	require.Len(t, all, 2)
	assert.Equal(t, "Alpha", all[0].SiteName)
	assert.Equal(t, "b1", all[1].ID)

	v.Remove("a")
	assert.Equal(t, 1, v.Len())
}

func TestLiveView_MergedAlerts(t *testing.T) {
	tornado := domain.Alert{Type: domain.AlertWarning, Description: "Tornado"}
	heat := domain.Alert{Type: domain.AlertAdvisory, Description: "Heat"}

	v := pipeline.NewLiveView()
	v.Put(snapshot("2", "b", "Bravo", base, heat, tornado))
	v.Put(snapshot("1", "a", "Alpha", base, tornado))
	v.Put(snapshot("3", "c", "Charlie", base))

	merged := v.MergedAlerts()
	require.Len(t, merged, 2)
	assert.Equal(t, "Tornado", merged[0].Description)
	assert.Equal(t, []string{"Alpha", "Bravo"}, merged[0].Sites)
	assert.Equal(t, "Alpha, Bravo", merged[0].Site)
	assert.Equal(t, "Heat", merged[1].Description)
	assert.Equal(t, []string{"Bravo"}, merged[1].Sites)
}

func TestLiveView_MergedAlertsEmpty(t *testing.T) {
	merged := pipeline.NewLiveView().MergedAlerts()
	assert.NotNil(t, merged)
	assert.Empty(t, merged)
}

func TestLiveView_ConcurrentAccess(t *testing.T) {
	v := pipeline.NewLiveView()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			v.Put(snapshot("s", "a", "A", base.Add(time.Duration(i)*time.Minute)))
		}()
		go func() {
			defer wg.Done()
			_ = v.MergedAlerts()
			_, _ = v.Get("a")
		}()
	}
	wg.Wait()

	got, ok := v.Get("a")
	require.True(t, ok)
	assert.Equal(t, base.Add(19*time.Minute), got.CreatedAt)
}
