package pipeline

import (
	"sort"
	"sync"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
)

// LiveView is the in-memory latest snapshot per site. Writes replace a
// site's whole snapshot; reads return copies, so callers never see a
// partially updated value.
type LiveView struct {
	mu        sync.RWMutex
	snapshots map[string]domain.SiteWeatherSnapshot
}

// NewLiveView returns an empty view.
func NewLiveView() *LiveView {
	return &LiveView{snapshots: make(map[string]domain.SiteWeatherSnapshot)}
}

// Put stores snap as the site's current state unless a newer one is
// already present.
func (v *LiveView) Put(snap domain.SiteWeatherSnapshot) {
	c := snap.Clone()

	v.mu.Lock()
	defer v.mu.Unlock()
	if cur, ok := v.snapshots[snap.SiteID]; ok && cur.CreatedAt.After(snap.CreatedAt) {
		return
	}
	v.snapshots[snap.SiteID] = c
}

// Get returns a copy of the site's current snapshot.
func (v *LiveView) Get(siteID string) (domain.SiteWeatherSnapshot, bool) {
	v.mu.RLock()
	snap, ok := v.snapshots[siteID]
	v.mu.RUnlock()
	if !ok {
		return domain.SiteWeatherSnapshot{}, false
	}
	return snap.Clone(), true
}

// Remove drops a site.
func (v *LiveView) Remove(siteID string) {
	v.mu.Lock()
	delete(v.snapshots, siteID)
	v.mu.Unlock()
}

// Replace swaps the whole view for snaps.
func (v *LiveView) Replace(snaps []domain.SiteWeatherSnapshot) {
	next := make(map[string]domain.SiteWeatherSnapshot, len(snaps))
	for _, s := range snaps {
		if cur, ok := next[s.SiteID]; ok && cur.CreatedAt.After(s.CreatedAt) {
			continue
		}
		next[s.SiteID] = s.Clone()
	}

	v.mu.Lock()
	v.snapshots = next
	v.mu.Unlock()
}

// Len returns the number of sites held.
func (v *LiveView) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.snapshots)
}

// All returns copies of every snapshot ordered by site name, then ID.
func (v *LiveView) All() []domain.SiteWeatherSnapshot {
	v.mu.RLock()
	out := make([]domain.SiteWeatherSnapshot, 0, len(v.snapshots))
	for _, s := range v.snapshots {
		out = append(out, s.Clone())
	}
	v.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].SiteName != out[j].SiteName {
			return out[i].SiteName < out[j].SiteName
		}
		return out[i].SiteID < out[j].SiteID
	})
	return out
}

// MergedAlerts folds every site's current alerts. Each snapshot is read once
// under a single read lock before folding.
func (v *LiveView) MergedAlerts() []domain.MergedAlert {
	snaps := v.All()
	perSite := make([]domain.SiteAlerts, 0, len(snaps))
	for _, s := range snaps {
		perSite = append(perSite, domain.SiteAlerts{SiteID: s.SiteID, SiteName: s.SiteName, Alerts: s.Alerts})
	}
	return domain.MergeAlerts(perSite)
}
