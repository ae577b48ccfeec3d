// Package memory is a concurrency-safe in-process store for sites and
// snapshot history, used when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
)

// Store implements pipeline.SiteStore and pipeline.SnapshotStore.
type Store struct {
	mu sync.RWMutex

	sites map[string]domain.Site

	// key: site ID, value: snapshots in insertion order
	history map[string][]domain.SiteWeatherSnapshot

	// maxHistory caps snapshots kept per site; <= 0 is unlimited.
	maxHistory int
}

// NewStore creates an empty Store.
func NewStore(maxHistory int) *Store {
	return &Store{
		sites:      make(map[string]domain.Site),
		history:    make(map[string][]domain.SiteWeatherSnapshot),
		maxHistory: maxHistory,
	}
}

func (s *Store) CreateSite(_ context.Context, site domain.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[site.ID] = site
	return nil
}

func (s *Store) GetSite(_ context.Context, id string) (domain.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.sites[id]
	if !ok {
		return domain.Site{}, domain.ErrNotFound
	}
	return site, nil
}

// ListSites returns sites newest first.
func (s *Store) ListSites(_ context.Context) ([]domain.Site, error) {
	s.mu.RLock()
	out := make([]domain.Site, 0, len(s.sites))
	for _, site := range s.sites {
		out = append(out, site)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateSite(_ context.Context, site domain.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sites[site.ID]; !ok {
		return domain.ErrNotFound
	}
	s.sites[site.ID] = site
	return nil
}

func (s *Store) DeleteSite(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sites[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sites, id)
	return nil
}

// CreateSnapshot appends a snapshot and enforces the history cap.
func (s *Store) CreateSnapshot(_ context.Context, snap domain.SiteWeatherSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.history[snap.SiteID], snap.Clone())
	if s.maxHistory > 0 && len(h) > s.maxHistory {
		h = h[len(h)-s.maxHistory:]
	}
	s.history[snap.SiteID] = h
	return nil
}

func (s *Store) LatestSnapshot(_ context.Context, siteID string) (domain.SiteWeatherSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest, ok := newest(s.history[siteID])
	if !ok {
		return domain.SiteWeatherSnapshot{}, domain.ErrNotFound
	}
	return latest.Clone(), nil
}

func (s *Store) AllLatestSnapshots(_ context.Context) ([]domain.SiteWeatherSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SiteWeatherSnapshot, 0, len(s.history))
	for _, h := range s.history {
		if latest, ok := newest(h); ok {
			out = append(out, latest.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteID < out[j].SiteID })
	return out, nil
}

// SnapshotHistory returns snapshots created at or after since, newest first.
func (s *Store) SnapshotHistory(_ context.Context, siteID string, since time.Time) ([]domain.SiteWeatherSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.SiteWeatherSnapshot{}
	for _, snap := range s.history[siteID] {
		if !snap.CreatedAt.Before(since) {
			out = append(out, snap.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteSnapshotsBySite(_ context.Context, siteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, siteID)
	return nil
}

// newest picks the latest by CreatedAt; on ties the later insert wins.
func newest(h []domain.SiteWeatherSnapshot) (domain.SiteWeatherSnapshot, bool) {
	if len(h) == 0 {
		return domain.SiteWeatherSnapshot{}, false
	}
	best := h[0]
	for _, snap := range h[1:] {
		if !snap.CreatedAt.Before(best.CreatedAt) {
			best = snap
		}
	}
	return best, true
}
