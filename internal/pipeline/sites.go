package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
	"github.com/google/uuid"
)

// SiteInput is the user-editable part of a site.
type SiteInput struct {
	Name        string         `json:"name" validate:"required"`
	Description string         `json:"description"`
	Polygon     domain.Polygon `json:"polygon"`
}

// SiteService manages the site catalog. Deleting a site also removes its
// snapshot history and live state.
type SiteService struct {
	sites     SiteStore
	snapshots SnapshotStore
	live      *LiveView
	logger    *slog.Logger
	newID     func() string
}

// NewSiteService creates a SiteService.
func NewSiteService(sites SiteStore, snapshots SnapshotStore, live *LiveView, logger *slog.Logger) *SiteService {
	return &SiteService{
		sites:     sites,
		snapshots: snapshots,
		live:      live,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Create validates and stores a new site.
func (s *SiteService) Create(ctx context.Context, in SiteInput) (domain.Site, error) {
	now := domain.Now()
	site := domain.Site{
		ID:          s.newID(),
		Name:        in.Name,
		Description: in.Description,
		Polygon:     normalizePolygon(in.Polygon),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := domain.ValidateSite(site); err != nil {
		return domain.Site{}, err
	}
	if err := s.sites.CreateSite(ctx, site); err != nil {
		return domain.Site{}, &domain.PersistenceError{Op: "create site", Err: err}
	}
	s.logger.Info("site created", "site_id", site.ID, "site_name", site.Name)
	return site, nil
}

// Get returns a site or domain.ErrNotFound.
func (s *SiteService) Get(ctx context.Context, id string) (domain.Site, error) {
	site, err := s.sites.GetSite(ctx, id)
	if err != nil {
		return domain.Site{}, wrapStoreErr("get site", err)
	}
	return site, nil
}

// List returns all sites, newest first.
func (s *SiteService) List(ctx context.Context) ([]domain.Site, error) {
	sites, err := s.sites.ListSites(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list sites", Err: err}
	}
	sort.SliceStable(sites, func(i, j int) bool {
		return sites[i].CreatedAt.After(sites[j].CreatedAt)
	})
	return sites, nil
}

// Update replaces a site's editable fields after re-validating them.
func (s *SiteService) Update(ctx context.Context, id string, in SiteInput) (domain.Site, error) {
	site, err := s.Get(ctx, id)
	if err != nil {
		return domain.Site{}, err
	}
	site.Name = in.Name
	site.Description = in.Description
	site.Polygon = normalizePolygon(in.Polygon)
	site.UpdatedAt = domain.Now()

	if err := domain.ValidateSite(site); err != nil {
		return domain.Site{}, err
	}
	if err := s.sites.UpdateSite(ctx, site); err != nil {
		return domain.Site{}, wrapStoreErr("update site", err)
	}
	return site, nil
}

// Delete removes a site with its snapshots and live state.
func (s *SiteService) Delete(ctx context.Context, id string) error {
	if err := s.sites.DeleteSite(ctx, id); err != nil {
		return wrapStoreErr("delete site", err)
	}
	s.live.Remove(id)
	if err := s.snapshots.DeleteSnapshotsBySite(ctx, id); err != nil {
		s.logger.Error("delete site snapshots failed", "site_id", id, "error", err)
		return &domain.PersistenceError{Op: "delete snapshots", Err: err}
	}
	s.logger.Info("site deleted", "site_id", id)
	return nil
}

// Export returns every site as a portable document.
func (s *SiteService) Export(ctx context.Context) (domain.SiteExport, error) {
	sites, err := s.List(ctx)
	if err != nil {
		return domain.SiteExport{}, err
	}
	return domain.ExportSites(sites), nil
}

// Import creates the sites in doc, skipping any that duplicate an existing
// site (or an earlier entry in the same document) by name or first vertex.
// Invalid entries are counted and reported, not fatal.
func (s *SiteService) Import(ctx context.Context, doc domain.SiteExport) (domain.ImportResult, error) {
	existing, err := s.sites.ListSites(ctx)
	if err != nil {
		return domain.ImportResult{}, &domain.PersistenceError{Op: "list sites", Err: err}
	}

	result := domain.ImportResult{Errors: []string{}}
	for i, entry := range doc.Sites {
		if domain.IsDuplicateSite(existing, entry) {
			result.Skipped++
			continue
		}
		site, err := s.Create(ctx, SiteInput{Name: entry.Name, Description: entry.Description, Polygon: entry.Polygon})
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("site %d (%s): %v", i+1, entry.Name, err))
			continue
		}
		result.Success++
		existing = append(existing, site)
	}
	s.logger.Info("sites imported",
		"success", result.Success, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

// normalizePolygon fills in the geometry type and closes the ring.
func normalizePolygon(p domain.Polygon) domain.Polygon {
	if len(p.Coordinates) == 0 {
		return p
	}
	out := domain.NewPolygon(p.Coordinates[0]...)
	if p.Type != "" {
		out.Type = p.Type
	}
	return out
}

func wrapStoreErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
