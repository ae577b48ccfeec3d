package domain

import (
	"strings"
	"time"
)

// ExportVersion is the document version written by ExportSites.
const ExportVersion = "1.0"

// ExportedSite is the portable form of a site, without identifiers.
type ExportedSite struct {
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description"`
	Polygon     Polygon    `json:"polygon" validate:"required"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// SiteExport is the document exchanged by site export and import.
type SiteExport struct {
	Version    string         `json:"version"`
	ExportDate time.Time      `json:"exportDate"`
	Sites      []ExportedSite `json:"sites" validate:"required,dive"`
}

// ImportResult summarizes an import run.
type ImportResult struct {
	Success int      `json:"success"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// ExportSites builds an export document for the given sites.
func ExportSites(sites []Site) SiteExport {
	doc := SiteExport{
		Version:    ExportVersion,
		ExportDate: Now(),
		Sites:      make([]ExportedSite, 0, len(sites)),
	}
	for _, s := range sites {
		created := s.CreatedAt
		doc.Sites = append(doc.Sites, ExportedSite{
			Name:        s.Name,
			Description: s.Description,
			Polygon:     s.Polygon,
			CreatedAt:   &created,
		})
	}
	return doc
}

// IsDuplicateSite reports whether candidate matches an existing site by
// case-insensitive name or by an identical first boundary vertex.
func IsDuplicateSite(existing []Site, candidate ExportedSite) bool {
	first, hasFirst := firstVertex(candidate.Polygon)
	for _, s := range existing {
		if strings.EqualFold(s.Name, candidate.Name) {
			return true
		}
		if v, ok := firstVertex(s.Polygon); ok && hasFirst && v == first {
			return true
		}
	}
	return false
}

func firstVertex(p Polygon) (Position, bool) {
	if len(p.Coordinates) == 0 || len(p.Coordinates[0]) == 0 {
		return Position{}, false
	}
	return p.Coordinates[0][0], true
}
