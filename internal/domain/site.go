package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang/geo/s2"
)

// Position is a GeoJSON [longitude, latitude] pair.
type Position [2]float64

func (p Position) Lon() float64 { return p[0] }
func (p Position) Lat() float64 { return p[1] }

// Polygon is a GeoJSON polygon. The first ring is the site boundary; the ring
// is closed (last vertex repeats the first).
type Polygon struct {
	Type        string       `json:"type"`
	Coordinates [][]Position `json:"coordinates"`
}

// NewPolygon builds a closed single-ring polygon from the given vertices.
func NewPolygon(vertices ...Position) Polygon {
	ring := append([]Position(nil), vertices...)
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return Polygon{Type: "Polygon", Coordinates: [][]Position{ring}}
}

// Ring returns the boundary without its closing vertex.
func (p Polygon) Ring() []Position {
	if len(p.Coordinates) == 0 {
		return nil
	}
	ring := p.Coordinates[0]
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	return ring
}

// Centroid is the arithmetic mean of the boundary vertices. This is the
// coordinate used for weather lookups.
func (p Polygon) Centroid() (lat, lon float64) {
	ring := p.Ring()
	if len(ring) == 0 {
		return 0, 0
	}
	for _, v := range ring {
		lat += v.Lat()
		lon += v.Lon()
	}
	n := float64(len(ring))
	return lat / n, lon / n
}

// Site is a user-drawn project area.
type Site struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Polygon     Polygon   `json:"polygon"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidateSite checks a site before it is persisted: the name is required and
// the boundary must be a valid ring with at least three distinct vertices.
func ValidateSite(site Site) error {
	if strings.TrimSpace(site.Name) == "" {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	return ValidatePolygon(site.Polygon)
}

// ValidatePolygon checks the polygon boundary.
func ValidatePolygon(p Polygon) error {
	if p.Type != "" && p.Type != "Polygon" {
		return &ValidationError{Field: "polygon", Reason: fmt.Sprintf("unsupported geometry type %q", p.Type)}
	}
	ring := p.Ring()

	distinct := make(map[Position]struct{}, len(ring))
	for _, v := range ring {
		if v.Lat() < -90 || v.Lat() > 90 || v.Lon() < -180 || v.Lon() > 180 {
			return &ValidationError{Field: "polygon", Reason: fmt.Sprintf("coordinate %v out of range", v)}
		}
		distinct[v] = struct{}{}
	}
	if len(distinct) < 3 {
		return &ValidationError{Field: "polygon", Reason: "boundary needs at least 3 distinct points"}
	}

	points := make([]s2.Point, len(ring))
	for i, v := range ring {
		points[i] = s2.PointFromLatLng(s2.LatLngFromDegrees(v.Lat(), v.Lon()))
	}
	if err := s2.LoopFromPoints(points).Validate(); err != nil {
		return &ValidationError{Field: "polygon", Reason: err.Error()}
	}
	return nil
}
