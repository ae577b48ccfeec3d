package domain

import (
	"context"
	"fmt"
)

// boundaryHalfWidth is the half-width in degrees of the square outline
// suggested for a result that carries no bounding box (addresses, POIs).
const boundaryHalfWidth = 0.005

// GeocodingResult is a place returned by a location search.
type GeocodingResult struct {
	Lat              float64   `json:"lat"`
	Lon              float64   `json:"lon"`
	FormattedAddress string    `json:"formatted_address"`
	PlaceName        string    `json:"place_name"`
	PlaceType        string    `json:"place_type,omitempty"` // address, place, postcode, ...
	Confidence       float64   `json:"confidence"`           // provider relevance, 0 to 1
	BBox             []float64 `json:"bbox,omitempty"`       // minLon, minLat, maxLon, maxLat
}

// Found reports whether the provider matched anything.
func (r GeocodingResult) Found() bool {
	return r.FormattedAddress != ""
}

// Boundary is a starting outline for a site drawn around the result: the
// place's bounding box when present, otherwise a small square on its center.
func (r GeocodingResult) Boundary() Polygon {
	minLon, minLat := r.Lon-boundaryHalfWidth, r.Lat-boundaryHalfWidth
	maxLon, maxLat := r.Lon+boundaryHalfWidth, r.Lat+boundaryHalfWidth
	if len(r.BBox) == 4 && r.BBox[0] < r.BBox[2] && r.BBox[1] < r.BBox[3] {
		minLon, minLat, maxLon, maxLat = r.BBox[0], r.BBox[1], r.BBox[2], r.BBox[3]
	}
	return NewPolygon(
		Position{minLon, minLat},
		Position{maxLon, minLat},
		Position{maxLon, maxLat},
		Position{minLon, maxLat},
	)
}

// Geocoder backs the location search used to find an area before drawing a site.
type Geocoder interface {
	// ForwardGeocode resolves a free-text query to a place.
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)

	// ReverseGeocode converts coordinates to place details.
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}

// GeocodeError is a failed call to the location search provider.
type GeocodeError struct {
	Method     string // forward or reverse
	StatusCode int
	Message    string
	Err        error
}

func (e *GeocodeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("geocode %s: status %d: %s", e.Method, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("geocode %s: %v", e.Method, e.Err)
}

func (e *GeocodeError) Unwrap() error { return e.Err }
