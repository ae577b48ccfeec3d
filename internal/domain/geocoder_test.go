package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocodingResult_Boundary(t *testing.T) {
	tests := []struct {
		name string
		in   GeocodingResult
		want []Position
	}{
		{
			name: "bbox",
			in:   GeocodingResult{Lat: 30.27, Lon: -97.74, BBox: []float64{-97.9, 30.1, -97.5, 30.5}},
			want: []Position{{-97.9, 30.1}, {-97.5, 30.1}, {-97.5, 30.5}, {-97.9, 30.5}},
		},
		{
			name: "no bbox",
			in:   GeocodingResult{Lat: 30, Lon: -97},
			want: []Position{{-97.005, 29.995}, {-96.995, 29.995}, {-96.995, 30.005}, {-97.005, 30.005}},
		},
		{
			name: "inverted bbox ignored",
			in:   GeocodingResult{Lat: 30, Lon: -97, BBox: []float64{-96, 31, -98, 29}},
			want: []Position{{-97.005, 29.995}, {-96.995, 29.995}, {-96.995, 30.005}, {-97.005, 30.005}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in.Boundary()
			ring := p.Ring()
			require.Len(t, ring, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i].Lon(), ring[i].Lon(), 1e-9)
				assert.InDelta(t, tt.want[i].Lat(), ring[i].Lat(), 1e-9)
			}
			require.NoError(t, ValidatePolygon(p))
		})
	}
}

func TestGeocodeError(t *testing.T) {
	err := &GeocodeError{Method: "forward", StatusCode: 401, Message: "Not Authorized"}
	assert.Equal(t, "geocode forward: status 401: Not Authorized", err.Error())

	cause := errors.New("dial tcp: refused")
	wrapped := &GeocodeError{Method: "reverse", Err: cause}
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "geocode reverse: dial tcp: refused", wrapped.Error())
}
