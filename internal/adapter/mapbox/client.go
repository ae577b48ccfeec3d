// Package mapbox is the location search used when drawing sites: forward and
// reverse geocoding against the Mapbox Geocoding API, plus an LRU decorator.
package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
	"github.com/couchcryptid/mapshield-weather/internal/observability"
	"github.com/sony/gobreaker"
)

const (
	defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

	forwardTypes = "address,place,locality,neighborhood,postcode"
	reverseTypes = "address,place,postcode"
)

// Client implements domain.Geocoder. Searches are limited to the US, the only
// region the weather API covers.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Mapbox geocoding client. timeout bounds each request.
func NewClient(token string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return newClient(token, defaultBaseURL, timeout, logger, metrics)
}

func newClient(token, baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		token:      token,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "mapbox",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: breakerSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
		logger:  logger,
		metrics: metrics,
	}
}

// ForwardGeocode resolves a free-text address or place query.
func (c *Client) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.GeocodingResult{}, &domain.ValidationError{Field: "q", Reason: "query is required"}
	}
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"country":      {"us"},
		"types":        {forwardTypes},
	}
	return c.search(ctx, "forward", url.PathEscape(query), params)
}

// ReverseGeocode finds the place at a coordinate.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {reverseTypes},
	}
	// lon,lat order
	return c.search(ctx, "reverse", fmt.Sprintf("%.6f,%.6f", lon, lat), params)
}

func (c *Client) search(ctx context.Context, method, term string, params url.Values) (domain.GeocodingResult, error) {
	fullURL := fmt.Sprintf("%s/%s.json?%s", c.baseURL, term, params.Encode())

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.get(ctx, method, fullURL)
	})
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		var gErr *domain.GeocodeError
		if errors.As(err, &gErr) {
			return domain.GeocodingResult{}, gErr
		}
		return domain.GeocodingResult{}, &domain.GeocodeError{Method: method, Err: err}
	}

	features := out.([]feature)
	if len(features) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues(method, "empty").Inc()
		c.logger.Debug("geocode returned no features", "method", method)
		return domain.GeocodingResult{}, nil
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, "success").Inc()
	return features[0].toResult(), nil
}

// breakerSuccess keeps 4xx responses (bad query, bad token) from counting
// against the breaker. Caller cancellation does not count either.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var gErr *domain.GeocodeError
	return errors.As(err, &gErr) && gErr.StatusCode >= 400 && gErr.StatusCode < 500
}

// get performs one request and returns the decoded features.
func (c *Client) get(ctx context.Context, method, fullURL string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.GeocodeError{Method: method, StatusCode: resp.StatusCode, Message: errorMessage(resp)}
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body.Features, nil
}

// errorMessage pulls "message" out of a Mapbox error body, falling back to the
// status text.
func errorMessage(resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return body.Message
	}
	return http.StatusText(resp.StatusCode)
}

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	BBox      []float64 `json:"bbox"`
	PlaceName string    `json:"place_name"`
	PlaceType []string  `json:"place_type"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}

func (f feature) toResult() domain.GeocodingResult {
	r := domain.GeocodingResult{
		FormattedAddress: f.PlaceName,
		PlaceName:        f.Text,
		Confidence:       f.Relevance,
	}
	if len(f.Center) == 2 {
		r.Lon, r.Lat = f.Center[0], f.Center[1]
	}
	if len(f.PlaceType) > 0 {
		r.PlaceType = f.PlaceType[0]
	}
	if len(f.BBox) == 4 {
		r.BBox = append([]float64(nil), f.BBox...)
	}
	return r
}
