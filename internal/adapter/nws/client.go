// Package nws fetches forecasts and gridpoint hazards from the National Weather
// Service API (api.weather.gov).
package nws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
	"github.com/couchcryptid/mapshield-weather/internal/lru"
	"github.com/couchcryptid/mapshield-weather/internal/observability"
	"github.com/sony/gobreaker"
)

const (
	acceptGeoJSON  = "application/geo+json"
	pointCacheSize = 512
)

// Client performs the points -> forecast -> gridpoint chain for a coordinate.
// It never retries; a circuit breaker stops calling the API after repeated
// transport failures or 5xx responses.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	points     *lru.Cache[string, domain.PointRef]
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a weather API client. timeout bounds each request.
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	c := &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		points:     lru.New[string, domain.PointRef](pointCacheSize),
		logger:     logger,
		metrics:    metrics,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nws",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Fetch runs the full chain for one coordinate. The three calls are dependent
// and run in order; the first failure is returned.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) (domain.Observation, error) {
	point, err := c.FetchPoint(ctx, lat, lon)
	if err != nil {
		return domain.Observation{}, err
	}

	period, err := c.FetchForecast(ctx, point.ForecastURL)
	if err != nil {
		return domain.Observation{}, err
	}

	hazards, err := c.FetchGridHazards(ctx, point.GridID, point.GridX, point.GridY)
	if err != nil {
		return domain.Observation{}, err
	}

	return domain.Observation{Point: point, Current: period, Hazards: hazards}, nil
}

// FetchPoint resolves a coordinate to its forecast office grid cell.
// Coordinates are rounded to four decimals; the API rejects finer precision.
// A 404 means the coordinate is outside coverage and yields
// domain.ErrLocationUnsupported.
func (c *Client) FetchPoint(ctx context.Context, lat, lon float64) (domain.PointRef, error) {
	key := FormatCoord(lat) + "," + FormatCoord(lon)
	if ref, ok := c.points.Get(key); ok {
		return ref, nil
	}

	var body pointResponse
	if err := c.getJSON(ctx, domain.StagePoint, c.baseURL+"/points/"+key, &body); err != nil {
		return domain.PointRef{}, err
	}

	p := body.Properties
	if p.Forecast == "" || p.GridID == "" {
		return domain.PointRef{}, &domain.UpstreamError{
			Stage: domain.StagePoint,
			Err:   errors.New("point response missing forecast or grid reference"),
		}
	}
	ref := domain.PointRef{ForecastURL: p.Forecast, GridID: p.GridID, GridX: p.GridX, GridY: p.GridY}
	c.points.Put(key, ref)
	return ref, nil
}

// FetchForecast returns the first (current) period of the forecast.
func (c *Client) FetchForecast(ctx context.Context, forecastURL string) (domain.ForecastPeriod, error) {
	var body forecastResponse
	if err := c.getJSON(ctx, domain.StageForecast, forecastURL, &body); err != nil {
		return domain.ForecastPeriod{}, err
	}
	if len(body.Properties.Periods) == 0 {
		return domain.ForecastPeriod{}, &domain.UpstreamError{
			Stage: domain.StageForecast,
			Err:   errors.New("forecast has no periods"),
		}
	}
	return body.Properties.Periods[0].normalize(), nil
}

// FetchGridHazards returns the raw hazard entries for a grid cell.
func (c *Client) FetchGridHazards(ctx context.Context, gridID string, gridX, gridY int) ([]domain.HazardEntry, error) {
	url := fmt.Sprintf("%s/gridpoints/%s/%d,%d", c.baseURL, gridID, gridX, gridY)

	var body gridpointResponse
	if err := c.getJSON(ctx, domain.StageGrid, url, &body); err != nil {
		return nil, err
	}
	hazards := body.Properties.Hazards.Values
	if hazards == nil {
		hazards = []domain.HazardEntry{}
	}
	return hazards, nil
}

// getJSON issues one GET through the circuit breaker and decodes the body into
// out. Only transport failures and 5xx responses count against the breaker.
func (c *Client) getJSON(ctx context.Context, stage, url string, out any) error {
	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", acceptGeoJSON)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				// Caller cancellation is not an upstream fault.
				return nil, nil
			}
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			drain(resp)
			return nil, &domain.UpstreamError{Stage: stage, StatusCode: resp.StatusCode, Status: statusText(resp)}
		}
		return resp, nil
	})
	c.metrics.UpstreamDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

	if err != nil {
		var upErr *domain.UpstreamError
		switch {
		case errors.As(err, &upErr):
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			c.metrics.UpstreamRequests.WithLabelValues(stage, "open").Inc()
			return &domain.UpstreamError{Stage: stage, Err: err}
		default:
			upErr = &domain.UpstreamError{Stage: stage, Err: err}
		}
		c.metrics.UpstreamRequests.WithLabelValues(stage, "error").Inc()
		return upErr
	}

	resp, ok := result.(*http.Response)
	if !ok || resp == nil {
		c.metrics.UpstreamRequests.WithLabelValues(stage, "error").Inc()
		return &domain.UpstreamError{Stage: stage, Err: ctx.Err()}
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotFound && stage == domain.StagePoint {
		c.metrics.UpstreamRequests.WithLabelValues(stage, "not_found").Inc()
		return domain.ErrLocationUnsupported
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.UpstreamRequests.WithLabelValues(stage, "error").Inc()
		return &domain.UpstreamError{Stage: stage, StatusCode: resp.StatusCode, Status: statusText(resp)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(stage, "error").Inc()
		return &domain.UpstreamError{Stage: stage, Err: fmt.Errorf("decode response: %w", err)}
	}
	c.metrics.UpstreamRequests.WithLabelValues(stage, "success").Inc()
	return nil
}

// FormatCoord rounds to four decimal places and drops trailing zeros, so
// 39.74560 becomes "39.7456" and 40.0 becomes "40".
func FormatCoord(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}

func statusText(resp *http.Response) string {
	return http.StatusText(resp.StatusCode)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
