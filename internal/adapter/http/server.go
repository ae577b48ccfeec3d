package http

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
	"github.com/couchcryptid/mapshield-weather/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WeatherService is the refresh and read side of the pipeline.
type WeatherService interface {
	sharedobs.ReadinessChecker
	RefreshDue(ctx context.Context, trigger string) (pipeline.Summary, error)
	RefreshSites(ctx context.Context, ids []string) (pipeline.Summary, error)
	LatestSnapshot(ctx context.Context, siteID string) (domain.SiteWeatherSnapshot, error)
	History(ctx context.Context, siteID string, days int) (domain.HistoryReport, error)
	MergedAlerts() []domain.MergedAlert
}

// SiteCatalog manages sites.
type SiteCatalog interface {
	Create(ctx context.Context, in pipeline.SiteInput) (domain.Site, error)
	Get(ctx context.Context, id string) (domain.Site, error)
	List(ctx context.Context) ([]domain.Site, error)
	Update(ctx context.Context, id string, in pipeline.SiteInput) (domain.Site, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context) (domain.SiteExport, error)
	Import(ctx context.Context, doc domain.SiteExport) (domain.ImportResult, error)
}

// Server exposes the site and weather API plus health, readiness, and
// metrics endpoints.
type Server struct {
	httpServer *http.Server
	weather    WeatherService
	sites      SiteCatalog
	geocoder   domain.Geocoder
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewServer creates the API server. geocoder may be nil, which disables the
// geocode routes.
func NewServer(addr string, weather WeatherService, sites SiteCatalog, geocoder domain.Geocoder, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		weather:  weather,
		sites:    sites,
		geocoder: geocoder,
		validate: newValidator(),
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(weather))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/sites", s.handleListSites)
	mux.HandleFunc("POST /api/v1/sites", s.handleCreateSite)
	mux.HandleFunc("GET /api/v1/sites/export", s.handleExportSites)
	mux.HandleFunc("POST /api/v1/sites/import", s.handleImportSites)
	mux.HandleFunc("GET /api/v1/sites/{id}", s.handleGetSite)
	mux.HandleFunc("PUT /api/v1/sites/{id}", s.handleUpdateSite)
	mux.HandleFunc("DELETE /api/v1/sites/{id}", s.handleDeleteSite)
	mux.HandleFunc("GET /api/v1/sites/{id}/weather", s.handleLatestWeather)
	mux.HandleFunc("GET /api/v1/sites/{id}/weather/history", s.handleWeatherHistory)

	mux.HandleFunc("GET /api/v1/alerts", s.handleAlerts)
	mux.HandleFunc("POST /api/v1/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/v1/jobs/update-weather", s.handleUpdateWeatherJob)

	mux.HandleFunc("GET /api/v1/geocode", s.handleForwardGeocode)
	mux.HandleFunc("GET /api/v1/geocode/reverse", s.handleReverseGeocode)

	return s
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
