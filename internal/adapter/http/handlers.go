package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
	"github.com/couchcryptid/mapshield-weather/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 4 << 20

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type refreshRequest struct {
	SiteIDs []string `json:"site_ids" validate:"omitempty,dive,required"`
}

type jobResponse struct {
	Success      bool `json:"success"`
	SitesUpdated int  `json:"sites_updated"`
	TotalSites   int  `json:"total_sites"`
}

type jobFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// geocodeResponse adds a starter site outline to a search result.
type geocodeResponse struct {
	domain.GeocodingResult
	Boundary domain.Polygon `json:"boundary"`
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.sites.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, sites)
}

func (s *Server) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	var in pipeline.SiteInput
	if err := s.decode(r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	site, err := s.sites.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusCreated, site)
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	site, err := s.sites.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, site)
}

func (s *Server) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	var in pipeline.SiteInput
	if err := s.decode(r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	site, err := s.sites.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, site)
}

func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	if err := s.sites.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportSites(w http.ResponseWriter, r *http.Request) {
	doc, err := s.sites.Export(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="sites-export.json"`)
	sharedobs.WriteJSON(w, http.StatusOK, doc)
}

func (s *Server) handleImportSites(w http.ResponseWriter, r *http.Request) {
	var doc domain.SiteExport
	if err := s.decode(r, &doc, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.sites.Import(r.Context(), doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleLatestWeather(w http.ResponseWriter, r *http.Request) {
	snap, err := s.weather.LatestSnapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) handleWeatherHistory(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 365 {
			s.writeError(w, r, &domain.ValidationError{Field: "days", Reason: "days must be an integer between 1 and 365"})
			return
		}
		days = n
	}
	report, err := s.weather.History(r.Context(), r.PathValue("id"), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, report)
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.weather.MergedAlerts())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.decode(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.weather.RefreshSites(r.Context(), req.SiteIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, summary)
}

// handleUpdateWeatherJob is the scheduled-trigger contract: it refreshes due
// sites and reports counts, or a top-level failure with a 500.
func (s *Server) handleUpdateWeatherJob(w http.ResponseWriter, r *http.Request) {
	summary, err := s.weather.RefreshDue(r.Context(), pipeline.TriggerJob)
	if err != nil {
		s.logger.Error("update-weather job failed", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, jobFailure{Error: err.Error()})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, jobResponse{
		Success:      true,
		SitesUpdated: summary.SitesUpdated,
		TotalSites:   summary.TotalSites,
	})
}

func (s *Server) handleForwardGeocode(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		sharedobs.WriteJSON(w, http.StatusNotFound, errorBody{Error: "geocoding is not configured"})
		return
	}
	result, err := s.geocoder.ForwardGeocode(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeGeocode(w, result)
}

func (s *Server) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		sharedobs.WriteJSON(w, http.StatusNotFound, errorBody{Error: "geocoding is not configured"})
		return
	}
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		s.writeError(w, r, &domain.ValidationError{Field: "lat,lon", Reason: "lat and lon must be valid coordinates"})
		return
	}
	result, err := s.geocoder.ReverseGeocode(r.Context(), lat, lon)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeGeocode(w, result)
}

func (s *Server) writeGeocode(w http.ResponseWriter, result domain.GeocodingResult) {
	if !result.Found() {
		sharedobs.WriteJSON(w, http.StatusNotFound, errorBody{Error: "no match"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, geocodeResponse{GeocodingResult: result, Boundary: result.Boundary()})
}

// decode reads a JSON body into v and validates it. An empty body is only
// accepted when optional is set.
func (s *Server) decode(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		return &domain.ValidationError{Field: "body", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &domain.ValidationError{
				Field:  fe.Field(),
				Reason: fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()),
			}
		}
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr *domain.ValidationError
		gErr *domain.GeocodeError
	)
	switch {
	case errors.As(err, &vErr):
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorBody{Error: vErr.Reason, Field: vErr.Field})
	case errors.As(err, &gErr):
		s.logger.Warn("geocode provider failed", "method", gErr.Method, "error", err)
		sharedobs.WriteJSON(w, http.StatusBadGateway, errorBody{Error: "location search unavailable"})
	case errors.Is(err, domain.ErrNotFound):
		sharedobs.WriteJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, pipeline.ErrNotReady):
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
