package domain

import "time"

// SiteWeatherSnapshot is the latest known weather state for a site. Stores keep
// one record per refresh; the newest by CreatedAt is the current one.
type SiteWeatherSnapshot struct {
	ID                       string    `json:"id"`
	SiteID                   string    `json:"site_id"`
	SiteName                 string    `json:"site_name"`
	Temperature              float64   `json:"temperature"`
	PrecipitationProbability float64   `json:"precipitation_probability"`
	WindSpeed                string    `json:"wind_speed"`
	ShortForecast            string    `json:"short_forecast,omitempty"`
	Alerts                   []Alert   `json:"alerts"`
	RiskScore                float64   `json:"risk_score"`
	RiskLevel                RiskLevel `json:"risk_level"`
	RiskColor                RiskColor `json:"risk_color"`
	RiskStrategy             string    `json:"risk_strategy"`
	Supported                bool      `json:"supported"`
	CreatedAt                time.Time `json:"created_at"`
}

// Clone returns a copy that shares no slices with s.
func (s SiteWeatherSnapshot) Clone() SiteWeatherSnapshot {
	out := s
	out.Alerts = append(make([]Alert, 0, len(s.Alerts)), s.Alerts...)
	return out
}

// NewSnapshot assembles a snapshot from a completed fetch and its assessment.
func NewSnapshot(id string, site Site, period ForecastPeriod, alerts []Alert, risk Assessment) SiteWeatherSnapshot {
	if alerts == nil {
		alerts = []Alert{}
	}
	return SiteWeatherSnapshot{
		ID:                       id,
		SiteID:                   site.ID,
		SiteName:                 site.Name,
		Temperature:              period.Temperature,
		PrecipitationProbability: period.Precipitation(),
		WindSpeed:                period.WindSpeed,
		ShortForecast:            period.ShortForecast,
		Alerts:                   alerts,
		RiskScore:                risk.Score,
		RiskLevel:                risk.Level,
		RiskColor:                risk.Color,
		RiskStrategy:             risk.Strategy,
		Supported:                true,
		CreatedAt:                Now(),
	}
}

// UnsupportedSnapshot is returned for sites outside the weather API's coverage:
// no alerts, Minimal risk, and Supported false. It is held in the live view
// but never persisted.
func UnsupportedSnapshot(site Site) SiteWeatherSnapshot {
	level, color := LevelFor(0)
	return SiteWeatherSnapshot{
		SiteID:    site.ID,
		SiteName:  site.Name,
		Alerts:    []Alert{},
		RiskLevel: level,
		RiskColor: color,
		CreatedAt: Now(),
	}
}

// NeedsRefresh reports whether a site with the given latest snapshot is due
// for a refresh: it has none, or the newest is older than staleAfter.
func NeedsRefresh(latest *SiteWeatherSnapshot, now time.Time, staleAfter time.Duration) bool {
	if latest == nil {
		return true
	}
	return now.Sub(latest.CreatedAt) >= staleAfter
}
