package postgres

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
)

// jsonColumn stores a value as JSONB.
type jsonColumn[T any] struct {
	V T
}

func (c jsonColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(c.V)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (c *jsonColumn[T]) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		var zero T
		c.V = zero
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("jsonColumn: unsupported source type %T", src)
	}
	return json.Unmarshal(b, &c.V)
}

type siteRow struct {
	ID          string                     `db:"id"`
	Name        string                     `db:"name"`
	Description string                     `db:"description"`
	Polygon     jsonColumn[domain.Polygon] `db:"polygon"`
	CreatedAt   time.Time                  `db:"created_at"`
	UpdatedAt   time.Time                  `db:"updated_at"`
}

func toSiteRow(s domain.Site) siteRow {
	return siteRow{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Polygon:     jsonColumn[domain.Polygon]{V: s.Polygon},
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func (r siteRow) toDomain() domain.Site {
	return domain.Site{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Polygon:     r.Polygon.V,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type snapshotRow struct {
	ID                       string                     `db:"id"`
	SiteID                   string                     `db:"site_id"`
	SiteName                 string                     `db:"site_name"`
	Temperature              float64                    `db:"temperature"`
	PrecipitationProbability float64                    `db:"precipitation_probability"`
	WindSpeed                string                     `db:"wind_speed"`
	ShortForecast            string                     `db:"short_forecast"`
	Alerts                   jsonColumn[[]domain.Alert] `db:"alerts"`
	RiskScore                float64                    `db:"risk_score"`
	RiskLevel                string                     `db:"risk_level"`
	RiskColor                string                     `db:"risk_color"`
	RiskStrategy             string                     `db:"risk_strategy"`
	Supported                bool                       `db:"supported"`
	CreatedAt                time.Time                  `db:"created_at"`
}

func toSnapshotRow(s domain.SiteWeatherSnapshot) snapshotRow {
	alerts := s.Alerts
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	return snapshotRow{
		ID:                       s.ID,
		SiteID:                   s.SiteID,
		SiteName:                 s.SiteName,
		Temperature:              s.Temperature,
		PrecipitationProbability: s.PrecipitationProbability,
		WindSpeed:                s.WindSpeed,
		ShortForecast:            s.ShortForecast,
		Alerts:                   jsonColumn[[]domain.Alert]{V: alerts},
		RiskScore:                s.RiskScore,
		RiskLevel:                string(s.RiskLevel),
		RiskColor:                string(s.RiskColor),
		RiskStrategy:             s.RiskStrategy,
		Supported:                s.Supported,
		CreatedAt:                s.CreatedAt,
	}
}

func (r snapshotRow) toDomain() domain.SiteWeatherSnapshot {
	alerts := r.Alerts.V
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	return domain.SiteWeatherSnapshot{
		ID:                       r.ID,
		SiteID:                   r.SiteID,
		SiteName:                 r.SiteName,
		Temperature:              r.Temperature,
		PrecipitationProbability: r.PrecipitationProbability,
		WindSpeed:                r.WindSpeed,
		ShortForecast:            r.ShortForecast,
		Alerts:                   alerts,
		RiskScore:                r.RiskScore,
		RiskLevel:                domain.RiskLevel(r.RiskLevel),
		RiskColor:                domain.RiskColor(r.RiskColor),
		RiskStrategy:             r.RiskStrategy,
		Supported:                r.Supported,
		CreatedAt:                r.CreatedAt.UTC(),
	}
}

func snapshotsToDomain(rows []snapshotRow) []domain.SiteWeatherSnapshot {
	out := make([]domain.SiteWeatherSnapshot, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}
