package domain

import (
	"sort"
	"time"
)

// DailyAverage is the mean of a site's snapshots recorded on one UTC day.
type DailyAverage struct {
	Date          string  `json:"date"` // YYYY-MM-DD
	Temperature   float64 `json:"temperature"`
	Precipitation float64 `json:"precipitation_probability"`
	RiskScore     float64 `json:"risk_score"`
	Count         int     `json:"count"`
}

// HistoryReport is a site's recent snapshots with simple averages.
type HistoryReport struct {
	SiteID             string                `json:"site_id"`
	Days               int                   `json:"days"`
	Snapshots          []SiteWeatherSnapshot `json:"snapshots"` // newest first
	Daily              []DailyAverage        `json:"daily"`     // oldest first
	AverageTemperature float64               `json:"average_temperature"`
	AverageRiskScore   float64               `json:"average_risk_score"`
	TotalAlerts        int                   `json:"total_alerts"`
}

// SummarizeHistory builds a report from snapshots in any order.
func SummarizeHistory(siteID string, days int, snaps []SiteWeatherSnapshot) HistoryReport {
	sorted := append([]SiteWeatherSnapshot(nil), snaps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	report := HistoryReport{
		SiteID:    siteID,
		Days:      days,
		Snapshots: sorted,
		Daily:     []DailyAverage{},
	}
	if len(sorted) == 0 {
		report.Snapshots = []SiteWeatherSnapshot{}
		return report
	}

	byDay := make(map[string]*DailyAverage)
	var tempSum, riskSum float64
	for _, s := range sorted {
		tempSum += s.Temperature
		riskSum += s.RiskScore
		report.TotalAlerts += len(s.Alerts)

		day := s.CreatedAt.UTC().Format(time.DateOnly)
		d, ok := byDay[day]
		if !ok {
			d = &DailyAverage{Date: day}
			byDay[day] = d
		}
		d.Temperature += s.Temperature
		d.Precipitation += s.PrecipitationProbability
		d.RiskScore += s.RiskScore
		d.Count++
	}

	n := float64(len(sorted))
	report.AverageTemperature = tempSum / n
	report.AverageRiskScore = riskSum / n

	for _, d := range byDay {
		c := float64(d.Count)
		report.Daily = append(report.Daily, DailyAverage{
			Date:          d.Date,
			Temperature:   d.Temperature / c,
			Precipitation: d.Precipitation / c,
			RiskScore:     d.RiskScore / c,
			Count:         d.Count,
		})
	}
	sort.Slice(report.Daily, func(i, j int) bool { return report.Daily[i].Date < report.Daily[j].Date })
	return report
}
