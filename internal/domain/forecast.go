package domain

import (
	"regexp"
	"strconv"
)

// leadingIntRe captures the first integer in an NWS wind string such as
// "10 mph" or "5 to 15 mph".
var leadingIntRe = regexp.MustCompile(`^\s*(\d+)`)

// PointRef is the resolved grid cell for a coordinate.
type PointRef struct {
	ForecastURL string
	GridID      string
	GridX       int
	GridY       int
}

// ForecastPeriod is one normalized reading from the forecast endpoint. Only
// the first (current) period is used per refresh.
type ForecastPeriod struct {
	Name                     string   `json:"name,omitempty"`
	StartTime                string   `json:"start_time,omitempty"`
	EndTime                  string   `json:"end_time,omitempty"`
	Temperature              float64  `json:"temperature"` // °F
	PrecipitationProbability *float64 `json:"precipitation_probability,omitempty"`
	WindSpeed                string   `json:"wind_speed"` // e.g. "10 mph"
	WindDirection            string   `json:"wind_direction,omitempty"`
	ShortForecast            string   `json:"short_forecast,omitempty"`
	DetailedForecast         string   `json:"detailed_forecast,omitempty"`
}

// Precipitation returns the probability of precipitation, or 0 when absent.
func (p ForecastPeriod) Precipitation() float64 {
	if p.PrecipitationProbability == nil {
		return 0
	}
	return *p.PrecipitationProbability
}

// WindMPH parses the leading integer of WindSpeed. Unparseable strings yield 0.
func (p ForecastPeriod) WindMPH() int {
	return parseLeadingInt(p.WindSpeed)
}

// HazardCode is one (phenomenon, significance) pair inside a hazard entry.
type HazardCode struct {
	Phenomenon   string `json:"phenomenon"`
	Significance string `json:"significance"`
	EventNumber  *int   `json:"event_number,omitempty"`
}

// HazardEntry is a raw gridpoint hazard: a validity interval and its code pairs.
type HazardEntry struct {
	ValidTime string       `json:"validTime"`
	Value     []HazardCode `json:"value"`
}

// Observation is the result of a complete point -> forecast -> gridpoint fetch.
type Observation struct {
	Point   PointRef
	Current ForecastPeriod
	Hazards []HazardEntry
}

func parseLeadingInt(s string) int {
	m := leadingIntRe.FindStringSubmatch(s)
	if len(m) != 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
