package nws

import "github.com/couchcryptid/mapshield-weather/internal/domain"

// Weather API response types. Only the fields the pipeline reads are decoded.

type pointResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
		GridID   string `json:"gridId"`
		GridX    int    `json:"gridX"`
		GridY    int    `json:"gridY"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []period `json:"periods"`
	} `json:"properties"`
}

type quantity struct {
	Value *float64 `json:"value"`
}

type period struct {
	Name                       string   `json:"name"`
	StartTime                  string   `json:"startTime"`
	EndTime                    string   `json:"endTime"`
	Temperature                float64  `json:"temperature"`
	TemperatureUnit            string   `json:"temperatureUnit"`
	ProbabilityOfPrecipitation quantity `json:"probabilityOfPrecipitation"`
	WindSpeed                  string   `json:"windSpeed"`
	WindDirection              string   `json:"windDirection"`
	ShortForecast              string   `json:"shortForecast"`
	DetailedForecast           string   `json:"detailedForecast"`
}

// normalize converts a period to °F.
func (p period) normalize() domain.ForecastPeriod {
	temp := p.Temperature
	if p.TemperatureUnit == "C" {
		temp = temp*9/5 + 32
	}
	return domain.ForecastPeriod{
		Name:                     p.Name,
		StartTime:                p.StartTime,
		EndTime:                  p.EndTime,
		Temperature:              temp,
		PrecipitationProbability: p.ProbabilityOfPrecipitation.Value,
		WindSpeed:                p.WindSpeed,
		WindDirection:            p.WindDirection,
		ShortForecast:            p.ShortForecast,
		DetailedForecast:         p.DetailedForecast,
	}
}

type gridpointResponse struct {
	Properties struct {
		Hazards struct {
			Values []domain.HazardEntry `json:"values"`
		} `json:"hazards"`
	} `json:"properties"`
}
