package domain

import (
	"fmt"
	"math"
)

// Scoring strategy names accepted by ScorerByName.
const (
	StrategyAdditive = "additive"
	StrategyAveraged = "averaged"
)

// RiskLevel is the discrete band a score falls into.
type RiskLevel string

const (
	RiskExtreme  RiskLevel = "Extreme"
	RiskHigh     RiskLevel = "High"
	RiskModerate RiskLevel = "Moderate"
	RiskLow      RiskLevel = "Low"
	RiskMinimal  RiskLevel = "Minimal"
)

// RiskColor is the display color for a RiskLevel.
type RiskColor string

const (
	ColorRed    RiskColor = "red"
	ColorOrange RiskColor = "orange"
	ColorYellow RiskColor = "yellow"
	ColorGreen  RiskColor = "green"
	ColorBlue   RiskColor = "blue"
)

// Assessment is the output of a Scorer.
type Assessment struct {
	Score    float64   `json:"score"`
	Level    RiskLevel `json:"level"`
	Color    RiskColor `json:"color"`
	Strategy string    `json:"strategy"`
}

// Scorer turns the current forecast period and active alerts into a bounded
// risk assessment.
type Scorer interface {
	Name() string
	Score(period ForecastPeriod, alerts []Alert) Assessment
}

// ScorerByName returns the named strategy.
func ScorerByName(name string) (Scorer, error) {
	switch name {
	case StrategyAdditive:
		return AdditiveScorer{}, nil
	case StrategyAveraged:
		return AveragedScorer{}, nil
	default:
		return nil, fmt.Errorf("unknown risk strategy %q", name)
	}
}

// LevelFor maps a score to its level and color. Lower bounds are inclusive.
func LevelFor(score float64) (RiskLevel, RiskColor) {
	switch {
	case score >= 80:
		return RiskExtreme, ColorRed
	case score >= 60:
		return RiskHigh, ColorOrange
	case score >= 40:
		return RiskModerate, ColorYellow
	case score >= 20:
		return RiskLow, ColorGreen
	default:
		return RiskMinimal, ColorBlue
	}
}

// AdditiveScorer sums four independent signals and clamps to [0, 100]:
//   - temperature: +30 above 95°F or below 32°F, else +15 above 85°F or below 40°F
//   - precipitation: probability × 0.3
//   - wind: +30 above 25 mph, else +15 above 15 mph
//   - alerts: +40 Warning, +25 Watch, +15 Advisory, +5 Statement each
type AdditiveScorer struct{}

func (AdditiveScorer) Name() string { return StrategyAdditive }

func (s AdditiveScorer) Score(period ForecastPeriod, alerts []Alert) Assessment {
	var score float64

	switch t := period.Temperature; {
	case t > 95 || t < 32:
		score += 30
	case t > 85 || t < 40:
		score += 15
	}

	score += period.Precipitation() * 0.3

	switch wind := period.WindMPH(); {
	case wind > 25:
		score += 30
	case wind > 15:
		score += 15
	}

	for _, a := range alerts {
		switch a.Type {
		case AlertWarning:
			score += 40
		case AlertWatch:
			score += 25
		case AlertAdvisory:
			score += 15
		case AlertStatement:
			score += 5
		}
	}

	return assess(score, s.Name())
}

// AveragedScorer is the weighting used by the risk dashboard. Alerts
// (+30/+20/+10/+5), a bucketed precipitation sub-score and a bucketed wind
// sub-score are averaged, then capped at 100. Temperature does not contribute.
type AveragedScorer struct{}

func (AveragedScorer) Name() string { return StrategyAveraged }

func (s AveragedScorer) Score(period ForecastPeriod, alerts []Alert) Assessment {
	var alertScore float64
	for _, a := range alerts {
		switch a.Type {
		case AlertWarning:
			alertScore += 30
		case AlertWatch:
			alertScore += 20
		case AlertAdvisory:
			alertScore += 10
		case AlertStatement:
			alertScore += 5
		}
	}

	precipScore := bucket(period.Precipitation(), 80, 60, 40, 20)
	windScore := bucket(float64(period.WindMPH()), 30, 20, 10, 5)

	return assess((alertScore+precipScore+windScore)/3, s.Name())
}

// bucket maps v onto 100/75/50/25/10 using strictly-greater thresholds.
func bucket(v, t100, t75, t50, t25 float64) float64 {
	switch {
	case v > t100:
		return 100
	case v > t75:
		return 75
	case v > t50:
		return 50
	case v > t25:
		return 25
	default:
		return 10
	}
}

func assess(score float64, strategy string) Assessment {
	score = clampScore(score)
	level, color := LevelFor(score)
	return Assessment{Score: score, Level: level, Color: color, Strategy: strategy}
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	return math.Min(score, 100)
}
