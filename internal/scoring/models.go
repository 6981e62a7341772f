// Package scoring computes route quality scores from weather, air quality and
// traffic samples taken along a route.
//
// Every function in this package is pure: the same input always yields the
// same scores, and no state is shared between calls.
package scoring

import (
	"errors"
	"time"
)

// ErrNoRoutes is returned when a batch computation receives no routes.
var ErrNoRoutes = errors.New("no routes provided")

// Pollutant identifies a pollutant tracked in air quality details.
type Pollutant string

const (
	PollutantPM25 Pollutant = "pm25"
	PollutantPM10 Pollutant = "pm10"
	PollutantO3   Pollutant = "o3"
	PollutantNO2  Pollutant = "no2"
	PollutantSO2  Pollutant = "so2"
	PollutantCO   Pollutant = "co"
)

// TrackedPollutants is the fixed set of pollutants averaged into AQI details.
var TrackedPollutants = []Pollutant{
	PollutantPM25,
	PollutantPM10,
	PollutantO3,
	PollutantNO2,
	PollutantSO2,
	PollutantCO,
}

// IsTracked reports whether p belongs to TrackedPollutants.
func (p Pollutant) IsTracked() bool {
	for _, tracked := range TrackedPollutants {
		if p == tracked {
			return true
		}
	}
	return false
}

// CategoryNoData is the AQI category reported when no point carried a usable AQI value.
const CategoryNoData = "Unknown - No Data"

// WeatherPoint is a weather sample at one breakpoint of a route.
// Each field is independently optional.
type WeatherPoint struct {
	// Temperature in Celsius.
	Temperature *float64

	// Humidity percentage (0-100).
	Humidity *float64

	// Pressure in hPa.
	Pressure *float64
}

// AQIPoint is an air quality sample at one breakpoint of a route.
type AQIPoint struct {
	// AQI is the index value, nil when the sample did not carry a numeric one.
	AQI *float64

	// DominantPollutant is the pollutant the provider flagged as dominant.
	// Empty means not reported.
	DominantPollutant string

	// Pollutants holds individual concentrations. Only TrackedPollutants are used.
	Pollutants map[Pollutant]float64
}

// RouteInput is everything needed to score a single route.
type RouteInput struct {
	// RouteIndex is the caller-assigned ordinal of the route.
	RouteIndex int

	// RouteID is an opaque identifier echoed back unchanged.
	RouteID *string

	// Distance, Duration and TravelMode are passed through unchanged.
	Distance   float64
	Duration   float64
	TravelMode string

	WeatherPoints []WeatherPoint
	AQIPoints     []AQIPoint

	// TrafficValue is the congestion factor, conventionally 0 (clear) to 3 (severe).
	TrafficValue float64

	// LastComputedScore is the previous overall score, used for ScoreChange.
	LastComputedScore *float64
}

// WeatherDetails carries the raw (unscored) averages of each weather field.
// A field is nil when no point supplied it.
type WeatherDetails struct {
	AvgTemp     *float64
	AvgHumidity *float64
	AvgPressure *float64
}

// WeatherResult is the output of CalculateWeatherScore.
type WeatherResult struct {
	Temperature float64
	Humidity    float64
	Pressure    float64
	Overall     float64

	// Details is nil when no weather data was available at all.
	Details *WeatherDetails
}

// SubScore returns the sub-score part of the result without details.
func (r WeatherResult) SubScore() WeatherScore {
	return WeatherScore{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Pressure:    r.Pressure,
		Overall:     r.Overall,
	}
}

// WeatherScore is the structured weather sub-score of a route.
type WeatherScore struct {
	Temperature float64
	Humidity    float64
	Pressure    float64
	Overall     float64
}

// AQIDetails carries pollutant information gathered across AQI points.
type AQIDetails struct {
	// DominantPollutant is the last non-empty dominant pollutant seen, nil if none.
	DominantPollutant *string

	// Pollutants maps each tracked pollutant with at least one sample to its average.
	// Nil when no pollutant was sampled.
	Pollutants map[Pollutant]float64
}

// AQIResult is the output of CalculateAQIScore.
type AQIResult struct {
	AQI      float64
	Score    float64
	Category string

	// Details is nil when no point carried a usable AQI value.
	Details *AQIDetails
}

// SubScore returns the sub-score part of the result without details.
func (r AQIResult) SubScore() AQIScore {
	return AQIScore{
		AQI:      r.AQI,
		Score:    r.Score,
		Category: r.Category,
	}
}

// AQIScore is the structured air quality sub-score of a route.
type AQIScore struct {
	AQI      float64
	Score    float64
	Category string
}

// RouteScore is the complete score record for one route.
type RouteScore struct {
	RouteIndex int
	RouteID    *string
	Distance   float64
	Duration   float64
	TravelMode string

	// BreakpointCount is the larger of the two point sequence lengths.
	BreakpointCount int

	Weather        WeatherScore
	WeatherDetails *WeatherDetails
	AQI            AQIScore
	AQIDetails     *AQIDetails
	TrafficScore   float64
	OverallScore   float64

	LastComputedScore *float64

	// ScoreChange is OverallScore - LastComputedScore, nil when there was no previous score.
	ScoreChange *float64

	ComputedAt time.Time
}

// BestRoute identifies the highest scoring route of a batch.
type BestRoute struct {
	Index   int
	RouteID *string
	Score   float64
}

// ScoreRange is the span of overall scores in a batch.
type ScoreRange struct {
	Min float64
	Max float64
}

// Summary holds batch-level statistics over overall scores.
type Summary struct {
	TotalRoutes  int
	AverageScore float64
	ScoreRange   ScoreRange
}

// BatchResult is the output of a batch computation.
type BatchResult struct {
	Routes     []RouteScore
	BestRoute  BestRoute
	Summary    Summary
	ComputedAt time.Time

	// Engine names the execution path that produced the result.
	Engine string
}
