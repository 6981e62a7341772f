package scoring

import "math"

const (
	// maxTrafficValue is the congestion level that scores zero.
	maxTrafficValue = 3.0

	// trafficCurve is the exponent of the congestion penalty. Values below 1
	// make the curve rise fast, so only clear roads keep a high score.
	trafficCurve = 0.7
)

// Overall score weights.
const (
	weightWeather = 0.4
	weightAQI     = 0.3
	weightTraffic = 0.3
)

// CalculateTrafficScore converts a congestion factor into a 0-100 score.
// Zero or negative traffic scores 100; anything at or above 3 scores 0.
// A NaN value is treated as no traffic information.
func CalculateTrafficScore(trafficValue float64) float64 {
	if trafficValue <= 0 || math.IsNaN(trafficValue) {
		return 100
	}

	normalized := math.Min(trafficValue/maxTrafficValue, 1)
	penalty := math.Pow(normalized, trafficCurve)

	return round1((1 - penalty) * 100)
}

// CalculateOverallScore combines the three sub-scores with fixed weights:
// weather 40%, air quality 30%, traffic 30%.
func CalculateOverallScore(weather, aqi, traffic float64) float64 {
	return round1(weather*weightWeather + aqi*weightAQI + traffic*weightTraffic)
}
