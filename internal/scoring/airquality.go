package scoring

import "math"

// AQI categories.
const (
	CategoryExcellent          = "Excellent"
	CategoryGood               = "Good"
	CategoryModerate           = "Moderate"
	CategoryUnhealthySensitive = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy          = "Unhealthy"
	CategoryVeryUnhealthy      = "Very Unhealthy"
	CategoryHazardous          = "Hazardous"
)

// CalculateAQIScore averages the AQI values of all points and maps the average
// onto a 0-100 score, lower AQI being better.
//
// When no point carries a usable AQI value the result is a zero score with
// CategoryNoData: missing air quality data must lower a route's score rather
// than leave it looking clean.
func CalculateAQIScore(points []AQIPoint) AQIResult {
	var (
		total     float64
		valid     int
		dominant  *string
		polTotals = make(map[Pollutant]float64, len(TrackedPollutants))
		polCounts = make(map[Pollutant]int, len(TrackedPollutants))
	)

	for _, p := range points {
		if p.AQI != nil && isFinite(*p.AQI) {
			total += *p.AQI
			valid++
		}

		if p.DominantPollutant != "" {
			pol := p.DominantPollutant
			dominant = &pol
		}

		for pol, v := range p.Pollutants {
			if !pol.IsTracked() || !isFinite(v) {
				continue
			}
			polTotals[pol] += v
			polCounts[pol]++
		}
	}

	if valid == 0 {
		return AQIResult{Category: CategoryNoData}
	}

	avg := total / float64(valid)
	score, category := aqiBreakpoint(avg)

	var pollutants map[Pollutant]float64
	for _, pol := range TrackedPollutants {
		count := polCounts[pol]
		if count == 0 {
			continue
		}
		if pollutants == nil {
			pollutants = make(map[Pollutant]float64)
		}
		pollutants[pol] = round1(polTotals[pol] / float64(count))
	}

	return AQIResult{
		AQI:      round1(avg),
		Score:    round1(score),
		Category: category,
		Details: &AQIDetails{
			DominantPollutant: dominant,
			Pollutants:        pollutants,
		},
	}
}

// aqiBreakpoint maps an average AQI to its unrounded score and category.
func aqiBreakpoint(aqi float64) (float64, string) {
	switch {
	case aqi <= 20:
		return 100, CategoryExcellent
	case aqi <= 50:
		return 100 - ((aqi-20)/30)*20, CategoryGood
	case aqi <= 100:
		return 80 - ((aqi-50)/50)*30, CategoryModerate
	case aqi <= 150:
		return 50 - ((aqi-100)/50)*20, CategoryUnhealthySensitive
	case aqi <= 200:
		return 30 - ((aqi-150)/50)*20, CategoryUnhealthy
	}

	score := math.Max(0, 10-((aqi-200)/100)*10)
	if aqi <= 300 {
		return score, CategoryVeryUnhealthy
	}
	return score, CategoryHazardous
}
