package scoring

import (
	"math"
	"strconv"
)

// Weather scoring parameters.
const (
	optimalTemperature   = 21.0
	temperatureTolerance = 1.0
	temperaturePenalty   = 6.0

	humidityBandLow  = 45.0
	humidityBandHigh = 55.0
	idealHumidity    = 50.0
	humidityBuffer   = 5.0
	humidityPenalty  = 2.0

	optimalPressure   = 1013.0
	pressureTolerance = 2.0
	pressurePenalty   = 4.0

	weightTemperature = 0.5
	weightHumidity    = 0.3
	weightPressure    = 0.2
)

// CalculateTemperatureScore scores a temperature in Celsius.
// Within one degree of 21°C scores 100; beyond that six points are lost per degree.
func CalculateTemperatureScore(temp float64) float64 {
	diff := math.Abs(temp - optimalTemperature)
	if diff <= temperatureTolerance {
		return 100
	}
	return math.Max(0, 100-diff*temperaturePenalty)
}

// CalculateHumidityScore scores a relative humidity percentage.
// The 45-55% band scores 100. Outside it the distance from 50% minus the
// 5 point buffer costs two points per percent.
func CalculateHumidityScore(humidity float64) float64 {
	if humidity >= humidityBandLow && humidity <= humidityBandHigh {
		return 100
	}
	diff := math.Abs(humidity - idealHumidity)
	return math.Max(0, 100-(diff-humidityBuffer)*humidityPenalty)
}

// CalculatePressureScore scores an atmospheric pressure in hPa.
func CalculatePressureScore(pressure float64) float64 {
	diff := math.Abs(pressure - optimalPressure)
	if diff <= pressureTolerance {
		return 100
	}
	return math.Max(0, 100-(diff-pressureTolerance)*pressurePenalty)
}

// fieldAccumulator averages one weather field over the points that supplied it.
type fieldAccumulator struct {
	scoreSum float64
	rawSum   float64
	count    int
}

func (a *fieldAccumulator) add(v *float64, score func(float64) float64) bool {
	if v == nil || !isFinite(*v) {
		return false
	}
	a.scoreSum += score(*v)
	a.rawSum += *v
	a.count++
	return true
}

func (a *fieldAccumulator) score() float64 {
	if a.count == 0 {
		return 0
	}
	return a.scoreSum / float64(a.count)
}

func (a *fieldAccumulator) rawAverage() *float64 {
	if a.count == 0 {
		return nil
	}
	avg := round1(a.rawSum / float64(a.count))
	return &avg
}

// CalculateWeatherScore aggregates weather points into temperature, humidity and
// pressure sub-scores plus a weighted overall score.
//
// Each field is averaged over the points that supplied it, so a missing field
// never drags another field's average down. When no point supplies any field,
// all scores are zero and Details is nil.
func CalculateWeatherScore(points []WeatherPoint) WeatherResult {
	var temp, humidity, pressure fieldAccumulator
	sampled := false

	for _, p := range points {
		if temp.add(p.Temperature, CalculateTemperatureScore) {
			sampled = true
		}
		if humidity.add(p.Humidity, CalculateHumidityScore) {
			sampled = true
		}
		if pressure.add(p.Pressure, CalculatePressureScore) {
			sampled = true
		}
	}

	if !sampled {
		return WeatherResult{}
	}

	tempScore := temp.score()
	humidityScore := humidity.score()
	pressureScore := pressure.score()

	overall := tempScore*weightTemperature +
		humidityScore*weightHumidity +
		pressureScore*weightPressure

	return WeatherResult{
		Temperature: round1(tempScore),
		Humidity:    round1(humidityScore),
		Pressure:    round1(pressureScore),
		Overall:     round1(overall),
		Details: &WeatherDetails{
			AvgTemp:     temp.rawAverage(),
			AvgHumidity: humidity.rawAverage(),
			AvgPressure: pressure.rawAverage(),
		},
	}
}

// round1 rounds the exact binary value of v to one decimal place, ties to
// even. Scaling by 10 first would round the inexact product instead, turning
// 30.4499... into 30.5.
func round1(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	if err != nil {
		return v
	}
	return r
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
