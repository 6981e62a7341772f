package scoring

import "time"

// EngineDirect names the in-process, input-order batch path.
const EngineDirect = "direct"

// EngineConfig holds configuration for the score engine.
type EngineConfig struct {
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Engine computes route and batch scores. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	clock func() time.Time
}

// NewEngine creates a new score engine.
func NewEngine(cfg EngineConfig) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{clock: clock}
}

// Now returns the engine's current time in UTC.
func (e *Engine) Now() time.Time {
	return e.clock().UTC()
}

// ComputeRoute scores a single route.
func (e *Engine) ComputeRoute(in RouteInput) RouteScore {
	weather := CalculateWeatherScore(in.WeatherPoints)
	aqi := CalculateAQIScore(in.AQIPoints)
	traffic := CalculateTrafficScore(in.TrafficValue)

	overall := CalculateOverallScore(weather.Overall, aqi.Score, traffic)

	var change *float64
	if in.LastComputedScore != nil {
		delta := round1(overall - *in.LastComputedScore)
		change = &delta
	}

	return RouteScore{
		RouteIndex:        in.RouteIndex,
		RouteID:           in.RouteID,
		Distance:          in.Distance,
		Duration:          in.Duration,
		TravelMode:        in.TravelMode,
		BreakpointCount:   max(len(in.WeatherPoints), len(in.AQIPoints)),
		Weather:           weather.SubScore(),
		WeatherDetails:    weather.Details,
		AQI:               aqi.SubScore(),
		AQIDetails:        aqi.Details,
		TrafficScore:      traffic,
		OverallScore:      overall,
		LastComputedScore: in.LastComputedScore,
		ScoreChange:       change,
		ComputedAt:        e.Now(),
	}
}

// ComputeBatch scores every route in input order and summarises the batch.
// Returns ErrNoRoutes when routes is empty.
func (e *Engine) ComputeBatch(routes []RouteInput) (*BatchResult, error) {
	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}

	scores := make([]RouteScore, 0, len(routes))
	for _, route := range routes {
		scores = append(scores, e.ComputeRoute(route))
	}

	return e.Aggregate(scores, EngineDirect)
}

// Aggregate builds a batch result from already computed route scores, keeping
// their order. Returns ErrNoRoutes when scores is empty.
func (e *Engine) Aggregate(scores []RouteScore, engine string) (*BatchResult, error) {
	if len(scores) == 0 {
		return nil, ErrNoRoutes
	}

	return &BatchResult{
		Routes:     scores,
		BestRoute:  SelectBestRoute(scores),
		Summary:    Summarize(scores),
		ComputedAt: e.Now(),
		Engine:     engine,
	}, nil
}

// SelectBestRoute returns the route with the highest overall score.
// On ties the first route in slice order wins. scores must not be empty.
func SelectBestRoute(scores []RouteScore) BestRoute {
	best := scores[0]
	for _, s := range scores[1:] {
		if s.OverallScore > best.OverallScore {
			best = s
		}
	}
	return BestRoute{
		Index:   best.RouteIndex,
		RouteID: best.RouteID,
		Score:   best.OverallScore,
	}
}

// Summarize computes total, mean and range of the overall scores.
// scores must not be empty.
func Summarize(scores []RouteScore) Summary {
	lo, hi := scores[0].OverallScore, scores[0].OverallScore
	var sum float64
	for _, s := range scores {
		sum += s.OverallScore
		lo = min(lo, s.OverallScore)
		hi = max(hi, s.OverallScore)
	}
	return Summary{
		TotalRoutes:  len(scores),
		AverageScore: round1(sum / float64(len(scores))),
		ScoreRange:   ScoreRange{Min: lo, Max: hi},
	}
}
