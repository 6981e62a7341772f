package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/breatheroute/routequality/internal/scoring"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FlexFloat is a number that may arrive either as a JSON number or as a numeric
// string. Anything else (null, "-", objects, non-finite values) decodes without
// error into an absent value.
type FlexFloat struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler for FlexFloat.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat{}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		v = parsed
	default:
		return nil
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	f.Value, f.Valid = v, true
	return nil
}

// MarshalJSON implements json.Marshaler for FlexFloat.
func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Ptr returns the value, or nil when absent.
func (f FlexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// WeatherMain carries the readings of one weather sample. Readings that are
// not numeric are treated as missing.
type WeatherMain struct {
	Temp     FlexFloat `json:"temp"`
	Humidity FlexFloat `json:"humidity"`
	Pressure FlexFloat `json:"pressure"`
}

// WeatherPointRequest is one weather provider response sampled along a route.
type WeatherPointRequest struct {
	Main *WeatherMain `json:"main"`
}

// IAQIEntry is a single pollutant reading. Entries without a numeric v are ignored.
type IAQIEntry struct {
	V *float64 `json:"v"`
}

// UnmarshalJSON implements json.Unmarshaler for IAQIEntry. Malformed entries
// decode into an empty reading instead of failing the whole route.
func (e *IAQIEntry) UnmarshalJSON(data []byte) error {
	*e = IAQIEntry{}

	var raw struct {
		V any `json:"v"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	if v, ok := raw.V.(float64); ok {
		e.V = &v
	}
	return nil
}

// AQIData is the air quality payload of one sample.
type AQIData struct {
	AQI               FlexFloat            `json:"aqi"`
	DominantPollutant string               `json:"dominentpol"`
	IAQI              map[string]IAQIEntry `json:"iaqi"`
}

// AQIPointRequest is one air quality provider response sampled along a route.
type AQIPointRequest struct {
	AQI *AQIData `json:"aqi"`
}

// RouteRequest is the wire representation of a route to score.
type RouteRequest struct {
	RouteID           *string               `json:"routeId" validate:"omitempty,max=64"`
	RouteIndex        int                   `json:"routeIndex"`
	Distance          float64               `json:"distance"`
	Duration          float64               `json:"duration"`
	TravelMode        string                `json:"travelMode" validate:"max=32"`
	WeatherPoints     []WeatherPointRequest `json:"weatherPoints" validate:"max=1000"`
	AQIPoints         []AQIPointRequest     `json:"aqiPoints" validate:"max=1000"`
	TrafficValue      *float64              `json:"trafficValue"`
	LastComputedScore *float64              `json:"lastComputedScore"`
}

// Validate checks the struct tag constraints of the route.
func (r *RouteRequest) Validate() error {
	return validate.Struct(r)
}

// ToInput converts the wire route into an engine input.
func (r *RouteRequest) ToInput() scoring.RouteInput {
	in := scoring.RouteInput{
		RouteIndex:        r.RouteIndex,
		RouteID:           r.RouteID,
		Distance:          r.Distance,
		Duration:          r.Duration,
		TravelMode:        r.TravelMode,
		LastComputedScore: r.LastComputedScore,
	}
	if r.TrafficValue != nil {
		in.TrafficValue = *r.TrafficValue
	}

	in.WeatherPoints = make([]scoring.WeatherPoint, len(r.WeatherPoints))
	for i, p := range r.WeatherPoints {
		if p.Main == nil {
			continue
		}
		in.WeatherPoints[i] = scoring.WeatherPoint{
			Temperature: p.Main.Temp.Ptr(),
			Humidity:    p.Main.Humidity.Ptr(),
			Pressure:    p.Main.Pressure.Ptr(),
		}
	}

	in.AQIPoints = make([]scoring.AQIPoint, len(r.AQIPoints))
	for i, p := range r.AQIPoints {
		if p.AQI == nil {
			continue
		}
		point := scoring.AQIPoint{
			AQI:               p.AQI.AQI.Ptr(),
			DominantPollutant: p.AQI.DominantPollutant,
		}
		for name, entry := range p.AQI.IAQI {
			if entry.V == nil {
				continue
			}
			if point.Pollutants == nil {
				point.Pollutants = make(map[scoring.Pollutant]float64, len(p.AQI.IAQI))
			}
			point.Pollutants[scoring.Pollutant(name)] = *entry.V
		}
		in.AQIPoints[i] = point
	}

	return in
}

// DecodeRoute decodes and validates one route object. Missing fields take
// their zero value.
func DecodeRoute(data []byte) (scoring.RouteInput, error) {
	var req RouteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return scoring.RouteInput{}, fmt.Errorf("decode route: %w", err)
	}
	if err := req.Validate(); err != nil {
		return scoring.RouteInput{}, err
	}
	return req.ToInput(), nil
}

// IsEmptyJSON reports whether data is absent or a falsy JSON value:
// null, false, 0, "", [] or {}.
func IsEmptyJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return true
	}
	switch string(trimmed) {
	case "null", "false", "0", `""`:
		return true
	}
	switch trimmed[0] {
	case '{':
		var obj map[string]json.RawMessage
		return json.Unmarshal(trimmed, &obj) == nil && len(obj) == 0
	case '[':
		var arr []json.RawMessage
		return json.Unmarshal(trimmed, &arr) == nil && len(arr) == 0
	}
	return false
}

// IsJSONObject reports whether data holds a JSON object.
func IsJSONObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// IsJSONArray reports whether data holds a JSON array.
func IsJSONArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// ValidationMessage renders a route decoding or validation error as a short
// human readable message.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "max":
			if fe.Kind() == reflect.Slice {
				parts = append(parts, fmt.Sprintf("%s must have at most %s items", field, fe.Param()))
			} else {
				parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
			}
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
