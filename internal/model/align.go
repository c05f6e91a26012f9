package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kitchencopilot/backend/internal/forecast"
)

// Encode turns forecast rows into named numeric features: the raw numeric
// columns plus one-hot indicators named "{column}_{value}" for weekday,
// month and weather condition. Raw date, holiday description and the
// pre-encoding categoricals do not survive encoding.
func Encode(rows []forecast.Row) []map[string]float64 {
	encoded := make([]map[string]float64, len(rows))
	for i, r := range rows {
		f := map[string]float64{
			"is_semester_break": boolFeature(r.IsSemesterBreak),
			"is_bridge_day":     boolFeature(r.IsBridgeDay),
		}

		if r.ExpectedCapacity != nil {
			f["expected_capacity"] = float64(*r.ExpectedCapacity)
		}
		// Unknown temperature enters the matrix as 0.
		if r.TemperatureMax != nil {
			f["temperature_max"] = *r.TemperatureMax
		}

		f["weekday_"+r.Weekday] = 1
		f["month_"+r.Month] = 1
		if r.WeatherCondition != nil {
			f["weather_condition_"+string(*r.WeatherCondition)] = 1
		}

		encoded[i] = f
	}
	return encoded
}

// Align reconciles encoded features against the ordered column list the
// model requires: required columns missing from a row are injected as 0,
// observed columns not in the list are dropped, and the output columns
// follow the required order exactly.
func Align(encoded []map[string]float64, required []string) (*mat.Dense, error) {
	if len(required) == 0 {
		return nil, fmt.Errorf("%w: empty required column list", ErrSchemaMismatch)
	}
	if len(encoded) == 0 {
		return nil, fmt.Errorf("%w: no rows to align", ErrSchemaMismatch)
	}

	x := mat.NewDense(len(encoded), len(required), nil)
	for i, features := range encoded {
		for j, col := range required {
			x.Set(i, j, features[col])
		}
	}

	return x, nil
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
