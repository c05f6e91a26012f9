package forecast

import (
	"errors"
	"time"

	"github.com/kitchencopilot/backend/internal/weather"
)

var (
	// ErrDataUnavailable is returned when the weather or holiday fetch fails;
	// no partial feature table is ever returned.
	ErrDataUnavailable = errors.New("forecast data unavailable")
)

// Row is one working day's feature set. The builder creates it without
// prediction fields; the prediction engine fills PredictedMeals,
// PredictionTimestamp and RunID; the review step may add an override.
type Row struct {
	Date             time.Time          `json:"date"`
	Weekday          string             `json:"weekday"`
	Month            string             `json:"month"`
	TemperatureMax   *float64           `json:"temperature_max"`
	WeatherCondition *weather.Condition `json:"weather_condition"`
	WeatherIcon      string             `json:"weather_icon"`
	HolidayDesc      string             `json:"holiday_desc"`
	IsSemesterBreak  bool               `json:"is_semester_break"`
	IsBridgeDay      bool               `json:"is_bridge_day"`

	// ExpectedCapacity is user-supplied and must be set before prediction.
	ExpectedCapacity *int `json:"expected_capacity"`

	PredictedMeals      int       `json:"predicted_meals"`
	PredictionTimestamp time.Time `json:"prediction_timestamp"`
	RunID               string    `json:"run_id,omitempty"`

	OverrideMealPrediction *int   `json:"override_meal_prediction,omitempty"`
	OverrideReason         string `json:"override_reason,omitempty"`
}

// FinalPrediction is the override value when present, else the model
// prediction.
func (r Row) FinalPrediction() int {
	if r.OverrideMealPrediction != nil {
		return *r.OverrideMealPrediction
	}
	return r.PredictedMeals
}
