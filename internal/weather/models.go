package weather

import "time"

// Condition is the normalized high-level weather category used as a model
// feature. Values are spelled exactly as the trained model's one-hot columns
// expect them.
type Condition string

const (
	ConditionClear  Condition = "Clear"
	ConditionCloudy Condition = "Cloudy"
	ConditionRainy  Condition = "Rainy"
	ConditionSnowy  Condition = "Snowy"
	ConditionStormy Condition = "Stormy"
)

// Mode selects which Open-Meteo endpoint a fetch goes to.
type Mode string

const (
	ModeForecast   Mode = "forecast"
	ModeHistorical Mode = "historical"
)

// Day is one day's worth of weather data for the cafeteria location.
// TemperatureMax and Condition are nil when the provider returned no value
// for that day; callers treat that as "unknown", not as an error.
type Day struct {
	Date           time.Time  `json:"date"`
	TemperatureMax *float64   `json:"temperature_max"`
	Condition      *Condition `json:"weather_condition"`
	Icon           string     `json:"weather_icon"`
}

// Categorize maps an Open-Meteo WMO weather code to a Condition.
func Categorize(code int) Condition {
	switch {
	case code == 0:
		return ConditionClear
	case code >= 1 && code <= 3:
		return ConditionCloudy
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 84):
		return ConditionRainy
	case (code >= 71 && code <= 77) || (code >= 85 && code <= 86):
		return ConditionSnowy
	case code >= 95 && code <= 99:
		return ConditionStormy
	default:
		// Unmapped codes (fog and similar) are treated as cloudy.
		return ConditionCloudy
	}
}

// IconFor returns the display glyph for a condition.
func IconFor(c Condition) string {
	switch c {
	case ConditionClear:
		return "☀️"
	case ConditionCloudy:
		return "☁️"
	case ConditionRainy:
		return "🌧️"
	case ConditionSnowy:
		return "❄️"
	case ConditionStormy:
		return "⛈️"
	default:
		return ""
	}
}
