package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelvins/geocoder"
)

type AppConfig struct {
	Port string

	// DBPath is the SQLite file; empty means run on the in-memory store.
	DBPath string

	// Cafeteria location for the weather fetch.
	Latitude  float64
	Longitude float64
	Timezone  string

	// Model artifact and optional remote model service.
	ModelPath       string
	ModelServiceURL string

	// Optional LLM review commentary.
	AnthropicAPIKey string

	// Outbound HTTP client timeout.
	HTTPTimeout time.Duration

	// Unattended morning forecast.
	AutoForecast     bool
	AutoForecastDays int
	DefaultCapacity  int

	// Relative error under which a day counts as accurately predicted.
	TolerancePct float64
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		Port:             getenvDefault("PORT", "8080"),
		DBPath:           getenvDefault("DB_PATH", "data/kitchencopilot.db"),
		Timezone:         getenvDefault("TIMEZONE", "Europe/Berlin"),
		ModelPath:        getenvDefault("MODEL_PATH", "data/models/meal_demand_model.json"),
		ModelServiceURL:  os.Getenv("MODEL_SERVICE_URL"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AutoForecast:     getenvBool("AUTO_FORECAST", false),
		AutoForecastDays: getenvInt("AUTO_FORECAST_DAYS", 5),
		DefaultCapacity:  getenvInt("DEFAULT_EXPECTED_CAPACITY", 200),
	}

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.TolerancePct = getenvFloat("TOLERANCE_PCT", 0.05)
	if cfg.TolerancePct <= 0 || cfg.TolerancePct >= 1 {
		return nil, fmt.Errorf("TOLERANCE_PCT must be in (0, 1), got %v", cfg.TolerancePct)
	}

	if cfg.AutoForecastDays < 1 || cfg.AutoForecastDays > 7 {
		return nil, fmt.Errorf("AUTO_FORECAST_DAYS must be in [1, 7], got %d", cfg.AutoForecastDays)
	}

	lat, lon, err := loadLocation()
	if err != nil {
		return nil, err
	}
	cfg.Latitude, cfg.Longitude = lat, lon

	return cfg, nil
}

// loadLocation reads the cafeteria coordinates, falling back to geocoding a
// configured address. Geocoding requires a Google API key.
func loadLocation() (float64, float64, error) {
	latStr := os.Getenv("LATITUDE")
	lonStr := os.Getenv("LONGITUDE")
	if latStr != "" && lonStr != "" {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid LATITUDE: %w", err)
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid LONGITUDE: %w", err)
		}
		return lat, lon, nil
	}

	city := os.Getenv("LOCATION_CITY")
	country := os.Getenv("LOCATION_COUNTRY")
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if city != "" && country != "" && apiKey != "" {
		geocoder.ApiKey = apiKey
		loc, err := geocoder.Geocoding(geocoder.Address{City: city, Country: country})
		if err != nil {
			return 0, 0, fmt.Errorf("geocoding %s, %s failed: %w", city, country, err)
		}
		return loc.Latitude, loc.Longitude, nil
	}

	// Default: Frankfurt am Main.
	return 50.1330, 8.6807, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
