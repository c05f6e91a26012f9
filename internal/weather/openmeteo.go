package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

const dateLayout = "2006-01-02"

// OpenMeteoClient fetches daily maximum temperature and weather codes from
// Open-Meteo. Forecast and historical windows go to different endpoints;
// neither requires an API key.
type OpenMeteoClient struct {
	forecastURL string
	archiveURL  string
	latitude    float64
	longitude   float64
	timezone    string
	client      *http.Client
	backoff     backoffConfig
	circuit     *gobreaker.CircuitBreaker
}

func NewOpenMeteoClient(client *http.Client, latitude, longitude float64, timezone string) *OpenMeteoClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &OpenMeteoClient{
		forecastURL: "https://api.open-meteo.com/v1/forecast",
		archiveURL:  "https://archive-api.open-meteo.com/v1/archive",
		latitude:    latitude,
		longitude:   longitude,
		timezone:    timezone,
		client:      client,
		backoff: backoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		circuit: cb,
	}
}

// FetchDaily implements Client.
func (c *OpenMeteoClient) FetchDaily(ctx context.Context, start, end time.Time, mode Mode) ([]Day, error) {
	base := c.forecastURL
	if mode == ModeHistorical {
		base = c.archiveURL
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", c.latitude))
		values.Set("longitude", fmt.Sprintf("%f", c.longitude))
		values.Set("start_date", start.Format(dateLayout))
		values.Set("end_date", end.Format(dateLayout))
		values.Set("timezone", c.timezone)
		values.Set("daily", "temperature_2m_max,weather_code")

		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", base, values.Encode()), nil)
	}

	resp, err := doRequestWithResilience(ctx, c.client, c.backoff, c.circuit, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("openmeteo fetch failed: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Daily struct {
			Time           []string   `json:"time"`
			TemperatureMax []*float64 `json:"temperature_2m_max"`
			WeatherCode    []*int     `json:"weather_code"`
		} `json:"daily"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("openmeteo decode failed: %w", err)
	}

	days := make([]Day, 0, len(payload.Daily.Time))
	for i, ds := range payload.Daily.Time {
		date, err := time.Parse(dateLayout, ds)
		if err != nil {
			return nil, fmt.Errorf("openmeteo returned invalid date %q: %w", ds, err)
		}

		day := Day{Date: date}
		if i < len(payload.Daily.TemperatureMax) {
			day.TemperatureMax = payload.Daily.TemperatureMax[i]
		}
		if i < len(payload.Daily.WeatherCode) && payload.Daily.WeatherCode[i] != nil {
			cond := Categorize(*payload.Daily.WeatherCode[i])
			day.Condition = &cond
			day.Icon = IconFor(cond)
		}
		days = append(days, day)
	}

	return days, nil
}

// Ping performs a minimal single-day forecast request, used by the health
// endpoint to report weather API reachability.
func (c *OpenMeteoClient) Ping(ctx context.Context) error {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	_, err := c.FetchDaily(ctx, today, today, ModeForecast)
	return err
}
