package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gustwatch/gustwatch/internal/domain/weather"
)

const defaultBaseURL = "https://api.open-meteo.com/v1"

// Client fetches conditions from Open-Meteo. The API is keyless and can
// report wind directly in km/h, so normalization is limited to the
// visibility unit and the gust invariant.
type Client struct {
	baseURL       string
	latitude      float64
	longitude     float64
	forecastHours int
	httpClient    *http.Client
}

// NewClient builds an API client for one monitored location.
func NewClient(baseURL string, latitude, longitude float64, forecastHours int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if forecastHours <= 0 {
		forecastHours = 8
	}
	return &Client{
		baseURL:       baseURL,
		latitude:      latitude,
		longitude:     longitude,
		forecastHours: forecastHours,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Name() string {
	return "openmeteo"
}

// Fetch retrieves the current reading and hourly forecast in one call.
func (c *Client) Fetch(ctx context.Context) (weather.Snapshot, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(c.latitude, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(c.longitude, 'f', 4, 64))
	params.Set("current", "temperature_2m,relative_humidity_2m,surface_pressure,visibility,wind_speed_10m,wind_gusts_10m,wind_direction_10m")
	params.Set("hourly", "temperature_2m,wind_speed_10m,wind_gusts_10m,wind_direction_10m")
	params.Set("wind_speed_unit", "kmh")
	params.Set("timeformat", "unixtime")
	params.Set("forecast_hours", strconv.Itoa(c.forecastHours))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/forecast?"+params.Encode(), nil)
	if err != nil {
		return weather.Snapshot{}, fmt.Errorf("build openmeteo request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return weather.Snapshot{}, fmt.Errorf("openmeteo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return weather.Snapshot{}, fmt.Errorf("openmeteo error: status=%d body=%s", resp.StatusCode, string(payload))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return weather.Snapshot{}, fmt.Errorf("read openmeteo response: %w", err)
	}

	var raw apiResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return weather.Snapshot{}, fmt.Errorf("decode openmeteo response: %w", err)
	}

	current := weather.Sanitize(weather.Reading{
		Time:          time.Unix(raw.Current.Time, 0).UTC(),
		WindSpeedKMH:  raw.Current.WindSpeed,
		WindGustKMH:   raw.Current.WindGust,
		WindDirection: raw.Current.WindDirection,
		TemperatureC:  raw.Current.Temperature,
		Humidity:      raw.Current.Humidity,
		PressureHPA:   raw.Current.Pressure,
		VisibilityKM:  weather.MetersToKM(raw.Current.Visibility),
	})

	points := make([]weather.ForecastPoint, 0, len(raw.Hourly.Time))
	for i, ts := range raw.Hourly.Time {
		points = append(points, weather.SanitizePoint(weather.ForecastPoint{
			Time:          time.Unix(ts, 0).UTC(),
			WindSpeedKMH:  valueAt(raw.Hourly.WindSpeed, i),
			WindGustKMH:   valueAt(raw.Hourly.WindGust, i),
			WindDirection: valueAt(raw.Hourly.WindDirection, i),
			TemperatureC:  valueAt(raw.Hourly.Temperature, i),
		}))
	}

	return weather.Snapshot{
		Current:   current,
		Forecast:  points,
		Provider:  c.Name(),
		FetchedAt: time.Now(),
	}, nil
}

// valueAt guards against ragged hourly arrays in partial responses.
func valueAt(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}

type apiResponse struct {
	Current struct {
		Time          int64   `json:"time"`
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		Pressure      float64 `json:"surface_pressure"`
		Visibility    float64 `json:"visibility"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		WindGust      float64 `json:"wind_gusts_10m"`
		WindDirection float64 `json:"wind_direction_10m"`
	} `json:"current"`
	Hourly struct {
		Time          []int64   `json:"time"`
		Temperature   []float64 `json:"temperature_2m"`
		WindSpeed     []float64 `json:"wind_speed_10m"`
		WindGust      []float64 `json:"wind_gusts_10m"`
		WindDirection []float64 `json:"wind_direction_10m"`
	} `json:"hourly"`
}
