package openweather

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

const defaultBaseURL = "https://api.openweathermap.org/data/2.5"

// Client fetches current conditions and the 3-hourly forecast from
// OpenWeatherMap. Wind arrives in m/s and visibility in meters; both are
// normalized before leaving this package.
type Client struct {
	apiKey        string
	baseURL       string
	latitude      float64
	longitude     float64
	forecastHours int
	httpClient    *http.Client
}

// NewClient builds an API client for one monitored location.
func NewClient(apiKey, baseURL string, latitude, longitude float64, forecastHours int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if forecastHours <= 0 {
		forecastHours = 8
	}
	return &Client{
		apiKey:        apiKey,
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
	return "openweather"
}

// Fetch retrieves current weather plus the forecast window.
func (c *Client) Fetch(ctx context.Context) (weather.Snapshot, error) {
	current, err := c.fetchCurrent(ctx)
	if err != nil {
		return weather.Snapshot{}, err
	}
	forecast, err := c.fetchForecast(ctx)
	if err != nil {
		return weather.Snapshot{}, err
	}
	return weather.Snapshot{
		Current:   current,
		Forecast:  forecast,
		Provider:  c.Name(),
		FetchedAt: time.Now(),
	}, nil
}

func (c *Client) fetchCurrent(ctx context.Context) (weather.Reading, error) {
	body, err := c.get(ctx, "/weather")
	if err != nil {
		return weather.Reading{}, err
	}

	var raw currentResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return weather.Reading{}, fmt.Errorf("decode openweather response: %w", err)
	}

	return weather.Sanitize(weather.Reading{
		Time:          time.Unix(raw.Dt, 0).UTC(),
		WindSpeedKMH:  weather.MetersPerSecondToKMH(raw.Wind.Speed),
		WindGustKMH:   weather.MetersPerSecondToKMH(raw.Wind.Gust),
		WindDirection: raw.Wind.Deg,
		TemperatureC:  raw.Main.Temp,
		Humidity:      raw.Main.Humidity,
		PressureHPA:   raw.Main.Pressure,
		VisibilityKM:  weather.MetersToKM(raw.Visibility),
	}), nil
}

func (c *Client) fetchForecast(ctx context.Context) ([]weather.ForecastPoint, error) {
	body, err := c.get(ctx, "/forecast")
	if err != nil {
		return nil, err
	}

	var raw forecastResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode openweather forecast: %w", err)
	}

	// The forecast endpoint returns 3-hour steps.
	maxEntries := (c.forecastHours + 2) / 3
	if maxEntries > len(raw.List) {
		maxEntries = len(raw.List)
	}
	points := make([]weather.ForecastPoint, 0, maxEntries)
	for _, item := range raw.List[:maxEntries] {
		points = append(points, weather.SanitizePoint(weather.ForecastPoint{
			Time:          time.Unix(item.Dt, 0).UTC(),
			WindSpeedKMH:  weather.MetersPerSecondToKMH(item.Wind.Speed),
			WindGustKMH:   weather.MetersPerSecondToKMH(item.Wind.Gust),
			WindDirection: item.Wind.Deg,
			TemperatureC:  item.Main.Temp,
		}))
	}
	return points, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(c.latitude, 'f', 4, 64))
	params.Set("lon", strconv.FormatFloat(c.longitude, 'f', 4, 64))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build openweather request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openweather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("openweather error: status=%d body=%s", resp.StatusCode, string(payload))
	}
	return io.ReadAll(resp.Body)
}

type windWire struct {
	Speed float64 `json:"speed"`
	Deg   float64 `json:"deg"`
	Gust  float64 `json:"gust"`
}

type mainWire struct {
	Temp     float64 `json:"temp"`
	Humidity float64 `json:"humidity"`
	Pressure float64 `json:"pressure"`
}

type currentResponse struct {
	Dt         int64    `json:"dt"`
	Wind       windWire `json:"wind"`
	Main       mainWire `json:"main"`
	Visibility float64  `json:"visibility"`
}

type forecastResponse struct {
	List []struct {
		Dt   int64    `json:"dt"`
		Wind windWire `json:"wind"`
		Main mainWire `json:"main"`
	} `json:"list"`
}
