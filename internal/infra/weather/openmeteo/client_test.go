package openmeteo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchParsesHourlySeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forecast", r.URL.Path)
		require.Equal(t, "kmh", r.URL.Query().Get("wind_speed_unit"))
		require.Equal(t, "8", r.URL.Query().Get("forecast_hours"))
		w.Write([]byte(`{
			"current": {
				"time": 1767250800,
				"temperature_2m": 6.2,
				"relative_humidity_2m": 85,
				"surface_pressure": 1008,
				"visibility": 12000,
				"wind_speed_10m": 38.5,
				"wind_gusts_10m": 55.1,
				"wind_direction_10m": 280
			},
			"hourly": {
				"time": [1767254400, 1767258000],
				"temperature_2m": [6.0, 5.8],
				"wind_speed_10m": [40.0, 42.5],
				"wind_gusts_10m": [58.0, 61.0],
				"wind_direction_10m": [282, 285]
			}
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 55.6761, 12.5683, 8)
	snap, err := c.Fetch(context.Background())
	require.NoError(t, err)

	require.Equal(t, "openmeteo", snap.Provider)
	require.Equal(t, 38.5, snap.Current.WindSpeedKMH)
	require.Equal(t, 55.1, snap.Current.WindGustKMH)
	require.InDelta(t, 12.0, snap.Current.VisibilityKM, 1e-9)

	require.Len(t, snap.Forecast, 2)
	require.Equal(t, 42.5, snap.Forecast[1].WindSpeedKMH)
	require.Equal(t, 61.0, snap.Forecast[1].WindGustKMH)
	require.Equal(t, int64(1767258000), snap.Forecast[1].Time.Unix())
}

func TestFetchRaggedHourlyArrays(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"current": {"time": 1767250800, "wind_speed_10m": 10, "wind_gusts_10m": 12},
			"hourly": {"time": [1767254400, 1767258000], "wind_speed_10m": [20.0], "wind_gusts_10m": [25.0]}
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 0, 0, 8)
	snap, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Forecast, 2)
	require.Equal(t, 20.0, snap.Forecast[0].WindSpeedKMH)
	require.Equal(t, 0.0, snap.Forecast[1].WindSpeedKMH)
}

func TestFetchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"reason":"Minutely API request limit exceeded"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 0, 0, 8)
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=429")
}
