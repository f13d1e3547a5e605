package weather

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gustwatch/gustwatch/pkg/errors"
)

type stubProvider struct {
	name  string
	snap  Snapshot
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(context.Context) (Snapshot, error) {
	s.calls++
	return s.snap, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFallbackUsesPrimaryWhenHealthy(t *testing.T) {
	primary := &stubProvider{name: "openweather", snap: Snapshot{Provider: "openweather"}}
	secondary := &stubProvider{name: "openmeteo"}
	f := NewFallbackProvider(primary, secondary, discardLogger())

	snap, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "openweather", snap.Provider)
	require.Equal(t, 0, secondary.calls)
}

func TestFallbackSwitchesToSecondary(t *testing.T) {
	primary := &stubProvider{name: "openweather", err: errors.New("rate limited")}
	secondary := &stubProvider{name: "openmeteo", snap: Snapshot{Provider: "openmeteo"}}
	f := NewFallbackProvider(primary, secondary, discardLogger())

	snap, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "openmeteo", snap.Provider)
}

func TestFallbackAggregatesBothFailures(t *testing.T) {
	primary := &stubProvider{name: "openweather", err: errors.New("primary down")}
	secondary := &stubProvider{name: "openmeteo", err: errors.New("secondary down")}
	f := NewFallbackProvider(primary, secondary, discardLogger())

	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "weather_unavailable"))
	require.Contains(t, err.Error(), "primary down")
	require.Contains(t, err.Error(), "secondary down")
}

func TestFallbackWithoutSecondary(t *testing.T) {
	primary := &stubProvider{name: "openweather", err: errors.New("boom")}
	f := NewFallbackProvider(primary, nil, discardLogger())

	_, err := f.Fetch(context.Background())
	require.True(t, apperrors.IsCode(err, "weather_unavailable"))
}

func TestCachedProviderServesWithinTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := &stubProvider{name: "openweather", snap: Snapshot{Provider: "openweather"}}

	var hits, misses int
	c := NewCachedProvider(inner, 120*time.Second, clock, func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})

	snap, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.False(t, snap.FromCache)

	snap, err = c.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, snap.FromCache)
	require.Equal(t, 1, inner.calls)
	require.Equal(t, 1, hits)
	require.Equal(t, 1, misses)

	clock.Advance(121 * time.Second)
	snap, err = c.Fetch(context.Background())
	require.NoError(t, err)
	require.False(t, snap.FromCache)
	require.Equal(t, 2, inner.calls)
}

func TestCachedProviderDoesNotCacheFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := &stubProvider{name: "openweather", err: errors.New("boom")}
	c := NewCachedProvider(inner, time.Minute, clock, nil)

	_, err := c.Fetch(context.Background())
	require.Error(t, err)

	inner.err = nil
	inner.snap = Snapshot{Provider: "openweather"}
	snap, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.False(t, snap.FromCache)
}

func TestServiceAppliesAdjustmentAndInvariants(t *testing.T) {
	inner := &stubProvider{name: "openweather", snap: Snapshot{
		Provider: "openweather",
		Current:  Reading{WindSpeedKMH: 40, WindGustKMH: 30, Humidity: 120},
		Forecast: []ForecastPoint{{WindSpeedKMH: 50, WindGustKMH: 20}},
	}}
	svc := NewService(Config{AdjustmentFactor: 0.5}, inner, discardLogger())

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 20.0, snap.Current.WindSpeedKMH)
	require.Equal(t, 20.0, snap.Current.WindGustKMH, "gust is raised to match speed")
	require.Equal(t, 100.0, snap.Current.Humidity)
	require.Equal(t, 25.0, snap.Forecast[0].WindSpeedKMH)
	require.Equal(t, 25.0, snap.Forecast[0].WindGustKMH)
}

func TestUnitConversions(t *testing.T) {
	require.InDelta(t, 36.0, MetersPerSecondToKMH(10), 1e-9)
	require.InDelta(t, 10.0, MetersToKM(10000), 1e-9)
}

func TestSanitizeReading(t *testing.T) {
	r := Sanitize(Reading{WindSpeedKMH: -3, WindGustKMH: -10, Humidity: -2, VisibilityKM: -1})
	require.Equal(t, 0.0, r.WindSpeedKMH)
	require.Equal(t, 0.0, r.WindGustKMH)
	require.Equal(t, 0.0, r.Humidity)
	require.Equal(t, 0.0, r.VisibilityKM)
}

func TestForecastPointMaxWind(t *testing.T) {
	require.Equal(t, 70.0, ForecastPoint{WindSpeedKMH: 60, WindGustKMH: 70}.MaxWind())
	require.Equal(t, 60.0, ForecastPoint{WindSpeedKMH: 60, WindGustKMH: 0}.MaxWind())
}
