package mock

import (
	"context"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gustwatch/gustwatch/internal/domain/weather"
)

// Provider serves synthetic weather for local development and demos. The
// wind follows a slow sine swell around a configurable base so alert
// levels can be exercised without a real upstream.
type Provider struct {
	baseWindKMH   float64
	forecastHours int
	clock         clockwork.Clock
}

// NewProvider builds the mock source.
func NewProvider(baseWindKMH float64, forecastHours int, clock clockwork.Clock) *Provider {
	if baseWindKMH <= 0 {
		baseWindKMH = 35
	}
	if forecastHours <= 0 {
		forecastHours = 8
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Provider{baseWindKMH: baseWindKMH, forecastHours: forecastHours, clock: clock}
}

func (p *Provider) Name() string {
	return "mock"
}

func (p *Provider) Fetch(context.Context) (weather.Snapshot, error) {
	now := p.clock.Now().UTC().Truncate(time.Hour)

	points := make([]weather.ForecastPoint, 0, p.forecastHours)
	for h := 1; h <= p.forecastHours; h++ {
		speed := p.windAt(h)
		points = append(points, weather.ForecastPoint{
			Time:          now.Add(time.Duration(h) * time.Hour),
			WindSpeedKMH:  speed,
			WindGustKMH:   speed * 1.3,
			WindDirection: 270,
			TemperatureC:  8,
		})
	}

	speed := p.windAt(0)
	return weather.Snapshot{
		Current: weather.Reading{
			Time:          now,
			WindSpeedKMH:  speed,
			WindGustKMH:   speed * 1.3,
			WindDirection: 270,
			TemperatureC:  8,
			Humidity:      78,
			PressureHPA:   1009,
			VisibilityKM:  10,
		},
		Forecast:  points,
		Provider:  p.Name(),
		FetchedAt: p.clock.Now(),
	}, nil
}

func (p *Provider) windAt(hourOffset int) float64 {
	phase := float64(p.clock.Now().UTC().Hour()+hourOffset) / 24 * 2 * math.Pi
	return p.baseWindKMH * (1 + 0.4*math.Sin(phase))
}
