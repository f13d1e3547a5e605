package weather

import (
	"context"
	"log/slog"

	apperrors "github.com/gustwatch/gustwatch/pkg/errors"
)

// Service exposes normalized weather snapshots to the rest of the app.
type Service interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Config wires runtime knobs for the weather domain. AdjustmentFactor is
// an exposure calibration applied to wind values after fetch; 1.0 leaves
// readings untouched.
type Config struct {
	AdjustmentFactor float64
}

type service struct {
	cfg      Config
	provider Provider
	logger   *slog.Logger
}

// NewService builds the weather domain service on top of a provider chain.
func NewService(cfg Config, provider Provider, logger *slog.Logger) Service {
	return &service{
		cfg:      cfg,
		provider: provider,
		logger:   logger.With("component", "weather.service"),
	}
}

func (s *service) Snapshot(ctx context.Context) (Snapshot, error) {
	snap, err := s.provider.Fetch(ctx)
	if err != nil {
		if apperrors.CodeOf(err) != "" {
			return Snapshot{}, err
		}
		return Snapshot{}, apperrors.Wrap("weather_unavailable", "failed to fetch weather", err)
	}

	snap.Current = Sanitize(s.adjustReading(snap.Current))
	for i, pt := range snap.Forecast {
		snap.Forecast[i] = SanitizePoint(s.adjustPoint(pt))
	}

	s.logger.Debug("weather snapshot ready",
		"provider", snap.Provider, "forecast_points", len(snap.Forecast), "cached", snap.FromCache)
	return snap, nil
}

func (s *service) adjustReading(r Reading) Reading {
	factor := s.factor()
	r.WindSpeedKMH *= factor
	r.WindGustKMH *= factor
	return r
}

func (s *service) adjustPoint(p ForecastPoint) ForecastPoint {
	factor := s.factor()
	p.WindSpeedKMH *= factor
	p.WindGustKMH *= factor
	return p
}

func (s *service) factor() float64 {
	if s.cfg.AdjustmentFactor <= 0 {
		return 1
	}
	return s.cfg.AdjustmentFactor
}
