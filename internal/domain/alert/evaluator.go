package alert

import (
	"time"

	"github.com/gustwatch/gustwatch/internal/domain/weather"
	apperrors "github.com/gustwatch/gustwatch/pkg/errors"
)

// Evaluation is the outcome of checking a forecast window against a
// subscriber threshold. A nil Evaluation means no point qualified.
type Evaluation struct {
	Level       Level
	MaxWindKMH  float64
	TriggerTime time.Time
}

// Evaluate filters forecast points inside [now, now+lookahead] whose
// max(speed, gust) exceeds the threshold, and classifies the strongest
// qualifying wind. TriggerTime is the earliest qualifying point, not the
// strongest one. Pure and deterministic; thresholdKMH must be positive.
func Evaluate(forecast []weather.ForecastPoint, thresholdKMH float64, lookahead time.Duration, now time.Time) (*Evaluation, error) {
	if thresholdKMH <= 0 {
		return nil, apperrors.New("invalid_input", "wind threshold must be positive")
	}
	if lookahead <= 0 {
		return nil, apperrors.New("invalid_input", "lookahead window must be positive")
	}

	horizon := now.Add(lookahead)
	var (
		maxWind float64
		trigger time.Time
		found   bool
	)
	for _, pt := range forecast {
		if pt.Time.Before(now) || pt.Time.After(horizon) {
			continue
		}
		wind := pt.MaxWind()
		if wind <= thresholdKMH {
			continue
		}
		if !found || pt.Time.Before(trigger) {
			trigger = pt.Time
		}
		if wind > maxWind {
			maxWind = wind
		}
		found = true
	}
	if !found {
		return nil, nil
	}

	return &Evaluation{
		Level:       Classify(maxWind, thresholdKMH),
		MaxWindKMH:  maxWind,
		TriggerTime: trigger,
	}, nil
}
