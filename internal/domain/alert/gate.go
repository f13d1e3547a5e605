package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// SuppressionStore tracks per-subscriber send claims with a TTL. Acquire
// must be a conditional write (claim only when no unexpired claim exists)
// so the at-most-one-send-per-window guarantee holds across concurrent
// server instances.
type SuppressionStore interface {
	Acquire(ctx context.Context, key string, window time.Duration) (bool, error)
	Touch(ctx context.Context, key string, window time.Duration) error
}

// GateConfig tunes the suppression behavior.
type GateConfig struct {
	SuppressionWindow time.Duration
	// DangerBypass lets danger-level alerts skip the window check. The
	// send is still recorded so lower levels stay suppressed afterwards.
	DangerBypass bool
}

// Gate decides whether an alert may be sent to a subscriber right now.
type Gate struct {
	cfg    GateConfig
	store  SuppressionStore
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewGate builds the dedup/rate gate on top of a suppression store.
func NewGate(cfg GateConfig, store SuppressionStore, clock clockwork.Clock, logger *slog.Logger) *Gate {
	if cfg.SuppressionWindow <= 0 {
		cfg.SuppressionWindow = 30 * time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Gate{
		cfg:    cfg,
		store:  store,
		clock:  clock,
		logger: logger.With("component", "alert.gate"),
	}
}

// ShouldSend reports whether the event may go out. A true result has
// already claimed the suppression slot; the caller is expected to follow
// through with the send attempt.
func (g *Gate) ShouldSend(ctx context.Context, sub Subscriber, level Level) (bool, error) {
	if level == LevelNormal {
		return false, nil
	}
	if !g.hasDeliverableChannel(sub) {
		g.logger.Debug("subscriber has no deliverable channel", "subscriber", sub.ID)
		return false, nil
	}

	key := suppressionKey(sub, level)
	if level == LevelDanger && g.cfg.DangerBypass {
		if err := g.store.Touch(ctx, key, g.cfg.SuppressionWindow); err != nil {
			return false, err
		}
		return true, nil
	}

	claimed, err := g.store.Acquire(ctx, key, g.cfg.SuppressionWindow)
	if err != nil {
		return false, err
	}
	if !claimed {
		g.logger.Debug("alert suppressed inside window",
			"subscriber", sub.ID, "level", level.String(), "window", g.cfg.SuppressionWindow)
	}
	return claimed, nil
}

func (g *Gate) hasDeliverableChannel(sub Subscriber) bool {
	for _, ch := range sub.Channels {
		if sub.HasContact(ch) {
			return true
		}
	}
	return false
}

func suppressionKey(sub Subscriber, level Level) string {
	return fmt.Sprintf("alert:%s:%s", sub.ID, level)
}
