package weather

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"

	apperrors "github.com/gustwatch/gustwatch/pkg/errors"
)

// Provider fetches a weather snapshot from one upstream source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (Snapshot, error)
}

// FallbackProvider tries the primary source and falls back to the
// secondary, aggregating both failures when neither responds.
type FallbackProvider struct {
	primary   Provider
	secondary Provider
	logger    *slog.Logger
}

// NewFallbackProvider builds the fallback chain. Secondary may be nil.
func NewFallbackProvider(primary, secondary Provider, logger *slog.Logger) *FallbackProvider {
	return &FallbackProvider{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With("component", "weather.fallback"),
	}
}

func (f *FallbackProvider) Name() string {
	return f.primary.Name()
}

func (f *FallbackProvider) Fetch(ctx context.Context) (Snapshot, error) {
	snap, primaryErr := f.primary.Fetch(ctx)
	if primaryErr == nil {
		return snap, nil
	}
	if f.secondary == nil {
		return Snapshot{}, apperrors.Wrap("weather_unavailable", "weather provider failed", primaryErr)
	}

	f.logger.Warn("primary weather provider failed, trying secondary",
		"primary", f.primary.Name(), "secondary", f.secondary.Name(), "error", primaryErr)

	snap, secondaryErr := f.secondary.Fetch(ctx)
	if secondaryErr == nil {
		return snap, nil
	}

	combined := multierror.Append(nil, primaryErr, secondaryErr)
	return Snapshot{}, apperrors.Wrap("weather_unavailable", "all weather providers failed", combined.ErrorOrNil())
}

// CachedProvider decorates a Provider with a short TTL cache so bursts of
// API reads do not hammer the upstream.
type CachedProvider struct {
	inner Provider
	ttl   time.Duration
	clock clockwork.Clock

	mu        sync.Mutex
	snapshot  Snapshot
	fetchedAt time.Time

	onResult func(hit bool)
}

// NewCachedProvider wraps a provider with a TTL cache. onResult receives
// hit/miss accounting and may be nil.
func NewCachedProvider(inner Provider, ttl time.Duration, clock clockwork.Clock, onResult func(hit bool)) *CachedProvider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedProvider{inner: inner, ttl: ttl, clock: clock, onResult: onResult}
}

func (c *CachedProvider) Name() string {
	return c.inner.Name()
}

func (c *CachedProvider) Fetch(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if !c.fetchedAt.IsZero() && c.clock.Since(c.fetchedAt) < c.ttl {
		snap := c.snapshot
		c.mu.Unlock()
		snap.FromCache = true
		c.record(true)
		return snap, nil
	}
	c.mu.Unlock()

	c.record(false)
	snap, err := c.inner.Fetch(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	c.mu.Lock()
	c.snapshot = snap
	c.fetchedAt = c.clock.Now()
	c.mu.Unlock()
	return snap, nil
}

func (c *CachedProvider) record(hit bool) {
	if c.onResult != nil {
		c.onResult(hit)
	}
}
