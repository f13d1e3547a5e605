package alert

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// fakeStore mimics the conditional-write contract of the real stores.
type fakeStore struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	claims  map[string]time.Time
	fail    error
	touched int
}

func newFakeStore(clock clockwork.Clock) *fakeStore {
	return &fakeStore{clock: clock, claims: make(map[string]time.Time)}
}

func (f *fakeStore) Acquire(_ context.Context, key string, window time.Duration) (bool, error) {
	if f.fail != nil {
		return false, f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if expiry, ok := f.claims[key]; ok && f.clock.Now().Before(expiry) {
		return false, nil
	}
	f.claims[key] = f.clock.Now().Add(window)
	return true, nil
}

func (f *fakeStore) Touch(_ context.Context, key string, window time.Duration) error {
	if f.fail != nil {
		return f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims[key] = f.clock.Now().Add(window)
	f.touched++
	return nil
}

func testSubscriber() Subscriber {
	return Subscriber{
		ID:           uuid.New(),
		Email:        "sailor@example.com",
		ThresholdKMH: 40,
		Channels:     []Channel{ChannelEmail},
		Active:       true,
	}
}

func newTestGate(cfg GateConfig, clock clockwork.Clock, store SuppressionStore) *Gate {
	return NewGate(cfg, store, clock, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGateSuppressesWithinWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore(clock)
	gate := newTestGate(GateConfig{SuppressionWindow: 30 * time.Minute}, clock, store)
	sub := testSubscriber()

	ok, err := gate.ShouldSend(context.Background(), sub, LevelWarning)
	require.NoError(t, err)
	require.True(t, ok)

	// Second attempt at the same level inside the window must not send.
	ok, err = gate.ShouldSend(context.Background(), sub, LevelWarning)
	require.NoError(t, err)
	require.False(t, ok)

	clock.Advance(31 * time.Minute)
	ok, err = gate.ShouldSend(context.Background(), sub, LevelWarning)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGateRejectsNormalLevel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gate := newTestGate(GateConfig{}, clock, newFakeStore(clock))

	ok, err := gate.ShouldSend(context.Background(), testSubscriber(), LevelNormal)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGateRejectsSubscriberWithoutDeliverableChannel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gate := newTestGate(GateConfig{}, clock, newFakeStore(clock))

	sub := testSubscriber()
	sub.Channels = nil
	ok, err := gate.ShouldSend(context.Background(), sub, LevelDanger)
	require.NoError(t, err)
	require.False(t, ok)

	// Enabled channel without contact info counts as undeliverable too.
	sub = testSubscriber()
	sub.Email = ""
	ok, err = gate.ShouldSend(context.Background(), sub, LevelDanger)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGateDangerBypass(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newFakeStore(clock)
	gate := newTestGate(GateConfig{SuppressionWindow: 30 * time.Minute, DangerBypass: true}, clock, store)
	sub := testSubscriber()

	for i := 0; i < 3; i++ {
		ok, err := gate.ShouldSend(context.Background(), sub, LevelDanger)
		require.NoError(t, err)
		require.True(t, ok, "danger send %d should bypass suppression", i)
	}
	require.Equal(t, 3, store.touched)

	// Without the bypass flag, danger behaves like every other level.
	strict := newTestGate(GateConfig{SuppressionWindow: 30 * time.Minute}, clock, newFakeStore(clock))
	ok, err := strict.ShouldSend(context.Background(), sub, LevelDanger)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = strict.ShouldSend(context.Background(), sub, LevelDanger)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGateDistinctLevelsClaimSeparately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gate := newTestGate(GateConfig{SuppressionWindow: 30 * time.Minute}, clock, newFakeStore(clock))
	sub := testSubscriber()

	ok, err := gate.ShouldSend(context.Background(), sub, LevelCaution)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = gate.ShouldSend(context.Background(), sub, LevelWarning)
	require.NoError(t, err)
	require.True(t, ok, "escalation to a new level is not suppressed")
}
