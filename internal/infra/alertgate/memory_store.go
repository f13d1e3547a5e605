package alertgate

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gustwatch/gustwatch/internal/domain/alert"
)

// MemoryStore keeps suppression claims in process memory. Suitable for
// single-instance deployments and tests; claims do not survive restarts.
type MemoryStore struct {
	mu     sync.Mutex
	claims map[string]time.Time
	clock  clockwork.Clock
}

// NewMemoryStore constructs an in-memory suppression store.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		claims: make(map[string]time.Time),
		clock:  clock,
	}
}

// Acquire claims the key unless a live claim already holds it.
func (s *MemoryStore) Acquire(_ context.Context, key string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if expiry, ok := s.claims[key]; ok && now.Before(expiry) {
		return false, nil
	}
	s.claims[key] = now.Add(window)
	s.sweep(now)
	return true, nil
}

// Touch stamps the key unconditionally, resetting its window.
func (s *MemoryStore) Touch(_ context.Context, key string, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.claims[key] = now.Add(window)
	s.sweep(now)
	return nil
}

// sweep drops expired claims. Called under the lock on every write so
// the map stays bounded by the live claim count.
func (s *MemoryStore) sweep(now time.Time) {
	for key, expiry := range s.claims {
		if !now.Before(expiry) {
			delete(s.claims, key)
		}
	}
}

var _ alert.SuppressionStore = (*MemoryStore)(nil)
