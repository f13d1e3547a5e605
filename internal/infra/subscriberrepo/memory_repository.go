package subscriberrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gustwatch/gustwatch/internal/domain/alert"
	apperrors "github.com/gustwatch/gustwatch/pkg/errors"
)

// MemoryRepository provides an in-memory subscriber store for tests/dev.
type MemoryRepository struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]alert.Subscriber
	now  func() time.Time
}

// NewMemoryRepository constructs a new in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		subs: make(map[uuid.UUID]alert.Subscriber),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a subscriber by id.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (alert.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[id]
	if !ok {
		return alert.Subscriber{}, apperrors.New("not_found", "subscriber not found")
	}
	return sub, nil
}

// ListActive returns all active subscribers ordered by creation time.
func (r *MemoryRepository) ListActive(_ context.Context) ([]alert.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]alert.Subscriber, 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.Active {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Upsert stores or updates a subscriber, assigning an id when absent.
func (r *MemoryRepository) Upsert(_ context.Context, sub alert.Subscriber) (alert.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
		sub.CreatedAt = now
	} else if existing, ok := r.subs[sub.ID]; ok {
		sub.CreatedAt = existing.CreatedAt
		sub.LastAlertAt = existing.LastAlertAt
		sub.LastAlertLevel = existing.LastAlertLevel
	} else {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	r.subs[sub.ID] = sub
	return sub, nil
}

// RecordAlert stamps the dedup bookkeeping after a delivered alert.
func (r *MemoryRepository) RecordAlert(_ context.Context, id uuid.UUID, at time.Time, level alert.Level) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return apperrors.New("not_found", "subscriber not found")
	}
	sub.LastAlertAt = at.UTC()
	sub.LastAlertLevel = level
	sub.UpdatedAt = r.now()
	r.subs[id] = sub
	return nil
}

// Deactivate soft-deletes a subscriber.
func (r *MemoryRepository) Deactivate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return apperrors.New("not_found", "subscriber not found")
	}
	sub.Active = false
	sub.UpdatedAt = r.now()
	r.subs[id] = sub
	return nil
}

var _ alert.SubscriberRepository = (*MemoryRepository)(nil)
