package alertgate

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/gustwatch/gustwatch/internal/domain/alert"
)

// ValkeyStore records suppression claims in a Valkey-compatible database
// so every service instance shares one dedup window.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a suppression store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "gustwatch"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// Acquire claims the key for the window with a conditional write. Only
// one instance wins the claim; the rest observe it as suppressed.
func (s *ValkeyStore) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	if window < time.Second {
		window = time.Second
	}
	cmd := s.client.B().Set().Key(s.fullKey(key)).Value("1").Nx().Ex(window).Build()
	err := s.client.Do(ctx, cmd).Error()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Touch stamps the key unconditionally, resetting its window.
func (s *ValkeyStore) Touch(ctx context.Context, key string, window time.Duration) error {
	if window < time.Second {
		window = time.Second
	}
	cmd := s.client.B().Set().Key(s.fullKey(key)).Value("1").Ex(window).Build()
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) fullKey(key string) string {
	return s.prefix + ":" + key
}

var _ alert.SuppressionStore = (*ValkeyStore)(nil)
