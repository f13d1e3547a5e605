package alert

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel identifies one delivery mechanism for an alert.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// ParseChannel validates a wire channel name.
func ParseChannel(s string) (Channel, bool) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelEmail:
		return ChannelEmail, true
	case ChannelSMS:
		return ChannelSMS, true
	case ChannelPush:
		return ChannelPush, true
	default:
		return "", false
	}
}

// PushSubscription holds the browser push handle for a subscriber. The
// VAPID fields serve web-push; PlayerID serves OneSignal.
type PushSubscription struct {
	Endpoint string `json:"endpoint,omitempty"`
	P256DH   string `json:"p256dh,omitempty"`
	Auth     string `json:"auth,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
}

// IsZero reports whether no usable push handle is present.
func (p PushSubscription) IsZero() bool {
	return p.Endpoint == "" && p.PlayerID == ""
}

// Subscriber is one alert recipient with per-channel contact info and a
// personal wind threshold. Subscribers are soft-deactivated, never hard
// deleted.
type Subscriber struct {
	ID             uuid.UUID        `json:"id"`
	Email          string           `json:"email,omitempty"`
	Phone          string           `json:"phone,omitempty"`
	Push           PushSubscription `json:"push,omitempty"`
	ThresholdKMH   float64          `json:"windThreshold"`
	Channels       []Channel        `json:"channels"`
	Active         bool             `json:"active"`
	LastAlertAt    time.Time        `json:"lastAlertAt,omitempty"`
	LastAlertLevel Level            `json:"-"`
	CreatedAt      time.Time        `json:"createdAt,omitempty"`
	UpdatedAt      time.Time        `json:"updatedAt,omitempty"`
}

// HasChannel reports whether the subscriber opted into a channel.
func (s Subscriber) HasChannel(c Channel) bool {
	for _, enabled := range s.Channels {
		if enabled == c {
			return true
		}
	}
	return false
}

// HasContact reports whether contact info exists for a channel.
func (s Subscriber) HasContact(c Channel) bool {
	switch c {
	case ChannelEmail:
		return s.Email != ""
	case ChannelSMS:
		return s.Phone != ""
	case ChannelPush:
		return !s.Push.IsZero()
	default:
		return false
	}
}

// SubscriberRepository persists subscribers and their dedup bookkeeping.
type SubscriberRepository interface {
	Get(ctx context.Context, id uuid.UUID) (Subscriber, error)
	ListActive(ctx context.Context) ([]Subscriber, error)
	Upsert(ctx context.Context, sub Subscriber) (Subscriber, error)
	RecordAlert(ctx context.Context, id uuid.UUID, at time.Time, level Level) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}
