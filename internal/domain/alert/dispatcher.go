package alert

import (
	"context"
	"log/slog"
	"sync"
)

// ChannelSender delivers one alert over one channel. Implementations map
// provider failures into an error return; the dispatcher additionally
// recovers panics so one channel cannot take down a dispatch.
type ChannelSender interface {
	Channel() Channel
	Send(ctx context.Context, sub Subscriber, event Event) error
}

// Outcome reports per-channel delivery results for one dispatch. A false
// value covers both "failed" and "never attempted".
type Outcome struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
}

// Any reports whether at least one channel succeeded.
func (o Outcome) Any() bool {
	return o.Email || o.SMS || o.Push
}

// Dispatcher fans one alert event out to every enabled channel with
// contact info. Channels run in parallel and fail independently; a
// partially delivered alert is a terminal, reported outcome.
type Dispatcher struct {
	senders map[Channel]ChannelSender
	logger  *slog.Logger
	onSend  func(channel Channel, ok bool)
}

// NewDispatcher indexes the configured channel senders. onSend receives
// per-channel accounting and may be nil.
func NewDispatcher(senders []ChannelSender, logger *slog.Logger, onSend func(channel Channel, ok bool)) *Dispatcher {
	indexed := make(map[Channel]ChannelSender, len(senders))
	for _, s := range senders {
		indexed[s.Channel()] = s
	}
	return &Dispatcher{
		senders: indexed,
		logger:  logger.With("component", "alert.dispatcher"),
		onSend:  onSend,
	}
}

// Configured reports whether a sender exists for the channel.
func (d *Dispatcher) Configured(c Channel) bool {
	_, ok := d.senders[c]
	return ok
}

// Dispatch attempts every eligible channel and aggregates the results.
// A channel is eligible when the subscriber opted in, contact info
// exists, and a sender is configured.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event, sub Subscriber) Outcome {
	var (
		mu      sync.Mutex
		outcome Outcome
		wg      sync.WaitGroup
	)

	for _, ch := range sub.Channels {
		sender, ok := d.senders[ch]
		if !ok || !sub.HasContact(ch) {
			continue
		}

		wg.Add(1)
		go func(ch Channel, sender ChannelSender) {
			defer wg.Done()
			ok := d.attempt(ctx, sender, sub, event)
			mu.Lock()
			switch ch {
			case ChannelEmail:
				outcome.Email = ok
			case ChannelSMS:
				outcome.SMS = ok
			case ChannelPush:
				outcome.Push = ok
			}
			mu.Unlock()
			if d.onSend != nil {
				d.onSend(ch, ok)
			}
		}(ch, sender)
	}

	wg.Wait()
	return outcome
}

func (d *Dispatcher) attempt(ctx context.Context, sender ChannelSender, sub Subscriber, event Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("channel sender panicked",
				"channel", string(sender.Channel()), "subscriber", sub.ID, "panic", r)
			ok = false
		}
	}()

	if err := sender.Send(ctx, sub, event); err != nil {
		d.logger.Warn("channel send failed",
			"channel", string(sender.Channel()), "subscriber", sub.ID, "level", event.Level.String(), "error", err)
		return false
	}
	return true
}
