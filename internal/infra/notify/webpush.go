package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/gustwatch/gustwatch/internal/domain/alert"
)

// WebPushSender delivers push alerts straight to the browser push service
// using the VAPID key pair, without a third-party push broker.
type WebPushSender struct {
	options webpush.Options
	tries   int
	timeout time.Duration
	sleep   func(time.Duration)
	send    func(ctx context.Context, message []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)
	logger  *slog.Logger
}

// NewWebPushSender builds the web-push adapter. subscriber is the VAPID
// contact address (a mailto: or https: URI) push services may use to
// reach the operator.
func NewWebPushSender(vapidPublicKey, vapidPrivateKey, subscriber string, logger *slog.Logger) *WebPushSender {
	return &WebPushSender{
		options: webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  vapidPublicKey,
			VAPIDPrivateKey: vapidPrivateKey,
			TTL:             3600,
		},
		tries:   defaultTries,
		timeout: defaultTimeout,
		sleep:   time.Sleep,
		send:    webpush.SendNotificationWithContext,
		logger:  logger.With("component", "notify.webpush"),
	}
}

func (s *WebPushSender) Channel() alert.Channel {
	return alert.ChannelPush
}

func (s *WebPushSender) Send(ctx context.Context, sub alert.Subscriber, event alert.Event) error {
	if sub.Push.Endpoint == "" {
		return fmt.Errorf("subscriber %s has no web-push endpoint", sub.ID)
	}

	message, err := json.Marshal(webPushWire{
		Title: event.Title(),
		Body:  event.Message,
		Level: event.Level.String(),
	})
	if err != nil {
		return fmt.Errorf("encode web-push payload: %w", err)
	}

	target := &webpush.Subscription{
		Endpoint: sub.Push.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Push.P256DH,
			Auth:   sub.Push.Auth,
		},
	}

	var lastErr error
	for attempt := 1; attempt <= s.tries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			s.sleep(backoffStep * time.Duration(attempt-1))
		}

		status, err := s.sendOnce(ctx, message, target)
		if err != nil {
			lastErr = err
			continue
		}
		switch {
		case status < 300:
			s.logger.Debug("push sent", "subscriber", sub.ID, "level", event.Level.String())
			return nil
		case status == http.StatusGone:
			// The push service retired this subscription. Keep the record
			// so an operator can prune it; do not retry.
			s.logger.Warn("web-push subscription expired",
				"subscriber", sub.ID, "endpoint", sub.Push.Endpoint)
			return fmt.Errorf("web-push subscription expired: status=%d", status)
		case status == http.StatusTooManyRequests || status >= 500:
			lastErr = fmt.Errorf("push service returned status=%d", status)
		default:
			return fmt.Errorf("push service rejected notification: status=%d", status)
		}
	}
	return fmt.Errorf("web-push send failed after %d attempts: %w", s.tries, lastErr)
}

func (s *WebPushSender) sendOnce(ctx context.Context, message []byte, target *webpush.Subscription) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.send(attemptCtx, message, target, &s.options)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	return resp.StatusCode, nil
}

type webPushWire struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Level string `json:"level"`
}
