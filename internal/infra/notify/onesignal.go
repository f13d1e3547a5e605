package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gustwatch/gustwatch/internal/domain/alert"
)

const oneSignalBaseURL = "https://onesignal.com"

// OneSignalSender delivers push alerts through the OneSignal REST API,
// targeting the subscriber's registered player id.
type OneSignalSender struct {
	appID   string
	apiKey  string
	baseURL string
	client  *retryingClient
	logger  *slog.Logger
}

// NewOneSignalSender builds the OneSignal push adapter.
func NewOneSignalSender(appID, restAPIKey, baseURL string, logger *slog.Logger) *OneSignalSender {
	if baseURL == "" {
		baseURL = oneSignalBaseURL
	}
	return &OneSignalSender{
		appID:   appID,
		apiKey:  restAPIKey,
		baseURL: baseURL,
		client:  newRetryingClient(),
		logger:  logger.With("component", "notify.onesignal"),
	}
}

func (s *OneSignalSender) Channel() alert.Channel {
	return alert.ChannelPush
}

func (s *OneSignalSender) Send(ctx context.Context, sub alert.Subscriber, event alert.Event) error {
	if sub.Push.PlayerID == "" {
		return fmt.Errorf("subscriber %s has no onesignal player id", sub.ID)
	}

	payload, err := json.Marshal(oneSignalWire{
		AppID:            s.appID,
		IncludePlayerIDs: []string{sub.Push.PlayerID},
		Headings:         map[string]string{"en": event.Title()},
		Contents:         map[string]string{"en": event.Message},
		Data: map[string]string{
			"level":    event.Level.String(),
			"event_id": event.ID.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("encode onesignal payload: %w", err)
	}

	status, body, err := s.client.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v1/notifications", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Basic "+s.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("onesignal send failed: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("onesignal rejected notification: status=%d body=%s", status, string(body))
	}

	s.logger.Debug("push sent", "subscriber", sub.ID, "level", event.Level.String())
	return nil
}

type oneSignalWire struct {
	AppID            string            `json:"app_id"`
	IncludePlayerIDs []string          `json:"include_player_ids"`
	Headings         map[string]string `json:"headings"`
	Contents         map[string]string `json:"contents"`
	Data             map[string]string `json:"data"`
}
