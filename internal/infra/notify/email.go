package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"

	"github.com/gustwatch/gustwatch/internal/domain/alert"
)

const resendBaseURL = "https://api.resend.com"

// EmailSender delivers alerts through the Resend API with an HTML body,
// a plaintext fallback, and the signed unsubscribe link in the footer.
type EmailSender struct {
	apiKey  string
	from    string
	baseURL string
	client  *retryingClient
	logger  *slog.Logger
}

// NewEmailSender builds the Resend channel adapter.
func NewEmailSender(apiKey, from, baseURL string, logger *slog.Logger) *EmailSender {
	if baseURL == "" {
		baseURL = resendBaseURL
	}
	return &EmailSender{
		apiKey:  apiKey,
		from:    from,
		baseURL: baseURL,
		client:  newRetryingClient(),
		logger:  logger.With("component", "notify.email"),
	}
}

func (s *EmailSender) Channel() alert.Channel {
	return alert.ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, sub alert.Subscriber, event alert.Event) error {
	payload, err := json.Marshal(emailWire{
		From:    s.from,
		To:      []string{sub.Email},
		Subject: event.Title(),
		HTML:    renderEmailHTML(event),
		Text:    renderEmailText(event),
	})
	if err != nil {
		return fmt.Errorf("encode email payload: %w", err)
	}

	status, body, err := s.client.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("resend rejected email: status=%d body=%s", status, string(body))
	}

	s.logger.Debug("email sent", "subscriber", sub.ID, "level", event.Level.String())
	return nil
}

type emailWire struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

func renderEmailHTML(event alert.Event) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<h2>%s</h2>", html.EscapeString(event.Title()))
	fmt.Fprintf(&buf, "<p>%s</p>", html.EscapeString(event.Message))
	fmt.Fprintf(&buf, "<p>Max wind: <strong>%.0f km/h</strong></p>", event.WindSpeedKMH)
	if event.UnsubscribeURL != "" {
		fmt.Fprintf(&buf, `<p style="font-size:12px;color:#888"><a href="%s">Unsubscribe from wind alerts</a></p>`,
			html.EscapeString(event.UnsubscribeURL))
	}
	return buf.String()
}

func renderEmailText(event alert.Event) string {
	text := event.Message
	if event.UnsubscribeURL != "" {
		text += "\n\nUnsubscribe: " + event.UnsubscribeURL
	}
	return text
}
