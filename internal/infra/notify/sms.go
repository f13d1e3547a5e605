package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gustwatch/gustwatch/internal/domain/alert"
)

const (
	twilioBaseURL = "https://api.twilio.com"

	// Single-segment carrier limit; the remaining budget after the
	// fixed prefix is what the alert text may occupy.
	smsLimit  = 160
	smsPrefix = "GustWatch: "
)

// SMSSender delivers alerts through the Twilio messages API.
type SMSSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *retryingClient
	logger     *slog.Logger
}

// NewSMSSender builds the Twilio channel adapter. baseURL is overridable
// for tests and defaults to the public API.
func NewSMSSender(accountSID, authToken, from, baseURL string, logger *slog.Logger) *SMSSender {
	if baseURL == "" {
		baseURL = twilioBaseURL
	}
	return &SMSSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    baseURL,
		client:     newRetryingClient(),
		logger:     logger.With("component", "notify.sms"),
	}
}

func (s *SMSSender) Channel() alert.Channel {
	return alert.ChannelSMS
}

func (s *SMSSender) Send(ctx context.Context, sub alert.Subscriber, event alert.Event) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	form := url.Values{}
	form.Set("To", sub.Phone)
	form.Set("From", s.from)
	form.Set("Body", TruncateSMS(event.Message))

	status, body, err := s.client.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("twilio send failed: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("twilio rejected message: status=%d body=%s", status, string(body))
	}

	s.logger.Debug("sms sent", "subscriber", sub.ID, "level", event.Level.String())
	return nil
}

// TruncateSMS applies the fixed prefix and cuts the message down to one
// SMS segment, ellipsizing when the text does not fit.
func TruncateSMS(message string) string {
	budget := smsLimit - len(smsPrefix)
	runes := []rune(message)
	if len(runes) <= budget {
		return smsPrefix + message
	}
	return smsPrefix + string(runes[:budget-1]) + "…"
}
