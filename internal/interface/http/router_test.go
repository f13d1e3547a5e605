package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gustwatch/gustwatch/internal/domain/alert"
	"github.com/gustwatch/gustwatch/internal/domain/weather"
	"github.com/gustwatch/gustwatch/internal/infra/config"
	apperrors "github.com/gustwatch/gustwatch/pkg/errors"
)

func TestRouter_SendAlertsSuccess(t *testing.T) {
	svc := &stubAlertService{
		sendManualFn: func(ctx context.Context, req alert.ManualAlert) (alert.BulkReport, error) {
			require.Equal(t, "danger", req.Level)
			require.Equal(t, 80.0, req.WindSpeedKMH)
			return alert.BulkReport{
				Results:   []alert.SendResult{{Level: "danger", Sent: true}},
				Attempted: 1,
				Delivered: 1,
			}, nil
		},
	}

	rec := performRequest(http.MethodPost, "/api/v1/alerts/send",
		`{"level":"danger","windSpeed":80}`, newRouterUnderTest(t, svc, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["ok"])
	require.Equal(t, 1.0, body["delivered"])
}

func TestRouter_SendAlertsValidatesWindSpeed(t *testing.T) {
	svc := &stubAlertService{}
	server := newRouterUnderTest(t, svc, nil)

	for _, payload := range []string{
		`{"level":"danger"}`,
		`{"windSpeed":-1}`,
		`{"windSpeed":301}`,
	} {
		rec := performRequest(http.MethodPost, "/api/v1/alerts/send", payload, server)
		require.Equal(t, http.StatusBadRequest, rec.Code, "payload %s", payload)

		errBody := decodeErrorBody(t, rec.Body.Bytes())
		require.Equal(t, "invalid_request", errBody["error"]["code"])
		require.Contains(t, errBody["error"]["message"], "windSpeed")
	}
}

func TestRouter_SendAlertsMissingConfig(t *testing.T) {
	svc := &stubAlertService{
		sendManualFn: func(ctx context.Context, req alert.ManualAlert) (alert.BulkReport, error) {
			return alert.BulkReport{}, apperrors.New("missing_config",
				"no notification channel configured; missing RESEND_API_KEY, TWILIO_ACCOUNT_SID")
		},
	}

	rec := performRequest(http.MethodPost, "/api/v1/alerts/send",
		`{"windSpeed":60}`, newRouterUnderTest(t, svc, nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "missing_config", errBody["error"]["code"])
	require.Contains(t, errBody["error"]["message"], "RESEND_API_KEY")
}

func TestRouter_SendAlertsAllDeliveriesFailed(t *testing.T) {
	svc := &stubAlertService{
		sendManualFn: func(ctx context.Context, req alert.ManualAlert) (alert.BulkReport, error) {
			return alert.BulkReport{
				Results:   []alert.SendResult{{Level: "warning", Error: "timeout"}},
				Attempted: 1,
				Delivered: 0,
			}, nil
		},
	}

	rec := performRequest(http.MethodPost, "/api/v1/alerts/send",
		`{"windSpeed":60}`, newRouterUnderTest(t, svc, nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "delivery_failed", errBody["error"]["code"])
}

func TestRouter_WeatherCacheHeader(t *testing.T) {
	snap := weather.Snapshot{
		Current:  weather.Reading{WindSpeedKMH: 30, WindGustKMH: 40},
		Provider: "openweather",
	}
	ws := &stubWeatherService{snapshotFn: func(ctx context.Context) (weather.Snapshot, error) {
		return snap, nil
	}}

	server := newRouterUnderTest(t, &stubAlertService{}, ws)
	rec := performRequest(http.MethodGet, "/api/v1/weather", "", server)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "openweather", body["provider"])

	snap.FromCache = true
	rec = performRequest(http.MethodGet, "/api/v1/weather", "", server)
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestRouter_WeatherUnavailable(t *testing.T) {
	ws := &stubWeatherService{snapshotFn: func(ctx context.Context) (weather.Snapshot, error) {
		return weather.Snapshot{}, apperrors.New("weather_unavailable", "all providers failed")
	}}

	rec := performRequest(http.MethodGet, "/api/v1/weather", "",
		newRouterUnderTest(t, &stubAlertService{}, ws))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "weather_unavailable", errBody["error"]["code"])
}

func TestRouter_SubscriberLifecycle(t *testing.T) {
	id := uuid.New()
	svc := &stubAlertService{
		subscribeFn: func(ctx context.Context, sub alert.Subscriber) (alert.Subscriber, error) {
			require.Equal(t, 45.0, sub.ThresholdKMH)
			sub.ID = id
			sub.Active = true
			return sub, nil
		},
		getSubscriberFn: func(ctx context.Context, got uuid.UUID) (alert.Subscriber, error) {
			require.Equal(t, id, got)
			return alert.Subscriber{ID: id, Active: true}, nil
		},
	}
	server := newRouterUnderTest(t, svc, nil)

	rec := performRequest(http.MethodPost, "/api/v1/subscribers",
		`{"email":"rider@example.com","windThreshold":45,"channels":["email"]}`, server)
	require.Equal(t, http.StatusOK, rec.Code)

	var stored alert.Subscriber
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	require.Equal(t, id, stored.ID)

	rec = performRequest(http.MethodGet, "/api/v1/subscribers/"+id.String(), "", server)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_GetSubscriberNotFound(t *testing.T) {
	svc := &stubAlertService{
		getSubscriberFn: func(ctx context.Context, id uuid.UUID) (alert.Subscriber, error) {
			return alert.Subscriber{}, apperrors.New("not_found", "subscriber not found")
		},
	}

	rec := performRequest(http.MethodGet, "/api/v1/subscribers/"+uuid.NewString(), "",
		newRouterUnderTest(t, svc, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_UnsubscribeRequiresToken(t *testing.T) {
	rec := performRequest(http.MethodGet, "/api/v1/unsubscribe", "",
		newRouterUnderTest(t, &stubAlertService{}, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RateLimitWindow(t *testing.T) {
	svc := &stubAlertService{}
	ws := &stubWeatherService{}
	server := newRouterWithRateLimit(t, svc, ws, 5, time.Minute)

	for i := 1; i <= 5; i++ {
		rec := performRequest(http.MethodGet, "/api/v1/weather", "", server)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		require.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := performRequest(http.MethodGet, "/api/v1/weather", "", server)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "rate_limit_exceeded", errBody["error"]["code"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	server := newRouterUnderTest(t, &stubAlertService{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/weather", nil)
	req.Header.Set("Origin", "https://gustwatch.example")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func performRequest(method, path, body string, server *http.Server) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newRouterUnderTest(t *testing.T, svc alert.Service, ws weather.Service) *http.Server {
	t.Helper()
	if ws == nil {
		ws = &stubWeatherService{}
	}
	handler := NewHandler(svc, ws, newTestLogger())
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
	}
	return NewRouter(cfg, handler, nil)
}

func newRouterWithRateLimit(t *testing.T, svc alert.Service, ws weather.Service, limit int, window time.Duration) *http.Server {
	t.Helper()
	handler := NewHandler(svc, ws, newTestLogger())
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			RateLimit: config.RateLimitConfig{
				Enabled: true,
				Limit:   limit,
				Window:  window,
			},
		},
	}
	return NewRouter(cfg, handler, nil)
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type stubAlertService struct {
	runCycleFn      func(ctx context.Context) (alert.CycleReport, error)
	sendManualFn    func(ctx context.Context, req alert.ManualAlert) (alert.BulkReport, error)
	sendTestFn      func(ctx context.Context, id uuid.UUID) (alert.SendResult, error)
	subscribeFn     func(ctx context.Context, sub alert.Subscriber) (alert.Subscriber, error)
	getSubscriberFn func(ctx context.Context, id uuid.UUID) (alert.Subscriber, error)
	unsubscribeFn   func(ctx context.Context, token string) (uuid.UUID, error)
}

func (s *stubAlertService) RunCycle(ctx context.Context) (alert.CycleReport, error) {
	if s.runCycleFn != nil {
		return s.runCycleFn(ctx)
	}
	return alert.CycleReport{}, nil
}

func (s *stubAlertService) SendManual(ctx context.Context, req alert.ManualAlert) (alert.BulkReport, error) {
	if s.sendManualFn != nil {
		return s.sendManualFn(ctx, req)
	}
	return alert.BulkReport{}, nil
}

func (s *stubAlertService) SendTest(ctx context.Context, id uuid.UUID) (alert.SendResult, error) {
	if s.sendTestFn != nil {
		return s.sendTestFn(ctx, id)
	}
	return alert.SendResult{}, nil
}

func (s *stubAlertService) Subscribe(ctx context.Context, sub alert.Subscriber) (alert.Subscriber, error) {
	if s.subscribeFn != nil {
		return s.subscribeFn(ctx, sub)
	}
	return sub, nil
}

func (s *stubAlertService) GetSubscriber(ctx context.Context, id uuid.UUID) (alert.Subscriber, error) {
	if s.getSubscriberFn != nil {
		return s.getSubscriberFn(ctx, id)
	}
	return alert.Subscriber{}, nil
}

func (s *stubAlertService) Unsubscribe(ctx context.Context, token string) (uuid.UUID, error) {
	if s.unsubscribeFn != nil {
		return s.unsubscribeFn(ctx, token)
	}
	return uuid.Nil, nil
}

type stubWeatherService struct {
	snapshotFn func(ctx context.Context) (weather.Snapshot, error)
}

func (s *stubWeatherService) Snapshot(ctx context.Context) (weather.Snapshot, error) {
	if s.snapshotFn != nil {
		return s.snapshotFn(ctx)
	}
	return weather.Snapshot{}, nil
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
