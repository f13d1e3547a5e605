package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/valkey-io/valkey-go"

	"github.com/gustwatch/gustwatch/internal/domain/alert"
	"github.com/gustwatch/gustwatch/internal/domain/weather"
	"github.com/gustwatch/gustwatch/internal/infra/alertgate"
	"github.com/gustwatch/gustwatch/internal/infra/config"
	"github.com/gustwatch/gustwatch/internal/infra/notify"
	"github.com/gustwatch/gustwatch/internal/infra/subscriberrepo"
	"github.com/gustwatch/gustwatch/internal/infra/weather/mock"
	"github.com/gustwatch/gustwatch/internal/infra/weather/openmeteo"
	"github.com/gustwatch/gustwatch/internal/infra/weather/openweather"
	"github.com/gustwatch/gustwatch/internal/observability"
)

func provideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

func provideMetrics() *observability.Metrics {
	return observability.NewMetrics()
}

func provideWeatherConfig(cfg *config.Config) weather.Config {
	return weather.Config{AdjustmentFactor: cfg.Weather.AdjustmentFactor}
}

// provideWeatherProvider assembles the fetch chain: mock or live
// provider, fallback to the secondary when both are configured, then
// the short-lived snapshot cache.
func provideWeatherProvider(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) weather.Provider {
	var provider weather.Provider
	if cfg.Weather.MockData {
		logger.Info("weather mock data enabled")
		provider = mock.NewProvider(0, cfg.Weather.ForecastHours, clock)
	} else {
		provider = liveWeatherProvider(cfg, logger, metrics)
	}

	onResult := func(hit bool) {
		result := "miss"
		if hit {
			result = "hit"
		}
		metrics.WeatherCache.WithLabelValues(result).Inc()
	}
	return weather.NewCachedProvider(provider, cfg.Weather.CacheTTL, clock, onResult)
}

func liveWeatherProvider(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) weather.Provider {
	meteo := instrumentProvider(metrics,
		openmeteo.NewClient(cfg.Weather.OpenMeteoBaseURL, cfg.Weather.Latitude, cfg.Weather.Longitude, cfg.Weather.ForecastHours))

	if cfg.Weather.OpenWeatherKey == "" {
		if cfg.Weather.Provider == "openweather" {
			logger.Warn("openweather selected but OPENWEATHER_API_KEY not set, using open-meteo only")
		}
		return meteo
	}

	openWeather := instrumentProvider(metrics,
		openweather.NewClient(cfg.Weather.OpenWeatherKey, "", cfg.Weather.Latitude, cfg.Weather.Longitude, cfg.Weather.ForecastHours))

	if cfg.Weather.Provider == "openmeteo" {
		return weather.NewFallbackProvider(meteo, openWeather, logger)
	}
	return weather.NewFallbackProvider(openWeather, meteo, logger)
}

// instrumentedProvider times upstream fetches and counts outcomes.
type instrumentedProvider struct {
	inner   weather.Provider
	metrics *observability.Metrics
}

func instrumentProvider(metrics *observability.Metrics, inner weather.Provider) weather.Provider {
	return &instrumentedProvider{inner: inner, metrics: metrics}
}

func (p *instrumentedProvider) Name() string {
	return p.inner.Name()
}

func (p *instrumentedProvider) Fetch(ctx context.Context) (weather.Snapshot, error) {
	start := time.Now()
	snap, err := p.inner.Fetch(ctx)
	p.metrics.WeatherFetchDuration.Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	p.metrics.WeatherFetches.WithLabelValues(p.inner.Name(), outcome).Inc()
	return snap, err
}

func provideWeatherSource(svc weather.Service) alert.WeatherSource {
	return svc
}

func provideSubscriberRepository(cfg *config.Config, logger *slog.Logger) alert.SubscriberRepository {
	fallback := subscriberrepo.NewMemoryRepository()
	dsn := strings.TrimSpace(cfg.Subscribers.PostgresDSN)
	if dsn == "" {
		logger.Info("subscribers postgres dsn not set, using memory repository")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repository", "error", err)
		return fallback
	}
	if cfg.Subscribers.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Subscribers.MaxConns
	}
	if cfg.Subscribers.MinConns > 0 {
		poolConfig.MinConns = cfg.Subscribers.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repository", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repository", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("subscriber postgres repository enabled")
	return subscriberrepo.NewPostgresRepository(pool)
}

func provideSuppressionStore(cfg *config.Config, logger *slog.Logger, clock clockwork.Clock) alert.SuppressionStore {
	addr := strings.TrimSpace(cfg.Gate.ValkeyAddr)
	if addr == "" {
		logger.Info("gate valkey addr not set, using memory suppression store")
		return alertgate.NewMemoryStore(clock)
	}
	opt, err := buildValkeyOptions(addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
		return alertgate.NewMemoryStore(clock)
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory store", "error", err)
		return alertgate.NewMemoryStore(clock)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory store", "error", err)
		return alertgate.NewMemoryStore(clock)
	}
	logger.Info("valkey suppression store enabled", "addr", addr)
	return alertgate.NewValkeyStore(client, "gustwatch")
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func provideGate(cfg *config.Config, store alert.SuppressionStore, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *alert.Gate {
	return alert.NewGate(alert.GateConfig{
		SuppressionWindow: cfg.Alerts.SuppressionWindow,
		DangerBypass:      cfg.Alerts.DangerBypassesSuppression,
	}, &instrumentedStore{inner: store, metrics: metrics}, clock, logger)
}

// instrumentedStore counts suppression hits on the shared store.
type instrumentedStore struct {
	inner   alert.SuppressionStore
	metrics *observability.Metrics
}

func (s *instrumentedStore) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	claimed, err := s.inner.Acquire(ctx, key, window)
	if err == nil && !claimed {
		s.metrics.AlertsSuppressed.Inc()
	}
	return claimed, err
}

func (s *instrumentedStore) Touch(ctx context.Context, key string, window time.Duration) error {
	return s.inner.Touch(ctx, key, window)
}

// provideSenders builds one adapter per channel with credentials in the
// environment. Missing credentials drop the channel with a log line; the
// pipeline reports missing keys when a send is attempted with none left.
func provideSenders(cfg *config.Config, logger *slog.Logger) []alert.ChannelSender {
	var senders []alert.ChannelSender

	if cfg.Notify.Resend.APIKey != "" {
		senders = append(senders, notify.NewEmailSender(cfg.Notify.Resend.APIKey, cfg.Notify.Resend.FromEmail, "", logger))
	} else {
		logger.Warn("email channel disabled", "missing", "RESEND_API_KEY")
	}

	tw := cfg.Notify.Twilio
	if tw.AccountSID != "" && tw.AuthToken != "" && tw.FromNumber != "" {
		senders = append(senders, notify.NewSMSSender(tw.AccountSID, tw.AuthToken, tw.FromNumber, "", logger))
	} else {
		logger.Warn("sms channel disabled", "missing", "TWILIO_ACCOUNT_SID/TWILIO_AUTH_TOKEN/TWILIO_FROM_NUMBER")
	}

	switch cfg.Notify.PushProvider {
	case "onesignal":
		os := cfg.Notify.OneSignal
		if os.AppID != "" && os.RESTAPIKey != "" {
			senders = append(senders, notify.NewOneSignalSender(os.AppID, os.RESTAPIKey, "", logger))
		} else {
			logger.Warn("push channel disabled", "missing", "ONESIGNAL_APP_ID/ONESIGNAL_REST_API_KEY")
		}
	default:
		wp := cfg.Notify.WebPush
		if wp.VAPIDPublicKey != "" && wp.VAPIDPrivateKey != "" {
			senders = append(senders, notify.NewWebPushSender(wp.VAPIDPublicKey, wp.VAPIDPrivateKey, wp.Subscriber, logger))
		} else {
			logger.Warn("push channel disabled", "missing", "VAPID_PUBLIC_KEY/VAPID_PRIVATE_KEY")
		}
	}

	return senders
}

func provideDispatcher(senders []alert.ChannelSender, logger *slog.Logger, metrics *observability.Metrics) *alert.Dispatcher {
	onSend := func(channel alert.Channel, ok bool) {
		outcome := "success"
		if !ok {
			outcome = "error"
		}
		metrics.AlertsSent.WithLabelValues(string(channel), outcome).Inc()
	}
	return alert.NewDispatcher(senders, logger, onSend)
}

func provideTokenSigner(cfg *config.Config) *alert.TokenSigner {
	return alert.NewTokenSigner(cfg.Alerts.UnsubscribeSecret, cfg.Alerts.UnsubscribeTTL)
}

func provideAlertService(cfg *config.Config, ws alert.WeatherSource, repo alert.SubscriberRepository, gate *alert.Gate, dispatcher *alert.Dispatcher, signer *alert.TokenSigner, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) alert.Service {
	onEvaluate := func(level alert.Level) {
		metrics.AlertsEvaluated.WithLabelValues(level.String()).Inc()
	}
	return alert.NewService(alert.Config{
		Lookahead:     cfg.Alerts.Lookahead,
		Place:         cfg.Weather.Place,
		BatchSize:     cfg.Alerts.BatchSize,
		BatchDelay:    cfg.Alerts.BatchDelay,
		PublicBaseURL: cfg.Alerts.PublicBaseURL,
		MissingKeys:   cfg.MissingNotifyKeys(),
	}, ws, repo, gate, dispatcher, signer, clock, logger, onEvaluate)
}
