package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Weather     WeatherConfig     `yaml:"weather"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Notify      NotifyConfig      `yaml:"notify"`
	Subscribers SubscribersConfig `yaml:"subscribers"`
	Gate        GateConfig        `yaml:"gate"`
	Poll        PollConfig        `yaml:"poll"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig drives the fixed-window request limiter.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int           `yaml:"limit"`
	Window  time.Duration `yaml:"window"`
}

// WeatherConfig selects and tunes the weather provider chain.
type WeatherConfig struct {
	Provider         string        `yaml:"provider"` // openweather | openmeteo
	MockData         bool          `yaml:"mockData"`
	OpenWeatherKey   string        `yaml:"openWeatherKey"`
	OpenMeteoBaseURL string        `yaml:"openMeteoBaseUrl"`
	Latitude         float64       `yaml:"latitude"`
	Longitude        float64       `yaml:"longitude"`
	Place            string        `yaml:"place"`
	CacheTTL         time.Duration `yaml:"cacheTtl"`
	AdjustmentFactor float64       `yaml:"adjustmentFactor"`
	ForecastHours    int           `yaml:"forecastHours"`
}

// AlertsConfig tunes the evaluate-gate-dispatch pipeline.
type AlertsConfig struct {
	Lookahead                 time.Duration `yaml:"lookahead"`
	SuppressionWindow         time.Duration `yaml:"suppressionWindow"`
	DangerBypassesSuppression bool          `yaml:"dangerBypassesSuppression"`
	BatchSize                 int           `yaml:"batchSize"`
	BatchDelay                time.Duration `yaml:"batchDelay"`
	PublicBaseURL             string        `yaml:"publicBaseUrl"`
	UnsubscribeSecret         string        `yaml:"unsubscribeSecret"`
	UnsubscribeTTL            time.Duration `yaml:"unsubscribeTtl"`
}

// NotifyConfig carries the channel provider credentials.
type NotifyConfig struct {
	PushProvider string          `yaml:"pushProvider"` // onesignal | webpush
	OneSignal    OneSignalConfig `yaml:"onesignal"`
	Twilio       TwilioConfig    `yaml:"twilio"`
	Resend       ResendConfig    `yaml:"resend"`
	WebPush      WebPushConfig   `yaml:"webpush"`
}

type OneSignalConfig struct {
	AppID      string `yaml:"appId"`
	RESTAPIKey string `yaml:"restApiKey"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"accountSid"`
	AuthToken  string `yaml:"authToken"`
	FromNumber string `yaml:"fromNumber"`
}

type ResendConfig struct {
	APIKey    string `yaml:"apiKey"`
	FromEmail string `yaml:"fromEmail"`
}

type WebPushConfig struct {
	VAPIDPublicKey  string `yaml:"vapidPublicKey"`
	VAPIDPrivateKey string `yaml:"vapidPrivateKey"`
	Subscriber      string `yaml:"subscriber"`
}

// SubscribersConfig contains DSN and pooling settings.
type SubscribersConfig struct {
	PostgresDSN string `yaml:"postgresDsn"`
	MaxConns    int32  `yaml:"maxConns"`
	MinConns    int32  `yaml:"minConns"`
}

// GateConfig selects the suppression store backend.
type GateConfig struct {
	ValkeyAddr string `yaml:"valkeyAddr"`
}

// PollConfig drives the background alert cycle.
type PollConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.HTTP.Address, "HTTP_ADDRESS")
	if v := os.Getenv("ALLOWED_ORIGIN"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.HTTP.AllowedOrigins = origins
	}
	setBool(&cfg.HTTP.RateLimit.Enabled, "HTTP_RATE_LIMIT_ENABLED")
	setInt(&cfg.HTTP.RateLimit.Limit, "HTTP_RATE_LIMIT")
	setDuration(&cfg.HTTP.RateLimit.Window, "HTTP_RATE_LIMIT_WINDOW")

	setString(&cfg.Weather.Provider, "WEATHER_PROVIDER")
	setBool(&cfg.Weather.MockData, "WEATHER_MOCK")
	setString(&cfg.Weather.OpenWeatherKey, "OPENWEATHER_API_KEY")
	setString(&cfg.Weather.OpenMeteoBaseURL, "OPENMETEO_BASE_URL")
	setFloat(&cfg.Weather.Latitude, "WEATHER_LAT")
	setFloat(&cfg.Weather.Longitude, "WEATHER_LON")
	setString(&cfg.Weather.Place, "WEATHER_PLACE")
	setDuration(&cfg.Weather.CacheTTL, "WEATHER_CACHE_TTL")
	setFloat(&cfg.Weather.AdjustmentFactor, "WEATHER_ADJUSTMENT_FACTOR")
	setInt(&cfg.Weather.ForecastHours, "WEATHER_FORECAST_HOURS")

	setDuration(&cfg.Alerts.Lookahead, "ALERT_LOOKAHEAD")
	setDuration(&cfg.Alerts.SuppressionWindow, "ALERT_SUPPRESSION_WINDOW")
	setBool(&cfg.Alerts.DangerBypassesSuppression, "ALERT_DANGER_BYPASS")
	setInt(&cfg.Alerts.BatchSize, "ALERT_BATCH_SIZE")
	setDuration(&cfg.Alerts.BatchDelay, "ALERT_BATCH_DELAY")
	setString(&cfg.Alerts.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&cfg.Alerts.UnsubscribeSecret, "UNSUBSCRIBE_SECRET")
	setDuration(&cfg.Alerts.UnsubscribeTTL, "UNSUBSCRIBE_TTL")

	setString(&cfg.Notify.PushProvider, "PUSH_PROVIDER")
	setString(&cfg.Notify.OneSignal.AppID, "ONESIGNAL_APP_ID")
	setString(&cfg.Notify.OneSignal.RESTAPIKey, "ONESIGNAL_REST_API_KEY")
	setString(&cfg.Notify.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&cfg.Notify.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&cfg.Notify.Twilio.FromNumber, "TWILIO_FROM_NUMBER")
	setString(&cfg.Notify.Resend.APIKey, "RESEND_API_KEY")
	setString(&cfg.Notify.Resend.FromEmail, "ALERT_FROM_EMAIL")
	setString(&cfg.Notify.WebPush.VAPIDPublicKey, "VAPID_PUBLIC_KEY")
	setString(&cfg.Notify.WebPush.VAPIDPrivateKey, "VAPID_PRIVATE_KEY")
	setString(&cfg.Notify.WebPush.Subscriber, "VAPID_SUBSCRIBER")

	setString(&cfg.Subscribers.PostgresDSN, "SUBSCRIBERS_POSTGRES_DSN")
	setInt32(&cfg.Subscribers.MaxConns, "SUBSCRIBERS_POSTGRES_MAX_CONNS")
	setInt32(&cfg.Subscribers.MinConns, "SUBSCRIBERS_POSTGRES_MIN_CONNS")

	setString(&cfg.Gate.ValkeyAddr, "GATE_VALKEY_ADDR")

	setBool(&cfg.Poll.Enabled, "POLL_ENABLED")
	setDuration(&cfg.Poll.Interval, "POLL_INTERVAL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = int32(parsed)
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				Limit:   5,
				Window:  time.Minute,
			},
		},
		Weather: WeatherConfig{
			Provider:         "openweather",
			OpenMeteoBaseURL: "https://api.open-meteo.com/v1",
			Latitude:         55.6761,
			Longitude:        12.5683,
			Place:            "Copenhagen Harbor",
			CacheTTL:         120 * time.Second,
			AdjustmentFactor: 1.0,
			ForecastHours:    8,
		},
		Alerts: AlertsConfig{
			Lookahead:                 8 * time.Hour,
			SuppressionWindow:         30 * time.Minute,
			DangerBypassesSuppression: true,
			BatchSize:                 5,
			BatchDelay:                time.Second,
			UnsubscribeTTL:            30 * 24 * time.Hour,
		},
		Notify: NotifyConfig{
			PushProvider: "webpush",
		},
		Subscribers: SubscribersConfig{
			MaxConns: 4,
		},
		Poll: PollConfig{
			Enabled:  false,
			Interval: 10 * time.Minute,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.Limit <= 0 {
			return errors.New("http.rateLimit.limit must be positive")
		}
		if c.HTTP.RateLimit.Window <= 0 {
			return errors.New("http.rateLimit.window must be positive")
		}
	}
	switch c.Weather.Provider {
	case "openweather", "openmeteo":
	default:
		return fmt.Errorf("weather.provider must be openweather or openmeteo, got %q", c.Weather.Provider)
	}
	if c.Weather.AdjustmentFactor <= 0 {
		return errors.New("weather.adjustmentFactor must be positive")
	}
	if c.Weather.CacheTTL < 0 {
		return errors.New("weather.cacheTtl cannot be negative")
	}
	if c.Weather.ForecastHours <= 0 {
		return errors.New("weather.forecastHours must be positive")
	}
	if c.Alerts.Lookahead <= 0 {
		return errors.New("alerts.lookahead must be positive")
	}
	if c.Alerts.SuppressionWindow <= 0 {
		return errors.New("alerts.suppressionWindow must be positive")
	}
	if c.Alerts.BatchSize <= 0 {
		return errors.New("alerts.batchSize must be positive")
	}
	switch c.Notify.PushProvider {
	case "onesignal", "webpush":
	default:
		return fmt.Errorf("notify.pushProvider must be onesignal or webpush, got %q", c.Notify.PushProvider)
	}
	if c.Poll.Enabled && c.Poll.Interval <= 0 {
		return errors.New("poll.interval must be positive when polling is enabled")
	}
	return nil
}

// MissingNotifyKeys names the credential env keys absent for every
// channel that could not be configured. Used to produce the explicit
// missing-config error instead of a silent no-op.
func (c *Config) MissingNotifyKeys() []string {
	var missing []string
	if c.Notify.Resend.APIKey == "" {
		missing = append(missing, "RESEND_API_KEY")
	}
	if c.Notify.Resend.FromEmail == "" {
		missing = append(missing, "ALERT_FROM_EMAIL")
	}
	if c.Notify.Twilio.AccountSID == "" || c.Notify.Twilio.AuthToken == "" || c.Notify.Twilio.FromNumber == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER")
	}
	switch c.Notify.PushProvider {
	case "onesignal":
		if c.Notify.OneSignal.AppID == "" || c.Notify.OneSignal.RESTAPIKey == "" {
			missing = append(missing, "ONESIGNAL_APP_ID", "ONESIGNAL_REST_API_KEY")
		}
	case "webpush":
		if c.Notify.WebPush.VAPIDPublicKey == "" || c.Notify.WebPush.VAPIDPrivateKey == "" {
			missing = append(missing, "VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY")
		}
	}
	return missing
}
