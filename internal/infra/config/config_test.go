package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, ":8080", cfg.HTTP.Address)
	require.Equal(t, 120*time.Second, cfg.Weather.CacheTTL)
	require.Equal(t, 30*time.Minute, cfg.Alerts.SuppressionWindow)
	require.Equal(t, 5, cfg.Alerts.BatchSize)
	require.True(t, cfg.Alerts.DangerBypassesSuppression)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":9090")
	t.Setenv("WEATHER_PROVIDER", "openmeteo")
	t.Setenv("OPENWEATHER_API_KEY", "abc123")
	t.Setenv("ALERT_SUPPRESSION_WINDOW", "15m")
	t.Setenv("ALERT_DANGER_BYPASS", "false")
	t.Setenv("ALLOWED_ORIGIN", "https://a.example, https://b.example")
	t.Setenv("HTTP_RATE_LIMIT", "10")
	t.Setenv("WEATHER_ADJUSTMENT_FACTOR", "0.8")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	require.NoError(t, cfg.Validate())

	require.Equal(t, ":9090", cfg.HTTP.Address)
	require.Equal(t, "openmeteo", cfg.Weather.Provider)
	require.Equal(t, "abc123", cfg.Weather.OpenWeatherKey)
	require.Equal(t, 15*time.Minute, cfg.Alerts.SuppressionWindow)
	require.False(t, cfg.Alerts.DangerBypassesSuppression)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	require.Equal(t, 10, cfg.HTTP.RateLimit.Limit)
	require.Equal(t, 0.8, cfg.Weather.AdjustmentFactor)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := defaultConfig()
	cfg.Weather.Provider = "darksky"
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Weather.AdjustmentFactor = 0
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Notify.PushProvider = "apns"
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.HTTP.RateLimit.Limit = 0
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Poll.Enabled = true
	cfg.Poll.Interval = 0
	require.Error(t, cfg.Validate())
}

func TestMissingNotifyKeys(t *testing.T) {
	cfg := defaultConfig()
	missing := cfg.MissingNotifyKeys()
	require.Contains(t, missing, "RESEND_API_KEY")
	require.Contains(t, missing, "TWILIO_ACCOUNT_SID")
	require.Contains(t, missing, "VAPID_PUBLIC_KEY")

	cfg.Notify.Resend.APIKey = "re_123"
	cfg.Notify.Resend.FromEmail = "alerts@gustwatch.test"
	cfg.Notify.Twilio = TwilioConfig{AccountSID: "AC1", AuthToken: "tok", FromNumber: "+1000"}
	cfg.Notify.WebPush = WebPushConfig{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv"}
	require.Empty(t, cfg.MissingNotifyKeys())
}
