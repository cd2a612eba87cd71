package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("WEBHOOK_URL", "https://bot.example.com/")
	t.Setenv("MERCHANT_USERNAME", "shop")
}

func TestLoadFrom_LegacyEnvAndDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadFrom(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "shop", cfg.Payment.MerchantUsername)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "0.0005", cfg.Payment.Amount)
	assert.Equal(t, "BTC", cfg.Payment.Currency)
	assert.Equal(t, 15*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "polling", cfg.Telegram.Mode)
}

func TestLoadFrom_CallbackURLsRouteBackToService(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadFrom(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "https://bot.example.com/faucetpay_ipn", cfg.CallbackURL())
	assert.Equal(t, "https://bot.example.com/success", cfg.SuccessURL())
	assert.Equal(t, "https://bot.example.com/cancel", cfg.CancelURL())
	assert.Equal(t, "https://bot.example.com/telegram/webhook", cfg.TelegramWebhookURL())
}

func TestLoadFrom_NamespacedEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PAYMENT_TIMEOUT", "3s")
	t.Setenv("DATABASE_DRIVER", "pgx")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/randgate")
	t.Setenv("SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFrom(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@localhost/randgate", cfg.Database.DSN)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadFrom_ConfigFile(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("payment:\n  currency: LTC\n  amount: \"0.01\"\n"), 0o600))

	cfg, err := LoadFrom(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "LTC", cfg.Payment.Currency)
	assert.Equal(t, "0.01", cfg.Payment.Amount)
}

func TestLoadFrom_Validation(t *testing.T) {
	tests := []struct {
		name  string
		unset string
		env   map[string]string
	}{
		{name: "missing telegram token", unset: "TELEGRAM_TOKEN"},
		{name: "missing merchant", unset: "MERCHANT_USERNAME"},
		{name: "missing public url", unset: "WEBHOOK_URL"},
		{name: "bad driver", env: map[string]string{"DATABASE_DRIVER": "mysql"}},
		{name: "bad telegram mode", env: map[string]string{"TELEGRAM_MODE": "smoke"}},
		{name: "short jwt secret", env: map[string]string{"JWT_SECRET": "short"}},
		{name: "webhook mode without secret", env: map[string]string{"TELEGRAM_MODE": "webhook"}},
		{name: "short webhook secret", env: map[string]string{"TELEGRAM_MODE": "webhook", "TELEGRAM_WEBHOOK_SECRET": "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			if tt.unset != "" {
				t.Setenv(tt.unset, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadFrom(viper.New(), "")
			assert.Error(t, err)
		})
	}
}

func TestLoadFrom_WebhookSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TELEGRAM_MODE", "webhook")
	t.Setenv("TELEGRAM_WEBHOOK_SECRET", "0123456789abcdef-secret")

	cfg, err := LoadFrom(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "webhook", cfg.Telegram.Mode)
	assert.Equal(t, "0123456789abcdef-secret", cfg.Telegram.WebhookSecret)
}

func TestLoadTooling_SkipsRuntimeSections(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")

	cfg, err := LoadTooling()
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", cfg.Auth.JWTSecret)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)

	t.Setenv("DATABASE_DRIVER", "mysql")
	_, err = LoadTooling()
	assert.Error(t, err)
}
