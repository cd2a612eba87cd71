package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port" validate:"required,min=1,max=65535"`
	PublicURL   string   `mapstructure:"public_url" validate:"required,url"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type TelegramConfig struct {
	Token         string        `mapstructure:"token" validate:"required"`
	Mode          string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Workers       int64         `mapstructure:"workers" validate:"min=1"`
	SendTimeout   time.Duration `mapstructure:"send_timeout" validate:"gt=0"`
	PollTimeout   int           `mapstructure:"poll_timeout" validate:"min=0,max=60"`
	WebhookSecret string        `mapstructure:"webhook_secret" validate:"required_if=Mode webhook,omitempty,min=16,max=256"`
}

type PaymentConfig struct {
	BaseURL          string        `mapstructure:"base_url" validate:"required,url"`
	MerchantUsername string        `mapstructure:"merchant_username" validate:"required"`
	APIKey           string        `mapstructure:"api_key"`
	ItemDescription  string        `mapstructure:"item_description" validate:"required"`
	Amount           string        `mapstructure:"amount" validate:"required,numeric"`
	Currency         string        `mapstructure:"currency" validate:"required,alphanum"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"gt=0"`
	EnforceAmount    bool          `mapstructure:"enforce_amount"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite3 pgx"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=16"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" validate:"gt=0"`
	Burst int     `mapstructure:"burst" validate:"min=1"`
}

// Callback, success and cancel URLs all route back to this service.
func (c *Config) CallbackURL() string { return c.baseURL() + "/faucetpay_ipn" }
func (c *Config) SuccessURL() string  { return c.baseURL() + "/success" }
func (c *Config) CancelURL() string   { return c.baseURL() + "/cancel" }

// TelegramWebhookURL is registered with Telegram in webhook mode.
func (c *Config) TelegramWebhookURL() string { return c.baseURL() + "/telegram/webhook" }

func (c *Config) baseURL() string {
	return strings.TrimRight(c.Server.PublicURL, "/")
}

// legacyEnv maps the deployment's historical variable names onto config keys.
var legacyEnv = map[string]string{
	"server.port":               "PORT",
	"server.public_url":         "WEBHOOK_URL",
	"telegram.token":            "TELEGRAM_TOKEN",
	"payment.merchant_username": "MERCHANT_USERNAME",
	"payment.api_key":           "FAUCETPAY_API_KEY",
	"database.dsn":              "DATABASE_URL",
	"auth.jwt_secret":           "JWT_SECRET",
	"telegram.webhook_secret":   "TELEGRAM_WEBHOOK_SECRET",
	"redis.addr":                "REDIS_ADDR",
}

// Load reads .env (if present), an optional config file and the environment.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	return LoadFrom(viper.New(), os.Getenv("RANDGATE_CONFIG"))
}

// LoadTooling reads the same sources as Load but only validates the sections
// operator tooling uses, so it works without Telegram or payment settings.
func LoadTooling() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := read(viper.New(), os.Getenv("RANDGATE_CONFIG"))
	if err != nil {
		return nil, err
	}
	validate := validator.New()
	for _, section := range []any{&cfg.Database, &cfg.Auth, &cfg.Log} {
		if err := validate.Struct(section); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}

// LoadFrom builds the configuration on the given viper instance. configFile
// may be empty.
func LoadFrom(v *viper.Viper, configFile string) (*Config, error) {
	cfg, err := read(v, configFile)
	if err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func read(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Server.CORSOrigins = splitOrigins(cfg.Server.CORSOrigins)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("telegram.mode", "polling")
	v.SetDefault("telegram.workers", 16)
	v.SetDefault("telegram.send_timeout", 10*time.Second)
	v.SetDefault("telegram.poll_timeout", 50)
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("payment.base_url", "https://faucetpay.io")
	v.SetDefault("payment.item_description", "Random number generator access")
	v.SetDefault("payment.amount", "0.0005")
	v.SetDefault("payment.currency", "BTC")
	v.SetDefault("payment.timeout", 15*time.Second)
	v.SetDefault("payment.enforce_amount", false)
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "file:randgate.db?_busy_timeout=5000&_journal_mode=WAL")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ratelimit.rps", 20)
	v.SetDefault("ratelimit.burst", 40)
}

// splitOrigins accepts both a list and a single comma separated env value.
func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, o := range strings.Split(item, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}
