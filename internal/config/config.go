// Package config loads the bot's configuration from the environment.
//
// Every setting is a BOT_-prefixed environment variable. A .env file in the
// working directory is loaded first if present, so local runs only need:
//
//	BOT_TOKEN=123456:ABC...
//	BOT_ADMIN_IDS=7758708579,2009509228
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "bot"

// Transport modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config is the full runtime configuration.
type Config struct {
	// Token is the Telegram Bot API credential.
	Token string `envconfig:"TOKEN" required:"true"`

	// Mode selects the delivery transport: "polling" or "webhook".
	Mode string `envconfig:"MODE" default:"polling"`

	// StoreDriver selects the record store: "sqlite" or "mongo".
	StoreDriver string `envconfig:"STORE_DRIVER" default:"sqlite"`
	DBPath      string `envconfig:"DB_PATH" default:"data/snippetbot.db"`
	MongoURI    string `envconfig:"MONGO_URI"`
	DBName      string `envconfig:"DB_NAME" default:"telegram_bot"`

	// WebhookURL is the public base URL Telegram will POST updates to. The
	// route /webhook/<WebhookSecret> is appended to it.
	WebhookURL    string `envconfig:"WEBHOOK_URL"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`

	// HTTPPort serves /healthz and /metrics (and the webhook in webhook mode).
	// Zero disables the HTTP server in polling mode; webhook mode defaults it to 8080.
	HTTPPort int `envconfig:"HTTP_PORT"`

	// Username overrides the bot name used in deep links. When empty the
	// name reported by the Bot API is used.
	Username string `envconfig:"USERNAME"`
	LinkHost string `envconfig:"LINK_HOST" default:"t.me"`

	// AdminIDs are promoted in the store at startup. The store stays the only
	// source of truth for privilege checks.
	AdminIDs []int64 `envconfig:"ADMIN_IDS"`

	BroadcastRate        float64 `envconfig:"BROADCAST_RATE" default:"25"`
	BroadcastConcurrency int     `envconfig:"BROADCAST_CONCURRENCY" default:"8"`

	PollTimeout int `envconfig:"POLL_TIMEOUT" default:"60"`
	Workers     int `envconfig:"WORKERS" default:"16"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// Load reads an optional .env file and then the BOT_* environment.
// A missing .env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.Mode == ModeWebhook && cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8080
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the cross-field rules envconfig tags cannot express.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.WebhookURL == "" {
			return errors.New("config: BOT_WEBHOOK_URL is required in webhook mode")
		}
		if c.WebhookSecret == "" {
			return errors.New("config: BOT_WEBHOOK_SECRET is required in webhook mode")
		}
	default:
		return fmt.Errorf("config: BOT_MODE must be %q or %q, got %q", ModePolling, ModeWebhook, c.Mode)
	}

	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("config: BOT_DB_PATH must not be empty")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("config: BOT_MONGO_URI is required when BOT_STORE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("config: BOT_STORE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverMongo, c.StoreDriver)
	}

	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("config: BOT_HTTP_PORT out of range: %d", c.HTTPPort)
	}
	if c.BroadcastConcurrency < 1 {
		return errors.New("config: BOT_BROADCAST_CONCURRENCY must be at least 1")
	}
	if c.Workers < 1 {
		return errors.New("config: BOT_WORKERS must be at least 1")
	}

	return nil
}

// WebhookEndpoint is the full URL registered with Telegram.
func (c *Config) WebhookEndpoint() string {
	return strings.TrimRight(c.WebhookURL, "/") + "/webhook/" + c.WebhookSecret
}

// SlogLevel maps LogLevel onto slog levels, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
