// Package config loads process configuration from the environment, with an
// optional .env file for local runs.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Journal drivers.
const (
	JournalMemory   = "memory"
	JournalSQLite   = "sqlite"
	JournalRedis    = "redis"
	JournalPostgres = "postgres"
)

// Config holds all process configuration.
type Config struct {
	LogLevel       string
	TracingEnabled bool

	// Bot definitions (YAML files, glob)
	BotConfigs    string
	CritiqueEvery int
	WindowSize    int

	// Storage
	JournalDriver string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	PostgresDSN   string

	// Market data
	HyperliquidAPIURL string
	HyperliquidWSURL  string

	// Surfaces
	HTTPAddr    string
	MetricsAddr string

	// Notifications
	TelegramBotToken string
	TelegramChatID   int64
	WebhookURL       string

	// Operator passcode for manual tuning (TOTP secret, base32)
	OperatorTOTPSecret string

	ShutdownTimeout time.Duration
}

var defaults = map[string]any{
	"LOG_LEVEL":            "info",
	"TRACING_ENABLED":      false,
	"BOT_CONFIGS":          "configs/bots/*.yaml",
	"CRITIQUE_EVERY":       5,
	"WINDOW_SIZE":          512,
	"JOURNAL_DRIVER":       JournalSQLite,
	"SQLITE_PATH":          "data/botcore.db",
	"REDIS_ADDR":           "localhost:6379",
	"REDIS_PASSWORD":       "",
	"POSTGRES_DSN":         "",
	"HYPERLIQUID_API_URL":  "https://api.hyperliquid.xyz",
	"HYPERLIQUID_WS_URL":   "wss://api.hyperliquid.xyz/ws",
	"HTTP_ADDR":            ":8080",
	"METRICS_ADDR":         ":9090",
	"TELEGRAM_BOT_TOKEN":   "",
	"TELEGRAM_CHAT_ID":     0,
	"WEBHOOK_URL":          "",
	"OPERATOR_TOTP_SECRET": "",
	"SHUTDOWN_TIMEOUT":     "10s",
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LogLevel:           v.GetString("LOG_LEVEL"),
		TracingEnabled:     v.GetBool("TRACING_ENABLED"),
		BotConfigs:         v.GetString("BOT_CONFIGS"),
		CritiqueEvery:      v.GetInt("CRITIQUE_EVERY"),
		WindowSize:         v.GetInt("WINDOW_SIZE"),
		JournalDriver:      strings.ToLower(v.GetString("JOURNAL_DRIVER")),
		SQLitePath:         v.GetString("SQLITE_PATH"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		PostgresDSN:        v.GetString("POSTGRES_DSN"),
		HyperliquidAPIURL:  v.GetString("HYPERLIQUID_API_URL"),
		HyperliquidWSURL:   v.GetString("HYPERLIQUID_WS_URL"),
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		MetricsAddr:        v.GetString("METRICS_ADDR"),
		TelegramBotToken:   v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:     v.GetInt64("TELEGRAM_CHAT_ID"),
		WebhookURL:         v.GetString("WEBHOOK_URL"),
		OperatorTOTPSecret: v.GetString("OPERATOR_TOTP_SECRET"),
		ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.JournalDriver {
	case JournalMemory, JournalSQLite, JournalRedis:
	case JournalPostgres:
		if c.PostgresDSN == "" {
			return errors.New("config: POSTGRES_DSN is required for the postgres journal")
		}
	default:
		return errors.Errorf("config: unknown JOURNAL_DRIVER %q", c.JournalDriver)
	}
	if c.CritiqueEvery <= 0 {
		return errors.Errorf("config: CRITIQUE_EVERY must be positive, got %d", c.CritiqueEvery)
	}
	if c.WindowSize < 2 {
		return errors.Errorf("config: WINDOW_SIZE must be at least 2, got %d", c.WindowSize)
	}
	if (c.TelegramBotToken == "") != (c.TelegramChatID == 0) {
		return errors.New("config: TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	return nil
}
