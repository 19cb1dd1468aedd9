package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.JournalDriver != JournalSQLite || cfg.CritiqueEvery != 5 || cfg.WindowSize != 512 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ShutdownTimeout != 10*time.Second || cfg.HTTPAddr != ":8080" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("JOURNAL_DRIVER", "Redis")
	t.Setenv("CRITIQUE_EVERY", "3")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001")
	t.Setenv("SHUTDOWN_TIMEOUT", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.JournalDriver != JournalRedis || cfg.CritiqueEvery != 3 || !cfg.TracingEnabled {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.TelegramChatID != -1001 || cfg.ShutdownTimeout != 2*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"driver", map[string]string{"JOURNAL_DRIVER": "mongo"}, "JOURNAL_DRIVER"},
		{"postgres dsn", map[string]string{"JOURNAL_DRIVER": "postgres"}, "POSTGRES_DSN"},
		{"critique every", map[string]string{"CRITIQUE_EVERY": "0"}, "CRITIQUE_EVERY"},
		{"window", map[string]string{"WINDOW_SIZE": "1"}, "WINDOW_SIZE"},
		{"telegram", map[string]string{"TELEGRAM_BOT_TOKEN": "tok"}, "TELEGRAM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
