package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestNew_RegistersAgainstInjectedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SignalsTotal.WithLabelValues("bot-1", "long").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "botcore_signals_total" {
			found = true
		}
	}
	if !found {
		t.Error("botcore_signals_total not registered")
	}

	// A second set against a fresh registry must not collide.
	_ = Discard()
	_ = Discard()
}

func TestHealth_DegradedWhenProbeFails(t *testing.T) {
	h := NewHealthStatus()
	h.SetFeedConnected("hyperliquid", true)
	h.SetLastCandle("bot-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	h.Check(context.Background(), "journal", pingFunc(func(context.Context) error { return nil }))
	if !h.Healthy() {
		t.Fatal("expected healthy")
	}

	h.Check(context.Background(), "redis", pingFunc(func(context.Context) error { return errors.New("refused") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
		Probes map[string]struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		} `json:"probes"`
		LastCandle map[string]string `json:"last_candle"`
	}
	if err := sonic.ConfigDefault.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" || body.Probes["redis"].Error != "refused" || !body.Probes["journal"].OK {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.LastCandle["bot-1"] != "2024-01-01T00:00:00Z" {
		t.Errorf("last candle = %q", body.LastCandle["bot-1"])
	}
}

func TestServer_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Evaluations.WithLabelValues("bot-1").Add(3)

	s := NewServer(":0", reg, NewHealthStatus(), zap.NewNop())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `botcore_evaluations_total{bot="bot-1"} 3`) {
		t.Errorf("metrics output missing evaluation counter:\n%s", rec.Body.String())
	}
}
