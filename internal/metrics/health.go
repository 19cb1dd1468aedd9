package metrics

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency whose liveness can be probed (journal store, Redis, Postgres).
type Pinger interface {
	Ping(ctx context.Context) error
}

type probe struct {
	OK        bool    `json:"ok"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	feeds       map[string]bool      // source name → connected
	lastCandle  map[string]time.Time // bot id → last evaluated candle
	probes      map[string]probe
	lastCheckAt time.Time
	startedAt   time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		feeds:      make(map[string]bool),
		lastCandle: make(map[string]time.Time),
		probes:     make(map[string]probe),
		startedAt:  time.Now(),
	}
}

// SetFeedConnected records the connection state of a market data feed.
func (h *HealthStatus) SetFeedConnected(source string, v bool) {
	h.mu.Lock()
	h.feeds[source] = v
	h.mu.Unlock()
}

// SetLastCandle records the timestamp of the last candle a bot evaluated.
func (h *HealthStatus) SetLastCandle(botID string, t time.Time) {
	h.mu.Lock()
	h.lastCandle[botID] = t
	h.mu.Unlock()
}

// Check pings one dependency and records latency and result.
func (h *HealthStatus) Check(ctx context.Context, name string, p Pinger) {
	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start)

	pr := probe{OK: err == nil, LatencyMs: float64(latency.Microseconds()) / 1000.0}
	if err != nil {
		pr.Error = err.Error()
	}
	h.mu.Lock()
	h.probes[name] = pr
	h.lastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is cancelled.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, deps map[string]Pinger, interval time.Duration) {
	run := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		for name, p := range deps {
			h.Check(probeCtx, name, p)
		}
	}
	go func() {
		run()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}

// Healthy reports whether every probed dependency and every feed is up.
func (h *HealthStatus) Healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthyLocked()
}

func (h *HealthStatus) healthyLocked() bool {
	for _, ok := range h.feeds {
		if !ok {
			return false
		}
	}
	for _, p := range h.probes {
		if !p.OK {
			return false
		}
	}
	return true
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.healthyLocked() {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	bots := make([]string, 0, len(h.lastCandle))
	for id := range h.lastCandle {
		bots = append(bots, id)
	}
	sort.Strings(bots)
	lastCandle := make(map[string]string, len(bots))
	for _, id := range bots {
		lastCandle[id] = h.lastCandle[id].Format(time.RFC3339)
	}

	status := struct {
		Status      string            `json:"status"`
		Uptime      string            `json:"uptime"`
		Feeds       map[string]bool   `json:"feeds"`
		LastCandle  map[string]string `json:"last_candle"`
		Probes      map[string]probe  `json:"probes"`
		LastCheckAt string            `json:"last_check_at"`
	}{
		Status:      overallStatus,
		Uptime:      time.Since(h.startedAt).Round(time.Second).String(),
		Feeds:       h.feeds,
		LastCandle:  lastCandle,
		Probes:      h.probes,
		LastCheckAt: h.lastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  *zap.Logger
}

// NewServer creates a metrics and health server serving metrics from g.
func NewServer(addr string, g prometheus.Gatherer, health *HealthStatus, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		log:  log,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler exposes the mux, for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", zap.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("metrics server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
