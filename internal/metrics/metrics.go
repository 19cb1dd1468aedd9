package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the bot service.
type Metrics struct {
	// Strategy engine
	Evaluations  *prometheus.CounterVec // labels: bot
	SignalsTotal *prometheus.CounterVec // labels: bot, action
	EvalDur      prometheus.Histogram

	// Journal storage
	JournalAppendDur *prometheus.HistogramVec // labels: store
	JournalErrors    *prometheus.CounterVec   // labels: store, op

	// Market data
	CandlesTotal     *prometheus.CounterVec // labels: source
	WSReconnects     *prometheus.CounterVec // labels: source
	FanoutDropsTotal *prometheus.CounterVec // labels: subscriber
	FanoutBacklog    *prometheus.GaugeVec   // labels: subscriber

	// Execution and critique
	TradesClosed    *prometheus.CounterVec // labels: bot, outcome=win|loss
	CritiqueRuns    *prometheus.CounterVec // labels: bot
	Recommendations *prometheus.CounterVec // labels: param
	ParamChanges    *prometheus.CounterVec // labels: bot, param

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botcore_evaluations_total",
			Help: "Candle windows evaluated by the strategy engine",
		}, []string{"bot"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botcore_signals_total",
			Help: "Signals emitted (by action)",
		}, []string{"bot", "action"}),
		EvalDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "botcore_eval_duration_seconds",
			Help:    "Strategy engine latency per evaluation",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),

		JournalAppendDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "botcore_journal_append_duration_seconds",
			Help:    "Journal append latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"store"}),
		JournalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botcore_journal_errors_total",
			Help: "Journal storage errors",
		}, []string{"store", "op"}),

		CandlesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botcore_candles_total",
			Help: "Closed candles received from market data sources",
		}, []string{"source"}),
		WSReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botcore_ws_reconnects_total",
			Help: "WebSocket reconnection attempts",
		}, []string{"source"}),
		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botcore_fanout_drops_total",
			Help: "Candles dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		FanoutBacklog: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "botcore_fanout_backlog",
			Help: "Candles queued for each fan-out subscriber",
		}, []string{"subscriber"}),

		TradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botcore_trades_closed_total",
			Help: "Paper trades closed (by outcome)",
		}, []string{"bot", "outcome"}),
		CritiqueRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botcore_critique_runs_total",
			Help: "Critique cycles completed",
		}, []string{"bot"}),
		Recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botcore_recommendations_total",
			Help: "Parameter recommendations produced (by parameter)",
		}, []string{"param"}),
		ParamChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botcore_param_changes_total",
			Help: "Recommendations applied to a bot configuration",
		}, []string{"bot", "param"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "botcore_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botcore_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.Evaluations,
		m.SignalsTotal,
		m.EvalDur,
		m.JournalAppendDur,
		m.JournalErrors,
		m.CandlesTotal,
		m.WSReconnects,
		m.FanoutDropsTotal,
		m.FanoutBacklog,
		m.TradesClosed,
		m.CritiqueRuns,
		m.Recommendations,
		m.ParamChanges,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)

	return m
}

// Discard returns metrics registered against a private registry, for
// components constructed without a shared one (tests, one-off tools).
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}
