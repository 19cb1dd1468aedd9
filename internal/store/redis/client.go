// Package redis keeps bot journals and published signals in Redis Streams,
// guarded by a circuit breaker.
package redis

import (
	"context"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"trading-botcore/internal/metrics"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int

	// Breaker settings; zero values use 5 failures and 10s.
	MaxFailures  int
	ResetTimeout time.Duration
}

// Client wraps a go-redis client with a circuit breaker.
type Client struct {
	rdb     *goredis.Client
	breaker *CircuitBreaker
	log     *zap.Logger
}

// New connects to Redis and pings the server.
func New(cfg Config, log *zap.Logger, m *metrics.Metrics) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = 10 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}

	cb := NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout)
	cb.OnStateChange = func(from, to State) {
		m.RedisCircuitBreakerState.Set(float64(to))
		if to == StateOpen {
			m.RedisCircuitBreakerTrips.Inc()
		}
		log.Warn("circuit breaker transition",
			zap.Stringer("from", from), zap.Stringer("to", to))
	}

	log.Info("connected", zap.String("addr", cfg.Addr))
	return &Client{rdb: rdb, breaker: cb, log: log}, nil
}

// Ping checks connectivity without going through the breaker.
func (c *Client) Ping(ctx context.Context) error {
	return errors.Wrap(c.rdb.Ping(ctx).Err(), "redis ping")
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

// Close closes the connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

func (c *Client) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.breaker.Execute(ctx, fn)
}
