// Package hyperliquid reads candles from the Hyperliquid info API and its
// WebSocket candle feed.
package hyperliquid

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"trading-botcore/internal/marketdata"
	"trading-botcore/internal/metrics"
	"trading-botcore/internal/model"
)

const (
	DefaultAPIURL = "https://api.hyperliquid.xyz"
	DefaultWSURL  = "wss://api.hyperliquid.xyz/ws"

	// maxSnapshot is the largest candleSnapshot the venue serves.
	maxSnapshot = 5000
)

// Config configures a Source.
type Config struct {
	APIURL string
	WSURL  string

	// PingInterval keeps the socket alive; the venue drops idle clients
	// after 60s. Default: 30s.
	PingInterval time.Duration
	// ReconnectMin and ReconnectMax bound the reconnect backoff.
	// Defaults: 1s and 30s.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Source is a marketdata.Source for Hyperliquid perpetuals.
type Source struct {
	cfg     Config
	http    *http.Client
	dialer  *websocket.Dialer
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// OnConnected is called whenever the feed connects or drops.
	OnConnected func(connected bool)
}

var _ marketdata.Source = (*Source)(nil)

// New creates a Source. Zero config fields take the defaults.
func New(cfg Config, log *zap.Logger, m *metrics.Metrics) *Source {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.WSURL == "" {
		cfg.WSURL = DefaultWSURL
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReconnectMin == 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax == 0 {
		cfg.ReconnectMax = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Source{
		cfg:     cfg,
		http:    &http.Client{Timeout: 10 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

func (s *Source) Name() string { return "hyperliquid" }

// wireCandle is the venue's candle object, shared by REST and WebSocket.
// Prices and volume are decimal strings.
type wireCandle struct {
	Open      int64  `json:"t"` // bar open, ms
	Close     int64  `json:"T"` // bar close, ms
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	O         string `json:"o"`
	C         string `json:"c"`
	H         string `json:"h"`
	L         string `json:"l"`
	V         string `json:"v"`
	NumTrades int    `json:"n"`
}

func (w *wireCandle) candle() (model.Candle, error) {
	var (
		vals [5]float64
		err  error
	)
	for i, s := range [5]string{w.O, w.H, w.L, w.C, w.V} {
		if vals[i], err = strconv.ParseFloat(s, 64); err != nil {
			return model.Candle{}, errors.Wrapf(err, "hyperliquid: candle %s@%d", w.Symbol, w.Open)
		}
	}
	return model.Candle{
		Symbol:    w.Symbol,
		Timeframe: w.Interval,
		Timestamp: time.UnixMilli(w.Open).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

type snapshotRequest struct {
	Type string      `json:"type"`
	Req  snapshotReq `json:"req"`
}

type snapshotReq struct {
	Coin      string `json:"coin"`
	Interval  string `json:"interval"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

// Candles fetches closed candles through the candleSnapshot info request.
// The still-forming bar the venue includes is dropped.
func (s *Source) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	step, err := marketdata.TimeframeDuration(timeframe)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxSnapshot {
		limit = maxSnapshot
	}
	now := s.now()
	start := now.Add(-time.Duration(limit+1) * step)

	body, err := sonic.Marshal(snapshotRequest{
		Type: "candleSnapshot",
		Req: snapshotReq{
			Coin:      symbol,
			Interval:  timeframe,
			StartTime: start.UnixMilli(),
			EndTime:   now.UnixMilli(),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "hyperliquid: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL+"/info", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "hyperliquid: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "hyperliquid: candleSnapshot")
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "hyperliquid: read response")
	}
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("hyperliquid: candleSnapshot http %d: %s", resp.StatusCode, b)
	}

	var rows []wireCandle
	if err := sonic.Unmarshal(b, &rows); err != nil {
		return nil, errors.Wrap(err, "hyperliquid: decode candles")
	}

	out := make([]model.Candle, 0, len(rows))
	for i := range rows {
		// bar still open
		if time.UnixMilli(rows[i].Open).Add(step).After(now) {
			continue
		}
		c, err := rows[i].candle()
		if err != nil {
			return nil, err
		}
		if c.Symbol == "" {
			c.Symbol = symbol
		}
		if c.Timeframe == "" {
			c.Timeframe = timeframe
		}
		out = append(out, c)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
