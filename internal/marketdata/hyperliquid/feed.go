package hyperliquid

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"trading-botcore/internal/marketdata"
	"trading-botcore/internal/marketdata/closedetector"
	"trading-botcore/internal/model"
)

type subscribeMsg struct {
	Method       string        `json:"method"`
	Subscription *subscription `json:"subscription,omitempty"`
}

type subscription struct {
	Type     string `json:"type"`
	Coin     string `json:"coin"`
	Interval string `json:"interval"`
}

type envelope struct {
	Channel string `json:"channel"`
}

type candleMsg struct {
	Data wireCandle `json:"data"`
}

// Subscribe streams the venue's candle channel. The feed pushes updates of
// the forming bar; a bar is sent to out once it has closed. The connection
// is re-established with exponential backoff until ctx is done.
func (s *Source) Subscribe(ctx context.Context, symbol, timeframe string, out chan<- model.Candle) error {
	step, err := marketdata.TimeframeDuration(timeframe)
	if err != nil {
		return err
	}
	det := closedetector.New(step)
	backoff := s.cfg.ReconnectMin
	log := s.log.With(zap.String("symbol", symbol), zap.String("timeframe", timeframe))

	for {
		delivered, err := s.stream(ctx, symbol, timeframe, det, out)
		s.setConnected(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered {
			backoff = s.cfg.ReconnectMin
		}
		s.metrics.WSReconnects.WithLabelValues(s.Name()).Inc()
		log.Warn("feed disconnected, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.cfg.ReconnectMax {
			backoff = s.cfg.ReconnectMax
		}
	}
}

// stream runs one connection. delivered reports whether any candle update
// arrived before it ended.
func (s *Source) stream(ctx context.Context, symbol, timeframe string, det *closedetector.Detector, out chan<- model.Candle) (delivered bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.WSURL, nil)
	if err != nil {
		return false, errors.Wrap(err, "hyperliquid: dial")
	}
	defer conn.Close()

	if err := s.write(conn, subscribeMsg{
		Method:       "subscribe",
		Subscription: &subscription{Type: "candle", Coin: symbol, Interval: timeframe},
	}); err != nil {
		return false, errors.Wrap(err, "hyperliquid: subscribe")
	}
	s.setConnected(true)

	msgs := make(chan []byte)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
			_, b, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case msgs <- b:
			case <-done:
				return
			}
		}
	}()

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()
	expiry := time.NewTicker(time.Second)
	defer expiry.Stop()

	emit := func(c model.Candle) error {
		s.metrics.CandlesTotal.WithLabelValues(s.Name()).Inc()
		select {
		case out <- c:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return delivered, ctx.Err()

		case err := <-readErr:
			return delivered, errors.Wrap(err, "hyperliquid: read")

		case <-ping.C:
			if err := s.write(conn, subscribeMsg{Method: "ping"}); err != nil {
				return delivered, errors.Wrap(err, "hyperliquid: ping")
			}

		case <-expiry.C:
			if c, ok := det.Expired(s.now()); ok {
				if err := emit(c); err != nil {
					return delivered, err
				}
			}

		case b := <-msgs:
			var env envelope
			if err := sonic.Unmarshal(b, &env); err != nil || env.Channel != "candle" {
				continue
			}
			var msg candleMsg
			if err := sonic.Unmarshal(b, &msg); err != nil {
				s.log.Debug("bad candle message", zap.Error(err))
				continue
			}
			c, err := msg.Data.candle()
			if err != nil {
				s.log.Debug("bad candle", zap.Error(err))
				continue
			}
			if c.Symbol != symbol || c.Timeframe != timeframe {
				continue
			}
			delivered = true
			if closed, ok := det.Observe(c); ok {
				if err := emit(closed); err != nil {
					return delivered, err
				}
			}
		}
	}
}

func (s *Source) write(conn *websocket.Conn, v any) error {
	b, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Source) setConnected(up bool) {
	if s.OnConnected != nil {
		s.OnConnected(up)
	}
}
