package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trading-botcore/internal/model"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 30 * time.Second
	sendBacklog = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SignalMessage is the frame sent to stream clients.
type SignalMessage struct {
	BotID  string        `json:"bot_id"`
	Signal *model.Signal `json:"signal"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	bot  string // empty for every bot
}

// Stream pushes emitted signals to WebSocket clients. Clients choose a bot
// with ?bot=; a client that falls behind loses messages rather than
// stalling the bots.
type Stream struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *zap.Logger
}

// NewStream creates an empty stream.
func NewStream(log *zap.Logger) *Stream {
	return &Stream{clients: make(map[*client]struct{}), log: log}
}

// Publish delivers sig to every interested client without blocking.
func (s *Stream) Publish(_ context.Context, botID string, sig *model.Signal) error {
	msg, err := sonic.Marshal(SignalMessage{BotID: botID, Signal: sig})
	if err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if c.bot != "" && c.bot != botID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			s.log.Warn("stream client backlog full, dropping signal", zap.String("bot", botID))
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (s *Stream) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBacklog), bot: r.URL.Query().Get("bot")}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.log.Info("stream client connected", zap.String("bot", c.bot), zap.String("remote", r.RemoteAddr))

	go s.writePump(c)
	s.readPump(c)
}

// Close disconnects every client.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Stream) remove(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}

// readPump only services control frames; client messages are ignored.
func (s *Stream) readPump(c *client) {
	defer func() {
		s.remove(c)
		c.conn.Close()
		s.log.Info("stream client disconnected", zap.String("bot", c.bot))
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Stream) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
