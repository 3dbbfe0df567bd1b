// Package ws adapts a gorilla/websocket connection to the engine's
// Transport interface: a read pump feeding frames into dispatch and a
// write pump draining a bounded send queue.
package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/coderoom/internal/config"
	"github.com/eldtechnologies/coderoom/internal/engine"
	"github.com/eldtechnologies/coderoom/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 2 << 20 // generous; whole documents travel in one frame
	sendQueueSize  = 64
)

var errClosed = errors.New("transport closed")

// Server upgrades HTTP requests and hands the resulting transports to
// the engine.
type Server struct {
	engine   *engine.Engine
	cfg      *config.Config
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewServer(eng *engine.Engine, cfg *config.Config, logger zerolog.Logger) *Server {
	return &Server{
		engine: eng,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Identities are self-asserted; the browser client may be
			// served from anywhere.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

// ServeHTTP accepts one websocket session.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.engine.ConnectionCount() >= s.cfg.MaxConcurrentUsers {
		http.Error(w, "伺服器連線數已達上限，請稍後再試", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}

	client := &client{
		conn:     conn,
		send:     make(chan []byte, sendQueueSize),
		quit:     make(chan struct{}),
		pongWait: s.cfg.WebSocketTimeout,
		logger:   s.logger,
	}
	client.open.Store(true)

	c := s.engine.Register(client)
	go client.writePump()
	go client.readPump(c, s.engine)
}

// client is one live websocket transport. The send channel is never
// closed; writePump exits on quit instead, so a concurrent Send can
// never hit a closed channel.
type client struct {
	conn      *websocket.Conn
	send      chan []byte
	quit      chan struct{}
	pongWait  time.Duration
	logger    zerolog.Logger
	open      atomic.Bool
	closeOnce sync.Once
}

// Send marshals and enqueues one frame. It never blocks the dispatch
// loop: when the queue is full the frame is dropped and counted, and
// the connection stays up.
func (c *client) Send(v any) error {
	if !c.open.Load() {
		return errClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-c.quit:
		return errClosed
	case c.send <- data:
		return nil
	default:
		metrics.DroppedFrames.Inc()
		return errors.New("send queue full")
	}
}

func (c *client) IsOpen() bool { return c.open.Load() }

func (c *client) Close() {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		close(c.quit)
	})
}

// readPump feeds inbound frames into the engine until the peer goes
// away, then runs disconnect cleanup.
func (c *client) readPump(conn *engine.Connection, eng *engine.Engine) {
	defer func() {
		c.Close()
		eng.Unregister(conn)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("unexpected close")
			}
			return
		}
		eng.HandleFrame(conn, data)
	}
}

// writePump drains the send queue and keeps the connection alive with
// pings at a fraction of the pong deadline.
func (c *client) writePump() {
	ticker := time.NewTicker(c.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.quit:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.open.Store(false)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.open.Store(false)
				return
			}
		}
	}
}
