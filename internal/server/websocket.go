package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/logging"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/protocol/wire"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 16 * wire.MaxFrame
)

// client is one attached GUI connection.
type client struct {
	conn       *websocket.Conn
	remoteAddr string

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

func (c *client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
}

// handleLink upgrades a GUI connection and runs it until it closes.
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("Invalid WebSocket upgrade request",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &client{conn: conn, remoteAddr: r.RemoteAddr, done: make(chan struct{})}
	logging.Info("GUI client attached", zap.String("remote_addr", c.remoteAddr))
	s.attach(c)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		c.pingLoop()
	}()

	s.readLoop(c)
	s.detach(c)
	c.close()
	logging.Info("GUI client detached", zap.String("remote_addr", c.remoteAddr))
}

// readLoop queues every binary message until the connection fails.
func (s *Server) readLoop(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info("Connection closed or error reading message",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch messageType {
		case websocket.BinaryMessage:
			logging.LogRawBytes("gui rx "+c.remoteAddr, data)
			if !s.incoming.Push(data) {
				logging.Warn("GUI queue full, message dropped",
					zap.String("remote_addr", c.remoteAddr),
					zap.Int("bytes", len(data)),
				)
			}
		case websocket.TextMessage:
			logging.Debug("Ignoring text WebSocket message",
				zap.String("remote_addr", c.remoteAddr),
				zap.String("content", string(data)),
			)
		}
	}
}

func (c *client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				logging.Debug("Ping failed", zap.String("remote_addr", c.remoteAddr), zap.Error(err))
				return
			}
		}
	}
}
