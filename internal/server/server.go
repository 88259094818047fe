package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/logging"
	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/transport"
	"go.uber.org/zap"
)

// Defaults
const (
	DefaultAddr = ":8765"
	DefaultPath = "/link"
)

// ErrNoClient is returned by Write while no GUI is attached.
var ErrNoClient = errors.New("server: no GUI client attached")

// Config holds the server configuration.
type Config struct {
	Addr      string
	Path      string
	CertPath  string // Optional; serves wss:// together with KeyPath
	KeyPath   string
	QueueSize int
}

// Server is the GUI WebSocket endpoint. It implements transport.Stream.
type Server struct {
	config    Config
	upgrader  websocket.Upgrader
	http      *http.Server
	listener  net.Listener
	tlsConfig *tls.Config
	incoming  *transport.Queue
	wg        sync.WaitGroup

	mu     sync.Mutex
	client *client

	attached atomic.Uint64
	detached atomic.Uint64
}

// New creates a Server. Nothing listens until Start.
func New(config Config) *Server {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.Path == "" {
		config.Path = DefaultPath
	}
	s := &Server{
		config:   config,
		incoming: transport.NewQueue(config.QueueSize),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxMessageSize,
			WriteBufferSize: maxMessageSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc(config.Path, s.handleLink)
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	if s.config.CertPath != "" || s.config.KeyPath != "" {
		tlsConfig, err := NewTLSConfig(s.config.CertPath, s.config.KeyPath)
		if err != nil {
			return fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = tlsConfig
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	s.listener = listener

	logging.Info("GUI endpoint listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", s.config.Path),
		zap.Any("tls_info", GetTLSInfo(s.tlsConfig)),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("GUI endpoint stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// Port returns the bound TCP port, or 0 before Start.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// URL returns the client URL for host.
func (s *Server) URL(host string) string {
	scheme := "ws"
	if s.tlsConfig != nil {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(host, fmt.Sprint(s.Port())), s.config.Path)
}

// Path returns the WebSocket path.
func (s *Server) Path() string { return s.config.Path }

// HasClient reports whether a GUI is attached.
func (s *Server) HasClient() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// Attached returns how many clients have connected since Start.
func (s *Server) Attached() uint64 { return s.attached.Load() }

// Detached returns how many clients have gone away since Start. The tick
// loop compares it between polls to notice a lost GUI.
func (s *Server) Detached() uint64 { return s.detached.Load() }

// Dropped returns the number of inbound messages lost to a full queue.
func (s *Server) Dropped() uint64 { return s.incoming.Dropped() }

// Poll returns the bytes of every binary message received since the last
// call.
func (s *Server) Poll() []byte { return s.incoming.Bytes() }

// Write sends p to the attached GUI as one binary message.
func (s *Server) Write(p []byte) (int, error) {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		return 0, ErrNoClient
	}
	if err := c.write(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close shuts the server down. It satisfies transport.Stream.
func (s *Server) Close() error {
	return s.Shutdown(context.Background())
}

// Shutdown stops accepting clients and closes the attached one.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down GUI endpoint...")

	s.mu.Lock()
	c := s.client
	s.client = nil
	s.mu.Unlock()
	if c != nil {
		c.close()
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := s.http.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// attach makes c the current client, closing any previous one.
func (s *Server) attach(c *client) {
	s.mu.Lock()
	prev := s.client
	s.client = c
	s.mu.Unlock()
	if prev != nil {
		logging.Info("Replacing GUI client", zap.String("previous", prev.remoteAddr))
		prev.close()
		// The replaced client counts as gone so the tick loop restarts the
		// link for the new one. Its unread bytes are discarded.
		s.incoming.Bytes()
		s.detached.Add(1)
	}
	s.attached.Add(1)
}

// detach clears c if it is still the current client.
func (s *Server) detach(c *client) {
	s.mu.Lock()
	current := s.client == c
	if current {
		s.client = nil
	}
	s.mu.Unlock()
	if current {
		s.detached.Add(1)
	}
}
