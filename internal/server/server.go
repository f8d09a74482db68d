package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skiffhttp/skiff/internal/logger"
	"github.com/skiffhttp/skiff/internal/ratelimiter"
	"github.com/skiffhttp/skiff/pkg/metrics"
)

// Config collects the engine's transport settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// ReadTimeout bounds request parsing. Zero disables the deadline.
	ReadTimeout time.Duration

	// ConnsPerSecond and Burst configure accept-rate limiting.
	// ConnsPerSecond of 0 disables limiting.
	ConnsPerSecond uint
	Burst          uint
}

// Server accepts connections and runs one exchange per connection through
// the registered Handler.
type Server struct {
	cfg     Config
	handler Handler
	limiter *ratelimiter.ConnLimiter
	metrics metrics.HTTPMetrics
	active  atomic.Int32

	mu       sync.Mutex
	listener net.Listener
}

// New creates a Server. A nil m disables metrics.
func New(cfg Config, handler Handler, m metrics.HTTPMetrics) *Server {
	if m == nil {
		m = metrics.NewNoopHTTPMetrics()
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		limiter: ratelimiter.New(cfg.ConnsPerSecond, cfg.Burst),
		metrics: m,
	}
}

// Serve listens on the configured address and serves until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	logger.Info("HTTP server listening on %s", listener.Addr())

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		tcpConn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				logger.Debug("Error accepting connection: %v", err)
				continue
			}
		}

		if !s.limiter.Allow() {
			logger.Warn("Connection from %s rejected: accept rate exceeded", tcpConn.RemoteAddr())
			tcpConn.Close()
			continue
		}

		go s.newConn(tcpConn).serve(ctx)
	}
}

// Addr returns the bound listen address, or "" before Serve has started.
// Useful when listening on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) newConn(tcpConn net.Conn) *conn {
	return &conn{
		server: s,
		conn:   tcpConn,
		br:     bufio.NewReader(tcpConn),
		bw:     bufio.NewWriter(tcpConn),
	}
}

// Stop closes the listener. In-flight exchanges finish on their own.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
