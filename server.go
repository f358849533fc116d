package socket

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Handler is the interface for handling incoming TCP connections.
type Handler interface {
	// Handle is called in its own goroutine for each new connection and owns
	// it. ctx is canceled when the server stops.
	Handle(ctx context.Context, conn *net.TCPConn)
}

// Server represents a TCP server that listens for incoming connections.
type Server struct {
	listener        *net.TCPListener
	logger          Logger
	shutdownTimeout time.Duration

	mu          sync.Mutex
	shutdown    bool
	shutdownNow chan struct{} // signals immediate shutdown, bypassing timeout
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets the graceful shutdown timeout.
// When the context is canceled, the server keeps accepting for up to this
// duration before closing the listener. Default is 0 (immediate shutdown).
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// New creates a new TCP server bound to the specified address.
// Returns an error if the address cannot be bound.
func New(addr *net.TCPAddr, opts ...ServerOption) (*Server, error) {
	listener, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener:    listener,
		logger:      slog.Default(),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Serve starts accepting connections and dispatching them to the handler.
// It blocks until the context is canceled or an unrecoverable error occurs.
// If ServerShutdownTimeoutOption is set, the server waits up to the specified
// duration before stopping. Call Close() to bypass the timeout.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	go func() {
		<-ctx.Done()

		if s.shutdownTimeout > 0 {
			s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
			select {
			case <-time.After(s.shutdownTimeout):
			case <-s.shutdownNow:
				s.logger.Debug("shutdown timeout bypassed via Close()")
			}
		}

		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		// Unblock Accept.
		_ = s.listener.SetDeadline(time.Now())
	}()

	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				s.logger.Info("server stopped", "addr", s.listener.Addr())
				return ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			return err
		}

		s.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
		_ = conn.SetNoDelay(true)
		go handler.Handle(ctx, conn)
	}
}

// Close stops the server by closing the underlying listener.
// If a shutdown timeout is configured, Close() bypasses the remaining timeout.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	select {
	case s.shutdownNow <- struct{}{}:
	default:
	}

	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// FramedHandler is a Handler that runs one Conn per accepted connection,
// each with a fresh Framer, and keeps the open ones addressable by ID.
type FramedHandler struct {
	newFramer FramerFactory
	onMessage func(*Conn, Message) error
	opts      []Option
	logger    Logger

	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewFramedHandler returns a handler building connections from opts. Every
// framed message is passed to onMessage with the connection it arrived on.
func NewFramedHandler(newFramer FramerFactory, onMessage func(*Conn, Message) error, opts ...Option) *FramedHandler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = defaultLogger()
	}

	return &FramedHandler{
		newFramer: newFramer,
		onMessage: onMessage,
		opts:      opts,
		logger:    o.logger,
		conns:     make(map[string]*Conn),
	}
}

// Handle implements Handler. It returns when the connection is closed.
func (h *FramedHandler) Handle(ctx context.Context, raw *net.TCPConn) {
	framer, err := h.newFramer()
	if err != nil {
		h.logger.Error("create framer", "remote_addr", raw.RemoteAddr(), "error", err)
		raw.Close()
		return
	}

	var conn *Conn
	opts := append(h.opts[:len(h.opts):len(h.opts)],
		FramerOption(framer),
		OnMessageOption(func(m Message) error {
			return h.onMessage(conn, m)
		}),
	)

	conn, err = NewConn(raw, opts...)
	if err != nil {
		h.logger.Error("create connection", "remote_addr", raw.RemoteAddr(), "error", err)
		raw.Close()
		return
	}

	h.add(conn)
	defer h.remove(conn)

	_ = conn.Run(ctx)
}

// Conn returns the open connection with the given ID.
func (h *FramedHandler) Conn(id string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.conns[id]
	return c, ok
}

// Len returns the number of open connections.
func (h *FramedHandler) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.conns)
}

func (h *FramedHandler) add(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c.ID()] = c
}

func (h *FramedHandler) remove(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, c.ID())
}
