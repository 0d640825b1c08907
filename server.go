package framesocket

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBacklog is the listen backlog used when none is configured.
const DefaultBacklog = 5

// Handler takes ownership of an accepted connection.
// NewConnHandler builds the standard implementation.
type Handler interface {
	// Handle runs the connection until it is done and closes it.
	Handle(conn *net.TCPConn)
}

// Server accepts TCP connections and hands each one to a Handler on its own
// goroutine.
type Server struct {
	listener        *net.TCPListener
	logger          Logger
	shutdownTimeout time.Duration
	backlog         int

	accepted atomic.Uint64
	active   atomic.Int64
	handlers sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets how long Serve waits for running handlers
// after its context is canceled. The listener is closed first, so no new
// connections arrive while waiting. Close ends the wait early.
// Default is 0: Serve returns as soon as the listener is closed.
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// ServerBacklogOption sets the listen backlog, the number of completed
// connections the kernel queues before Serve accepts them.
// It is honoured on unix platforms and ignored elsewhere.
func ServerBacklogOption(backlog int) ServerOption {
	return func(s *Server) {
		s.backlog = backlog
	}
}

// New binds a listener to addr.
func New(addr *net.TCPAddr, opts ...ServerOption) (*Server, error) {
	s := &Server{
		logger:  slog.Default(),
		backlog: DefaultBacklog,
		closed:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	listener, err := listenTCP(addr, s.backlog)
	if err != nil {
		return nil, err
	}
	s.listener = listener

	return s, nil
}

// Serve accepts connections until ctx is canceled or Close is called.
// Each connection is passed to handler.Handle on a new goroutine.
//
// On cancellation Serve stops accepting, waits for running handlers up to
// the shutdown timeout and returns ctx.Err(). After Close it returns
// net.ErrClosed.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr(), "backlog", s.backlog)

	stop := context.AfterFunc(ctx, func() {
		_ = s.listener.SetDeadline(time.Now())
	})
	defer stop()

	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if ctx.Err() != nil {
				_ = s.listener.Close()
				s.waitHandlers()
				s.logger.Info("server stopped", "addr", s.listener.Addr(),
					"accepted", s.accepted.Load(), "active", s.active.Load())
				return ctx.Err()
			}

			if s.isClosed() {
				s.logger.Info("server closed", "addr", s.listener.Addr(), "accepted", s.accepted.Load())
				return net.ErrClosed
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			return err
		}

		s.accepted.Add(1)
		s.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
		_ = conn.SetNoDelay(true)

		s.active.Add(1)
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			defer s.active.Add(-1)
			handler.Handle(conn)
		}()
	}
}

// waitHandlers blocks until every handler returns, the shutdown timeout
// expires or Close is called.
func (s *Server) waitHandlers() {
	if s.shutdownTimeout <= 0 {
		return
	}

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()

	s.logger.Info("waiting for connections", "active", s.active.Load(), "timeout", s.shutdownTimeout)

	timer := time.NewTimer(s.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn("shutdown timeout expired", "active", s.active.Load())
	case <-s.closed:
		s.logger.Debug("shutdown wait bypassed via Close()")
	}
}

// Close closes the listener and ends any shutdown wait in progress.
// Handlers already running are not interrupted.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	return s.listener.Close()
}

func (s *Server) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() uint64 {
	return s.accepted.Load()
}

// Active returns the number of handlers still running.
func (s *Server) Active() int64 {
	return s.active.Load()
}
