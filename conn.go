// Package framesocket provides a TCP server framework for a length-prefixed
// frame protocol. Every frame is a type byte, a 4-byte big-endian payload
// length and the payload itself. Connections reassemble frames from the
// byte stream, hand them to a FrameHandler in arrival order and write the
// handler's responses back in the same order.
package framesocket

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Errors returned by connection operations.
var (
	// ErrInvalidHandler is returned when no frame handler is provided.
	ErrInvalidHandler = errors.New("invalid frame handler")
	// ErrConnectionClosed is returned when operating on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
)

// ErrBufferFull is returned when the send queue is full and cannot accept more frames.
// This error indicates backpressure - the peer is not consuming frames fast enough.
var ErrBufferFull = errors.New("send buffer full")

// Default configuration values.
const (
	// defaultBufferSize is the default size of the outbound frame queue.
	defaultBufferSize = 16
	// defaultReadBufferSize is the default size of a single transport read.
	defaultReadBufferSize = 4096
	// defaultMaxFrameLength is the default maximum payload length of a single frame (1MB).
	defaultMaxFrameLength = 1024 * 1024
	// defaultIdleTimeout is the default read/write deadline.
	defaultIdleTimeout = 60 * time.Second
)

// outbound is an encoded frame waiting in the send queue.
type outbound struct {
	frame Frame
	data  []byte
}

// connCounters are the per-connection counters behind ConnStats.
type connCounters struct {
	framesIn  atomic.Uint64
	framesOut atomic.Uint64
	bytesIn   atomic.Uint64
	bytesOut  atomic.Uint64
}

// Conn represents a client connection to the server.
// It owns the connection buffer of its stream, decodes frames with a Decoder,
// and runs read/write loops for asynchronous communication.
type Conn struct {
	id      string
	rawConn *net.TCPConn
	decoder *Decoder
	logger  Logger

	opts options

	sendMsg  chan outbound
	readDone chan struct{}
	closed   atomic.Bool
	stats    connCounters

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewConn creates a new connection wrapper around the given TCP connection.
// It applies the provided options and validates them before returning.
// Returns an error if the required frame handler is missing.
func NewConn(conn *net.TCPConn, opt ...Option) (*Conn, error) {
	opts, err := newOptions(opt...)
	if err != nil {
		return nil, err
	}

	return newClientConnWithOptions(conn, opts), nil
}

// newOptions applies opt and validates the result.
func newOptions(opt ...Option) (options, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	if err := checkOptions(&opts); err != nil {
		return options{}, err
	}
	return opts, nil
}

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.readBufferSize <= 0 {
		opts.readBufferSize = defaultReadBufferSize
	}

	if opts.maxFrameLength <= 0 {
		opts.maxFrameLength = defaultMaxFrameLength
	}

	if opts.handler == nil {
		return ErrInvalidHandler
	}

	if opts.idleTimeout <= 0 {
		opts.idleTimeout = defaultIdleTimeout
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	if opts.observer == nil {
		opts.observer = nopObserver{}
	}

	return nil
}

// newClientConnWithOptions creates a new Conn with the given options.
func newClientConnWithOptions(c *net.TCPConn, opts options) *Conn {
	id := opts.connID
	if id == "" {
		id = uuid.NewString()
	}

	return &Conn{
		id:       id,
		rawConn:  c,
		decoder:  NewDecoder(opts.maxFrameLength),
		logger:   withAttrs(opts.logger, "conn", id, "addr", c.RemoteAddr()),
		opts:     opts,
		sendMsg:  make(chan outbound, opts.bufferSize),
		readDone: make(chan struct{}),
	}
}

// Run starts the connection's read and write loops.
// It blocks until the peer closes the connection, an error occurs or the
// context is canceled. A clean close by the peer returns nil.
// The connection is automatically closed when Run returns.
func (c *Conn) Run(ctx context.Context) error {
	c.logger.Info("connection established")
	c.logger.Debug("connection options", "buffer_size", c.opts.bufferSize,
		"read_buffer_size", c.opts.readBufferSize,
		"max_frame_length", c.opts.maxFrameLength,
		"idle_timeout", c.opts.idleTimeout)
	c.opts.observer.ConnOpened(c.id, c.Addr())

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	group, child := errgroup.WithContext(ctx)

	// Unblock a pending Read or Write once the loops are told to stop.
	stop := context.AfterFunc(child, func() {
		_ = c.rawConn.SetDeadline(time.Now())
	})
	defer stop()

	group.Go(func() error {
		defer close(c.readDone)
		return c.readLoop(child)
	})

	group.Go(func() error {
		return c.writeLoop(child)
	})

	err := group.Wait()
	c.closeConn()

	stats := c.Stats()
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Info("connection closed with error", "frames", stats.FramesIn, "error", err)
	} else {
		c.logger.Info("connection closed", "frames", stats.FramesIn)
	}
	c.opts.observer.ConnClosed(stats, err)

	return err
}

// Close gracefully closes the connection.
// It cancels the context and closes the underlying TCP connection.
// Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	return c.rawConn.Close()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// ID returns the connection identifier used in logs and observer callbacks.
func (c *Conn) ID() string {
	return c.id
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// Stats returns a snapshot of the connection's counters.
func (c *Conn) Stats() ConnStats {
	stats := ConnStats{
		ID:        c.id,
		FramesIn:  c.stats.framesIn.Load(),
		FramesOut: c.stats.framesOut.Load(),
		BytesIn:   c.stats.bytesIn.Load(),
		BytesOut:  c.stats.bytesOut.Load(),
	}
	if addr := c.Addr(); addr != nil {
		stats.RemoteAddr = addr.String()
	}
	return stats
}

// Write queues a frame without blocking (fire-and-forget).
//
// Returns:
//   - nil: frame was successfully queued (not yet sent)
//   - ErrBufferFull: send queue is full, frame was NOT queued
//   - ErrConnectionClosed: connection is closed
//   - ErrPayloadTooLarge: payload does not fit the length field
//
// For guaranteed delivery, use WriteBlocking or WriteTimeout instead.
func (c *Conn) Write(f Frame) error {
	out, err := c.prepare(f)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- out:
		return nil
	default:
		return ErrBufferFull
	}
}

// WriteBlocking queues a frame, blocking until it is queued or the context is canceled.
// Responses produced by the frame handler are queued this way, so they are
// written in the order their requests arrived.
func (c *Conn) WriteBlocking(ctx context.Context, f Frame) error {
	out, err := c.prepare(f)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- out:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteTimeout queues a frame, waiting at most timeout for queue space.
// Returns ErrBufferFull when the timeout expires first.
func (c *Conn) WriteTimeout(f Frame, timeout time.Duration) error {
	out, err := c.prepare(f)
	if err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.sendMsg <- out:
		return nil
	case <-timer.C:
		return ErrBufferFull
	}
}

// prepare encodes f for the send queue.
func (c *Conn) prepare(f Frame) (outbound, error) {
	if c.closed.Load() {
		return outbound{}, ErrConnectionClosed
	}

	data, err := Encode(f.Type, f.Payload)
	if err != nil {
		return outbound{}, err
	}
	return outbound{frame: f, data: data}, nil
}

// readLoop reads chunks from the connection and feeds them to the decoder.
// Returns nil when the peer closes the connection, the context error when
// the context is canceled, or the first unrecoverable error.
func (c *Conn) readLoop(ctx context.Context) error {
	buf := make([]byte, c.opts.readBufferSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.idleTimeout))

		n, err := c.rawConn.Read(buf)
		if n > 0 {
			if ferr := c.feed(ctx, buf[:n]); ferr != nil {
				return ferr
			}
		}

		if err == nil {
			continue
		}

		if errors.Is(err, io.EOF) {
			c.logger.Debug("peer closed connection", "buffered", c.decoder.Buffered())
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if c.IsClosed() {
			return ErrConnectionClosed
		}

		c.logger.Debug("read error", "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
	}
}

// feed decodes a chunk and serves every completed frame in order.
func (c *Conn) feed(ctx context.Context, chunk []byte) error {
	c.stats.bytesIn.Add(uint64(len(chunk)))

	frames, _, err := c.decoder.Feed(chunk)
	for _, f := range frames {
		if serr := c.serve(ctx, f); serr != nil {
			return serr
		}
	}

	if err != nil {
		c.logger.Warn("rejecting stream", "max_frame_length", c.opts.maxFrameLength, "error", err)
		return err
	}

	return nil
}

// serve hands one frame to the handler and queues its response, if any.
func (c *Conn) serve(ctx context.Context, f Frame) error {
	c.stats.framesIn.Add(1)
	c.opts.observer.FrameReceived(c.id, f)
	c.logger.Debug("frame received", "type", f.Type, "length", f.Length(),
		"seq", c.stats.framesIn.Load())

	resp, err := c.opts.handler.ServeFrame(ctx, f)
	if err != nil {
		return err
	}
	if resp == nil {
		return nil
	}

	return c.WriteBlocking(ctx, *resp)
}

// writeLoop sends queued frames to the connection in FIFO order.
// Once the read loop has finished it drains the queue and returns.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out := <-c.sendMsg:
			if err := c.write(out); err != nil {
				return err
			}
		case <-c.readDone:
			return c.drain()
		}
	}
}

// drain writes whatever is left in the send queue.
func (c *Conn) drain() error {
	for {
		select {
		case out := <-c.sendMsg:
			if err := c.write(out); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// write sends an encoded frame to the connection with a deadline.
// If an error occurs and onError returns Disconnect, the error is propagated.
// Otherwise, the error is suppressed and writing continues.
func (c *Conn) write(out outbound) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.idleTimeout))

	n, err := c.rawConn.Write(out.data)
	c.stats.bytesOut.Add(uint64(n))

	if err != nil {
		c.logger.Debug("write error", "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
		return nil
	}

	c.stats.framesOut.Add(1)
	c.opts.observer.FrameSent(c.id, out.frame)
	return nil
}

// closeConn marks the connection as closed and closes the underlying TCP connection.
func (c *Conn) closeConn() {
	c.closed.Store(true)
	c.rawConn.Close()
}
