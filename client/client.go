// Package client dials a framesocket server and performs the login exchange.
package client

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/Zereker/framesocket"
	"github.com/Zereker/framesocket/login"
)

// Config holds client configuration.
type Config struct {
	// Addr is the server address as host:port.
	Addr string
	// DialTimeout is the timeout for establishing the connection.
	DialTimeout time.Duration
	// ReadTimeout is the timeout for receiving one frame.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for sending one frame.
	WriteTimeout time.Duration
	// MaxFrameLength caps the payload length the server may declare.
	MaxFrameLength int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:           "127.0.0.1:8080",
		DialTimeout:    10 * time.Second,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxFrameLength: 1024 * 1024,
	}
}

// Client is a single framed connection to the server.
// A Client is not safe for concurrent use.
type Client struct {
	cfg     Config
	conn    net.Conn
	decoder *framesocket.Decoder
	pending []framesocket.Frame
	buf     []byte
}

// Dial connects to cfg.Addr. A nil cfg uses DefaultConfig.
func Dial(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", cfg.Addr)
	}

	return newClient(conn, *cfg), nil
}

func newClient(conn net.Conn, cfg Config) *Client {
	return &Client{
		cfg:     cfg,
		conn:    conn,
		decoder: framesocket.NewDecoder(cfg.MaxFrameLength),
		buf:     make([]byte, 4096),
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send writes one frame.
func (c *Client) Send(ctx context.Context, f framesocket.Frame) error {
	data, err := f.MarshalBinary()
	if err != nil {
		return err
	}

	_ = c.conn.SetWriteDeadline(deadline(ctx, c.cfg.WriteTimeout))
	if _, err := c.conn.Write(data); err != nil {
		return errors.Wrap(err, "send frame")
	}
	return nil
}

// Receive returns the next frame from the server, reading as many chunks as
// needed to complete it.
func (c *Client) Receive(ctx context.Context) (framesocket.Frame, error) {
	for len(c.pending) == 0 {
		_ = c.conn.SetReadDeadline(deadline(ctx, c.cfg.ReadTimeout))

		n, err := c.conn.Read(c.buf)
		if n > 0 {
			frames, _, ferr := c.decoder.Feed(c.buf[:n])
			c.pending = append(c.pending, frames...)
			if ferr != nil {
				return framesocket.Frame{}, errors.Wrap(ferr, "receive frame")
			}
		}

		if err != nil && len(c.pending) == 0 {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return framesocket.Frame{}, errors.Wrap(err, "receive frame")
		}
	}

	f := c.pending[0]
	c.pending = c.pending[1:]
	return f, nil
}

// Login sends a LoginRequest and waits for the LoginResponse.
// Frames of other types received in between are discarded.
func (c *Client) Login(ctx context.Context, username, password string) (login.Response, error) {
	payload, err := login.Request{Username: username, Password: password}.Encode()
	if err != nil {
		return login.Response{}, err
	}

	if err := c.Send(ctx, framesocket.NewFrame(login.TypeRequest, payload)); err != nil {
		return login.Response{}, err
	}

	for {
		f, err := c.Receive(ctx)
		if err != nil {
			return login.Response{}, err
		}
		if f.Type == login.TypeResponse {
			return login.DecodeResponse(f.Payload)
		}
	}
}

// deadline returns the earlier of the context deadline and now+timeout.
// A zero result disables the deadline.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}
