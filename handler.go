package framesocket

import (
	"context"
	"net"
)

// FrameHandler answers one decoded frame. A nil frame means no response is sent.
// Returning an error closes the connection.
type FrameHandler interface {
	ServeFrame(ctx context.Context, f Frame) (*Frame, error)
}

// FrameHandlerFunc adapts a function to the FrameHandler interface.
type FrameHandlerFunc func(ctx context.Context, f Frame) (*Frame, error)

// ServeFrame calls fn(ctx, f).
func (fn FrameHandlerFunc) ServeFrame(ctx context.Context, f Frame) (*Frame, error) {
	return fn(ctx, f)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(conn *net.TCPConn)

// Handle calls fn(conn).
func (fn HandlerFunc) Handle(conn *net.TCPConn) {
	fn(conn)
}

// NewConnHandler returns a Handler that wraps every accepted connection in a
// Conn configured with opt and runs it until ctx is canceled or the
// connection ends. The options are validated once, up front.
func NewConnHandler(ctx context.Context, opt ...Option) (Handler, error) {
	opts, err := newOptions(opt...)
	if err != nil {
		return nil, err
	}

	return HandlerFunc(func(raw *net.TCPConn) {
		connOpts := opts
		connOpts.connID = ""
		_ = newClientConnWithOptions(raw, connOpts).Run(ctx)
	}), nil
}
