package framesocket

import (
	"time"
)

// ErrorAction defines the action to take when an error occurs.
type ErrorAction int

const (
	// Disconnect closes the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and continues processing.
	Continue
)

// options holds the configuration for a connection.
type options struct {
	handler  FrameHandler
	logger   Logger
	observer Observer

	// onError is called when a transport error occurs.
	// Returns Disconnect to close the connection, Continue to suppress the error.
	onError func(error) ErrorAction

	connID         string
	bufferSize     int           // size of the outbound frame queue
	readBufferSize int           // size of a single transport read
	maxFrameLength int           // maximum declared payload length of a single frame
	idleTimeout    time.Duration // read/write deadline
}

// Option is a function that configures connection options.
type Option func(*options)

// HandlerOption returns an Option that sets the frame handler.
// The handler is required and is invoked for each decoded frame, in arrival order.
func HandlerOption(handler FrameHandler) Option {
	return func(o *options) {
		o.handler = handler
	}
}

// BufferSizeOption returns an Option that sets the size of the outbound frame queue.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// ReadBufferSizeOption returns an Option that sets how many bytes a single
// transport read may return.
func ReadBufferSizeOption(size int) Option {
	return func(o *options) {
		o.readBufferSize = size
	}
}

// IdleTimeoutOption returns an Option that sets the read/write deadline.
// A connection that neither sends nor receives for this long is closed.
func IdleTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = timeout
	}
}

// MaxFrameLengthOption returns an Option that caps the payload length a peer may declare.
// A frame header above the cap closes the connection before its payload is buffered.
func MaxFrameLengthOption(size int) Option {
	return func(o *options) {
		o.maxFrameLength = size
	}
}

// OnErrorOption returns an Option that sets the error callback.
// The callback is invoked when a transport read/write error occurs.
// Return Disconnect to close the connection, or Continue to suppress the error.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// ObserverOption returns an Option that sets the connection observer.
func ObserverOption(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// ConnIDOption returns an Option that sets the connection identifier used in
// logs and observer callbacks. A random UUID is used when unset.
func ConnIDOption(id string) Option {
	return func(o *options) {
		o.connID = id
	}
}
