// Package dispatch routes decoded frames to handlers by message type.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zereker/framesocket"
)

// TracerName is the instrumentation name used when no tracer is configured.
const TracerName = "github.com/Zereker/framesocket/dispatch"

// Dispatcher routes each frame to the handler registered for its type byte.
// Frames of an unregistered type produce no response and leave the
// connection open.
//
// Routes are expected to be registered before serving starts; registration
// and dispatch are nevertheless safe to interleave.
type Dispatcher struct {
	mu     sync.RWMutex
	routes map[byte]framesocket.FrameHandler

	logger    framesocket.Logger
	tracer    trace.Tracer
	onUnknown func(framesocket.Frame)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for routing diagnostics.
func WithLogger(logger framesocket.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithTracer sets the tracer used to open one span per dispatched frame.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// WithUnknownHook sets a callback invoked for every frame whose type has no route.
func WithUnknownHook(fn func(framesocket.Frame)) Option {
	return func(d *Dispatcher) {
		d.onUnknown = fn
	}
}

// New creates an empty Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		routes: make(map[byte]framesocket.FrameHandler),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.tracer == nil {
		d.tracer = otel.Tracer(TracerName)
	}

	return d
}

// Handle registers h for frames of type typ, replacing any earlier route.
func (d *Dispatcher) Handle(typ byte, h framesocket.FrameHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[typ] = h
}

// HandleFunc registers fn for frames of type typ.
func (d *Dispatcher) HandleFunc(typ byte, fn func(ctx context.Context, f framesocket.Frame) (*framesocket.Frame, error)) {
	d.Handle(typ, framesocket.FrameHandlerFunc(fn))
}

// Route returns the handler registered for typ.
func (d *Dispatcher) Route(typ byte) (framesocket.FrameHandler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.routes[typ]
	return h, ok
}

// ServeFrame implements framesocket.FrameHandler.
func (d *Dispatcher) ServeFrame(ctx context.Context, f framesocket.Frame) (*framesocket.Frame, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.frame",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.Int("frame.type", int(f.Type)),
			attribute.Int("frame.length", f.Length()),
		),
	)
	defer span.End()

	h, ok := d.Route(f.Type)
	if !ok {
		d.logger.Debug("unknown message type", "type", f.Type, "length", f.Length())
		span.SetAttributes(attribute.Bool("frame.routed", false))
		if d.onUnknown != nil {
			d.onUnknown(f)
		}
		return nil, nil
	}

	resp, err := h.ServeFrame(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Bool("frame.routed", true))
	if resp != nil {
		span.SetAttributes(attribute.Int("response.type", int(resp.Type)))
	}
	span.SetStatus(codes.Ok, "")
	return resp, nil
}
