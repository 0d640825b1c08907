// Package metrics exports connection and frame counters to Prometheus.
package metrics

import (
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Zereker/framesocket"
)

// Config configures the metrics collector.
type Config struct {
	// Namespace is the metrics namespace (default: "framesocket").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the metrics collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "framesocket",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector implements framesocket.Observer on top of Prometheus metrics.
// It is safe for concurrent use by any number of connections.
type Collector struct {
	connsOpened   prometheus.Counter
	connsClosed   *prometheus.CounterVec
	activeConns   prometheus.Gauge
	framesIn      *prometheus.CounterVec
	framesOut     *prometheus.CounterVec
	unknownFrames *prometheus.CounterVec
	bytesIn       prometheus.Counter
	bytesOut      prometheus.Counter
	framesPerConn prometheus.Histogram
}

var _ framesocket.Observer = (*Collector)(nil)

// New registers the collector's metrics and returns it.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	counterOpts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}
	}

	return &Collector{
		connsOpened: factory.NewCounter(counterOpts("connections_opened_total",
			"Total number of accepted connections")),
		connsClosed: factory.NewCounterVec(counterOpts("connections_closed_total",
			"Total number of closed connections by outcome"), []string{"outcome"}),
		activeConns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_active",
			Help:        "Number of currently open connections",
			ConstLabels: config.ConstLabels,
		}),
		framesIn: factory.NewCounterVec(counterOpts("frames_received_total",
			"Total number of decoded frames by type"), []string{"type"}),
		framesOut: factory.NewCounterVec(counterOpts("frames_sent_total",
			"Total number of frames written by type"), []string{"type"}),
		unknownFrames: factory.NewCounterVec(counterOpts("frames_unknown_total",
			"Total number of frames with no registered route"), []string{"type"}),
		bytesIn: factory.NewCounter(counterOpts("bytes_received_total",
			"Total number of bytes of decoded frames, headers included")),
		bytesOut: factory.NewCounter(counterOpts("bytes_sent_total",
			"Total number of bytes of written frames, headers included")),
		framesPerConn: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_per_connection",
			Help:        "Number of frames received over the lifetime of a connection",
			ConstLabels: config.ConstLabels,
			Buckets:     prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

// ConnOpened implements framesocket.Observer.
func (c *Collector) ConnOpened(string, net.Addr) {
	c.connsOpened.Inc()
	c.activeConns.Inc()
}

// FrameReceived implements framesocket.Observer.
func (c *Collector) FrameReceived(_ string, f framesocket.Frame) {
	c.framesIn.WithLabelValues(typeLabel(f.Type)).Inc()
	c.bytesIn.Add(float64(f.Size()))
}

// FrameSent implements framesocket.Observer.
func (c *Collector) FrameSent(_ string, f framesocket.Frame) {
	c.framesOut.WithLabelValues(typeLabel(f.Type)).Inc()
	c.bytesOut.Add(float64(f.Size()))
}

// ConnClosed implements framesocket.Observer.
func (c *Collector) ConnClosed(stats framesocket.ConnStats, err error) {
	outcome := "clean"
	if err != nil {
		outcome = "error"
	}

	c.activeConns.Dec()
	c.connsClosed.WithLabelValues(outcome).Inc()
	c.framesPerConn.Observe(float64(stats.FramesIn))
}

// UnknownFrame counts a frame that no route accepted.
// It matches the signature expected by dispatch.WithUnknownHook.
func (c *Collector) UnknownFrame(f framesocket.Frame) {
	c.unknownFrames.WithLabelValues(typeLabel(f.Type)).Inc()
}

func typeLabel(typ byte) string {
	return fmt.Sprintf("0x%02x", typ)
}
