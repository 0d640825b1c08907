// Package config loads server settings from a key=value file.
//
// The format is one "key = value" pair per line. Blank lines and lines
// starting with '#' are skipped, as are lines without '='. Keys and values
// are trimmed. Recognised keys:
//
//	host             listen host (default 127.0.0.1)
//	port             listen port, required, 1-65535
//	backlog          listen backlog (default 5)
//	log_level        debug, info, warn or error (default INFO)
//	timeout_seconds  idle timeout in seconds (default 60)
//	max_frame_bytes  maximum payload length of one frame (default 1048576)
//	metrics_addr     address of the metrics endpoint, empty to disable
package config

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Defaults.
const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 8080
	DefaultBacklog       = 5
	DefaultLogLevel      = "INFO"
	DefaultTimeout       = 60 * time.Second
	DefaultMaxFrameBytes = 1024 * 1024
)

// Errors returned while parsing.
var (
	ErrMissingPort = errors.New("'port' is a required configuration")
	ErrInvalidPort = errors.New("port out of valid range (1-65535)")
)

// Config holds the server settings.
type Config struct {
	Host          string
	Port          int
	Backlog       int
	LogLevel      string
	Timeout       time.Duration
	MaxFrameBytes int
	MetricsAddr   string
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Host:          DefaultHost,
		Port:          DefaultPort,
		Backlog:       DefaultBacklog,
		LogLevel:      DefaultLogLevel,
		Timeout:       DefaultTimeout,
		MaxFrameBytes: DefaultMaxFrameBytes,
	}
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Level returns the slog level named by LogLevel. Unknown names map to info.
func (c *Config) Level() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "configuration file not found")
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load configuration %s", path)
	}
	return cfg, nil
}

// Parse reads key=value settings from r.
func Parse(r io.Reader) (*Config, error) {
	values, err := readPairs(r)
	if err != nil {
		return nil, err
	}

	cfg := Default()

	port, ok := values["port"]
	if !ok || port == "" {
		return nil, ErrMissingPort
	}
	cfg.Port, err = strconv.Atoi(port)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid port number '%s'", port)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, errors.Wrapf(ErrInvalidPort, "port %d", cfg.Port)
	}

	if host := values["host"]; host != "" {
		cfg.Host = host
	}

	if level := values["log_level"]; level != "" {
		cfg.LogLevel = level
	}

	if timeout, ok := values["timeout_seconds"]; ok {
		seconds, err := strconv.Atoi(timeout)
		if err != nil || seconds <= 0 {
			slog.Warn("invalid timeout_seconds, using default",
				"value", timeout, "default", DefaultTimeout)
		} else {
			cfg.Timeout = time.Duration(seconds) * time.Second
		}
	}

	if backlog, ok := values["backlog"]; ok {
		cfg.Backlog, err = positiveInt("backlog", backlog)
		if err != nil {
			return nil, err
		}
	}

	if maxFrame, ok := values["max_frame_bytes"]; ok {
		cfg.MaxFrameBytes, err = positiveInt("max_frame_bytes", maxFrame)
		if err != nil {
			return nil, err
		}
	}

	cfg.MetricsAddr = values["metrics_addr"]

	return cfg, nil
}

func readPairs(r io.Reader) (map[string]string, error) {
	values := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		if key != "" {
			values[key] = strings.TrimSpace(value)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read configuration")
	}
	return values, nil
}

func positiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s '%s'", key, value)
	}
	if n <= 0 {
		return 0, errors.Errorf("invalid %s '%s': must be positive", key, value)
	}
	return n, nil
}
