package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5, cfg.Backlog)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 1024*1024, cfg.MaxFrameBytes)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestParse(t *testing.T) {
	input := `
# server settings
host = 0.0.0.0
port=9000
backlog = 64
log_level = debug
timeout_seconds = 15
max_frame_bytes = 4096
metrics_addr = :9100
this line has no separator
`
	cfg, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, &Config{
		Host:          "0.0.0.0",
		Port:          9000,
		Backlog:       64,
		LogLevel:      "debug",
		Timeout:       15 * time.Second,
		MaxFrameBytes: 4096,
		MetricsAddr:   ":9100",
	}, cfg)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestParse_OnlyPort(t *testing.T) {
	cfg, err := Parse(strings.NewReader("port = 1234\n"))
	require.NoError(t, err)

	want := Default()
	want.Port = 1234
	assert.Equal(t, want, cfg)
}

func TestParse_Port(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"missing", "host = x\n", ErrMissingPort},
		{"empty", "port =\n", ErrMissingPort},
		{"zero", "port = 0\n", ErrInvalidPort},
		{"too large", "port = 65536\n", ErrInvalidPort},
		{"negative", "port = -1\n", ErrInvalidPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	_, err := Parse(strings.NewReader("port = abc\n"))
	assert.ErrorContains(t, err, "invalid port number 'abc'")

	cfg, err := Parse(strings.NewReader("port = 65535\n"))
	require.NoError(t, err)
	assert.Equal(t, 65535, cfg.Port)
}

func TestParse_InvalidTimeoutKeepsDefault(t *testing.T) {
	for _, value := range []string{"abc", "0", "-5"} {
		cfg, err := Parse(strings.NewReader("port = 80\ntimeout_seconds = " + value + "\n"))
		require.NoError(t, err)
		assert.Equal(t, DefaultTimeout, cfg.Timeout, "timeout_seconds = %s", value)
	}
}

func TestParse_InvalidPositiveInts(t *testing.T) {
	for _, input := range []string{
		"port = 80\nbacklog = none\n",
		"port = 80\nbacklog = 0\n",
		"port = 80\nmax_frame_bytes = -1\n",
	} {
		_, err := Parse(strings.NewReader(input))
		assert.Error(t, err, input)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.conf")
	require.NoError(t, os.WriteFile(path, []byte("port = 7000\nhost = localhost\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:7000", cfg.Addr())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.conf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
}

func TestLoad_ParseErrorNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	require.NoError(t, os.WriteFile(path, []byte("host = x\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, path)
	assert.True(t, errors.Is(err, ErrMissingPort))
}
