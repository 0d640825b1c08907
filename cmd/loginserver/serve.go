package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Zereker/framesocket"
	"github.com/Zereker/framesocket/config"
	"github.com/Zereker/framesocket/dispatch"
	"github.com/Zereker/framesocket/login"
	"github.com/Zereker/framesocket/metrics"
)

type serveFlags struct {
	configPath  string
	host        string
	port        int
	backlog     int
	maxFrame    int
	idleTimeout time.Duration
	logLevel    string
	metricsAddr string
}

func serveCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the login server",
		Long: `Start the login server.

Settings come from the configuration file when --config is given and
are overridden by any flag set explicitly.

Examples:
  loginserver serve
  loginserver serve --config server.conf
  loginserver serve --host 0.0.0.0 --port 9000 --metrics-addr :9100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, flags.configPath)
		},
	}

	addServeFlags(cmd, &flags)

	return cmd
}

func addServeFlags(cmd *cobra.Command, flags *serveFlags) {
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Path to key=value configuration file")
	cmd.Flags().StringVarP(&flags.host, "host", "H", config.DefaultHost, "Host to bind to")
	cmd.Flags().IntVarP(&flags.port, "port", "p", config.DefaultPort, "Port to listen on")
	cmd.Flags().IntVar(&flags.backlog, "backlog", config.DefaultBacklog, "Listen backlog")
	cmd.Flags().IntVar(&flags.maxFrame, "max-frame", config.DefaultMaxFrameBytes, "Maximum frame payload length in bytes")
	cmd.Flags().DurationVar(&flags.idleTimeout, "idle-timeout", config.DefaultTimeout, "Close connections idle for this long")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address")
}

// resolveConfig loads the configuration file, if any, and applies the flags
// the user set explicitly on top of it.
func resolveConfig(cmd *cobra.Command, flags serveFlags) (*config.Config, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("host") {
		cfg.Host = flags.host
	}
	if changed("port") {
		cfg.Port = flags.port
	}
	if changed("backlog") {
		cfg.Backlog = flags.backlog
	}
	if changed("max-frame") {
		cfg.MaxFrameBytes = flags.maxFrame
	}
	if changed("idle-timeout") {
		cfg.Timeout = flags.idleTimeout
	}
	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = flags.metricsAddr
	}

	return cfg, nil
}

func runServe(ctx context.Context, cfg *config.Config, configPath string) error {
	var level slog.LevelVar
	level.Set(cfg.Level())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, logger, func(updated *config.Config) {
				level.Set(updated.Level())
				logger.Info("log level updated", "level", updated.Level())
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("configuration watch stopped", "error", err)
			}
		}()
	}

	collector := metrics.New()

	dispatcher := dispatch.New(
		dispatch.WithLogger(logger),
		dispatch.WithUnknownHook(collector.UnknownFrame),
	)
	login.Register(dispatcher, login.NewHandler(login.WithLogger(logger)))

	handler, err := framesocket.NewConnHandler(ctx,
		framesocket.HandlerOption(dispatcher),
		framesocket.LoggerOption(logger),
		framesocket.ObserverOption(collector),
		framesocket.IdleTimeoutOption(cfg.Timeout),
		framesocket.MaxFrameLengthOption(cfg.MaxFrameBytes),
	)
	if err != nil {
		return err
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.Addr())
	if err != nil {
		return err
	}

	server, err := framesocket.New(addr,
		framesocket.ServerLoggerOption(logger),
		framesocket.ServerBacklogOption(cfg.Backlog),
		framesocket.ServerShutdownTimeoutOption(5*time.Second),
	)
	if err != nil {
		return err
	}
	defer server.Close()

	if cfg.MetricsAddr != "" {
		admin := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           adminRouter(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics endpoint started", "addr", cfg.MetricsAddr)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = admin.Shutdown(shutdownCtx)
		}()
	}

	err = server.Serve(ctx, handler)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// adminRouter serves the Prometheus metrics and a liveness probe.
func adminRouter() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
