package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/marmos91/dittopad/internal/logger"
	"github.com/marmos91/dittopad/internal/telemetry"
	"github.com/marmos91/dittopad/pkg/config"
	"github.com/marmos91/dittopad/pkg/metrics"
	"github.com/marmos91/dittopad/pkg/server"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the notepad server",
	Long: `Start the DittoPad server in the foreground.

Without a configuration file the server uses built-in defaults: notepad on
0.0.0.0:8080, user files under ./users, monitoring API on port 8081.

The server runs until it receives SIGINT or SIGTERM, then drains open
sessions for up to shutdown_timeout before closing them.

Examples:
  # Start with defaults or the default config file
  dittopad start

  # Start with custom config file
  dittopad start --config /etc/dittopad/config.yaml

  # Override settings from the environment
  DITTOPAD_ADAPTERS_NOTEPAD_PORT=9000 DITTOPAD_LOGGING_LEVEL=DEBUG dittopad start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Write the process id to this file while running")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.ToTelemetryConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(cfg.ToProfilingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.InitRegistry()
		logger.Info("Metrics enabled", "endpoint", "/metrics", "api_enabled", cfg.API.Enabled)
	}

	st, err := config.CreateStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	srv, err := server.New(cfg, st, reg)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	if pidFile != "" {
		removePid, err := writePidFile(pidFile)
		if err != nil {
			_ = st.Close()
			return err
		}
		defer removePid()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown", "signal", sig.String())
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", logger.Err(err))
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error", logger.Err(err))
			return err
		}
		logger.Info("Server stopped")
	}
	return nil
}
