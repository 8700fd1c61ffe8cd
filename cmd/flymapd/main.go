// Command flymapd serves the map sync protocol: one WebSocket endpoint
// fanning room state out to viewers, plus bootstrap and health endpoints
// for the hosting pages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clutterstack/flymap/internal/config"
	"github.com/clutterstack/flymap/internal/geo"
	"github.com/clutterstack/flymap/internal/hub"
	"github.com/clutterstack/flymap/internal/influx"
	"github.com/clutterstack/flymap/internal/logging"
	intotel "github.com/clutterstack/flymap/internal/otel"
	"github.com/clutterstack/flymap/internal/scene"
	"github.com/clutterstack/flymap/internal/server"
	"github.com/clutterstack/flymap/internal/store"
	"github.com/clutterstack/flymap/pkg/core"
)

// Version can be set at build time via ldflags.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "flymapd:", err)
		os.Exit(1)
	}
}

func run() error {
	configDir := "."
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}
	if err := config.Load(configDir); err != nil {
		return err
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}
	sessionStart := time.Now()
	logFile, err := os.OpenFile(
		logging.LogFilePath(logsDir, "flymapd", sessionStart),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	otelProvider, err := intotel.New(intotel.Config{
		Enabled:      config.GetBool("otel.enabled"),
		ServiceName:  config.GetString("otel.serviceName"),
		BatchTimeout: 5 * time.Second,
		LogWriter:    logFile,
		Endpoint:     config.GetString("otel.endpoint"),
		Insecure:     config.GetBool("otel.insecure"),
	})
	if err != nil {
		return fmt.Errorf("initializing otel: %w", err)
	}

	slogManager := logging.NewManager()
	slogManager.SetContextProvider(func() []slog.Attr {
		return []slog.Attr{
			slog.String("uptime", time.Since(sessionStart).Round(time.Second).String()),
		}
	})
	slogManager.Setup(logFile, config.GetString("logLevel"), otelProvider.LoggerProvider())
	logger := slogManager.Logger()
	logger.Info("Starting flymapd", "version", Version, "configDir", configDir)

	st, err := store.NewStore(config.Store())
	if err != nil {
		return fmt.Errorf("creating snapshot store: %w", err)
	}
	if err := st.Init(); err != nil {
		return fmt.Errorf("initializing snapshot store: %w", err)
	}
	defer st.Close()

	projector := geo.Projector{
		Mode:   geo.Mode(config.GetString("map.projection")),
		Legacy: config.GetBool("map.legacyOffFrame"),
	}

	zl := zerolog.New(logFile).With().Timestamp().Str("component", "hub").Logger()
	h, err := hub.New(hub.Config{
		OutboxSize:  config.GetInt("room.outboxSize"),
		GracePeriod: config.GetDuration("room.graceSeconds", time.Second),
		DefaultMapConfig: core.MapConfig{
			BBox: core.BBox{
				Width:  config.GetFloat("map.bbox.width"),
				Height: config.GetFloat("map.bbox.height"),
			},
			ThrottleMillis: config.GetInt("room.throttleMillis"),
		},
	}, logging.NewComponentLogger(zl), scene.Builder{Projector: projector}, st)
	if err != nil {
		return fmt.Errorf("creating hub: %w", err)
	}
	defer h.Close()

	var statsSink *influx.Manager
	if config.GetBool("influx.enabled") {
		izl := zerolog.New(logFile).With().Timestamp().Str("component", "influx").Logger()
		statsSink = influx.NewManager(izl, filepath.Join(logsDir, "influx_backup.gz"))
		if err := statsSink.Connect(); err != nil {
			logger.Warn("Stats sink unavailable", "error", err)
			statsSink = nil
		} else {
			go statsSink.RunStatsSink(h, config.GetDuration("influx.intervalSeconds", time.Second))
			defer statsSink.Close()
		}
	}

	srv := server.New(server.Config{Addr: config.GetString("server.addr")}, h, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := slogManager.Flush(ctx); err != nil {
		logger.Warn("Log flush incomplete", "error", err)
	}
	if err := otelProvider.Shutdown(ctx); err != nil {
		logger.Warn("OTel shutdown incomplete", "error", err)
	}
	return nil
}
