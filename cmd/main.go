package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sunswitch/internal/api"
	"sunswitch/internal/clock"
	"sunswitch/internal/config"
	"sunswitch/internal/reconciler"
	"sunswitch/internal/shelly"
	"sunswitch/internal/suntimes"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	loc, err := config.LoadLocation(cfg.LocationPath)
	if err != nil {
		logger.Fatal("Failed to load location config", zap.Error(err))
	}

	logger.Info("Starting sunswitch",
		zap.String("device_ip", cfg.DeviceIP),
		zap.String("location", loc.Name),
		zap.Duration("poll_interval", cfg.PollInterval))

	client := shelly.NewHTTPClient(cfg.DeviceIP, cfg.Username, cfg.Password, logger)

	sun, err := suntimes.NewProvider(loc, logger)
	if err != nil {
		logger.Fatal("Failed to create sun time provider", zap.Error(err))
	}

	rec := reconciler.New(client, sun, clock.NewRealClock(), cfg.PollInterval, logger)

	// One-shot mode: `sunswitch on` / `sunswitch off` toggles the device
	// once and exits, skipping the loop entirely.
	if len(os.Args) > 1 {
		runOnce(rec, os.Args[1], logger)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.EventWatch {
		watcher := shelly.NewWatcher(cfg.DeviceIP, logger)
		rec.WakeOn(watcher.Wake())
		go watcher.Run(ctx)
	}

	var server *api.Server
	if cfg.APIPort > 0 {
		server = api.NewServer(rec.Status, logger, cfg.APIPort)
		server.Start()
	}

	// Cancel the loop on SIGINT/SIGTERM so it can stop mid-sleep.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	err = rec.Run(ctx)

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		server.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	if err != nil {
		// Device communication failures are fatal: no retry, the
		// supervisor restarts the process.
		logger.Fatal("Device communication failed", zap.Error(err))
	}

	logger.Info("Shut down cleanly")
}

// runOnce executes a single unconditional turn-on or turn-off and exits.
func runOnce(rec *reconciler.Reconciler, command string, logger *zap.Logger) {
	ctx := context.Background()

	var err error
	switch command {
	case "on":
		err = rec.TurnOn(ctx)
	case "off":
		err = rec.TurnOff(ctx)
	default:
		logger.Fatal("Unknown command, expected 'on' or 'off'", zap.String("command", command))
	}

	if err != nil {
		logger.Fatal("Device communication failed", zap.Error(err))
	}
}
