package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/ringsim/internal/infrastructure/config"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/server"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override environment
	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Listen host")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode (colored logs, debug level)")
	level := flag.String("log-level", cfg.Logging.Level, "Log level: debug, info, warn, error")
	presets := flag.String("presets", cfg.Presets.Path, "Scenario preset file (yaml, toml or json)")
	noLimit := flag.Bool("no-rate-limit", !cfg.RateLimit.Enabled, "Disable per-client rate limiting")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.Logging.Development = *dev
	cfg.Logging.Level = *level
	cfg.Presets.Path = *presets
	cfg.RateLimit.Enabled = !*noLimit
	if *dev && !isFlagSet("log-level") {
		cfg.Logging.Level = "debug"
	}

	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)

	srv, err := server.NewServer(cfg, logger, version)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	// Serve until a signal arrives or the listener fails, then drain
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully")
		return srv.Close()
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
