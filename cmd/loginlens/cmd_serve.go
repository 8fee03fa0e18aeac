package main

// ---------------------------------------------------------------------------
// cmd_serve.go — run the HTTP API, optionally with NATS publishing and the
// drop-directory watcher
// ---------------------------------------------------------------------------

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loginlens-project/loginlens/internal/api"
	"github.com/loginlens-project/loginlens/internal/bus"
	"github.com/loginlens-project/loginlens/internal/watch"
)

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	port := fs.Int("port", 0, "API port override")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Detection.Validate(); err != nil {
		errorf("invalid detection settings in config: %v", err)
	}
	logger := newLogger(cfg.Logging)

	var publisher *bus.Publisher
	if cfg.Bus.Enabled {
		var err error
		publisher, err = bus.NewPublisher(&cfg.Bus, logger)
		if err != nil {
			errorf("starting alert bus: %v", err)
		}
		defer publisher.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Watch.Enabled {
		watcher, err := watch.New(cfg.Watch, cfg.Detection, cfg.Snapshot.Path, publisher, logger)
		if err != nil {
			errorf("starting watcher: %v", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("watcher stopped")
			}
		}()
	}

	server := api.NewServer(cfg, logger, publisher)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutting down API server")
		}
	}()

	if err := server.Start(); err != nil {
		errorf("%v", err)
	}
	logger.Info().Msg("shutdown complete")
}
