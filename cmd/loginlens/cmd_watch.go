package main

// ---------------------------------------------------------------------------
// cmd_watch.go — analyze dataset files dropped into a directory
// ---------------------------------------------------------------------------

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/loginlens-project/loginlens/internal/bus"
	"github.com/loginlens-project/loginlens/internal/watch"
)

func cmdWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	dir := fs.String("dir", "", "Directory to watch (overrides config)")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if *dir != "" {
		cfg.Watch.Dir = *dir
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

	watcher, err := watch.New(cfg.Watch, cfg.Detection, cfg.Snapshot.Path, publisher, logger)
	if err != nil {
		errorf("starting watcher: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watcher.Run(ctx); err != nil {
		errorf("watcher: %v", err)
	}
}
