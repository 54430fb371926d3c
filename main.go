package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soocke/leafscan-go/app"
	"github.com/soocke/leafscan-go/app/core"
	"github.com/soocke/leafscan-go/config"
	"github.com/soocke/leafscan-go/debug"
	"github.com/soocke/leafscan-go/server"
)

func main() {
	cfgPath := flag.String("config", config.DefaultPath(), "config file (.toml, .yaml or .json)")
	serve := flag.Bool("serve", false, "run the HTTP API instead of the desktop window")
	debugFlag := flag.Bool("debug", false, "debug logging and runtime stats")
	logFormat := flag.String("log-format", "json", "log format: json or text")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := NewLogger(level, *logFormat)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Warn("config load failed, using defaults", "path", *cfgPath, "error", err)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	setLevel(level, cfg.Debug || *debugFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if w, err := config.NewWatcher(*cfgPath, cfg); err != nil {
		logger.Debug("config watcher disabled", "error", err)
	} else {
		defer w.Close()
		w.OnChange(func(c *config.Config) {
			setLevel(level, c.Debug || *debugFlag)
			logger.Info("config reloaded", "path", *cfgPath, "debug", c.Debug)
		})
		go func() {
			for err := range w.Errors() {
				logger.Warn("config reload", "error", err)
			}
		}()
	}

	if cfg.Debug || *debugFlag {
		debug.StartGoroutineLogger(ctx, 5*time.Second, logger)
		debug.StartMemLogger(ctx, 10*time.Second, logger)
	}

	if *serve {
		err = runServer(ctx, cfg, logger)
	} else {
		err = app.NewApp("Leaf Scan", 1040, 780, cfg, *cfgPath, logger).Start()
	}
	if err != nil {
		logger.Error("exit", "error", err)
		stop()
		os.Exit(1)
	}
}

func setLevel(level *slog.LevelVar, debug bool) {
	if debug {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}

// runServer serves the HTTP API over a single camera session until ctx ends.
func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	hub := server.NewPreviewHub(logger, cfg.Server.PreviewFPS, cfg.Server.PreviewWidth)
	defer hub.Close()
	svc, err := core.Build(cfg, logger, hub, nil)
	if err != nil {
		return err
	}
	defer svc.Close()
	opts := server.Options{
		Session:   svc.Session,
		Preview:   hub,
		Diagnoser: svc.Diagnosis,
		Catalog:   svc.Catalog,
		Logger:    logger,
	}
	if svc.History != nil {
		opts.History = svc.History
	}
	return server.New(opts).ListenAndServe(ctx, cfg.Server.Listen)
}
