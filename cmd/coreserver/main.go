package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/ascension/internal/config"
	"github.com/udisondev/ascension/internal/data"
	"github.com/udisondev/ascension/internal/db"
	"github.com/udisondev/ascension/internal/session"
	"github.com/udisondev/ascension/internal/statesync"
	"github.com/udisondev/ascension/internal/telemetry"
)

const CoreConfigPath = "config/core.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := CoreConfigPath
	if p := os.Getenv("ASCENSION_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadCore(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("ascension core starting", "log_level", cfg.LogLevel, "config", cfgPath)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	var tables *data.Tables
	if cfg.TablesDir != "" {
		tables, err = data.LoadTables(cfg.TablesDir)
	} else {
		tables, err = data.LoadDefaultTables()
	}
	if err != nil {
		return fmt.Errorf("loading tables: %w", err)
	}
	slog.Info("tables loaded", "dir", cfg.TablesDir, "heroes", len(tables.Heroes))

	hub := statesync.NewHub(statesync.HubConfig{
		SendQueueSize: cfg.Observer.SendQueueSize,
		WriteTimeout:  cfg.Observer.WriteTimeout,
		ReadLimit:     cfg.Observer.ReadLimit,
		CommandToken:  cfg.Observer.CommandToken,
	})
	defer hub.Close()

	opts := session.Options{
		ReconcileInterval: cfg.ReconcileInterval,
		AutoBreakthrough:  cfg.AutoBreakthrough,
		Publisher:         statesync.Fanout{statesync.LogPublisher{}, hub},
	}

	if cfg.Database.Enabled {
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		slog.Info("database connected")

		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		opts.Store = db.NewProgressRepository(database.Pool())
	} else {
		slog.Warn("database disabled, progress is kept in memory only")
	}

	sess := session.New(tables, opts)
	if cfg.Observer.CommandToken != "" {
		hub.SetCommandHandler(sess.HandleCommand)
		slog.Info("host commands enabled on observer stream")
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Observer.Path, hub)
	srv := &http.Server{
		Addr:              cfg.Observer.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := sess.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("session: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("starting observer server", "addr", srv.Addr, "path", cfg.Observer.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("observer server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		hub.Close()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
