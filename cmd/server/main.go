package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/gtfsload/internal/config"
	"github.com/JonMunkholm/gtfsload/internal/core"
	_ "github.com/JonMunkholm/gtfsload/internal/core/tables" // Register GTFS tables
	"github.com/JonMunkholm/gtfsload/internal/csvsource"
	"github.com/JonMunkholm/gtfsload/internal/logging"
	"github.com/JonMunkholm/gtfsload/internal/schema"
	"github.com/JonMunkholm/gtfsload/internal/storage"
	"github.com/JonMunkholm/gtfsload/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	if cfg.Load.SchemaFile != "" {
		if err := registerSchemaFile(cfg.Load.SchemaFile); err != nil {
			slog.Error("failed to load schema file", "path", cfg.Load.SchemaFile, "error", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	db, err := storage.New(ctx, storage.Config{
		Driver:          cfg.Database.Driver,
		URL:             cfg.Database.URL,
		FlushMode:       storage.FlushMode(cfg.Database.FlushMode),
		ConnectTimeout:  cfg.Database.ConnectTimeout,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		slog.Error("failed to connect to database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database", "driver", db.Dialect().Name())

	tables := core.All()
	slog.Info("tables registered",
		"count", len(tables),
		"extended", len(core.ExtendedTables()),
	)

	service := core.NewService(db, csvsource.OpenFeed, tables, core.ServiceConfig{
		Loader: core.LoaderConfig{
			BatchSize:              cfg.Load.BatchSize,
			ErrorBatchSize:         cfg.Load.ErrorBatchSize,
			RetainErrors:           cfg.Load.RetainErrors,
			ExtendedTables:         cfg.Load.ExtendedTables,
			ContinueOnTableFailure: cfg.Load.ContinueOnTableFailure,
		},
		Timeout:       cfg.Load.Timeout,
		MaxConcurrent: cfg.Load.MaxConcurrent,
		MaxWait:       cfg.Load.MaxWaitTime,
		Retention:     cfg.Load.Retention,
	})

	server := web.NewServer(service, db.Ping, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := service.Limiter().Active(); active > 0 {
			slog.Info("waiting for loads to complete", "active", active)
			if err := service.Shutdown(shutdownCtx); err != nil {
				slog.Warn("loads did not complete in time", "error", err)
			} else {
				slog.Info("all loads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		return
	}
	slog.Info("server stopped")
}

// registerSchemaFile adds the tables declared in path after the built-in ones.
func registerSchemaFile(path string) error {
	declared, err := schema.Load(path)
	if err != nil {
		return err
	}
	for _, t := range declared {
		core.Register(t)
	}
	slog.Info("schema file loaded", "path", path, "tables", len(declared))
	return nil
}
