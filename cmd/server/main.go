package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/obfuscator/internal/config"
	"github.com/JonMunkholm/obfuscator/internal/core"
	"github.com/JonMunkholm/obfuscator/internal/logging"
	"github.com/JonMunkholm/obfuscator/internal/service"
	"github.com/JonMunkholm/obfuscator/internal/storage"
	"github.com/JonMunkholm/obfuscator/internal/web"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Overload lets .env win over variables already set in the shell
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := storage.New(ctx, cfg.Storage.Backends())
	if err != nil {
		slog.Error("failed to configure storage", "error", err)
		return 1
	}
	defer func() {
		if err := closeStores(); err != nil {
			slog.Warn("storage close error", "error", err)
		}
	}()
	slog.Info("storage backends registered", "schemes", stores.Schemes())

	auditor, closeAudit, err := newAuditor(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to configure audit store", "error", err)
		return 1
	}
	defer closeAudit()

	policy, err := core.ParseEmptyFieldsPolicy(cfg.Obfuscation.EmptyFields)
	if err != nil {
		slog.Error("invalid empty fields policy", "error", err)
		return 1
	}

	svc := service.New(stores, service.Options{
		MaxObjectSize: cfg.Obfuscation.MaxObjectSize,
		MaxConcurrent: cfg.Obfuscation.MaxConcurrent,
		MaxWaitTime:   cfg.Obfuscation.MaxWaitTime,
		Timeout:       cfg.Obfuscation.Timeout,
		EmptyFields:   policy,
		Auditor:       auditor,
	})
	server := web.NewServer(svc, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	slog.Info("shutting down...", "active_jobs", svc.Status().Jobs.Active)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return 1
	}
	slog.Info("server stopped")
	return 0
}

// newAuditor returns a Postgres auditor when a database is configured, and
// the log auditor otherwise.
func newAuditor(ctx context.Context, db config.DatabaseConfig) (service.Auditor, func(), error) {
	if db.URL == "" {
		slog.Info("DATABASE_URL not set, audit events go to the log")
		return service.LogAuditor{}, func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	auditor := service.NewPgAuditor(pool)
	if err := auditor.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("connected to audit database", "database", poolConfig.ConnConfig.Database)
	return auditor, pool.Close, nil
}
