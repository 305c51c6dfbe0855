package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alexbotov/smashrelay/internal/api"
	"github.com/alexbotov/smashrelay/internal/audit"
	"github.com/alexbotov/smashrelay/internal/auth"
	"github.com/alexbotov/smashrelay/internal/config"
	"github.com/alexbotov/smashrelay/internal/control"
	"github.com/alexbotov/smashrelay/internal/database"
	"github.com/alexbotov/smashrelay/internal/limits"
	"github.com/alexbotov/smashrelay/internal/score"
	"github.com/alexbotov/smashrelay/internal/store"
	"github.com/alexbotov/smashrelay/pkg/smashpros"
)

func main() {
	// smashrelay hash-password <password> prints a value for RELAY_ADMIN_PASSWORD_HASH
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		hash, err := auth.HashPassword(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg := config.Load()
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Score storage
	var (
		st       store.Store
		auditSvc *audit.Service
		sqlDB    *sql.DB
	)
	switch cfg.Score.Backend {
	case config.BackendFile:
		st = store.NewFileStore(cfg.Score.FilePath)
		auditSvc = audit.New(nil, logger)
		logger.Info("using score file", "path", cfg.Score.FilePath)
	case config.BackendPostgres:
		db, err := database.New(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		sqlDB = db.DB
		st = store.NewPostgresStore(sqlDB)
		auditSvc = audit.New(sqlDB, logger)
		logger.Info("using score database", "driver", cfg.Database.Driver)
	default:
		return fmt.Errorf("unknown score backend %q", cfg.Score.Backend)
	}

	scoreSvc := score.New(st, auditSvc, logger)
	if cfg.Score.CreateIfMissing {
		if err := scoreSvc.EnsureInitialized(ctx); err != nil {
			return err
		}
	}

	// The lock only survives restarts with a database
	controlSvc := control.New(sqlDB, auditSvc, logger)
	if err := controlSvc.LoadState(ctx); err != nil {
		return err
	}

	upstream := smashpros.NewClient(&smashpros.ClientConfig{
		BaseURL:    cfg.Upstream.BaseURL,
		Timeout:    cfg.Upstream.Timeout,
		RetryCount: cfg.Upstream.RetryCount,
		UserAgent:  "smashrelay/" + api.Version,
	})

	generated, err := cfg.Auth.EnsureJWTSecret()
	if err != nil {
		return err
	}
	if generated {
		logger.Warn("RELAY_JWT_SECRET not set, using a random key; tokens expire on restart")
	}
	authSvc := auth.New(&cfg.Auth)
	if authSvc.Enabled() {
		logger.Info("admin auth enabled for mutating routes")
	}

	handler := api.New(upstream, scoreSvc, controlSvc, auditSvc, authSvc, logger, api.Options{
		StrictParams: cfg.Upstream.StrictParams,
		Limits:       limits.New(cfg.Limits),
	})
	defer handler.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.SetupRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "upstream", upstream.BaseURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
