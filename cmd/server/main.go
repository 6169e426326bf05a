// Command server runs the lists API and frontend as a long-lived process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"heeecker-lists-backend/pkg/config"
	"heeecker-lists-backend/pkg/database"
	"heeecker-lists-backend/pkg/logging"
	"heeecker-lists-backend/pkg/server"
)

type migrator interface {
	Migrate(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if cfg.PublicDir == "" {
		log.Warn("PUBLIC_DIR is not set, frontend will not be served")
	}
	if _, err := os.Stat(cfg.LegalFile); err != nil {
		log.Warn("legal notice missing, /api/legal will return 404", zap.String("path", cfg.LegalFile))
	}

	db, err := database.NewDatabase(database.DatabaseConfig{
		Driver:      cfg.DBDriver,
		PostgresDSN: cfg.PostgresDSN,
		SQLitePath:  cfg.SQLitePath,
		DataDir:     cfg.DataDir,
		Debug:       cfg.Debug,
	}, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if m, ok := db.(migrator); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := m.Migrate(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(cfg, db, log),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("driver", cfg.DBDriver),
			zap.String("append_mode", cfg.AppendMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
