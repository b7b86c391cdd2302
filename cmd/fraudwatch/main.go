package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/fraudwatch/internal/config"
	"github.com/dukerupert/fraudwatch/internal/database"
	"github.com/dukerupert/fraudwatch/internal/logging"
	"github.com/dukerupert/fraudwatch/internal/server"
	"github.com/dukerupert/fraudwatch/internal/session"
)

func main() {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	issuer, err := session.NewIssuer(cfg.JWTSecret, cfg.Production())
	if err != nil {
		slog.Error("failed to create session issuer", "error", err)
		os.Exit(1)
	}
	if !cfg.Production() && os.Getenv("FRAUDWATCH_JWT_SECRET") == "" {
		slog.Warn("FRAUDWATCH_JWT_SECRET not set; using development secret")
	}

	srv := server.New(db, cfg, issuer, logger)

	// No WriteTimeout: the live alert feed holds connections open.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	srv.BackupManager().Start(cleanupCtx)
	slog.Info("backups", "state", string(srv.BackupManager().Status().State))
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := srv.RateLimiter().Cleanup(); n > 0 {
					slog.Debug("cleaned up rate limit windows", "count", n)
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("fraudwatch starting", "addr", ":"+cfg.Port, "env", cfg.Environment, "audit_policy", string(cfg.AuditPolicy))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down", "live_clients", srv.Hub().ClientCount())
	cleanupCancel()
	srv.BackupManager().Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
