package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"skoglogg/internal/cache"
	"skoglogg/internal/config"
	"skoglogg/internal/core"
	"skoglogg/internal/events"
	apphttp "skoglogg/internal/http"
	applog "skoglogg/internal/log"
	"skoglogg/internal/services"
	"skoglogg/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := applog.New(applog.Config{
		Level:     level,
		Component: applog.ComponentApp,
	})
	slog.SetDefault(logger.Logger)

	store, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open measurement store", "error", err, "db_path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	notifier := events.NewNotifier()
	ledger := services.NewLedgerService(store, services.NewAggregateMaintainer(store), notifier)
	sessions := services.NewSessionManager(store)

	reportCache := cache.NewLRUCache[core.WindowReport](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	reporter := services.NewReporter(store, reportCache)
	reporter.WatchLedger(notifier)

	cacheManager := cache.NewManager()
	cacheManager.Register(reportCache)
	cacheManager.StartCleanup(cfg.ReportCacheTTL)

	srv := apphttp.NewServer(ledger, sessions, reporter, notifier).HTTPServer(":" + cfg.Port)

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting skoglogg server",
		"port", cfg.Port,
		"db_path", cfg.SQLiteDBPath,
		"report_cache_ttl", cfg.ReportCacheTTL.String())

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()

	cacheManager.Stop()
	if err := ledger.Close(); err != nil {
		logger.Error("Failed to close ledger", "error", err)
	}
	logger.Info("Server stopped")
}
