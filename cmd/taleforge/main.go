package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taleforge/internal/app"
	"github.com/kailas-cloud/taleforge/internal/config"
	logpkg "github.com/kailas-cloud/taleforge/internal/logger"
	"github.com/kailas-cloud/taleforge/internal/metrics"
	chiTransport "github.com/kailas-cloud/taleforge/internal/transport/chi"
	"github.com/kailas-cloud/taleforge/internal/version"
)

func main() {
	// .env is optional; real environment variables win
	dotenvErr := config.LoadDotEnv()

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if dotenvErr != nil {
		logger.Warn("Failed to load .env file", zap.Error(dotenvErr))
	}

	logger.Info("Starting taleforge API server",
		zap.String("commit", version.Commit),
		zap.String("built", version.Date),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Register quota metrics explicitly (no init())
	metrics.RegisterQuotaMetrics()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize account store", zap.Error(err))
	}
	defer a.Close()

	server := chiTransport.NewServer(a.Quota, a.Health, logger)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:        cfg.Auth.APIKeys,
		AdminAPIKeys:   cfg.Auth.AdminAPIKeys,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
