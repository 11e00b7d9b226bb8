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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/chatrisk/internal/api/router"
	"github.com/wolfman30/chatrisk/internal/app/bootstrap"
	"github.com/wolfman30/chatrisk/internal/compliance"
	appconfig "github.com/wolfman30/chatrisk/internal/config"
	"github.com/wolfman30/chatrisk/internal/http/handlers"
	"github.com/wolfman30/chatrisk/internal/observability/metrics"
	"github.com/wolfman30/chatrisk/internal/review"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting review server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"lock", cfg.LockBackend,
	)

	ctx := context.Background()
	reg := prometheus.NewRegistry()
	handler, cleanup, err := buildHandler(ctx, cfg, reg, logger)
	if err != nil {
		logger.Error("failed to start review server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildHandler wires storage, review service, audit log and routes. The
// returned cleanup closes the connections it opened.
func buildHandler(ctx context.Context, cfg *appconfig.Config, reg *prometheus.Registry, logger *logging.Logger) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	reviewMetrics := metrics.NewReviewMetrics(reg)
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, cfg.LockBackend == bootstrap.LockRedis)
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
	}

	store, err := bootstrap.BuildStore(ctx, cfg, bootstrap.NewAWSLoader(cfg), bootstrap.StoreDeps{
		Redis:  redisClient,
		Logger: logger,
		OnLockWait: func(d time.Duration) {
			reviewMetrics.ObserveLockWait(d.Seconds())
		},
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	auditDB := bootstrap.OpenAuditDB(ctx, cfg.DatabaseURL, logger)
	if auditDB != nil {
		closers = append(closers, func() { _ = auditDB.Close() })
		logger.Info("review audit log enabled")
	}
	audit := compliance.NewAuditService(auditDB)

	svc := review.NewService(store, audit, reviewMetrics, logger)
	h := router.New(&router.Config{
		Logger:             logger,
		ReviewHandler:      handlers.NewReviewHandler(store, svc, audit, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ReviewRateLimit:    cfg.ReviewRateLimit,
		ReviewRateBurst:    cfg.ReviewRateBurst,
	})
	return h, cleanup, nil
}
