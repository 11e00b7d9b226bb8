// Command analyzer classifies raw day files and writes the scored
// collections to the processed store.
//
// Usage:
//
//	analyzer [-mode=run] [-date=2026-01-13,2026-01-14]
//	analyzer -mode=worker
//	analyzer -mode=enqueue -date=2026-01-13
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/chatrisk/cmd/mainconfig"
	"github.com/wolfman30/chatrisk/internal/app/bootstrap"
	"github.com/wolfman30/chatrisk/internal/batch"
	appconfig "github.com/wolfman30/chatrisk/internal/config"
	"github.com/wolfman30/chatrisk/internal/daystore"
	"github.com/wolfman30/chatrisk/internal/observability/metrics"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "run", "run, worker or enqueue")
	dates := flag.String("date", "", "comma-separated YYYY-MM-DD days (default: every day file in SOURCE_DIR)")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *mode, splitDates(*dates), prometheus.DefaultRegisterer, logger); err != nil {
		logger.Error("analyzer failed", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appconfig.Config, mode string, dates []string, reg prometheus.Registerer, logger *logging.Logger) error {
	loadAWS := bootstrap.NewAWSLoader(cfg)

	switch mode {
	case "enqueue":
		return enqueue(ctx, cfg, loadAWS, dates, logger)
	case "run", "worker":
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	runner, cleanup, err := buildRunner(ctx, cfg, loadAWS, reg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	switch mode {
	case "run":
		return runOnce(ctx, runner, dates, logger)
	case "worker":
		queue, err := buildQueue(ctx, cfg, loadAWS)
		if err != nil {
			return err
		}
		return batch.NewQueueWorker(queue, runner, logger).Run(ctx)
	}
	return nil
}

func buildRunner(ctx context.Context, cfg *appconfig.Config, loadAWS bootstrap.AWSLoader, reg prometheus.Registerer, logger *logging.Logger) (*batch.Runner, func(), error) {
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, cfg.LockBackend == bootstrap.LockRedis)
	cleanup := func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}

	store, err := bootstrap.BuildStore(ctx, cfg, loadAWS, bootstrap.StoreDeps{Redis: redisClient, Logger: logger})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	classificationMetrics := metrics.NewClassificationMetrics(reg)
	classifier, err := bootstrap.BuildClassifier(ctx, cfg, loadAWS, classificationMetrics, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	runner := batch.NewRunner(batch.Config{
		Concurrency: cfg.AnalyzerConcurrency,
		Retries:     cfg.AnalyzerRetries,
		OnlyRisky:   cfg.OnlySaveRiskItems,
	}, daystore.NewFSBackend(cfg.SourceDir), store, classifier, logger, classificationMetrics)
	return runner, cleanup, nil
}

func runOnce(ctx context.Context, runner *batch.Runner, dates []string, logger *logging.Logger) error {
	if len(dates) == 0 {
		_, err := runner.Run(ctx)
		return err
	}
	var errs []error
	for _, date := range dates {
		rep, err := runner.RunDate(ctx, date)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", date, err))
			continue
		}
		logger.Info("day done", "date", date, "conversations", rep.Conversations, "risky", rep.Risky, "failed", rep.Failed)
	}
	return errors.Join(errs...)
}

func buildQueue(ctx context.Context, cfg *appconfig.Config, loadAWS bootstrap.AWSLoader) (*batch.SQSQueue, error) {
	if strings.TrimSpace(cfg.AnalyzerQueueURL) == "" {
		return nil, errors.New("ANALYZER_QUEUE_URL is required")
	}
	awsCfg, err := loadAWS(ctx)
	if err != nil {
		return nil, err
	}
	return batch.NewSQSQueue(mainconfig.NewSQSClient(awsCfg, cfg), cfg.AnalyzerQueueURL), nil
}

func enqueue(ctx context.Context, cfg *appconfig.Config, loadAWS bootstrap.AWSLoader, dates []string, logger *logging.Logger) error {
	if len(dates) == 0 {
		listed, err := daystore.NewFSBackend(cfg.SourceDir).List(ctx)
		if err != nil {
			return err
		}
		dates = listed
	}
	queue, err := buildQueue(ctx, cfg, loadAWS)
	if err != nil {
		return err
	}
	for _, date := range dates {
		body, err := batch.EncodeJob(date)
		if err != nil {
			return err
		}
		if err := queue.Send(ctx, body); err != nil {
			return err
		}
		logger.Info("day job enqueued", "date", date)
	}
	return nil
}

func splitDates(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
