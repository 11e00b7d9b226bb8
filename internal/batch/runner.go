// Package batch classifies whole day collections: every conversation of a
// day is scored and the results are written back as one collection.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/chatrisk/internal/daystore"
	"github.com/wolfman30/chatrisk/internal/observability/metrics"
	"github.com/wolfman30/chatrisk/internal/scoring"
	"github.com/wolfman30/chatrisk/internal/transcript"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

// Conversation outcomes reported to metrics.
const (
	OutcomeRisky   = "risky"
	OutcomeClean   = "clean"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

const defaultRetryBase = time.Second

// Source lists and reads raw day files.
type Source interface {
	Read(ctx context.Context, date string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
}

// Sink folds the classified conversations of one day into the stored
// collection. Stored verdicts and records missing from convs survive.
type Sink interface {
	Merge(ctx context.Context, date string, convs []transcript.Conversation) (daystore.MergeResult, error)
}

// Config tunes a Runner.
type Config struct {
	// Concurrency is the number of day files processed at once.
	Concurrency int
	// Retries is how many extra attempts a conversation gets after a
	// retryable classifier failure.
	Retries   int
	RetryBase time.Duration
	// OnlyRisky drops conversations without findings from the output.
	OnlyRisky bool
}

// Report summarizes a run.
type Report struct {
	Files         int
	FailedFiles   int
	Conversations int
	Risky         int
	Skipped       int
	Failed        int
}

func (r *Report) add(o Report) {
	r.Files += o.Files
	r.FailedFiles += o.FailedFiles
	r.Conversations += o.Conversations
	r.Risky += o.Risky
	r.Skipped += o.Skipped
	r.Failed += o.Failed
}

// Runner drives classification over day files.
type Runner struct {
	cfg        Config
	source     Source
	sink       Sink
	classifier scoring.Classifier
	logger     *logging.Logger
	metrics    *metrics.ClassificationMetrics
}

// NewRunner wires a runner.
func NewRunner(cfg Config, source Source, sink Sink, classifier scoring.Classifier, logger *logging.Logger, m *metrics.ClassificationMetrics) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		sink:       sink,
		classifier: classifier,
		logger:     logger,
		metrics:    m,
	}
}

// Run processes every day file the source lists. A day that fails is counted
// in the report; the other days still run. Only cancellation aborts a run.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	dates, err := r.source.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("batch: list source: %w", err)
	}
	r.logger.Info("batch run started", "files", len(dates), "concurrency", r.cfg.Concurrency, "classifier", r.classifier.Name())

	var (
		mu    sync.Mutex
		total Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, date := range dates {
		g.Go(func() error {
			rep, err := r.RunDate(gctx, date)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Error("day file failed", "date", date, "error", err)
				rep.FailedFiles++
			}
			mu.Lock()
			total.add(rep)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}

	r.logger.Info("batch run finished",
		"files", total.Files,
		"failed_files", total.FailedFiles,
		"conversations", total.Conversations,
		"risky", total.Risky,
		"skipped", total.Skipped,
		"failed", total.Failed,
	)
	return total, nil
}

// RunDate classifies one day. Conversations are handled in file order.
func (r *Runner) RunDate(ctx context.Context, date string) (Report, error) {
	rep := Report{Files: 1}
	if err := daystore.ValidateDate(date); err != nil {
		return rep, err
	}
	data, err := r.source.Read(ctx, date)
	if err != nil {
		return rep, fmt.Errorf("batch: read %s: %w", date, err)
	}
	convs, err := transcript.DecodeDay(data)
	if err != nil {
		return rep, fmt.Errorf("batch: decode %s: %w", date, err)
	}

	log := r.logger.With("date", date)
	out := make([]transcript.Conversation, 0, len(convs))
	for i := range convs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		conv := convs[i]
		rep.Conversations++
		outcome, err := r.classify(ctx, &conv)
		r.metrics.ObserveConversation(r.classifier.Name(), outcome)
		switch outcome {
		case OutcomeSkipped:
			rep.Skipped++
			continue
		case OutcomeFailed:
			rep.Failed++
			log.Warn("conversation not classified", "conversation_id", string(conv.ID), "error", err)
			continue
		case OutcomeRisky:
			rep.Risky++
		}
		if r.cfg.OnlyRisky && outcome != OutcomeRisky {
			continue
		}
		out = append(out, conv)
	}

	if len(out) == 0 {
		log.Info("nothing to save", "conversations", rep.Conversations)
		return rep, nil
	}
	merged, err := r.sink.Merge(ctx, date, out)
	if err != nil {
		return rep, fmt.Errorf("batch: save %s: %w", date, err)
	}
	log.Info("day classified",
		"conversations", rep.Conversations,
		"risky", rep.Risky,
		"added", merged.Added,
		"refreshed", merged.Refreshed,
		"kept_verdicts", merged.KeptVerdicts,
		"retained", merged.Retained,
	)
	return rep, nil
}

func (r *Runner) classify(ctx context.Context, conv *transcript.Conversation) (string, error) {
	transcript.Repair(conv)
	utts := transcript.Normalize(conv.Messages)

	backoff := retry.WithMaxRetries(uint64(r.cfg.Retries), retry.NewFibonacci(r.cfg.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := r.classifier.Classify(ctx, string(conv.ID), utts)
		if err != nil {
			if scoring.Retryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		conv.Analysis = v
		return nil
	})
	switch {
	case errors.Is(err, scoring.ErrNoTranscript):
		return OutcomeSkipped, nil
	case err != nil:
		return OutcomeFailed, err
	}

	for _, cp := range conv.Analysis.Checkpoints {
		r.metrics.ObserveCheckpoint(string(cp.Type))
	}
	if conv.Analysis.IsRisk {
		return OutcomeRisky, nil
	}
	return OutcomeClean, nil
}
