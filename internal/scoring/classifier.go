// Package scoring turns a conversation's utterances into a Verdict, either by
// applying the rule tables locally or by delegating to an external model.
package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/chatrisk/internal/llm"
	"github.com/wolfman30/chatrisk/internal/observability/metrics"
	"github.com/wolfman30/chatrisk/internal/rules"
	"github.com/wolfman30/chatrisk/internal/transcript"
	"github.com/wolfman30/chatrisk/internal/verdict"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

var (
	// ErrNoTranscript means nothing survived compaction; the conversation is
	// skipped rather than sent out.
	ErrNoTranscript = errors.New("scoring: no transcript to classify")
	// ErrClassificationUnavailable wraps transport failures and timeouts of
	// the external classifier.
	ErrClassificationUnavailable = errors.New("scoring: classification unavailable")
	// ErrUnparseableResponse means the external classifier answered with
	// something that is not the expected JSON object.
	ErrUnparseableResponse = errors.New("scoring: unparseable classifier response")
)

// Classifier kinds selectable by configuration.
const (
	KindRules = "rules"
	KindLLM   = "llm"
)

// Classifier produces a verdict for one conversation.
type Classifier interface {
	Classify(ctx context.Context, convID string, utts []transcript.Utterance) (*verdict.Verdict, error)
	Name() string
}

// Options carries the dependencies New may need.
type Options struct {
	Matcher  *rules.Matcher
	LLM      llm.Client
	External ExternalConfig
	Logger   *logging.Logger
	Metrics  *metrics.ClassificationMetrics
}

// New selects the classifier variant by kind.
func New(kind string, opts Options) (Classifier, error) {
	switch kind {
	case "", KindRules:
		return NewRuleClassifier(opts.Matcher, opts.Logger), nil
	case KindLLM:
		if opts.LLM == nil {
			return nil, errors.New("scoring: llm classifier requires an llm client")
		}
		return NewExternalClassifier(opts.LLM, opts.External, opts.Logger, opts.Metrics), nil
	default:
		return nil, fmt.Errorf("scoring: unknown classifier %q", kind)
	}
}

// Retryable reports whether err is a per-conversation failure that a later
// attempt might not hit again.
func Retryable(err error) bool {
	return errors.Is(err, ErrClassificationUnavailable)
}
