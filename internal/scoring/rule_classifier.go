package scoring

import (
	"context"
	"fmt"

	"github.com/wolfman30/chatrisk/internal/rules"
	"github.com/wolfman30/chatrisk/internal/transcript"
	"github.com/wolfman30/chatrisk/internal/verdict"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

// RuleClassifier scores a conversation with the local rule tables.
type RuleClassifier struct {
	matcher *rules.Matcher
	logger  *logging.Logger
}

// NewRuleClassifier creates a rule-based classifier. A nil matcher uses the
// built-in tables.
func NewRuleClassifier(matcher *rules.Matcher, logger *logging.Logger) *RuleClassifier {
	if logger == nil {
		logger = logging.Default()
	}
	if matcher == nil {
		matcher = rules.NewMatcher(nil, logger)
	}
	return &RuleClassifier{matcher: matcher, logger: logger}
}

func (c *RuleClassifier) Name() string { return KindRules }

// Classify never fails; the error is there to satisfy Classifier.
func (c *RuleClassifier) Classify(ctx context.Context, convID string, utts []transcript.Utterance) (*verdict.Verdict, error) {
	acc := tally{seen: make(map[int]struct{})}
	for _, u := range utts {
		acc = c.step(ctx, acc, u)
	}
	v := acc.verdict(c.matcher.Rules().Apology)
	if v.IsRisk {
		c.logger.Debug("conversation flagged",
			"conversation_id", convID,
			"checkpoints", len(v.Checkpoints),
			"score", v.Score,
		)
	}
	return v, nil
}

// tally is the fold state for one conversation.
type tally struct {
	checkpoints []verdict.Checkpoint
	highlights  []int
	seen        map[int]struct{}
	deduction   int
	apologies   int
}

func (c *RuleClassifier) step(ctx context.Context, acc tally, u transcript.Utterance) tally {
	if u.Sender == transcript.SenderSystem || u.Text == "" {
		return acc
	}
	if u.Sender == transcript.SenderAgent && c.matcher.IsApology(u.Text) {
		acc.apologies++
	}
	match, ok := c.matcher.Evaluate(ctx, u)
	if !ok {
		return acc
	}
	acc.checkpoints = append(acc.checkpoints, match.Checkpoint())
	if _, dup := acc.seen[u.OriginalIndex]; !dup {
		acc.seen[u.OriginalIndex] = struct{}{}
		acc.highlights = append(acc.highlights, u.OriginalIndex)
	}
	// Customer matches are signal for reviewers, never a deduction.
	if u.Sender == transcript.SenderAgent && match.Category.DeductionEligible() {
		acc.deduction += match.Penalty
	}
	return acc
}

func (acc tally) verdict(apology rules.ApologyRule) *verdict.Verdict {
	if acc.apologies >= apology.Threshold && acc.deduction == 0 {
		acc.deduction += apology.Penalty
		acc.checkpoints = append(acc.checkpoints, verdict.Checkpoint{
			Point:  apology.Penalty,
			Type:   verdict.CategorySystemHeuristic,
			Reason: apology.Reason,
			Text:   apology.Text,
		})
	}

	v := verdict.Empty()
	v.Score = verdict.Clamp(verdict.MaxScore - acc.deduction)
	if len(acc.checkpoints) > 0 {
		v.IsRisk = true
		v.Summary = fmt.Sprintf("发现 %d 处异常", len(acc.checkpoints))
		v.Checkpoints = acc.checkpoints
	}
	if len(acc.highlights) > 0 {
		v.HighlightIndices = acc.highlights
	}
	return v
}
