package rules

import (
	"context"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/chatrisk/internal/transcript"
	"github.com/wolfman30/chatrisk/internal/verdict"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

var matcherTracer = otel.Tracer("chatrisk/rules")

// Match is a fired rule together with the utterance it fired on.
type Match struct {
	Label     string
	Category  verdict.Category
	Penalty   int
	Reason    string
	Utterance transcript.Utterance
}

// Checkpoint renders the match the way it is stored in a verdict.
func (m Match) Checkpoint() verdict.Checkpoint {
	return verdict.Checkpoint{
		Point:  m.Penalty,
		Type:   m.Category,
		Reason: m.Reason,
		Text:   m.Utterance.Text,
	}
}

// Matcher applies a RuleSet to single utterances.
type Matcher struct {
	rules  *RuleSet
	logger *logging.Logger
}

// NewMatcher creates a matcher. A nil rule set uses the built-in tables.
func NewMatcher(rs *RuleSet, logger *logging.Logger) *Matcher {
	if rs == nil {
		rs = DefaultRuleSet()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Matcher{rules: rs, logger: logger}
}

// Rules returns the rule set in use.
func (m *Matcher) Rules() *RuleSet {
	return m.rules
}

// Evaluate dispatches on the utterance's sender. System utterances and empty
// text never match.
func (m *Matcher) Evaluate(ctx context.Context, u transcript.Utterance) (*Match, bool) {
	_, span := matcherTracer.Start(ctx, "rules.evaluate")
	defer span.End()

	var (
		match *Match
		ok    bool
	)
	switch u.Sender {
	case transcript.SenderAgent:
		match, ok = m.MatchAgent(u)
	case transcript.SenderCustomer:
		match, ok = m.MatchCustomer(u)
	}

	span.SetAttributes(
		attribute.String("rules.sender", string(u.Sender)),
		attribute.Bool("rules.matched", ok),
	)
	if ok {
		span.SetAttributes(
			attribute.String("rules.label", match.Label),
			attribute.String("rules.category", string(match.Category)),
		)
		m.logger.Debug("rule matched",
			"label", match.Label,
			"category", match.Category,
			"original_index", u.OriginalIndex,
		)
	}
	return match, ok
}

// MatchAgent checks an agent utterance against the agent table.
func (m *Matcher) MatchAgent(u transcript.Utterance) (*Match, bool) {
	if u.Text == "" {
		return nil, false
	}
	return m.match(m.rules.Agent, u)
}

// MatchCustomer checks a customer utterance. Snooze phrases are rejected
// first, then anything shorter than the minimum length, then the quality
// table is tried before the service table.
func (m *Matcher) MatchCustomer(u transcript.Utterance) (*Match, bool) {
	if u.Text == "" {
		return nil, false
	}
	if _, snoozed := m.rules.Snooze[u.Text]; snoozed {
		return nil, false
	}
	if utf8.RuneCountInString(u.Text) < m.rules.MinCustomerLen {
		return nil, false
	}
	if match, ok := m.match(m.rules.CustomerQuality, u); ok {
		return match, true
	}
	return m.match(m.rules.CustomerService, u)
}

func (m *Matcher) match(t Table, u transcript.Utterance) (*Match, bool) {
	r, ok := t.FirstMatch(u.Text)
	if !ok {
		return nil, false
	}
	return &Match{
		Label:     r.Label,
		Category:  t.Category,
		Penalty:   r.Penalty,
		Reason:    r.Reason,
		Utterance: u,
	}, true
}

// IsApology reports whether text contains an apology phrase.
func (m *Matcher) IsApology(text string) bool {
	return m.rules.Apology.Pattern.MatchString(text)
}
