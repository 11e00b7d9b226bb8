// Package rules holds the ordered regular-expression tables used to flag
// individual utterances, and the matcher that applies them.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/wolfman30/chatrisk/internal/verdict"
)

// ErrInvalidRuleConfig is wrapped by every ConfigError.
var ErrInvalidRuleConfig = errors.New("rules: invalid rule configuration")

// ConfigError reports a rule that cannot be compiled. It is fatal at startup.
type ConfigError struct {
	Table   string
	Label   string
	Pattern string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("rules: table %q rule %q", e.Table, e.Label)
	if e.Pattern != "" {
		msg += fmt.Sprintf(" pattern %q", e.Pattern)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidRuleConfig}
	}
	return []error{ErrInvalidRuleConfig, e.Err}
}

// RuleSpec is the uncompiled form of a rule, as written in code or in a rule
// file. A zero Penalty inherits the table's penalty; an empty Reason inherits
// the table's reason template.
type RuleSpec struct {
	Label    string   `yaml:"label"`
	Triggers []string `yaml:"triggers"`
	Ignores  []string `yaml:"ignore"`
	Penalty  int      `yaml:"penalty"`
	Reason   string   `yaml:"reason"`
}

// RiskRule is a compiled rule. All patterns are case-insensitive.
type RiskRule struct {
	Label    string
	Triggers []*regexp.Regexp
	Ignores  []*regexp.Regexp
	Penalty  int
	Reason   string
}

// TableSpec is the uncompiled form of a Table.
type TableSpec struct {
	Name     string           `yaml:"name"`
	Category verdict.Category `yaml:"category"`
	Penalty  int              `yaml:"penalty"`
	// Reason may contain {label}, replaced by each rule's label.
	Reason string     `yaml:"reason"`
	Rules  []RuleSpec `yaml:"rules"`
}

// Table is an ordered list of rules sharing a category. Order is significant:
// the first firing rule wins.
type Table struct {
	Name     string
	Category verdict.Category
	Rules    []RiskRule
}

// Compile turns a RuleSpec into a RiskRule. table is used for error reporting.
func Compile(table string, spec RuleSpec) (RiskRule, error) {
	if spec.Penalty < 0 {
		return RiskRule{}, &ConfigError{Table: table, Label: spec.Label, Err: fmt.Errorf("negative penalty %d", spec.Penalty)}
	}
	if len(spec.Triggers) == 0 {
		return RiskRule{}, &ConfigError{Table: table, Label: spec.Label, Err: errors.New("no trigger patterns")}
	}
	triggers, err := compilePatterns(table, spec.Label, spec.Triggers)
	if err != nil {
		return RiskRule{}, err
	}
	ignores, err := compilePatterns(table, spec.Label, spec.Ignores)
	if err != nil {
		return RiskRule{}, err
	}
	return RiskRule{
		Label:    spec.Label,
		Triggers: triggers,
		Ignores:  ignores,
		Penalty:  spec.Penalty,
		Reason:   spec.Reason,
	}, nil
}

func compilePatterns(table, label string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := compileFold(p)
		if err != nil {
			return nil, &ConfigError{Table: table, Label: label, Pattern: p, Err: err}
		}
		out = append(out, re)
	}
	return out, nil
}

func compileFold(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, errors.New("empty pattern")
	}
	return regexp.Compile("(?i)" + pattern)
}

// CompileTable compiles every rule of spec, filling in table-level defaults.
func CompileTable(spec TableSpec) (Table, error) {
	if spec.Penalty < 0 {
		return Table{}, &ConfigError{Table: spec.Name, Err: fmt.Errorf("negative penalty %d", spec.Penalty)}
	}
	t := Table{Name: spec.Name, Category: spec.Category, Rules: make([]RiskRule, 0, len(spec.Rules))}
	for _, rs := range spec.Rules {
		r, err := Compile(spec.Name, rs)
		if err != nil {
			return Table{}, err
		}
		if r.Penalty == 0 {
			r.Penalty = spec.Penalty
		}
		if r.Reason == "" {
			r.Reason = strings.ReplaceAll(spec.Reason, "{label}", r.Label)
		}
		t.Rules = append(t.Rules, r)
	}
	return t, nil
}

// FirstMatch walks the table in order. A rule whose ignore pattern matches is
// skipped without looking at its triggers; the first rule with a matching
// trigger is returned and nothing after it is tried.
func (t Table) FirstMatch(text string) (*RiskRule, bool) {
	for i := range t.Rules {
		r := &t.Rules[i]
		if anyMatch(r.Ignores, text) {
			continue
		}
		if anyMatch(r.Triggers, text) {
			return r, true
		}
	}
	return nil, false
}

func anyMatch(res []*regexp.Regexp, text string) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
