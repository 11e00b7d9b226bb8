package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse reads a YAML rule file and merges it over the built-in tables. A file
// only needs to name the tables or settings it replaces:
//
//	agent:
//	  rules:
//	    - label: 引导线下/私下交易
//	      triggers: ["(加|发).{0,5}(微信|QQ)"]
//	      ignore: ["(优惠券|链接)"]
//	snooze: [在吗, 好的]
func Parse(data []byte) (*RuleSet, error) {
	var spec RuleSetSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{Table: "file", Err: err}
	}
	return Build(MergeSpec(DefaultSpec(), spec))
}

// LoadFile reads and parses a rule file from disk. An empty path returns the
// built-in rule set.
func LoadFile(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRuleSet(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	return Parse(data)
}
