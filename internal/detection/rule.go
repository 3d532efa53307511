// Package detection evaluates compliance rules against cached asset
// facts and produces violations.
package detection

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// Operator is a condition comparison operator.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpRegex       Operator = "regex"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
)

// IsValid checks if the operator is a valid value.
func (o Operator) IsValid() bool {
	switch o {
	case OpEquals, OpContains, OpRegex, OpIn, OpNotIn, OpGreaterThan, OpLessThan:
		return true
	}
	return false
}

// Condition is a single field comparison evaluated against a fact map.
type Condition struct {
	Field    string   `yaml:"field" json:"field"`
	Operator Operator `yaml:"operator" json:"operator"`
	Value    any      `yaml:"value,omitempty" json:"value,omitempty"`
	Values   []string `yaml:"values,omitempty" json:"values,omitempty"` // For in / not_in
}

// Rule is a declarative detection rule. Rules are registered at startup
// and individually toggleable; each enabled rule is evaluated against
// the fact map of every asset matching its type.
type Rule struct {
	ID          string           `yaml:"id" json:"id"`
	Name        string           `yaml:"name" json:"name"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Severity    schema.Severity  `yaml:"severity" json:"severity"`
	Enabled     bool             `yaml:"enabled" json:"enabled"`
	AssetType   schema.AssetType `yaml:"asset_type" json:"asset_type"`
	Condition   Condition        `yaml:"condition" json:"condition"`
	// Group marks mutually exclusive rules: within one group only the
	// first matching rule (in registration order) fires per asset.
	// Ungrouped rules fire independently.
	Group     string `yaml:"group,omitempty" json:"group,omitempty"`
	Framework string `yaml:"framework,omitempty" json:"framework,omitempty"`
	Title     string `yaml:"title,omitempty" json:"title,omitempty"`
	Evidence  string `yaml:"evidence,omitempty" json:"evidence,omitempty"`
}

// Validate validates the rule configuration.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if !r.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", r.Severity)
	}
	if !r.AssetType.IsValid() {
		return fmt.Errorf("invalid asset type: %s", r.AssetType)
	}
	if err := r.Condition.Validate(); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return nil
}

// Validate validates a condition.
func (c *Condition) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("condition field is required")
	}
	if !c.Operator.IsValid() {
		return fmt.Errorf("invalid operator: %s", c.Operator)
	}
	if c.Operator == OpIn || c.Operator == OpNotIn {
		if len(c.Values) == 0 {
			return fmt.Errorf("values required for %s operator", c.Operator)
		}
	}
	if c.Operator == OpRegex {
		pattern := fmt.Sprintf("%v", c.Value)
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid regex %q: %w", pattern, err)
		}
	}
	return nil
}

// Match checks if a fact value satisfies this condition.
// A missing fact (nil) never matches; absence of data is not a finding.
func (c *Condition) Match(factValue any) bool {
	if factValue == nil {
		return false
	}

	switch c.Operator {
	case OpEquals:
		return c.matchEquals(factValue)
	case OpContains:
		return c.matchContains(factValue)
	case OpRegex:
		return c.matchRegex(factValue)
	case OpIn:
		return c.matchIn(factValue)
	case OpNotIn:
		return !c.matchIn(factValue)
	case OpGreaterThan:
		return c.matchCompare(factValue) > 0
	case OpLessThan:
		return c.matchCompare(factValue) < 0
	}
	return false
}

func (c *Condition) matchEquals(factValue any) bool {
	if strVal, ok := factValue.(string); ok {
		if condVal, ok := c.Value.(string); ok {
			return strVal == condVal
		}
	}
	if numVal, ok := toFloat64(factValue); ok {
		if condVal, ok := toFloat64(c.Value); ok {
			return numVal == condVal
		}
	}
	if boolVal, ok := factValue.(bool); ok {
		if condVal, ok := c.Value.(bool); ok {
			return boolVal == condVal
		}
	}
	return fmt.Sprintf("%v", factValue) == fmt.Sprintf("%v", c.Value)
}

func (c *Condition) matchCompare(factValue any) int {
	numVal, ok1 := toFloat64(factValue)
	condVal, ok2 := toFloat64(c.Value)
	if !ok1 || !ok2 {
		return strings.Compare(fmt.Sprintf("%v", factValue), fmt.Sprintf("%v", c.Value))
	}
	if numVal < condVal {
		return -1
	}
	if numVal > condVal {
		return 1
	}
	return 0
}

func (c *Condition) matchContains(factValue any) bool {
	str := fmt.Sprintf("%v", factValue)
	pattern := fmt.Sprintf("%v", c.Value)
	return strings.Contains(strings.ToLower(str), strings.ToLower(pattern))
}

func (c *Condition) matchRegex(factValue any) bool {
	str := fmt.Sprintf("%v", factValue)
	pattern := fmt.Sprintf("%v", c.Value)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(str)
}

func (c *Condition) matchIn(factValue any) bool {
	str := fmt.Sprintf("%v", factValue)
	for _, v := range c.Values {
		if str == v {
			return true
		}
	}
	return false
}

// ParseRule parses a rule from YAML bytes.
func ParseRule(data []byte) (*Rule, error) {
	var rule Rule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("failed to parse rule: %w", err)
	}
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule: %w", err)
	}
	return &rule, nil
}

// ParseRules parses multiple rules from YAML bytes.
func ParseRules(data []byte) ([]*Rule, error) {
	var rules []*Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		// Try single rule format
		rule, singleErr := ParseRule(data)
		if singleErr != nil {
			return nil, fmt.Errorf("failed to parse rules: %w", err)
		}
		return []*Rule{rule}, nil
	}

	for i, rule := range rules {
		if rule == nil {
			return nil, fmt.Errorf("rule %d: null entry", i)
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return rules, nil
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
