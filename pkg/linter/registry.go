package linter

import (
	"sort"

	"github.com/platinummonkey/apicompiler/pkg/model"
)

// Rule interface that all lint rules must implement
type Rule interface {
	Name() string
	Category() Category
	Severity() Severity
	Description() string
	// AppliesTo lists the element kinds Check is called for
	AppliesTo() []model.ElementKind
	Check(el model.Element, ctx *LintContext) []Violation
}

// RuleID returns the identifier diagnostics and configuration use for rule
func RuleID(rule Rule) string {
	return model.LintID(string(rule.Category()), rule.Name())
}

// RuleRegistry manages available lint rules
type RuleRegistry struct {
	rules map[string]Rule
}

// NewRuleRegistry creates an empty rule registry
func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{
		rules: make(map[string]Rule),
	}
}

// Register adds a rule to the registry, replacing any rule with the same id
func (r *RuleRegistry) Register(rule Rule) {
	r.rules[RuleID(rule)] = rule
}

// GetRule retrieves a rule by id
func (r *RuleRegistry) GetRule(id string) (Rule, bool) {
	rule, ok := r.rules[id]
	return rule, ok
}

// GetAllRules returns all registered rules sorted by id
func (r *RuleRegistry) GetAllRules() []Rule {
	rules := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, rule)
	}
	sortRules(rules)
	return rules
}

// GetEnabledRules returns the rules whose effective severity under config is not off
func (r *RuleRegistry) GetEnabledRules(config *Config) []Rule {
	if config == nil {
		return r.GetAllRules()
	}
	rules := make([]Rule, 0, len(r.rules))
	for _, rule := range r.GetAllRules() {
		if config.SeverityFor(rule) != SeverityOff {
			rules = append(rules, rule)
		}
	}
	return rules
}

// GetRulesByCategory returns rules in a specific category
func (r *RuleRegistry) GetRulesByCategory(category Category) []Rule {
	rules := make([]Rule, 0)
	for _, rule := range r.rules {
		if rule.Category() == category {
			rules = append(rules, rule)
		}
	}
	sortRules(rules)
	return rules
}

func sortRules(rules []Rule) {
	sort.Slice(rules, func(i, j int) bool {
		return RuleID(rules[i]) < RuleID(rules[j])
	})
}
