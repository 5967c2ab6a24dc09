package rules

import "github.com/platinummonkey/apicompiler/pkg/linter"

// DefaultRules returns new instances of every built-in rule
func DefaultRules() []linter.Rule {
	return []linter.Rule{
		// Naming rules
		NewMessageNamingRule(),
		NewFieldNamingRule(),
		NewInterfaceNamingRule(),
		NewMethodNamingRule(),
		NewEnumNamingRule(),
		NewEnumValueNamingRule(),

		// Structure rules
		NewFieldCountRule(),
		NewMessageDepthRule(),
	}
}

// RegisterDefaultRules registers all built-in lint rules
func RegisterDefaultRules(registry *linter.RuleRegistry) {
	for _, rule := range DefaultRules() {
		registry.Register(rule)
	}
}
