package rules

import (
	"github.com/platinummonkey/apicompiler/pkg/linter"
	"github.com/platinummonkey/apicompiler/pkg/model"
)

// BaseRule provides common functionality for rules
type BaseRule struct {
	RuleName        string
	RuleCategory    linter.Category
	RuleSeverity    linter.Severity
	RuleDescription string
	Kinds           []model.ElementKind
}

func (r *BaseRule) Name() string                   { return r.RuleName }
func (r *BaseRule) Category() linter.Category      { return r.RuleCategory }
func (r *BaseRule) Severity() linter.Severity      { return r.RuleSeverity }
func (r *BaseRule) Description() string            { return r.RuleDescription }
func (r *BaseRule) AppliesTo() []model.ElementKind { return r.Kinds }

func (r *BaseRule) violation(el model.Element, message, suggestion string) linter.Violation {
	return linter.Violation{
		Rule:       r.RuleName,
		Category:   r.RuleCategory,
		Message:    message,
		Element:    el,
		Suggestion: suggestion,
	}
}
