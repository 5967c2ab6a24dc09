package rules

import (
	"fmt"

	"github.com/platinummonkey/apicompiler/pkg/linter"
	"github.com/platinummonkey/apicompiler/pkg/model"
)

// FieldCountRule flags messages with more fields than quality.complexity.max_field_count
type FieldCountRule struct {
	BaseRule
}

// NewFieldCountRule creates a new field count rule
func NewFieldCountRule() *FieldCountRule {
	return &FieldCountRule{
		BaseRule: BaseRule{
			RuleName:        "field-count",
			RuleCategory:    linter.CategoryStructure,
			RuleSeverity:    linter.SeverityWarning,
			RuleDescription: "Messages should not declare too many fields",
			Kinds:           []model.ElementKind{model.MessageKind},
		},
	}
}

// Check counts the message's fields
func (r *FieldCountRule) Check(el model.Element, ctx *linter.LintContext) []linter.Violation {
	msg, ok := el.(*model.Message)
	if !ok || ctx.Config == nil {
		return nil
	}
	limit := ctx.Config.Quality.Complexity.MaxFieldCount
	if limit <= 0 || len(msg.Fields) <= limit {
		return nil
	}
	return []linter.Violation{
		r.violation(el, fmt.Sprintf("message %s has %d fields, more than %d", msg.SimpleName(), len(msg.Fields), limit), ""),
	}
}

// MessageDepthRule flags messages nested deeper than quality.complexity.max_message_depth
type MessageDepthRule struct {
	BaseRule
}

// NewMessageDepthRule creates a new message depth rule
func NewMessageDepthRule() *MessageDepthRule {
	return &MessageDepthRule{
		BaseRule: BaseRule{
			RuleName:        "message-depth",
			RuleCategory:    linter.CategoryStructure,
			RuleSeverity:    linter.SeverityWarning,
			RuleDescription: "Messages should not be nested too deeply",
			Kinds:           []model.ElementKind{model.MessageKind},
		},
	}
}

// Check measures how many messages enclose el. Only the first message past the limit
// is reported; its nested messages are not.
func (r *MessageDepthRule) Check(el model.Element, ctx *linter.LintContext) []linter.Violation {
	if ctx.Config == nil {
		return nil
	}
	limit := ctx.Config.Quality.Complexity.MaxMessageDepth
	if limit <= 0 {
		return nil
	}
	depth := messageDepth(el)
	if depth != limit+1 {
		return nil
	}
	return []linter.Violation{
		r.violation(el, fmt.Sprintf("message %s is nested %d levels deep, more than %d", el.FullName(), depth, limit), ""),
	}
}

// messageDepth returns 1 for a top-level message
func messageDepth(el model.Element) int {
	depth := 0
	for p := el; p != nil; p = p.Parent() {
		if p.Kind() == model.MessageKind {
			depth++
		}
	}
	return depth
}
