package rules

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/platinummonkey/apicompiler/pkg/linter"
	"github.com/platinummonkey/apicompiler/pkg/model"
)

var (
	pascalCasePattern     = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	snakeCasePattern      = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	upperSnakeCasePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
)

// namingRule checks an element's simple name against a naming convention
type namingRule struct {
	BaseRule
	style   string
	check   func(string) bool
	convert func(string) string
}

func newNamingRule(name, what, style string, kind model.ElementKind, check func(string) bool, convert func(string) string) *namingRule {
	return &namingRule{
		BaseRule: BaseRule{
			RuleName:        name,
			RuleCategory:    linter.CategoryNaming,
			RuleSeverity:    linter.SeverityWarning,
			RuleDescription: what + " names must use " + style,
			Kinds:           []model.ElementKind{kind},
		},
		style:   style,
		check:   check,
		convert: convert,
	}
}

// Check validates the element's name
func (r *namingRule) Check(el model.Element, ctx *linter.LintContext) []linter.Violation {
	if msg, ok := el.(*model.Message); ok && msg.IsMapEntry() {
		return nil
	}
	name := el.SimpleName()
	if r.check(name) {
		return nil
	}
	return []linter.Violation{
		r.violation(el, el.Kind().String()+" name '"+name+"' should be "+r.style, r.convert(name)),
	}
}

// NewMessageNamingRule checks that message names follow PascalCase
func NewMessageNamingRule() linter.Rule {
	return newNamingRule("message", "Message", "PascalCase", model.MessageKind, isPascalCase, toPascalCase)
}

// NewFieldNamingRule checks that field names follow snake_case
func NewFieldNamingRule() linter.Rule {
	return newNamingRule("field", "Field", "snake_case", model.FieldKind, isSnakeCase, toSnakeCase)
}

// NewInterfaceNamingRule checks that interface (service) names follow PascalCase
func NewInterfaceNamingRule() linter.Rule {
	return newNamingRule("interface", "Interface", "PascalCase", model.InterfaceKind, isPascalCase, toPascalCase)
}

// NewMethodNamingRule checks that method names follow PascalCase
func NewMethodNamingRule() linter.Rule {
	return newNamingRule("method", "Method", "PascalCase", model.MethodKind, isPascalCase, toPascalCase)
}

// NewEnumNamingRule checks that enum names follow PascalCase
func NewEnumNamingRule() linter.Rule {
	return newNamingRule("enum", "Enum", "PascalCase", model.EnumKind, isPascalCase, toPascalCase)
}

// NewEnumValueNamingRule checks that enum values follow UPPER_SNAKE_CASE
func NewEnumValueNamingRule() linter.Rule {
	return newNamingRule("enum-value", "Enum value", "UPPER_SNAKE_CASE", model.EnumValueKind, isUpperSnakeCase, toUpperSnakeCase)
}

// isPascalCase checks if a string is in PascalCase
func isPascalCase(s string) bool {
	return pascalCasePattern.MatchString(s)
}

// isSnakeCase checks if a string is in snake_case
func isSnakeCase(s string) bool {
	if !snakeCasePattern.MatchString(s) {
		return false
	}
	// Should not have consecutive or trailing underscores
	return !strings.Contains(s, "__") && !strings.HasSuffix(s, "_")
}

// isUpperSnakeCase checks if a string is in UPPER_SNAKE_CASE
func isUpperSnakeCase(s string) bool {
	if !upperSnakeCasePattern.MatchString(s) {
		return false
	}
	return !strings.Contains(s, "__") && !strings.HasSuffix(s, "_")
}

// toPascalCase converts a string to PascalCase
func toPascalCase(s string) string {
	var result strings.Builder
	upper := true
	for _, r := range s {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			result.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// toSnakeCase converts a string to snake_case
func toSnakeCase(s string) string {
	var result strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' && !unicode.IsUpper(runes[i-1]) {
				result.WriteRune('_')
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return strings.Trim(result.String(), "_")
}

// toUpperSnakeCase converts a string to UPPER_SNAKE_CASE
func toUpperSnakeCase(s string) string {
	if isUpperSnakeCase(s) {
		return s
	}
	return strings.ToUpper(toSnakeCase(s))
}
