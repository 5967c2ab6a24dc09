// Package linter provides the style rule engine run while establishing the Linted stage.
//
// # Overview
//
// Rules inspect model elements and return violations. The engine walks every file of a
// model, runs the enabled rules that apply to each element and reports violations as
// diagnostics through Model.ReportLint, so "@api:suppress:<id>" directives apply to them
// the same way they apply to aspect lint findings.
//
// A violation is identified as "<category>-<rule>", e.g. "naming-field".
//
// # Rule Categories
//
// Naming: Message, field, enum, enum value, interface and method naming conventions
// Documentation: Comment coverage requirements
// Structure: Message nesting depth and field count limits
//
// # Usage Example
//
//	config, err := linter.LoadConfigFromDir(".")
//	if err != nil {
//		return err
//	}
//	engine := linter.NewLintEngine(config)
//	rules.RegisterDefaultRules(engine.Registry())
//
//	result := engine.Lint(m)
//	fmt.Printf("%d violations, %d suppressed\n", len(result.Violations), result.Suppressed)
//
// Configuration (apicompiler-lint.yaml):
//
//	version: v1
//	lint:
//	  rules:
//	    naming-field: false        # disable
//	    naming-method: warning     # downgrade
//	  categories:
//	    documentation: error
//	  ignore:
//	    - google/**
//
// # Related Packages
//
//   - pkg/linter/rules: Built-in rules
//   - pkg/processors: Runs the engine for the Linted stage
package linter
