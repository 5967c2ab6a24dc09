package linter

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/apicompiler/pkg/diag"
	"github.com/platinummonkey/apicompiler/pkg/model"
)

// LintEngine orchestrates the linting process
type LintEngine struct {
	config   *Config
	registry *RuleRegistry
	logger   *logrus.Logger
}

// NewLintEngine creates a new lint engine with an empty registry
func NewLintEngine(config *Config) *LintEngine {
	if config == nil {
		config = DefaultConfig()
	}

	return &LintEngine{
		config:   config,
		registry: NewRuleRegistry(),
		logger:   logrus.New(),
	}
}

// WithLogger replaces the engine's logger
func (e *LintEngine) WithLogger(logger *logrus.Logger) *LintEngine {
	if logger != nil {
		e.logger = logger
	}
	return e
}

func (e *LintEngine) Registry() *RuleRegistry { return e.registry }
func (e *LintEngine) Config() *Config         { return e.config }

// Lint runs all enabled rules against every file of m that is not ignored. Violations
// are reported on m as diagnostics; suppressed violations are counted but not returned.
func (e *LintEngine) Lint(m *model.Model) LintResult {
	result := LintResult{
		Violations: make([]Violation, 0),
	}

	rules := e.registry.GetEnabledRules(e.config)
	byKind := make(map[model.ElementKind][]Rule)
	for _, rule := range rules {
		for _, kind := range rule.AppliesTo() {
			byKind[kind] = append(byKind[kind], rule)
		}
	}

	for _, file := range m.Files() {
		if e.config.Ignored(file.SimpleName()) {
			e.logger.WithField("file", file.SimpleName()).Debug("Skipping ignored file")
			continue
		}
		ctx := &LintContext{
			Model:  m,
			File:   file,
			Config: e.config,
		}
		model.Walk(file, func(el model.Element) bool {
			for _, rule := range byKind[el.Kind()] {
				for _, v := range rule.Check(el, ctx) {
					if v.Severity == "" {
						v.Severity = e.config.SeverityFor(rule)
					}
					if e.report(m, rule, v) == diag.Suppressed {
						result.Suppressed++
						continue
					}
					result.Violations = append(result.Violations, v)
				}
			}
			return true
		})

		if e.config.Quality.Enabled {
			metrics := calculateMetrics(file)
			result.Metrics = append(result.Metrics, metrics)
			e.checkCoverage(m, file, metrics, &result)
		}
	}

	e.logger.WithFields(logrus.Fields{
		"run_id":     m.RunID(),
		"rules":      len(rules),
		"violations": len(result.Violations),
		"suppressed": result.Suppressed,
	}).Debug("Lint finished")
	return result
}

func (e *LintEngine) report(m *model.Model, rule Rule, v Violation) diag.AddResult {
	msg := v.Message
	if v.Suggestion != "" {
		msg = fmt.Sprintf("%s (suggested: %s)", msg, v.Suggestion)
	}
	return m.ReportLint(string(rule.Category()), rule.Name(), v.Element, v.Severity.Kind(), "%s", msg)
}

func (e *LintEngine) checkCoverage(m *model.Model, file *model.File, metrics FileMetrics, result *LintResult) {
	required := e.config.Quality.DocumentationCoverage.MinCoverage
	if required <= 0 || metrics.Elements == 0 || metrics.DocumentationCoverage >= required {
		return
	}
	v := Violation{
		Rule:     "coverage",
		Severity: SeverityWarning,
		Category: CategoryDocumentation,
		Message: fmt.Sprintf("documentation coverage of %s is %.1f%%, below the required %.1f%%",
			file.SimpleName(), metrics.DocumentationCoverage, required),
		Element: file,
	}
	res := m.ReportLint(string(v.Category), v.Rule, file, diag.Warning, "%s", v.Message)
	if res == diag.Suppressed {
		result.Suppressed++
		return
	}
	result.Violations = append(result.Violations, v)
}

// calculateMetrics counts documented messages, fields, interfaces and methods
func calculateMetrics(file *model.File) FileMetrics {
	metrics := FileMetrics{FilePath: file.SimpleName()}
	model.Walk(file, func(el model.Element) bool {
		documented := el.Comment() != ""
		switch e := el.(type) {
		case *model.Message:
			if e.IsMapEntry() {
				return false
			}
			metrics.MessageCount++
			if documented {
				metrics.CommentedMessages++
			}
		case *model.Field:
			metrics.FieldCount++
			if documented {
				metrics.CommentedFields++
			}
		case *model.Interface, *model.Method:
			metrics.Elements++
			if documented {
				metrics.Commented++
			}
		}
		return true
	})
	metrics.Elements += metrics.MessageCount + metrics.FieldCount
	metrics.Commented += metrics.CommentedMessages + metrics.CommentedFields
	if metrics.Elements > 0 {
		metrics.DocumentationCoverage = 100 * float64(metrics.Commented) / float64(metrics.Elements)
	}
	return metrics
}

// GenerateSummary creates a summary of lint results
func GenerateSummary(results []LintResult) Summary {
	var summary Summary
	for _, result := range results {
		summary.TotalFiles += len(result.Metrics)
		summary.TotalViolations += len(result.Violations)
		summary.Suppressed += result.Suppressed
		for _, v := range result.Violations {
			switch v.Severity {
			case SeverityError:
				summary.Errors++
			case SeverityWarning:
				summary.Warnings++
			}
		}
	}
	return summary
}

// LintResult contains the result of linting one model
type LintResult struct {
	Violations []Violation
	Suppressed int
	Metrics    []FileMetrics
}

// Violation represents a linting violation
type Violation struct {
	Rule     string
	Severity Severity
	Category Category
	Message  string
	Element  model.Element
	// Suggestion is a replacement name when the rule can compute one
	Suggestion string
}

// Severity indicates how serious a violation is
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityOff     Severity = "off"
)

// ParseSeverity parses a configured severity name
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityError, SeverityWarning, SeverityOff:
		return Severity(s), nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Kind maps a severity to the diagnostic kind it is reported as
func (s Severity) Kind() diag.Kind {
	if s == SeverityError {
		return diag.Error
	}
	return diag.Warning
}

// Category groups related rules
type Category string

const (
	CategoryNaming        Category = "naming"
	CategoryDocumentation Category = "documentation"
	CategoryStructure     Category = "structure"
)

// FileMetrics contains quality metrics for a file
type FileMetrics struct {
	FilePath          string
	MessageCount      int
	FieldCount        int
	CommentedMessages int
	CommentedFields   int
	// Elements and Commented also include interfaces and methods
	Elements              int
	Commented             int
	DocumentationCoverage float64
}

// Summary provides an overview of all lint results
type Summary struct {
	TotalFiles      int
	TotalViolations int
	Errors          int
	Warnings        int
	Suppressed      int
}

// LintContext provides context during rule checking
type LintContext struct {
	Model  *model.Model
	File   *model.File
	Config *Config
}
