package linter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/apicompiler/pkg/model"
)

type stubRule struct {
	name     string
	category Category
	severity Severity
}

func (r *stubRule) Name() string                                  { return r.name }
func (r *stubRule) Category() Category                            { return r.category }
func (r *stubRule) Severity() Severity                            { return r.severity }
func (r *stubRule) Description() string                           { return "stub" }
func (r *stubRule) AppliesTo() []model.ElementKind                { return nil }
func (r *stubRule) Check(model.Element, *LintContext) []Violation { return nil }

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NotNil(t, config)

	assert.Equal(t, "v1", config.Version)
	assert.Equal(t, []string{"google/**"}, config.Lint.Ignore)
	assert.True(t, config.Quality.Enabled)
	assert.Equal(t, 5, config.Quality.Complexity.MaxMessageDepth)
	assert.Equal(t, 50, config.Quality.Complexity.MaxFieldCount)
	assert.NoError(t, config.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apicompiler-lint.yaml")
	content := `version: v1
lint:
  rules:
    naming-field: false
    naming-method: error
  categories:
    structure: off
quality:
  enabled: true
  documentation_coverage:
    min_coverage: 60
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, false, config.Lint.Rules["naming-field"])
	assert.Equal(t, "error", config.Lint.Rules["naming-method"])
	assert.Equal(t, 60.0, config.Quality.DocumentationCoverage.MinCoverage)
	// untouched sections keep their defaults
	assert.Equal(t, 50, config.Quality.Complexity.MaxFieldCount)
	assert.Equal(t, []string{"google/**"}, config.Lint.Ignore)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("lint: [unclosed"), 0644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)

	severity := filepath.Join(dir, "severity.yaml")
	require.NoError(t, os.WriteFile(severity, []byte("lint:\n  rules:\n    naming-field: fatal\n"), 0644))
	_, err = LoadConfig(severity)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "naming-field")
}

func TestLoadConfigFromDir(t *testing.T) {
	dir := t.TempDir()

	config, err := LoadConfigFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".apicompiler-lint.yml"), []byte("version: v2\n"), 0644))
	config, err = LoadConfigFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "v2", config.Version)
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	config := DefaultConfig()
	config.Lint.Rules["naming-enum"] = "warning"

	require.NoError(t, SaveConfig(config, path))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "warning", loaded.Lint.Rules["naming-enum"])

	assert.Error(t, SaveConfig(config, filepath.Join(t.TempDir(), "missing", "out.yaml")))
}

func TestSeverityFor(t *testing.T) {
	field := &stubRule{name: "field", category: CategoryNaming, severity: SeverityWarning}
	depth := &stubRule{name: "message-depth", category: CategoryStructure, severity: SeverityWarning}
	enum := &stubRule{name: "enum", category: CategoryNaming, severity: SeverityWarning}

	config := DefaultConfig()
	config.Lint.Rules["naming-field"] = "error"
	config.Lint.Rules["naming-enum"] = false
	config.Lint.Categories["structure"] = "off"

	assert.Equal(t, SeverityError, config.SeverityFor(field))
	assert.Equal(t, SeverityOff, config.SeverityFor(enum))
	assert.Equal(t, SeverityOff, config.SeverityFor(depth))

	config.Lint.Rules["structure-message-depth"] = "error"
	assert.Equal(t, SeverityError, config.SeverityFor(depth), "rule settings win over categories")
}

func TestIgnored(t *testing.T) {
	config := DefaultConfig()
	config.Lint.Ignore = append(config.Lint.Ignore, "vendor/**/*.proto", "*_test.proto")

	tests := []struct {
		file    string
		ignored bool
	}{
		{"google/protobuf/empty.proto", true},
		{"google/api/annotations.proto", true},
		{"vendor/a/b/c.proto", true},
		{"vendor/c.proto", true},
		{"vendor/readme.md", false},
		{"book_test.proto", true},
		{"example/library.proto", false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.ignored, config.Ignored(tt.file))
		})
	}
}

func TestRuleRegistry(t *testing.T) {
	registry := NewRuleRegistry()
	assert.Empty(t, registry.GetAllRules())

	registry.Register(&stubRule{name: "message", category: CategoryNaming, severity: SeverityWarning})
	registry.Register(&stubRule{name: "field", category: CategoryNaming, severity: SeverityWarning})
	registry.Register(&stubRule{name: "field-count", category: CategoryStructure, severity: SeverityWarning})

	rule, ok := registry.GetRule("naming-field")
	require.True(t, ok)
	assert.Equal(t, "field", rule.Name())
	_, ok = registry.GetRule("field")
	assert.False(t, ok)

	var ids []string
	for _, r := range registry.GetAllRules() {
		ids = append(ids, RuleID(r))
	}
	assert.Equal(t, []string{"naming-field", "naming-message", "structure-field-count"}, ids)
	assert.Len(t, registry.GetRulesByCategory(CategoryNaming), 2)
	assert.Empty(t, registry.GetRulesByCategory(CategoryDocumentation))

	config := DefaultConfig()
	config.Lint.Rules["naming-message"] = false
	assert.Len(t, registry.GetEnabledRules(config), 2)
	assert.Len(t, registry.GetEnabledRules(nil), 3)

	// same id replaces
	registry.Register(&stubRule{name: "field", category: CategoryNaming, severity: SeverityError})
	assert.Len(t, registry.GetAllRules(), 3)
	rule, _ = registry.GetRule("naming-field")
	assert.Equal(t, SeverityError, rule.Severity())
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("warning")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, s)
	_, err = ParseSeverity("info")
	assert.Error(t, err)
}
