package linter

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the linting configuration
type Config struct {
	Version string        `yaml:"version"`
	Lint    LintRules     `yaml:"lint"`
	Quality QualityConfig `yaml:"quality"`
}

// LintRules contains rule configuration
type LintRules struct {
	// Rules maps a rule id to true/false (enable, disable) or a severity name
	Rules      map[string]interface{} `yaml:"rules"`
	Ignore     []string               `yaml:"ignore"`
	Categories map[string]string      `yaml:"categories"` // category -> severity
}

// QualityConfig configures quality metrics
type QualityConfig struct {
	Enabled               bool                        `yaml:"enabled"`
	DocumentationCoverage DocumentationCoverageConfig `yaml:"documentation_coverage"`
	Complexity            ComplexityConfig            `yaml:"complexity"`
}

// DocumentationCoverageConfig for documentation metrics
type DocumentationCoverageConfig struct {
	MinCoverage float64 `yaml:"min_coverage"`
}

// ComplexityConfig for complexity metrics
type ComplexityConfig struct {
	MaxMessageDepth int `yaml:"max_message_depth"`
	MaxFieldCount   int `yaml:"max_field_count"`
}

// ConfigFileNames are searched, in order, by LoadConfigFromDir
var ConfigFileNames = []string{"apicompiler-lint.yaml", "apicompiler-lint.yml", ".apicompiler-lint.yaml", ".apicompiler-lint.yml"}

// DefaultConfig returns default linting configuration
func DefaultConfig() *Config {
	return &Config{
		Version: "v1",
		Lint: LintRules{
			Rules:      make(map[string]interface{}),
			Ignore:     []string{"google/**"},
			Categories: make(map[string]string),
		},
		Quality: QualityConfig{
			Enabled: true,
			DocumentationCoverage: DocumentationCoverageConfig{
				MinCoverage: 0,
			},
			Complexity: ComplexityConfig{
				MaxMessageDepth: 5,
				MaxFieldCount:   50,
			},
		},
	}
}

// LoadConfig loads configuration from a file. Unset sections keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lint config %s: %w", path, err)
	}

	return config, nil
}

// LoadConfigFromDir searches for config file in directory
func LoadConfigFromDir(dir string) (*Config, error) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadConfig(path)
		}
	}

	// Return default if no config found
	return DefaultConfig(), nil
}

// SaveConfig saves configuration to a file
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks rule and category values
func (c *Config) Validate() error {
	for id, v := range c.Lint.Rules {
		switch val := v.(type) {
		case bool:
		case string:
			if _, err := ParseSeverity(val); err != nil {
				return fmt.Errorf("rule %s: %w", id, err)
			}
		default:
			return fmt.Errorf("rule %s: expected true, false or a severity, got %v", id, v)
		}
	}
	for category, s := range c.Lint.Categories {
		if _, err := ParseSeverity(s); err != nil {
			return fmt.Errorf("category %s: %w", category, err)
		}
	}
	for _, pattern := range c.Lint.Ignore {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("ignore pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// SeverityFor returns the effective severity of rule. Rule settings win over category
// settings, which win over the rule's default.
func (c *Config) SeverityFor(rule Rule) Severity {
	if v, ok := c.Lint.Rules[RuleID(rule)]; ok {
		switch val := v.(type) {
		case bool:
			if !val {
				return SeverityOff
			}
		case string:
			if s, err := ParseSeverity(val); err == nil {
				return s
			}
		}
	}
	if s, ok := c.Lint.Categories[string(rule.Category())]; ok {
		if sev, err := ParseSeverity(s); err == nil {
			return sev
		}
	}
	return rule.Severity()
}

// Ignored reports whether file matches an ignore pattern. "**" matches any number of
// path segments.
func (c *Config) Ignored(file string) bool {
	for _, pattern := range c.Lint.Ignore {
		if matchPath(pattern, file) {
			return true
		}
	}
	return false
}

func matchPath(pattern, name string) bool {
	if ok, _ := path.Match(pattern, name); ok {
		return true
	}
	dir, rest, found := strings.Cut(pattern, "**")
	if !found || !strings.HasPrefix(name, dir) {
		return false
	}
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return true
	}
	for tail := name[len(dir):]; ; {
		if ok, _ := path.Match(rest, tail); ok {
			return true
		}
		i := strings.IndexByte(tail, '/')
		if i < 0 {
			return false
		}
		tail = tail[i+1:]
	}
}
