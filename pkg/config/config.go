package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/apicompiler/pkg/observability"
)

// Config holds all tool configuration
type Config struct {
	Log           LogConfig           `yaml:"log"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Lint          LintConfig          `yaml:"lint"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// PipelineConfig holds compilation settings
type PipelineConfig struct {
	// DiagCap aborts a run once this many diagnostics were reported; zero means no cap
	DiagCap     int           `yaml:"diag_cap"`
	Proto3Merge bool          `yaml:"proto3_merge"`
	CacheSize   int           `yaml:"cache_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	// Suppressions are diagnostic id patterns suppressed for every run
	Suppressions []string `yaml:"suppressions"`
	// Concurrency bounds how many inputs a batch compiles at once
	Concurrency int `yaml:"concurrency"`
}

// LintConfig points at the lint rule configuration
type LintConfig struct {
	ConfigPath string `yaml:"config"`
}

// ObservabilityConfig holds metrics and tracing settings
type ObservabilityConfig struct {
	// MetricsAddr serves /metrics from long-running commands when set
	MetricsAddr        string `yaml:"metrics_addr"`
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "warn", Format: "text"},
		Pipeline: PipelineConfig{
			DiagCap:     1000,
			CacheSize:   64,
			CacheTTL:    10 * time.Minute,
			Concurrency: 4,
		},
		Observability: ObservabilityConfig{
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "apicompiler",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path and then
// environment variables, and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFile overlays the settings present in a YAML file
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from APICOMPILER_* environment variables
func (c *Config) ApplyEnv() {
	c.Log.Level = getEnv("APICOMPILER_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("APICOMPILER_LOG_FORMAT", c.Log.Format)

	c.Pipeline.DiagCap = getEnvInt("APICOMPILER_DIAG_CAP", c.Pipeline.DiagCap)
	c.Pipeline.Proto3Merge = getEnvBool("APICOMPILER_PROTO3_MERGE", c.Pipeline.Proto3Merge)
	c.Pipeline.CacheSize = getEnvInt("APICOMPILER_CACHE_SIZE", c.Pipeline.CacheSize)
	c.Pipeline.CacheTTL = getEnvDuration("APICOMPILER_CACHE_TTL", c.Pipeline.CacheTTL)
	c.Pipeline.Concurrency = getEnvInt("APICOMPILER_CONCURRENCY", c.Pipeline.Concurrency)
	if s := getEnv("APICOMPILER_SUPPRESS", ""); s != "" {
		c.Pipeline.Suppressions = append(c.Pipeline.Suppressions, strings.Split(s, ",")...)
	}

	c.Lint.ConfigPath = getEnv("APICOMPILER_LINT_CONFIG", c.Lint.ConfigPath)

	c.Observability.MetricsAddr = getEnv("APICOMPILER_METRICS_ADDR", c.Observability.MetricsAddr)
	c.Observability.OTelEnabled = getEnvBool("APICOMPILER_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("APICOMPILER_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("APICOMPILER_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("APICOMPILER_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("APICOMPILER_OTEL_INSECURE", c.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	if c.Pipeline.DiagCap < 0 {
		return fmt.Errorf("diagnostic cap must not be negative")
	}
	if c.Pipeline.CacheSize < 0 {
		return fmt.Errorf("cache size must not be negative")
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	for _, s := range c.Pipeline.Suppressions {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("suppression patterns must not be empty")
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	return nil
}

// NewLogger builds a logger with the configured level and format
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// OTel returns the tracing settings in the form InitTracing takes
func (c *Config) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
