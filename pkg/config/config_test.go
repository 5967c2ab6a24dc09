package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetEnvHelpers tests the environment helper functions
func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "custom")
	t.Setenv("TEST_BOOL", "TRUE")
	t.Setenv("TEST_BOOL_ONE", "1")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "invalid")
	t.Setenv("TEST_DUR", "5s")
	t.Setenv("TEST_DUR_BAD", "soon")

	assert.Equal(t, "custom", getEnv("TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("TEST_STR_NOT_SET", "default"))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.True(t, getEnvBool("TEST_BOOL_ONE", false))
	assert.True(t, getEnvBool("TEST_BOOL_NOT_SET", true))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 10))
	assert.Equal(t, 10, getEnvInt("TEST_INT_BAD", 10))
	assert.Equal(t, 5*time.Second, getEnvDuration("TEST_DUR", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_DUR_BAD", time.Second))
}

// TestLoad tests loading with defaults only
func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 1000, cfg.Pipeline.DiagCap)
	assert.Equal(t, 64, cfg.Pipeline.CacheSize)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.False(t, cfg.Pipeline.Proto3Merge)
	assert.False(t, cfg.Observability.OTelEnabled)
}

// TestLoad_FileAndEnv tests that environment variables override the file
func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apicompiler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: json
pipeline:
  proto3_merge: true
  cache_size: 8
  cache_ttl: 30s
  suppressions: [documentation-*]
lint:
  config: lint.yaml
observability:
  metrics_addr: ":9090"
`), 0o644))
	t.Setenv("APICOMPILER_CACHE_SIZE", "16")
	t.Setenv("APICOMPILER_SUPPRESS", "naming-field,http-*")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Pipeline.Proto3Merge)
	assert.Equal(t, 16, cfg.Pipeline.CacheSize)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.CacheTTL)
	assert.Equal(t, 1000, cfg.Pipeline.DiagCap)
	assert.Equal(t, []string{"documentation-*", "naming-field", "http-*"}, cfg.Pipeline.Suppressions)
	assert.Equal(t, "lint.yaml", cfg.Lint.ConfigPath)
	assert.Equal(t, ":9090", cfg.Observability.MetricsAddr)

	logger := cfg.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

// TestLoad_Errors tests unreadable, malformed and invalid files
func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("log: [1"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "failed to parse config file")

	t.Setenv("APICOMPILER_LOG_LEVEL", "loud")
	_, err = Load("")
	assert.ErrorContains(t, err, "invalid log level")
}

// TestConfigValidate tests configuration validation
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "bad format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "invalid log format",
		},
		{
			name:    "negative cap",
			mutate:  func(c *Config) { c.Pipeline.DiagCap = -1 },
			wantErr: "diagnostic cap",
		},
		{
			name:    "negative cache",
			mutate:  func(c *Config) { c.Pipeline.CacheSize = -1 },
			wantErr: "cache size",
		},
		{
			name:    "no concurrency",
			mutate:  func(c *Config) { c.Pipeline.Concurrency = 0 },
			wantErr: "concurrency",
		},
		{
			name:    "blank suppression",
			mutate:  func(c *Config) { c.Pipeline.Suppressions = []string{" "} },
			wantErr: "suppression patterns",
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = ""
			},
			wantErr: "endpoint is required",
		},
		{
			name: "otel without service name",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelServiceName = ""
			},
			wantErr: "service name is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

// TestOTel tests conversion to the tracing settings
func TestOTel(t *testing.T) {
	cfg := Default()
	cfg.Observability.OTelEnabled = true
	otel := cfg.OTel()
	assert.True(t, otel.Enabled)
	assert.Equal(t, "localhost:4317", otel.Endpoint)
	assert.Equal(t, "apicompiler", otel.ServiceName)
	assert.True(t, otel.Insecure)
}
