// Package config provides tool configuration from defaults, an optional YAML file and
// environment variables.
//
// # Precedence
//
// Load starts from Default, overlays the YAML file when a path is given, then applies
// APICOMPILER_* environment variables, and validates the result.
//
// # Environment Variables
//
// Logging:
//
//	APICOMPILER_LOG_LEVEL="warn"  # trace, debug, info, warn, error
//	APICOMPILER_LOG_FORMAT="text" # text, json
//
// Pipeline:
//
//	APICOMPILER_DIAG_CAP="1000"
//	APICOMPILER_PROTO3_MERGE="false"
//	APICOMPILER_CACHE_SIZE="64"
//	APICOMPILER_CACHE_TTL="10m"
//	APICOMPILER_CONCURRENCY="4"
//	APICOMPILER_SUPPRESS="documentation-*,naming-field"
//	APICOMPILER_LINT_CONFIG="apicompiler-lint.yaml"
//
// Observability:
//
//	APICOMPILER_METRICS_ADDR=":9090"
//	APICOMPILER_OTEL_ENABLED="true"
//	APICOMPILER_OTEL_ENDPOINT="otel-collector:4317"
//
// # File Format
//
//	log:
//	  level: debug
//	pipeline:
//	  proto3_merge: true
//	  suppressions: [documentation-missing-comment]
//	observability:
//	  metrics_addr: ":9090"
//
// # Usage Example
//
//	cfg, err := config.Load(path)
//	if err != nil {
//		log.Fatal(err)
//	}
//	logger := cfg.NewLogger()
package config
