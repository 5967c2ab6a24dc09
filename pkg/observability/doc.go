// Package observability provides Prometheus metrics, OpenTelemetry tracing, panic
// recovery and graceful shutdown for the compiler pipeline and its tools.
//
// # Overview
//
// Nothing in this package is required by the pipeline: every hook is optional and the
// pipeline runs unchanged when metrics or tracing are not configured.
//
// # Prometheus Metrics
//
// Register pipeline metrics on a caller-owned registry:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewPipelineMetrics(registry)
//	metrics.ObserveStage("resolved", true, 12*time.Millisecond)
//
// Expose them when running a long-lived command:
//
//	mux := http.NewServeMux()
//	observability.RegisterMetricsEndpoint(mux, registry)
//
// # OpenTelemetry
//
// Initialize tracing:
//
//	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "apicompiler",
//		Insecure:    true,
//	}, logger)
//	defer observability.ShutdownTracing(ctx, tp, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/model: Stage spans and metrics
package observability
