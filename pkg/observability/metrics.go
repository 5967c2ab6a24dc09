package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics holds the Prometheus metrics of the compiler pipeline. A nil
// *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	// Stage metrics
	StageRunsTotal *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec

	// Diagnostics
	DiagnosticsTotal *prometheus.CounterVec
	SuppressedTotal  prometheus.Counter

	// Conversions
	ConversionsTotal   *prometheus.CounterVec
	ConversionDuration *prometheus.HistogramVec

	// Source compile cache
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
}

// NewPipelineMetrics creates and registers all pipeline metrics
func NewPipelineMetrics(registry prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		StageRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apicompiler_stage_runs_total",
				Help: "Total number of processor runs by stage and result",
			},
			[]string{"stage", "result"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apicompiler_stage_duration_seconds",
				Help:    "Processor run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"stage"},
		),
		DiagnosticsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apicompiler_diagnostics_total",
				Help: "Total number of recorded diagnostics by kind",
			},
			[]string{"kind"},
		),
		SuppressedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "apicompiler_diagnostics_suppressed_total",
				Help: "Total number of diagnostics dropped by suppression directives",
			},
		),
		ConversionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apicompiler_conversions_total",
				Help: "Total number of conversion runs by source kind and result",
			},
			[]string{"source", "result"},
		),
		ConversionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apicompiler_conversion_duration_seconds",
				Help:    "Conversion run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "apicompiler_source_cache_hits_total",
				Help: "Total number of compiled source cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "apicompiler_source_cache_misses_total",
				Help: "Total number of compiled source cache misses",
			},
		),
	}

	registry.MustRegister(
		m.StageRunsTotal,
		m.StageDuration,
		m.DiagnosticsTotal,
		m.SuppressedTotal,
		m.ConversionsTotal,
		m.ConversionDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ObserveStage records one processor run
func (m *PipelineMetrics) ObserveStage(stage string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.StageRunsTotal.WithLabelValues(stage, result(ok)).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// CountDiagnostic records one diagnostic of the given kind
func (m *PipelineMetrics) CountDiagnostic(kind string) {
	if m == nil {
		return
	}
	m.DiagnosticsTotal.WithLabelValues(kind).Inc()
}

// CountSuppressed records diagnostics dropped by suppression
func (m *PipelineMetrics) CountSuppressed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SuppressedTotal.Add(float64(n))
}

// ObserveConversion records one complete conversion run
func (m *PipelineMetrics) ObserveConversion(source string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.ConversionsTotal.WithLabelValues(source, result(ok)).Inc()
	m.ConversionDuration.WithLabelValues(source).Observe(d.Seconds())
}

// CacheHit records a compiled source cache lookup
func (m *PipelineMetrics) CacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}
