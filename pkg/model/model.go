package model

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/apicompiler/pkg/confmerge"
	"github.com/platinummonkey/apicompiler/pkg/diag"
	"github.com/platinummonkey/apicompiler/pkg/observability"
)

// Model is the root of one conversion run
type Model struct {
	runID  string
	logger *logrus.Logger
	log    *logrus.Entry

	descriptors *descriptorpb.FileDescriptorSet
	files       []*File
	diags       *diag.Collector
	diagCap     int

	slots          map[ElementKind]map[string]slot
	processors     map[Stage]Processor
	processorOrder []Stage
	aspects        []Aspect
	established    map[Stage]bool
	ran            map[Stage]bool

	symbols       *SymbolTable
	serviceConfig *confmerge.Config

	primary       *confmerge.Config
	supplementary []*confmerge.Config
	mergePolicy   confmerge.Policy
	suppressions  []string

	metrics *observability.PipelineMetrics
	tracer  trace.Tracer
}

// Option configures a Model
type Option func(*Model)

// WithLogger sets the logger. A nil logger is replaced by logrus.New().
func WithLogger(logger *logrus.Logger) Option {
	return func(m *Model) { m.logger = logger }
}

// WithDiagCap bounds the number of diagnostics; the run aborts once it is exceeded
func WithDiagCap(max int) Option {
	return func(m *Model) { m.diagCap = max }
}

// WithServiceConfig sets the primary service configuration the run starts from
func WithServiceConfig(cfg *confmerge.Config) Option {
	return func(m *Model) { m.primary = cfg }
}

// WithSupplementaryConfigs adds configuration documents merged on top of the primary
// configuration, in order
func WithSupplementaryConfigs(cfgs ...*confmerge.Config) Option {
	return func(m *Model) { m.supplementary = append(m.supplementary, cfgs...) }
}

// WithMergePolicy selects the merge semantics for supplementary configurations
func WithMergePolicy(p confmerge.Policy) Option {
	return func(m *Model) { m.mergePolicy = p }
}

// WithSuppressions adds model-wide suppression patterns
func WithSuppressions(patterns ...string) Option {
	return func(m *Model) { m.suppressions = append(m.suppressions, patterns...) }
}

// WithMetrics records stage and diagnostic metrics
func WithMetrics(metrics *observability.PipelineMetrics) Option {
	return func(m *Model) { m.metrics = metrics }
}

// WithTracer records a span per processor run
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Model) { m.tracer = tracer }
}

// WithRunID overrides the generated run id
func WithRunID(id string) Option {
	return func(m *Model) { m.runID = id }
}

// New builds a model from a descriptor set
func New(set *descriptorpb.FileDescriptorSet, opts ...Option) (*Model, error) {
	if set == nil {
		return nil, fmt.Errorf("descriptor set is required")
	}
	m := &Model{
		descriptors: set,
		slots:       make(map[ElementKind]map[string]slot),
		processors:  make(map[Stage]Processor),
		established: make(map[Stage]bool),
		ran:         make(map[Stage]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logrus.New()
	}
	if m.runID == "" {
		m.runID = uuid.NewString()
	}
	if m.tracer == nil {
		m.tracer = noop.NewTracerProvider().Tracer(observability.TracerName)
	}
	m.log = m.logger.WithField("run_id", m.runID)
	m.diags = diag.NewCollector(m.diagCap)

	m.DeclareSlot(FieldKind, FieldTypeKey, false)
	m.DeclareSlot(MethodKind, InputTypeKey, true)
	m.DeclareSlot(MethodKind, OutputTypeKey, true)

	if err := m.build(); err != nil {
		return nil, err
	}
	m.log.WithField("files", len(m.files)).Debug("Model created")
	return m, nil
}

func (m *Model) RunID() string              { return m.runID }
func (m *Model) Logger() *logrus.Entry      { return m.log }
func (m *Model) Tracer() trace.Tracer       { return m.tracer }
func (m *Model) Files() []*File             { return m.files }
func (m *Model) Collector() *diag.Collector { return m.diags }

func (m *Model) Metrics() *observability.PipelineMetrics { return m.metrics }

// Descriptors returns the descriptor set the model was built from
func (m *Model) Descriptors() *descriptorpb.FileDescriptorSet { return m.descriptors }

// File looks up a file by name
func (m *Model) File(name string) *File {
	for _, f := range m.files {
		if f.name == name {
			return f
		}
	}
	return nil
}

// PrimaryConfig returns the service configuration the run started from, or nil
func (m *Model) PrimaryConfig() *confmerge.Config { return m.primary }

// SupplementaryConfigs returns the documents merged on top of the primary configuration
func (m *Model) SupplementaryConfigs() []*confmerge.Config { return m.supplementary }

// MergePolicy returns the selected merge semantics
func (m *Model) MergePolicy() confmerge.Policy { return m.mergePolicy }

// Symbols returns the symbol table, available once Resolved is established
func (m *Model) Symbols() *SymbolTable { return m.symbols }

// SetSymbols stores the symbol table. It may be called once.
func (m *Model) SetSymbols(st *SymbolTable) {
	if m.symbols != nil {
		panic("symbol table already set")
	}
	m.symbols = st
}

// ServiceConfig returns the normalized service configuration, available once
// Normalized is established
func (m *Model) ServiceConfig() *confmerge.Config { return m.serviceConfig }

// SetServiceConfig stores the normalized service configuration. It may be called once.
func (m *Model) SetServiceConfig(cfg *confmerge.Config) {
	if m.serviceConfig != nil {
		panic("service configuration already set")
	}
	m.serviceConfig = cfg
}

// SuppressionDirectives returns the model-wide suppression patterns
func (m *Model) SuppressionDirectives() []string { return m.suppressions }

// SuppressionParent returns nil; the model is the root of the suppression chain
func (m *Model) SuppressionParent() diag.Suppressor { return nil }

// AddDiag records a diagnostic
func (m *Model) AddDiag(d diag.Diag) diag.AddResult {
	res := m.diags.Add(d)
	m.metrics.CountDiagnostic(d.Kind().String())
	if res == diag.Aborted {
		m.log.WithError(diag.ErrTooManyDiagnostics).Debug("Diagnostics cap exceeded")
	}
	return res
}

// AddError records an error at el's location
func (m *Model) AddError(el Element, format string, args ...any) diag.AddResult {
	return m.AddDiag(diag.Errorf(locationOf(el), format, args...))
}

// AddWarning records a warning at el's location
func (m *Model) AddWarning(el Element, format string, args ...any) diag.AddResult {
	return m.AddDiag(diag.Warningf(locationOf(el), format, args...))
}

// ReportLint records a diagnostic identified as "<aspect>-<rule>" unless a suppression
// directive on el, one of its ancestors or the model matches the id
func (m *Model) ReportLint(aspect, rule string, el Element, kind diag.Kind, format string, args ...any) diag.AddResult {
	id := LintID(aspect, rule)
	msg := fmt.Sprintf(format, args...) + " [" + id + "]"
	var target diag.Suppressor = m
	if el != nil {
		target = el
	}
	res := m.diags.AddFor(target, id, diag.New(kind, locationOf(el), msg))
	switch res {
	case diag.Suppressed:
		m.metrics.CountSuppressed(1)
	default:
		m.metrics.CountDiagnostic(kind.String())
	}
	return res
}

// LintID synthesizes the identifier suppression directives match against
func LintID(aspect, rule string) string {
	return aspect + "-" + rule
}

func locationOf(el Element) diag.Location {
	if el == nil {
		return diag.UnknownLocation
	}
	return el.Location()
}

func (m *Model) Diags() []diag.Diag { return m.diags.Diags() }
func (m *Model) ErrorCount() int    { return m.diags.ErrorCount() }
func (m *Model) HasErrors() bool    { return m.diags.HasErrors() }
