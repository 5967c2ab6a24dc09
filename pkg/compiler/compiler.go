package compiler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genproto/googleapis/api/serviceconfig"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/apicompiler/pkg/aspects"
	"github.com/platinummonkey/apicompiler/pkg/config"
	"github.com/platinummonkey/apicompiler/pkg/confmerge"
	"github.com/platinummonkey/apicompiler/pkg/diag"
	"github.com/platinummonkey/apicompiler/pkg/linter"
	"github.com/platinummonkey/apicompiler/pkg/linter/rules"
	"github.com/platinummonkey/apicompiler/pkg/model"
	"github.com/platinummonkey/apicompiler/pkg/observability"
	"github.com/platinummonkey/apicompiler/pkg/openapi"
	"github.com/platinummonkey/apicompiler/pkg/processors"
	"github.com/platinummonkey/apicompiler/pkg/protosrc"
)

// Source labels the front end an input goes through
type Source string

const (
	SourceOpenAPI     Source = "openapi"
	SourceDescriptors Source = "descriptors"
	SourceProto       Source = "proto"
)

// ConfigFile is a YAML or JSON service configuration document
type ConfigFile struct {
	Name string
	Data []byte
}

// Input is one thing to compile. Exactly one of OpenAPI, Descriptors and Sources is set.
type Input struct {
	// Name identifies the input in logs and batch errors
	Name string

	OpenAPI        *openapi.Document
	OpenAPIOptions openapi.Options

	// Descriptors is a serialized or already decoded descriptor set
	Descriptors *descriptorpb.FileDescriptorSet

	// Sources maps import paths to .proto contents; Roots lists the files to compile
	Sources map[string]string
	Roots   []string

	// ServiceConfig is the primary configuration. For OpenAPI inputs the imported
	// configuration is primary and this one is merged on top of it.
	ServiceConfig *ConfigFile
	// Supplementary configurations are merged in order
	Supplementary []ConfigFile

	// Suppressions are added to the configured suppression patterns
	Suppressions []string
	// StrictResolution selects the first-component anchored type resolution
	StrictResolution bool
	// SkipLint stops at the Normalized stage
	SkipLint bool
}

// Source reports which front end in goes through
func (in *Input) Source() (Source, error) {
	var set []Source
	if in.OpenAPI != nil {
		set = append(set, SourceOpenAPI)
	}
	if in.Descriptors != nil {
		set = append(set, SourceDescriptors)
	}
	if len(in.Roots) > 0 {
		set = append(set, SourceProto)
	}
	switch len(set) {
	case 0:
		return "", fmt.Errorf("input %s has nothing to compile", in.Name)
	case 1:
		return set[0], nil
	}
	return "", fmt.Errorf("input %s sets more than one of %v", in.Name, set)
}

// Result is the outcome of compiling one input
type Result struct {
	Name   string
	RunID  string
	Source Source
	// Service is the normalized configuration; nil when the run failed
	Service *serviceconfig.Service
	// Descriptors is the descriptor set the model was built from
	Descriptors *descriptorpb.FileDescriptorSet
	Diags       []diag.Diag
}

// HasErrors reports whether any diagnostic is an error
func (r *Result) HasErrors() bool {
	for _, d := range r.Diags {
		if d.Kind() == diag.Error {
			return true
		}
	}
	return false
}

// Compiler runs inputs through the stage pipeline
type Compiler struct {
	cfg     *config.Config
	logger  *logrus.Logger
	protos  *protosrc.Compiler
	lint    *linter.LintEngine
	metrics *observability.PipelineMetrics
	tracer  trace.Tracer
}

// Option configures a Compiler
type Option func(*Compiler)

// WithLogger sets the logger. A nil logger is replaced by logrus.New().
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// WithMetrics records conversion, stage and cache metrics
func WithMetrics(metrics *observability.PipelineMetrics) Option {
	return func(c *Compiler) { c.metrics = metrics }
}

// WithTracer records spans for every run
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Compiler) { c.tracer = tracer }
}

// WithLintConfig uses cfg instead of loading the configured lint file
func WithLintConfig(cfg *linter.Config) Option {
	return func(c *Compiler) { c.lint = linter.NewLintEngine(cfg) }
}

// New creates a compiler. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) (*Compiler, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Compiler{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logrus.New()
	}
	if c.lint == nil {
		lintCfg := linter.DefaultConfig()
		if path := cfg.Lint.ConfigPath; path != "" {
			var err error
			if lintCfg, err = linter.LoadConfig(path); err != nil {
				return nil, fmt.Errorf("failed to load lint config: %w", err)
			}
		}
		c.lint = linter.NewLintEngine(lintCfg)
	}
	c.lint.WithLogger(c.logger)
	rules.RegisterDefaultRules(c.lint.Registry())

	c.protos = protosrc.NewCompiler(cfg.Pipeline.CacheSize, c.logger).
		WithCacheTTL(cfg.Pipeline.CacheTTL).
		OnCacheLookup(c.metrics.CacheHit)
	return c, nil
}

// CacheStats returns the compiled source cache statistics
func (c *Compiler) CacheStats() protosrc.CacheStats { return c.protos.CacheStats() }

// Compile runs in through its front end and the stage pipeline. Problems with the input
// are reported as diagnostics on the result; an error means the run could not be set up
// at all. A panic inside the pipeline becomes a single error diagnostic.
func (c *Compiler) Compile(ctx context.Context, in Input) (res *Result, err error) {
	source, err := in.Source()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res = &Result{Name: in.Name, Source: source}
	log := c.logger.WithFields(logrus.Fields{"input": in.Name, "source": source})

	defer func() {
		if perr := observability.RecoverToError(recover()); perr != nil {
			log.WithField("stack", perr.Stack).Error("Compilation panicked")
			res.Service = nil
			res.Diags = append(res.Diags, diag.Errorf(diag.UnknownLocation, "internal error: %v", perr.Value))
			err = nil
		}
		c.metrics.ObserveConversion(string(source), err == nil && !res.HasErrors(), time.Since(start))
	}()

	front, err := c.frontEnd(ctx, source, in)
	if err != nil {
		return nil, err
	}
	res.Descriptors = front.descriptors
	if front.descriptors == nil {
		res.Diags = front.diags
		return res, nil
	}

	opts := []model.Option{
		model.WithLogger(c.logger),
		model.WithDiagCap(c.cfg.Pipeline.DiagCap),
		model.WithSuppressions(c.cfg.Pipeline.Suppressions...),
		model.WithSuppressions(in.Suppressions...),
		model.WithSuppressions(front.suppressions...),
		model.WithMetrics(c.metrics),
		model.WithTracer(c.tracer),
	}
	if c.cfg.Pipeline.Proto3Merge {
		opts = append(opts, model.WithMergePolicy(confmerge.Proto3))
	}

	primary := front.primary
	configs := in.Supplementary
	if in.ServiceConfig != nil {
		if primary != nil {
			configs = append([]ConfigFile{*in.ServiceConfig}, configs...)
		} else if primary, err = readConfig(*in.ServiceConfig); err != nil {
			res.Diags = append(front.diags, configDiag(*in.ServiceConfig, err))
			return res, nil
		}
	}
	if primary != nil {
		opts = append(opts, model.WithServiceConfig(primary))
	}
	for _, f := range configs {
		cfg, err := readConfig(f)
		if err != nil {
			res.Diags = append(front.diags, configDiag(f, err))
			return res, nil
		}
		opts = append(opts, model.WithSupplementaryConfigs(cfg))
	}

	m, err := model.New(front.descriptors, opts...)
	if err != nil {
		res.Diags = append(front.diags, diag.Errorf(diag.UnknownLocation, "%v", err))
		return res, nil
	}
	res.RunID = m.RunID()
	for _, d := range front.diags {
		m.AddDiag(d)
	}

	if err := processors.Register(m,
		processors.WithStrictResolution(in.StrictResolution),
		processors.WithLintEngine(c.lint),
	); err != nil {
		return nil, err
	}
	if err := aspects.Register(m); err != nil {
		return nil, err
	}

	target := model.Linted
	if in.SkipLint {
		target = model.Normalized
	}
	ok, err := m.EstablishStage(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("pipeline for %s is miswired: %w", in.Name, err)
	}
	res.Diags = m.Diags()
	if ok {
		svc, err := confmerge.Proto(m.ServiceConfig(), &serviceconfig.Service{})
		if err != nil {
			return nil, fmt.Errorf("failed to materialize service config: %w", err)
		}
		res.Service = svc
	}

	log.WithFields(logrus.Fields{
		"run_id":   res.RunID,
		"ok":       ok,
		"errors":   m.ErrorCount(),
		"diags":    len(res.Diags),
		"duration": time.Since(start),
	}).Info("Compilation finished")
	return res, nil
}

// frontEnd is what an input contributes before the model is built
type frontEnd struct {
	descriptors  *descriptorpb.FileDescriptorSet
	primary      *confmerge.Config
	suppressions []string
	diags        []diag.Diag
}

func (c *Compiler) frontEnd(ctx context.Context, source Source, in Input) (*frontEnd, error) {
	switch source {
	case SourceOpenAPI:
		imported, err := openapi.NewImporter(in.OpenAPIOptions, c.logger).Import(in.OpenAPI)
		if err != nil {
			return nil, err
		}
		loc := diag.SimpleLocation{File: in.OpenAPI.Name()}
		return &frontEnd{
			descriptors: imported.Descriptors,
			primary:     confmerge.FromProto(imported.Service, loc),
			diags:       imported.Diags,
		}, nil
	case SourceProto:
		compiled, err := c.protos.Compile(ctx, in.Sources, in.Roots...)
		if err != nil {
			return nil, err
		}
		return &frontEnd{
			descriptors:  compiled.Descriptors,
			suppressions: compiled.Suppressions(),
			diags:        append([]diag.Diag(nil), compiled.Diags...),
		}, nil
	}
	return &frontEnd{descriptors: in.Descriptors}, nil
}

var serviceDescriptor = (&serviceconfig.Service{}).ProtoReflect().Descriptor()

func readConfig(f ConfigFile) (*confmerge.Config, error) {
	return confmerge.ReadYAML(f.Name, f.Data, serviceDescriptor)
}

func configDiag(f ConfigFile, err error) diag.Diag {
	return diag.Errorf(diag.SimpleLocation{File: f.Name}, "invalid service config: %v", err)
}

// DecodeDescriptorSet decodes a binary FileDescriptorSet, as written by protoc
// --descriptor_set_out
func DecodeDescriptorSet(data []byte) (*descriptorpb.FileDescriptorSet, error) {
	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor set: %w", err)
	}
	return set, nil
}
