package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/apicompiler/pkg/diag"
	"github.com/platinummonkey/apicompiler/pkg/observability"
)

// Stage names a milestone of model processing
type Stage string

// Built-in stages, in pipeline order
const (
	Resolved   Stage = "Resolved"
	Merged     Stage = "Merged"
	Normalized Stage = "Normalized"
	Linted     Stage = "Linted"
)

// Processor establishes exactly one stage
type Processor interface {
	// Requires returns the stages that must be established before Run
	Requires() []Stage
	// Establishes returns the stage this processor establishes
	Establishes() Stage
	// Run does the work and calls MarkEstablished on success. Returning false fails the
	// stage; the reason must already be recorded as a diagnostic.
	Run(ctx context.Context, m *Model) bool
}

// ErrStageUnreachable is reported when no processor establishes a requested stage
var ErrStageUnreachable = errors.New("stage unreachable")

// CycleError reports a dependency cycle between processors. Chain lists the stages in
// traversal order, starting and ending with the repeated stage.
type CycleError struct {
	Chain []Stage
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Chain))
	for i, s := range e.Chain {
		names[i] = string(s)
	}
	return "cyclic stage dependency: " + strings.Join(names, " -> ")
}

// InvariantError reports a processor that claimed success without producing what its
// stage promises
type InvariantError struct {
	Stage  Stage
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("stage %s: internal invariant violated: %s", e.Stage, e.Detail)
}

// RegisterProcessor adds a processor to the model's registry
func (m *Model) RegisterProcessor(p Processor) error {
	stage := p.Establishes()
	if _, exists := m.processors[stage]; exists {
		return fmt.Errorf("stage %s already has a processor", stage)
	}
	m.processors[stage] = p
	m.processorOrder = append(m.processorOrder, stage)
	return nil
}

// Processors returns the registered stages in registration order
func (m *Model) Processors() []Stage {
	return append([]Stage(nil), m.processorOrder...)
}

// MarkEstablished records that stage's results are available. Only the processor of
// the stage calls it.
func (m *Model) MarkEstablished(stage Stage) {
	m.established[stage] = true
}

// IsEstablished reports whether stage has been established
func (m *Model) IsEstablished(stage Stage) bool {
	return m.established[stage]
}

// EstablishStage establishes stage and, first, every stage it transitively requires.
// It returns false when a processor fails, the diagnostics cap is exceeded, or a stage
// has no processor; diagnostics explain why. Wiring defects are returned as errors.
func (m *Model) EstablishStage(ctx context.Context, stage Stage) (bool, error) {
	return m.establish(ctx, stage, nil)
}

func (m *Model) establish(ctx context.Context, stage Stage, computing []Stage) (bool, error) {
	if m.established[stage] {
		return true, nil
	}
	for _, s := range computing {
		if s == stage {
			chain := append(append([]Stage(nil), computing...), stage)
			return false, &CycleError{Chain: chain}
		}
	}
	p, ok := m.processors[stage]
	if !ok {
		m.AddDiag(diag.Errorf(diag.UnknownLocation, "%v: no processor establishes %s", ErrStageUnreachable, stage))
		return false, nil
	}
	if m.ran[stage] {
		// ran before and failed
		return false, nil
	}

	computing = append(computing, stage)
	for _, req := range p.Requires() {
		ok, err := m.establish(ctx, req, computing)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	if m.diags.Aborted() {
		return false, nil
	}

	m.ran[stage] = true
	if !m.runProcessor(ctx, p) || m.diags.Aborted() {
		return false, nil
	}
	if !m.established[stage] {
		return false, &InvariantError{Stage: stage, Detail: "processor succeeded without marking the stage established"}
	}
	if err := m.checkSlots(stage); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Model) runProcessor(ctx context.Context, p Processor) bool {
	stage := p.Establishes()
	ctx, span := m.tracer.Start(ctx, "stage "+string(stage), trace.WithAttributes(
		attribute.String("apicompiler.stage", string(stage)),
		attribute.String("apicompiler.run_id", m.runID),
	))
	defer span.End()

	log := observability.LoggerWithTraceContext(ctx, m.log.WithField("stage", stage))
	log.Debug("Running processor")

	start := time.Now()
	errorsBefore := m.diags.ErrorCount()
	ok := p.Run(ctx, m)
	elapsed := time.Since(start)

	m.metrics.ObserveStage(string(stage), ok, elapsed)
	if !ok {
		span.SetStatus(codes.Error, "stage failed")
	}
	log.WithFields(logrus.Fields{
		"ok":       ok,
		"duration": elapsed,
		"errors":   m.diags.ErrorCount() - errorsBefore,
	}).Debug("Processor finished")
	return ok
}
