package processors

import (
	"fmt"

	"github.com/platinummonkey/apicompiler/pkg/linter"
	"github.com/platinummonkey/apicompiler/pkg/model"
)

type options struct {
	strict bool
	engine *linter.LintEngine
}

// Option configures the registered processors
type Option func(*options)

// WithStrictResolution resolves type references with the strict, first-component
// anchored strategy instead of the innermost-scope strategy
func WithStrictResolution(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithLintEngine runs engine's rules while establishing Linted
func WithLintEngine(engine *linter.LintEngine) Option {
	return func(o *options) { o.engine = engine }
}

// Register adds the Resolver, Merger, Normalizer and Linter processors to m
func Register(m *model.Model, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	for _, p := range []model.Processor{
		&Resolver{Strict: o.strict},
		NewMerger(m),
		&Normalizer{},
		&Linter{Engine: o.engine},
	} {
		if err := m.RegisterProcessor(p); err != nil {
			return fmt.Errorf("failed to register processor: %w", err)
		}
	}
	return nil
}

// cancelled records ctx's error as a diagnostic
func cancelled(m *model.Model, stage model.Stage, err error) bool {
	m.AddError(nil, "%s: %v", stage, err)
	return false
}
