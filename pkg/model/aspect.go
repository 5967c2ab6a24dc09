package model

import (
	"fmt"

	"github.com/platinummonkey/apicompiler/pkg/confmerge"
)

// Aspect contributes configuration of one kind (http bindings, documentation, ...)
// during the merge, normalization and lint phases.
type Aspect interface {
	Name() string
	// RequiredStages lists stages that must be established before merging
	RequiredStages() []Stage

	StartMerging(m *Model)
	Merge(el Element)
	EndMerging(m *Model)

	// StartNormalization runs once before Normalize is called for every element; b is
	// the service configuration under construction
	StartNormalization(m *Model, b *confmerge.Builder)
	Normalize(el Element, b *confmerge.Builder)

	Lint(el Element)
}

// BaseAspect provides no-op defaults for Aspect
type BaseAspect struct {
	AspectName string
}

func (a *BaseAspect) Name() string                                  { return a.AspectName }
func (a *BaseAspect) RequiredStages() []Stage                       { return nil }
func (a *BaseAspect) StartMerging(*Model)                           {}
func (a *BaseAspect) Merge(Element)                                 {}
func (a *BaseAspect) EndMerging(*Model)                             {}
func (a *BaseAspect) StartNormalization(*Model, *confmerge.Builder) {}
func (a *BaseAspect) Normalize(Element, *confmerge.Builder)         {}
func (a *BaseAspect) Lint(Element)                                  {}

// RegisterAspect appends an aspect. Aspects run in registration order.
func (m *Model) RegisterAspect(a Aspect) error {
	for _, existing := range m.aspects {
		if existing.Name() == a.Name() {
			return fmt.Errorf("aspect %s already registered", a.Name())
		}
	}
	m.aspects = append(m.aspects, a)
	return nil
}

// Aspects returns the registered aspects in order
func (m *Model) Aspects() []Aspect {
	return append([]Aspect(nil), m.aspects...)
}
