// Package model holds the element tree of an API under compilation, the per-element
// attribute store, the stage scheduler and the symbol table.
//
// # Overview
//
// A Model is created from a descriptor set, one Model per conversion run. It owns the
// element tree (files, interfaces, methods, messages, fields, enums and enum values),
// the processor registry, the ordered aspect list and the diagnostics collector.
// Models are never shared between runs.
//
// # Stages
//
// A Stage names a milestone such as Resolved or Merged. Each Processor establishes one
// stage and declares the stages it requires. EstablishStage runs the processors of the
// requested stage and its prerequisites depth first, at most once each. A dependency
// cycle is a wiring defect and is returned as a *CycleError; user-facing problems are
// reported as diagnostics and make EstablishStage return false.
//
// # Attributes
//
// Processors and aspects attach typed attributes to elements with SetAttr and read
// them with Attr. Every attribute key must be declared for an element kind with
// DeclareSlot before it is written, and may be written only once per element.
//
// # Usage Example
//
//	m, err := model.New(descriptorSet, model.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	processors.Register(m)
//	ok, err := m.EstablishStage(ctx, model.Normalized)
//	if err != nil {
//		return err // wiring defect
//	}
//	for _, d := range m.Diags() {
//		fmt.Println(d)
//	}
//
// # Related Packages
//
//   - pkg/diag: Diagnostics and suppression
//   - pkg/confmerge: Configuration trees produced by the Normalized stage
//   - pkg/processors: Built-in stage processors
//   - pkg/aspects: Built-in aspects
package model
