// Package processors provides the processors that establish the built-in stages of a
// model: Resolved, Merged, Normalized and Linted.
//
// # Usage Example
//
//	m, err := model.New(set, model.WithServiceConfig(cfg))
//	if err != nil {
//		return err
//	}
//	if err := processors.Register(m, processors.WithLintEngine(engine)); err != nil {
//		return err
//	}
//	ok, err := m.EstablishStage(ctx, model.Linted)
//
// Register adds all four processors. Aspects are registered on the model separately,
// before any stage is established.
package processors
