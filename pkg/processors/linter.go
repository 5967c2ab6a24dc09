package processors

import (
	"context"

	"github.com/platinummonkey/apicompiler/pkg/linter"
	"github.com/platinummonkey/apicompiler/pkg/model"
)

// Linter runs every aspect's lint checks and, when configured, the rule engine. Lint
// findings never fail the stage.
type Linter struct {
	Engine *linter.LintEngine
	// Result holds the engine's result once the stage ran
	Result linter.LintResult
}

func (p *Linter) Requires() []model.Stage  { return []model.Stage{model.Normalized} }
func (p *Linter) Establishes() model.Stage { return model.Linted }

func (p *Linter) Run(ctx context.Context, m *model.Model) bool {
	if err := ctx.Err(); err != nil {
		return cancelled(m, model.Linted, err)
	}
	aspects := m.Aspects()
	for _, f := range m.Files() {
		model.Walk(f, func(el model.Element) bool {
			for _, a := range aspects {
				a.Lint(el)
			}
			return true
		})
	}
	if p.Engine != nil {
		p.Result = p.Engine.Lint(m)
	}
	m.MarkEstablished(model.Linted)
	return true
}
