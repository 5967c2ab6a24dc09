package processors

import (
	"context"

	"github.com/platinummonkey/apicompiler/pkg/model"
)

// Merger lets every aspect visit every element and attach its attributes
type Merger struct {
	model *model.Model
}

// NewMerger creates the Merged processor for m, whose aspects decide its requirements
func NewMerger(m *model.Model) *Merger {
	return &Merger{model: m}
}

// Requires returns Resolved plus the stages the registered aspects need
func (p *Merger) Requires() []model.Stage {
	stages := []model.Stage{model.Resolved}
	seen := map[model.Stage]bool{model.Resolved: true}
	if p.model == nil {
		return stages
	}
	for _, a := range p.model.Aspects() {
		for _, s := range a.RequiredStages() {
			if !seen[s] {
				seen[s] = true
				stages = append(stages, s)
			}
		}
	}
	return stages
}

func (p *Merger) Establishes() model.Stage { return model.Merged }

func (p *Merger) Run(ctx context.Context, m *model.Model) bool {
	if err := ctx.Err(); err != nil {
		return cancelled(m, model.Merged, err)
	}
	errorsBefore := m.ErrorCount()
	aspects := m.Aspects()

	for _, a := range aspects {
		a.StartMerging(m)
	}
	for _, f := range m.Files() {
		model.Walk(f, func(el model.Element) bool {
			for _, a := range aspects {
				a.Merge(el)
			}
			return true
		})
	}
	for _, a := range aspects {
		a.EndMerging(m)
	}

	if m.ErrorCount() > errorsBefore {
		return false
	}
	m.MarkEstablished(model.Merged)
	return true
}
