package aspects

import (
	"strings"

	"google.golang.org/genproto/googleapis/api/serviceconfig"
	"google.golang.org/protobuf/proto"

	"github.com/platinummonkey/apicompiler/pkg/confmerge"
	"github.com/platinummonkey/apicompiler/pkg/diag"
	"github.com/platinummonkey/apicompiler/pkg/model"
)

// DocumentationKey holds the effective documentation text of an element
var DocumentationKey = model.NewKey[string]("documentation.text", model.Merged)

var documentedKinds = []model.ElementKind{
	model.InterfaceKind,
	model.MethodKind,
	model.MessageKind,
	model.FieldKind,
	model.EnumKind,
	model.EnumValueKind,
}

// Documentation attaches element documentation. A documentation rule from the
// configuration replaces the element's source comment.
type Documentation struct {
	model.BaseAspect
	m     *model.Model
	rules []*selectorRule[*serviceconfig.DocumentationRule]
}

func NewDocumentation() *Documentation {
	return &Documentation{BaseAspect: model.BaseAspect{AspectName: "documentation"}}
}

func (a *Documentation) StartMerging(m *model.Model) {
	a.m = m
	for _, k := range documentedKinds {
		m.DeclareSlot(k, DocumentationKey, false)
	}
	cfg, svc, err := inputConfig(m)
	if err != nil {
		m.AddError(nil, "documentation: %v", err)
		return
	}
	a.rules = readRules(cfg, "documentation", svc.GetDocumentation().GetRules(),
		(*serviceconfig.DocumentationRule).GetSelector)
}

func (a *Documentation) Merge(el model.Element) {
	if el.Kind() == model.FileKind || inMapEntry(el) {
		return
	}
	text := strings.TrimSpace(el.Comment())
	if r := findRule(a.rules, el.FullName()); r != nil && r.rule.GetDescription() != "" {
		text = r.rule.GetDescription()
	}
	if text != "" {
		model.SetAttr(el, DocumentationKey, text)
	}
}

func (a *Documentation) EndMerging(m *model.Model) {
	for _, r := range a.rules {
		if !r.used {
			m.AddDiag(diag.Warningf(r.loc, "documentation rule selector %q matches no element", r.selector))
		}
	}
}

func (a *Documentation) StartNormalization(m *model.Model, b *confmerge.Builder) {
	if b.Has("documentation") {
		b.WithBuilder("documentation", func(db *confmerge.Builder) { db.Clear("rules") })
	}
}

// Normalize writes one rule per documented element, keeping the other fields of an
// exactly matching configured rule
func (a *Documentation) Normalize(el model.Element, b *confmerge.Builder) {
	text, ok := model.Attr(el, DocumentationKey)
	if !ok {
		return
	}
	rule := &serviceconfig.DocumentationRule{}
	for _, r := range a.rules {
		if r.selector == el.FullName() {
			rule = proto.Clone(r.rule).(*serviceconfig.DocumentationRule)
		}
	}
	rule.Selector = el.FullName()
	rule.Description = text
	loc := el.Location()
	b.WithBuilder("documentation", func(db *confmerge.Builder) {
		db.AddValue("rules", confmerge.FromProto(rule, loc), loc)
	})
}

// Lint reports interfaces, methods and messages without documentation
func (a *Documentation) Lint(el model.Element) {
	switch el.Kind() {
	case model.InterfaceKind, model.MethodKind, model.MessageKind:
	default:
		return
	}
	if inMapEntry(el) || strings.HasPrefix(el.File().SimpleName(), "google/") {
		return
	}
	if !model.HasAttr(el, DocumentationKey) {
		a.m.ReportLint(a.Name(), "missing-comment", el, diag.Warning,
			"%s %s has no documentation", el.Kind(), el.FullName())
	}
}

// inMapEntry reports whether el is a synthesized map entry or one of its fields
func inMapEntry(el model.Element) bool {
	for ; el != nil; el = el.Parent() {
		if msg, ok := el.(*model.Message); ok && msg.IsMapEntry() {
			return true
		}
	}
	return false
}
