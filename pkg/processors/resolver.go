package processors

import (
	"context"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/apicompiler/pkg/model"
)

// Resolver builds the symbol table and resolves every field and method type reference
type Resolver struct {
	// Strict selects SymbolTable.ResolveType2
	Strict bool
}

func (r *Resolver) Requires() []model.Stage  { return nil }
func (r *Resolver) Establishes() model.Stage { return model.Resolved }

func (r *Resolver) Run(ctx context.Context, m *model.Model) bool {
	if err := ctx.Err(); err != nil {
		return cancelled(m, model.Resolved, err)
	}
	errorsBefore := m.ErrorCount()

	st, dups := model.NewSymbolTable(m.Files())
	for _, d := range dups {
		m.AddError(d, "duplicate definition of %s", d.FullName())
	}
	m.SetSymbols(st)

	resolve := st.ResolveType
	if r.Strict {
		resolve = st.ResolveType2
	}

	for _, f := range m.Files() {
		model.Walk(f, func(el model.Element) bool {
			switch e := el.(type) {
			case *model.Field:
				r.resolveField(m, e, resolve)
			case *model.Method:
				r.resolveMethod(m, e, resolve)
			}
			return true
		})
	}

	if m.ErrorCount() > errorsBefore {
		return false
	}
	m.MarkEstablished(model.Resolved)
	return true
}

func (r *Resolver) resolveField(m *model.Model, f *model.Field, resolve func(string, string) model.Element) {
	name := f.Proto.GetTypeName()
	if name == "" {
		return
	}
	t := resolve(f.Message().FullName(), name)
	if t == nil {
		m.AddError(f, "unresolved type %s for field %s", name, f.FullName())
		return
	}
	switch f.Proto.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		if t.Kind() != model.MessageKind {
			m.AddError(f, "field %s: %s is not a message", f.FullName(), t.FullName())
			return
		}
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		if t.Kind() != model.EnumKind {
			m.AddError(f, "field %s: %s is not an enum", f.FullName(), t.FullName())
			return
		}
	}
	model.SetAttr(f, model.FieldTypeKey, t)
}

func (r *Resolver) resolveMethod(m *model.Model, meth *model.Method, resolve func(string, string) model.Element) {
	scope := meth.Interface().FullName()
	lookup := func(what, name string) *model.Message {
		t := resolve(scope, name)
		if t == nil {
			m.AddError(meth, "unresolved %s type %s for method %s", what, name, meth.FullName())
			return nil
		}
		msg, ok := t.(*model.Message)
		if !ok {
			m.AddError(meth, "%s type %s of method %s is not a message", what, t.FullName(), meth.FullName())
			return nil
		}
		return msg
	}
	if in := lookup("input", meth.Proto.GetInputType()); in != nil {
		model.SetAttr(meth, model.InputTypeKey, in)
	}
	if out := lookup("output", meth.Proto.GetOutputType()); out != nil {
		model.SetAttr(meth, model.OutputTypeKey, out)
	}
}
