package processors

import (
	"context"
	"sort"
	"strings"

	"google.golang.org/genproto/googleapis/api/serviceconfig"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/apipb"

	"github.com/platinummonkey/apicompiler/pkg/confmerge"
	"github.com/platinummonkey/apicompiler/pkg/diag"
	"github.com/platinummonkey/apicompiler/pkg/model"
)

// ServiceDescriptor is the message type of the normalized configuration
var ServiceDescriptor protoreflect.MessageDescriptor = (&serviceconfig.Service{}).ProtoReflect().Descriptor()

// wellKnownPrefix marks types that are referenced by url but never listed
const wellKnownPrefix = "google.protobuf."

// Normalizer builds the final service configuration. The primary configuration is the
// base; supplementary configurations are merged on top with the model's merge policy;
// apis, types and enums are regenerated from the element tree; then every aspect
// writes the sections it owns.
type Normalizer struct{}

func (p *Normalizer) Requires() []model.Stage  { return []model.Stage{model.Merged} }
func (p *Normalizer) Establishes() model.Stage { return model.Normalized }

func (p *Normalizer) Run(ctx context.Context, m *model.Model) bool {
	if err := ctx.Err(); err != nil {
		return cancelled(m, model.Normalized, err)
	}
	errorsBefore := m.ErrorCount()

	var b *confmerge.Builder
	if primary := m.PrimaryConfig(); primary != nil {
		b = primary.ToBuilder()
	} else {
		b = confmerge.NewBuilder(ServiceDescriptor)
	}
	for _, cfg := range m.SupplementaryConfigs() {
		b.Merge(cfg, m.MergePolicy())
	}
	if err := b.Err(); err != nil {
		m.AddError(nil, "failed to merge service configuration: %v", err)
		return false
	}

	ifaces := p.normalizeApis(m, b)
	p.normalizeTypes(m, b, ifaces)

	aspects := m.Aspects()
	for _, a := range aspects {
		a.StartNormalization(m, b)
	}
	for _, f := range m.Files() {
		model.Walk(f, func(el model.Element) bool {
			for _, a := range aspects {
				a.Normalize(el, b)
			}
			return true
		})
	}

	if !b.Has("name") {
		m.AddWarning(nil, "service configuration has no name")
	}
	cfg, err := b.Build()
	if err != nil {
		m.AddError(nil, "failed to build service configuration: %v", err)
		return false
	}
	if m.ErrorCount() > errorsBefore {
		return false
	}
	m.SetServiceConfig(cfg)
	m.MarkEstablished(model.Normalized)
	m.Logger().WithField("types", cfg.Len("types")).Debug("Service configuration normalized")
	return true
}

// normalizeApis fills the apis section. When the configuration lists apis by name only
// those interfaces are exposed; otherwise every interface is.
func (p *Normalizer) normalizeApis(m *model.Model, b *confmerge.Builder) []*model.Interface {
	st := m.Symbols()
	var selected []*model.Interface
	if n := b.Len("apis"); n > 0 {
		for i := 0; i < n; i++ {
			name := b.MessageAt("apis", i).GetString("name")
			iface := st.LookupInterface(name)
			if iface == nil {
				m.AddDiag(diag.Errorf(b.Location("apis", confmerge.IndexKey(i)), "api %q does not name an interface", name))
				continue
			}
			b.WithBuilderAt("apis", i, func(ab *confmerge.Builder) { fillApi(ab, iface) })
			selected = append(selected, iface)
		}
		return selected
	}
	for _, f := range m.Files() {
		for _, iface := range f.Interfaces {
			b.WithAddedBuilder("apis", func(ab *confmerge.Builder) { fillApi(ab, iface) })
			selected = append(selected, iface)
		}
	}
	return selected
}

func fillApi(ab *confmerge.Builder, iface *model.Interface) {
	loc := iface.Location()
	if !ab.Has("name") {
		ab.SetValue("name", "", iface.FullName(), loc)
	}
	ab.Clear("methods")
	for _, meth := range iface.Methods {
		mp := &apipb.Method{
			Name:              meth.SimpleName(),
			RequestTypeUrl:    TypeURL(meth.InputType().FullName()),
			RequestStreaming:  meth.Proto.GetClientStreaming(),
			ResponseTypeUrl:   TypeURL(meth.OutputType().FullName()),
			ResponseStreaming: meth.Proto.GetServerStreaming(),
			Syntax:            syntaxOf(meth.File()),
		}
		ab.AddValue("methods", confmerge.FromProto(mp, meth.Location()), meth.Location())
	}
	if !ab.Has("source_context") {
		ab.SetValue("source_context", "", sourceContext(iface.File()), loc)
	}
	ab.SetValue("syntax", "", syntaxOf(iface.File()), loc)
}

// normalizeTypes regenerates types and enums: everything reachable from the exposed
// interfaces and from types listed by name in the configuration, or every declared
// type when nothing is exposed. Well-known types are never listed.
func (p *Normalizer) normalizeTypes(m *model.Model, b *confmerge.Builder, ifaces []*model.Interface) {
	st := m.Symbols()
	r := newReachability()

	for i := 0; i < b.Len("types"); i++ {
		name := b.MessageAt("types", i).GetString("name")
		t := st.LookupType(name)
		if t == nil {
			m.AddDiag(diag.Errorf(b.Location("types", confmerge.IndexKey(i)), "type %q is not declared", name))
			continue
		}
		r.visit(t)
	}
	for i := 0; i < b.Len("enums"); i++ {
		name := b.MessageAt("enums", i).GetString("name")
		t := st.LookupType(name)
		if t == nil {
			m.AddDiag(diag.Errorf(b.Location("enums", confmerge.IndexKey(i)), "enum %q is not declared", name))
			continue
		}
		r.visit(t)
	}
	for _, iface := range ifaces {
		for _, meth := range iface.Methods {
			r.visit(meth.InputType())
			r.visit(meth.OutputType())
		}
	}
	if len(ifaces) == 0 {
		for _, name := range st.Types() {
			r.visit(st.LookupType(name))
		}
	}

	b.Clear("types")
	b.Clear("enums")
	for _, msg := range r.sortedMessages() {
		loc := msg.Location()
		b.AddValue("types", confmerge.FromProto(TypeProto(msg), loc), loc)
	}
	for _, e := range r.sortedEnums() {
		loc := e.Location()
		b.AddValue("enums", confmerge.FromProto(EnumProto(e), loc), loc)
	}
}

type reachability struct {
	seen     map[string]bool
	messages map[string]*model.Message
	enums    map[string]*model.Enum
}

func newReachability() *reachability {
	return &reachability{
		seen:     make(map[string]bool),
		messages: make(map[string]*model.Message),
		enums:    make(map[string]*model.Enum),
	}
}

func (r *reachability) visit(el model.Element) {
	switch t := el.(type) {
	case *model.Message:
		if t == nil || r.seen[t.FullName()] {
			return
		}
		r.seen[t.FullName()] = true
		if !strings.HasPrefix(t.FullName(), wellKnownPrefix) {
			r.messages[t.FullName()] = t
		}
		for _, f := range t.Fields {
			if ft, ok := model.Attr(f, model.FieldTypeKey); ok {
				r.visit(ft)
			}
		}
	case *model.Enum:
		if t == nil || strings.HasPrefix(t.FullName(), wellKnownPrefix) {
			return
		}
		r.enums[t.FullName()] = t
	}
}

func (r *reachability) sortedMessages() []*model.Message {
	out := make([]*model.Message, 0, len(r.messages))
	for _, msg := range r.messages {
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out
}

func (r *reachability) sortedEnums() []*model.Enum {
	out := make([]*model.Enum, 0, len(r.enums))
	for _, e := range r.enums {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out
}
