package aspects

import (
	"fmt"
	"strings"

	"google.golang.org/genproto/googleapis/api/annotations"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/apicompiler/pkg/confmerge"
	"github.com/platinummonkey/apicompiler/pkg/diag"
	"github.com/platinummonkey/apicompiler/pkg/model"
)

// HTTPBinding is a method's resolved http mapping
type HTTPBinding struct {
	// Verb is GET, PUT, POST, DELETE, PATCH or the kind of a custom pattern
	Verb         string
	Path         string
	Vars         []string
	Body         string
	ResponseBody string
	Additional   []*HTTPBinding

	// Rule is the source rule, selector set to the method's full name
	Rule     *annotations.HttpRule
	Location diag.Location
}

// HTTPBindingKey holds the *HTTPBinding of methods that have one
var HTTPBindingKey = model.NewKey[*HTTPBinding]("http.binding", model.Merged)

// reservedParams are system parameter names that request fields must not shadow
var reservedParams = map[string]bool{
	"access_token":    true,
	"alt":             true,
	"callback":        true,
	"fields":          true,
	"key":             true,
	"oauth_token":     true,
	"prettyPrint":     true,
	"quotaUser":       true,
	"upload_protocol": true,
	"uploadType":      true,
}

// HTTP maps methods to REST bindings from http rules in the configuration and from
// google.api.http method options. Configuration rules win.
type HTTP struct {
	model.BaseAspect
	m     *model.Model
	rules []*selectorRule[*annotations.HttpRule]
}

func NewHTTP() *HTTP {
	return &HTTP{BaseAspect: model.BaseAspect{AspectName: "http"}}
}

func (a *HTTP) RequiredStages() []model.Stage { return []model.Stage{model.Resolved} }

func (a *HTTP) StartMerging(m *model.Model) {
	a.m = m
	m.DeclareSlot(model.MethodKind, HTTPBindingKey, false)
	cfg, svc, err := inputConfig(m)
	if err != nil {
		m.AddError(nil, "http: %v", err)
		return
	}
	a.rules = readRules(cfg, "http", svc.GetHttp().GetRules(), (*annotations.HttpRule).GetSelector)
}

func (a *HTTP) Merge(el model.Element) {
	meth, ok := el.(*model.Method)
	if !ok {
		return
	}
	rule, loc := annotationRule(meth), meth.Location()
	if r := findRule(a.rules, meth.FullName()); r != nil {
		rule, loc = r.rule, r.loc
	}
	if rule == nil {
		return
	}
	binding, err := newBinding(rule, loc, true)
	if err != nil {
		a.m.AddDiag(diag.Errorf(loc, "method %s: %v", meth.FullName(), err))
		return
	}
	binding.Rule = proto.Clone(rule).(*annotations.HttpRule)
	binding.Rule.Selector = meth.FullName()
	for _, b := range append([]*HTTPBinding{binding}, binding.Additional...) {
		a.validate(meth, b)
	}
	model.SetAttr(meth, HTTPBindingKey, binding)
}

func (a *HTTP) EndMerging(m *model.Model) {
	for _, r := range a.rules {
		if !r.used {
			m.AddDiag(diag.Errorf(r.loc, "http rule selector %q matches no method", r.selector))
		}
	}
}

func (a *HTTP) StartNormalization(m *model.Model, b *confmerge.Builder) {
	if b.Has("http") {
		b.WithBuilder("http", func(hb *confmerge.Builder) { hb.Clear("rules") })
	}
}

func (a *HTTP) Normalize(el model.Element, b *confmerge.Builder) {
	binding, ok := model.Attr(el, HTTPBindingKey)
	if !ok {
		return
	}
	b.WithBuilder("http", func(hb *confmerge.Builder) {
		hb.AddValue("rules", confmerge.FromProto(binding.Rule, binding.Location), binding.Location)
	})
}

func (a *HTTP) Lint(el model.Element) {
	binding, ok := model.Attr(el, HTTPBindingKey)
	if !ok {
		return
	}
	meth := el.(*model.Method)
	for _, b := range append([]*HTTPBinding{binding}, binding.Additional...) {
		for _, v := range b.Vars {
			top, _, _ := strings.Cut(v, ".")
			if reservedParams[top] {
				a.m.ReportLint(a.Name(), "param-reserved-keyword", meth, diag.Warning,
					"path variable %q of %s is a reserved parameter name", v, meth.FullName())
			}
		}
		for _, q := range queryParams(meth, b) {
			if reservedParams[q] {
				a.m.ReportLint(a.Name(), "param-reserved-keyword", meth, diag.Warning,
					"query parameter %q of %s is a reserved parameter name", q, meth.FullName())
			}
		}
		if b.Body != "" && (b.Verb == "GET" || b.Verb == "DELETE") {
			a.m.ReportLint(a.Name(), "get-with-body", meth, diag.Warning,
				"%s binding of %s must not have a body", b.Verb, meth.FullName())
		}
	}
}

// newBinding reads the pattern of rule. Additional bindings may not nest.
func newBinding(rule *annotations.HttpRule, loc diag.Location, top bool) (*HTTPBinding, error) {
	b := &HTTPBinding{Body: rule.GetBody(), ResponseBody: rule.GetResponseBody(), Location: loc}
	switch p := rule.GetPattern().(type) {
	case *annotations.HttpRule_Get:
		b.Verb, b.Path = "GET", p.Get
	case *annotations.HttpRule_Put:
		b.Verb, b.Path = "PUT", p.Put
	case *annotations.HttpRule_Post:
		b.Verb, b.Path = "POST", p.Post
	case *annotations.HttpRule_Delete:
		b.Verb, b.Path = "DELETE", p.Delete
	case *annotations.HttpRule_Patch:
		b.Verb, b.Path = "PATCH", p.Patch
	case *annotations.HttpRule_Custom:
		b.Verb, b.Path = p.Custom.GetKind(), p.Custom.GetPath()
	default:
		return nil, fmt.Errorf("http rule has no pattern")
	}
	vars, err := ParsePathTemplate(b.Path)
	if err != nil {
		return nil, err
	}
	b.Vars = vars
	if len(rule.GetAdditionalBindings()) > 0 && !top {
		return nil, fmt.Errorf("additional bindings must not nest")
	}
	for _, ab := range rule.GetAdditionalBindings() {
		extra, err := newBinding(ab, loc, false)
		if err != nil {
			return nil, err
		}
		b.Additional = append(b.Additional, extra)
	}
	return b, nil
}

// validate checks that path variables and the body name fields of the request and
// the response body names a field of the response
func (a *HTTP) validate(meth *model.Method, b *HTTPBinding) {
	in, out := meth.InputType(), meth.OutputType()
	for _, v := range b.Vars {
		if resolveFieldPath(in, v) == nil {
			a.m.AddDiag(diag.Errorf(b.Location, "path variable %q of %s is not a field of %s", v, meth.FullName(), in.FullName()))
		}
	}
	if b.Body != "" && b.Body != "*" && in.Field(b.Body) == nil {
		a.m.AddDiag(diag.Errorf(b.Location, "body %q of %s is not a field of %s", b.Body, meth.FullName(), in.FullName()))
	}
	if b.ResponseBody != "" && out.Field(b.ResponseBody) == nil {
		a.m.AddDiag(diag.Errorf(b.Location, "response body %q of %s is not a field of %s", b.ResponseBody, meth.FullName(), out.FullName()))
	}
}

// resolveFieldPath follows a dotted field path through message typed fields
func resolveFieldPath(msg *model.Message, path string) *model.Field {
	var f *model.Field
	for _, name := range strings.Split(path, ".") {
		if msg == nil {
			return nil
		}
		if f = msg.Field(name); f == nil {
			return nil
		}
		msg = f.TypeMessage()
	}
	return f
}

// queryParams lists the top-level request fields bound neither to the path nor to the
// body
func queryParams(meth *model.Method, b *HTTPBinding) []string {
	if b.Body == "*" {
		return nil
	}
	bound := map[string]bool{b.Body: true}
	for _, v := range b.Vars {
		top, _, _ := strings.Cut(v, ".")
		bound[top] = true
	}
	var out []string
	for _, f := range meth.InputType().Fields {
		if !bound[f.SimpleName()] {
			out = append(out, f.SimpleName())
		}
	}
	return out
}

// annotationRule returns the google.api.http option of a method. Options decoded
// before the extension was registered carry it as unknown fields, and options built
// by a dynamic compiler carry it as a dynamic message; both are decoded again
// against the linked-in types.
func annotationRule(meth *model.Method) *annotations.HttpRule {
	opts := meth.Proto.GetOptions()
	if opts == nil {
		return nil
	}
	if proto.HasExtension(opts, annotations.E_Http) {
		v := opts.ProtoReflect().Get(annotations.E_Http.TypeDescriptor())
		if rule, ok := v.Message().Interface().(*annotations.HttpRule); ok {
			return rule
		}
	} else if len(opts.ProtoReflect().GetUnknown()) == 0 {
		return nil
	}
	raw, err := proto.Marshal(opts)
	if err != nil {
		return nil
	}
	parsed := &descriptorpb.MethodOptions{}
	if err := (proto.UnmarshalOptions{Resolver: protoregistry.GlobalTypes}).Unmarshal(raw, parsed); err != nil {
		return nil
	}
	if !proto.HasExtension(parsed, annotations.E_Http) {
		return nil
	}
	rule, _ := proto.GetExtension(parsed, annotations.E_Http).(*annotations.HttpRule)
	return rule
}
