package openapi

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/sourcecontextpb"
	"google.golang.org/protobuf/types/known/typepb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/platinummonkey/apicompiler/pkg/diag"
	"github.com/platinummonkey/apicompiler/pkg/processors"
)

// Fallback and well-known type names
const (
	ValueType     = "google.protobuf.Value"
	StructType    = "google.protobuf.Struct"
	ListValueType = "google.protobuf.ListValue"
	EmptyType     = "google.protobuf.Empty"
	TimestampType = "google.protobuf.Timestamp"
)

// TypeInfo describes the protobuf shape a schema translates to. Scalars carry only a
// kind; message shapes carry a type reference once named.
type TypeInfo struct {
	TypeRef       string
	Kind          typepb.Field_Kind
	Cardinality   typepb.Field_Cardinality
	IsMapEntry    bool
	SuggestedName string

	shape *shape
}

// shape is a structural message whose name is assigned on first use as a field value
type shape struct {
	name      string
	suggested string
	fields    []fieldSpec
	mapEntry  bool
	schema    *Schema
}

type fieldSpec struct {
	name     string
	jsonName string
	info     *TypeInfo
}

// ref tracks a $ref target while its schema is translated
type ref struct {
	info       *TypeInfo
	inProgress bool
	used       bool
}

// Fields returns the fields of a message shape numbered from 1 in declaration order
func (t *TypeInfo) Fields() []*typepb.Field {
	if t.shape == nil {
		return nil
	}
	out := make([]*typepb.Field, 0, len(t.shape.fields))
	for i, f := range t.shape.fields {
		out = append(out, f.field(int32(i+1), t.typeRef()))
	}
	return out
}

// typeRef is the full name the info resolves to, following a promoted shape
func (t *TypeInfo) typeRef() string {
	if t.shape != nil && t.shape.name != "" {
		return t.shape.name
	}
	return t.TypeRef
}

// IsMessage reports whether values of this info are messages
func (t *TypeInfo) IsMessage() bool {
	return t.Kind == typepb.Field_TYPE_MESSAGE
}

func (f fieldSpec) field(number int32, owner string) *typepb.Field {
	tf := &typepb.Field{
		Kind:        f.info.Kind,
		Cardinality: f.info.Cardinality,
		Number:      number,
		Name:        f.name,
		JsonName:    f.jsonName,
	}
	switch {
	case f.info.IsMapEntry:
		tf.TypeUrl = processors.TypeURL(entryName(owner, f.name))
	case f.info.IsMessage():
		tf.TypeUrl = processors.TypeURL(f.info.typeRef())
	}
	return tf
}

// entryName follows protoc: underscores are dropped and the letter after one is
// capitalized
func entryName(owner, field string) string {
	var b strings.Builder
	upper := true
	for _, r := range field {
		switch {
		case r == '_':
			upper = true
		case upper:
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		default:
			b.WriteRune(r)
		}
	}
	return owner + "." + b.String() + "Entry"
}

// TypeBuilder translates schemas of one document into protobuf types placed in a
// namespace. A builder memoizes references and must not be shared between documents.
type TypeBuilder struct {
	namespace string
	resolve   func(ref string) (string, *Schema, error)
	source    string

	refs       map[string]*ref
	taken      map[string]bool
	registered []*TypeInfo
	diags      []diag.Diag
}

// NewTypeBuilder returns a builder that resolves references against doc
func NewTypeBuilder(namespace string, doc *Document) *TypeBuilder {
	return &TypeBuilder{
		namespace: namespace,
		resolve:   doc.ResolveRef,
		source:    doc.Name(),
		refs:      make(map[string]*ref),
		taken:     make(map[string]bool),
	}
}

// Diags returns the problems found while translating
func (b *TypeBuilder) Diags() []diag.Diag { return b.diags }

func (b *TypeBuilder) location(s *Schema) diag.Location {
	if s == nil || s.Line == 0 {
		return diag.SimpleLocation{File: b.source}
	}
	return diag.SimpleLocation{File: b.source, Line: s.Line}
}

// TypeInfo classifies a schema. Message shapes stay anonymous until they are used as a
// field value or requested through MessageInfo.
func (b *TypeBuilder) TypeInfo(s *Schema, suggested string) *TypeInfo {
	switch {
	case s == nil || s.IsComposed():
		return wellKnown(ValueType, suggested)
	case s.Ref != "":
		return b.refInfo(s, suggested)
	case s.Type == "array" || (s.Type == "" && s.Items != nil):
		return b.arrayInfo(s, suggested)
	case isPrimitive(s.Type):
		return primitive(s, suggested)
	case len(s.Properties) > 0 && s.HasCatchAll():
		return wellKnown(StructType, suggested)
	case s.HasCatchAll():
		return b.mapInfo(s, suggested)
	case len(s.Properties) > 0:
		return b.messageInfo(s, suggested)
	case s.Type == "object" || s.Type == "":
		return wellKnown(StructType, suggested)
	}
	b.diags = append(b.diags, diag.Warningf(b.location(s), "schema type %q is not supported, using %s", s.Type, ValueType))
	return wellKnown(ValueType, suggested)
}

// MessageInfo returns a message info for s, suitable as a request or response type.
// Primitives use their wrapper type and other non-message shapes are wrapped in a new
// message holding a single value field.
func (b *TypeBuilder) MessageInfo(s *Schema, suggested string) *TypeInfo {
	if s == nil {
		return wellKnown(EmptyType, suggested)
	}
	info := b.TypeInfo(s, suggested)
	switch {
	case info.IsMapEntry || info.Cardinality == typepb.Field_CARDINALITY_REPEATED:
		return b.wrap(info, suggested, s)
	case info.IsMessage():
		b.promote(info)
		return info
	}
	if name, ok := wrappers[info.Kind]; ok {
		return wellKnown(name, suggested)
	}
	return b.wrap(info, suggested, s)
}

// MessageFromFields builds a named message from explicit fields. Fields with a nil
// schema are skipped.
func (b *TypeBuilder) MessageFromFields(suggested string, props []Property) *TypeInfo {
	info := &TypeInfo{
		Kind:          typepb.Field_TYPE_MESSAGE,
		Cardinality:   typepb.Field_CARDINALITY_OPTIONAL,
		SuggestedName: suggested,
		shape:         &shape{suggested: suggested},
	}
	taken := make(map[string]bool)
	for _, p := range props {
		if p.Schema == nil {
			continue
		}
		b.addField(info.shape, taken, p.Name, b.TypeInfo(p.Schema, suggested+pascalCase(p.Name)))
	}
	b.promote(info)
	return info
}

func (b *TypeBuilder) wrap(inner *TypeInfo, suggested string, s *Schema) *TypeInfo {
	info := &TypeInfo{
		Kind:          typepb.Field_TYPE_MESSAGE,
		Cardinality:   typepb.Field_CARDINALITY_OPTIONAL,
		SuggestedName: suggested,
		shape:         &shape{suggested: suggested, schema: s},
	}
	b.addField(info.shape, map[string]bool{}, "value", inner)
	b.promote(info)
	return info
}

func wellKnown(name, suggested string) *TypeInfo {
	return &TypeInfo{
		TypeRef:       name,
		Kind:          typepb.Field_TYPE_MESSAGE,
		Cardinality:   typepb.Field_CARDINALITY_OPTIONAL,
		SuggestedName: suggested,
	}
}

func (b *TypeBuilder) refInfo(s *Schema, suggested string) *TypeInfo {
	if r, ok := b.refs[s.Ref]; ok {
		if r.inProgress {
			r.used = true
		}
		return r.info
	}
	name, target, err := b.resolve(s.Ref)
	if err != nil {
		b.diags = append(b.diags, diag.Errorf(b.location(s), "%v", err))
		return wellKnown(ValueType, suggested)
	}

	// the placeholder is named before recursing so self references terminate
	short := uniqueName(b.taken, pascalCase(name))
	full := b.namespace + "." + short
	placeholder := &TypeInfo{
		TypeRef:       full,
		Kind:          typepb.Field_TYPE_MESSAGE,
		Cardinality:   typepb.Field_CARDINALITY_OPTIONAL,
		SuggestedName: short,
		shape:         &shape{name: full, suggested: short, schema: target},
	}
	r := &ref{info: placeholder, inProgress: true}
	b.refs[s.Ref] = r
	inner := b.TypeInfo(target, short)
	r.inProgress = false

	// a named primitive definition stands for its wrapper type
	if name, ok := wrappers[inner.Kind]; ok && inner.Cardinality != typepb.Field_CARDINALITY_REPEATED {
		inner = wellKnown(name, short)
	}

	if inner.shape != nil && !inner.IsMapEntry && inner.shape.name == "" && inner.Cardinality != typepb.Field_CARDINALITY_REPEATED {
		placeholder.shape.fields = inner.shape.fields
		b.registered = append(b.registered, placeholder)
		return placeholder
	}
	if r.used {
		b.addField(placeholder.shape, map[string]bool{}, "value", inner)
		b.registered = append(b.registered, placeholder)
		return placeholder
	}
	delete(b.taken, short)
	r.info = inner
	return inner
}

func (b *TypeBuilder) arrayInfo(s *Schema, suggested string) *TypeInfo {
	elem := b.TypeInfo(s.Items, suggested+"Item")
	if elem.Cardinality == typepb.Field_CARDINALITY_REPEATED {
		elem = wellKnown(ListValueType, suggested)
	} else if elem.IsMapEntry {
		elem = wellKnown(StructType, suggested)
	}
	out := *elem
	out.Cardinality = typepb.Field_CARDINALITY_REPEATED
	return &out
}

func (b *TypeBuilder) mapInfo(s *Schema, suggested string) *TypeInfo {
	value := b.TypeInfo(s.AdditionalProperties, suggested+"Value")
	if value.Cardinality == typepb.Field_CARDINALITY_REPEATED || value.IsMapEntry {
		value = wellKnown(ListValueType, suggested)
		if s.AdditionalProperties == nil || s.AdditionalProperties.Type != "array" {
			value = wellKnown(StructType, suggested)
		}
	}
	entry := &shape{suggested: suggested, mapEntry: true, schema: s}
	taken := make(map[string]bool)
	b.addField(entry, taken, "key", &TypeInfo{Kind: typepb.Field_TYPE_STRING, Cardinality: typepb.Field_CARDINALITY_OPTIONAL})
	b.addField(entry, taken, "value", value)
	return &TypeInfo{
		Kind:          typepb.Field_TYPE_MESSAGE,
		Cardinality:   typepb.Field_CARDINALITY_REPEATED,
		IsMapEntry:    true,
		SuggestedName: suggested,
		shape:         entry,
	}
}

func (b *TypeBuilder) messageInfo(s *Schema, suggested string) *TypeInfo {
	info := &TypeInfo{
		Kind:          typepb.Field_TYPE_MESSAGE,
		Cardinality:   typepb.Field_CARDINALITY_OPTIONAL,
		SuggestedName: suggested,
		shape:         &shape{suggested: suggested, schema: s},
	}
	taken := make(map[string]bool)
	for _, p := range s.Properties {
		b.addField(info.shape, taken, p.Name, b.TypeInfo(p.Schema, suggested+pascalCase(p.Name)))
	}
	return info
}

// addField appends a field, promoting message shapes used as its value
func (b *TypeBuilder) addField(sh *shape, taken map[string]bool, name string, info *TypeInfo) {
	if info.IsMapEntry {
		for _, f := range info.shape.fields {
			b.promote(f.info)
		}
	} else {
		b.promote(info)
	}
	sh.fields = append(sh.fields, fieldSpec{
		name:     uniqueName(taken, snakeCase(name)),
		jsonName: name,
		info:     info,
	})
}

// promote names an anonymous message shape the first time it is used
func (b *TypeBuilder) promote(info *TypeInfo) {
	if info.shape == nil || info.IsMapEntry || info.shape.name != "" {
		return
	}
	info.shape.name = b.namespace + "." + uniqueName(b.taken, pascalCase(info.shape.suggested))
	info.TypeRef = info.shape.name
	b.registered = append(b.registered, info)
}

// Types returns every named message and the map entries nested in them
func (b *TypeBuilder) Types() []*typepb.Type {
	var out []*typepb.Type
	for _, info := range b.registered {
		out = append(out, b.typeOf(info.shape.name, info.shape)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

func (b *TypeBuilder) typeOf(name string, sh *shape) []*typepb.Type {
	t := &typepb.Type{
		Name:          name,
		SourceContext: &sourcecontextpb.SourceContext{FileName: b.source},
		Syntax:        typepb.Syntax_SYNTAX_PROTO3,
	}
	out := []*typepb.Type{t}
	for i, f := range sh.fields {
		t.Fields = append(t.Fields, f.field(int32(i+1), name))
		if f.info.IsMapEntry {
			out = append(out, b.typeOf(entryName(name, f.name), f.info.shape)...)
		}
	}
	if sh.mapEntry {
		if v, err := anypb.New(wrapperspb.Bool(true)); err == nil {
			t.Options = append(t.Options, &typepb.Option{Name: processors.MapEntryOption, Value: v})
		}
	}
	return out
}

func isPrimitive(t string) bool {
	switch t {
	case "string", "integer", "number", "boolean", "file":
		return true
	}
	return false
}

var wrappers = map[typepb.Field_Kind]string{
	typepb.Field_TYPE_STRING: "google.protobuf.StringValue",
	typepb.Field_TYPE_BYTES:  "google.protobuf.BytesValue",
	typepb.Field_TYPE_BOOL:   "google.protobuf.BoolValue",
	typepb.Field_TYPE_INT32:  "google.protobuf.Int32Value",
	typepb.Field_TYPE_INT64:  "google.protobuf.Int64Value",
	typepb.Field_TYPE_UINT32: "google.protobuf.UInt32Value",
	typepb.Field_TYPE_UINT64: "google.protobuf.UInt64Value",
	typepb.Field_TYPE_FLOAT:  "google.protobuf.FloatValue",
	typepb.Field_TYPE_DOUBLE: "google.protobuf.DoubleValue",
}

// formats maps type and format pairs to field kinds. An empty format is the default
// for the type.
var formats = map[string]map[string]typepb.Field_Kind{
	"integer": {
		"":       typepb.Field_TYPE_INT64,
		"int32":  typepb.Field_TYPE_INT32,
		"int64":  typepb.Field_TYPE_INT64,
		"uint32": typepb.Field_TYPE_UINT32,
		"uint64": typepb.Field_TYPE_UINT64,
	},
	"number": {
		"":       typepb.Field_TYPE_DOUBLE,
		"float":  typepb.Field_TYPE_FLOAT,
		"double": typepb.Field_TYPE_DOUBLE,
	},
	"string": {
		"":       typepb.Field_TYPE_STRING,
		"byte":   typepb.Field_TYPE_BYTES,
		"binary": typepb.Field_TYPE_BYTES,
	},
	"boolean": {"": typepb.Field_TYPE_BOOL},
	"file":    {"": typepb.Field_TYPE_BYTES},
}

func primitive(s *Schema, suggested string) *TypeInfo {
	if s.Type == "string" && s.Format == "date-time" {
		return wellKnown(TimestampType, suggested)
	}
	kinds := formats[s.Type]
	kind, ok := kinds[s.Format]
	if !ok {
		kind = kinds[""]
	}
	return &TypeInfo{Kind: kind, Cardinality: typepb.Field_CARDINALITY_OPTIONAL, SuggestedName: suggested}
}

// String renders the info for debugging
func (t *TypeInfo) String() string {
	card := ""
	if t.Cardinality == typepb.Field_CARDINALITY_REPEATED {
		card = "repeated "
	}
	if t.IsMapEntry {
		return fmt.Sprintf("map<%s>", t.SuggestedName)
	}
	if t.IsMessage() {
		return card + t.typeRef()
	}
	return card + t.Kind.String()
}
