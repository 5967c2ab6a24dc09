package processors

import (
	"strings"

	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/sourcecontextpb"
	"google.golang.org/protobuf/types/known/typepb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/platinummonkey/apicompiler/pkg/model"
)

// TypeURLPrefix is prepended to full names in type urls
const TypeURLPrefix = "type.googleapis.com/"

// MapEntryOption marks a listed type as a synthesized map entry
const MapEntryOption = "map_entry"

// TypeURL returns the type url of a full name
func TypeURL(fullName string) string {
	return TypeURLPrefix + fullName
}

func syntaxOf(f *model.File) typepb.Syntax {
	if f != nil && f.Proto.GetSyntax() == "proto3" {
		return typepb.Syntax_SYNTAX_PROTO3
	}
	return typepb.Syntax_SYNTAX_PROTO2
}

func sourceContext(f *model.File) *sourcecontextpb.SourceContext {
	if f == nil {
		return &sourcecontextpb.SourceContext{}
	}
	return &sourcecontextpb.SourceContext{FileName: f.SimpleName()}
}

// TypeProto converts a message to its google.protobuf.Type form. Field kinds and
// cardinalities share their numbering with descriptor field types and labels.
func TypeProto(msg *model.Message) *typepb.Type {
	t := &typepb.Type{
		Name:          msg.FullName(),
		SourceContext: sourceContext(msg.File()),
		Syntax:        syntaxOf(msg.File()),
	}
	for _, od := range msg.Proto.GetOneofDecl() {
		t.Oneofs = append(t.Oneofs, od.GetName())
	}
	for _, f := range msg.Fields {
		fp := f.Proto
		tf := &typepb.Field{
			Kind:         typepb.Field_Kind(fp.GetType()),
			Cardinality:  typepb.Field_Cardinality(fp.GetLabel()),
			Number:       fp.GetNumber(),
			Name:         fp.GetName(),
			JsonName:     fp.GetJsonName(),
			DefaultValue: fp.GetDefaultValue(),
			Packed:       fp.GetOptions().GetPacked(),
		}
		if fp.OneofIndex != nil && !fp.GetProto3Optional() {
			tf.OneofIndex = fp.GetOneofIndex() + 1
		}
		if ft, ok := model.Attr(f, model.FieldTypeKey); ok {
			tf.TypeUrl = TypeURL(ft.FullName())
			if tf.Kind == typepb.Field_TYPE_UNKNOWN {
				tf.Kind = typepb.Field_TYPE_MESSAGE
				if ft.Kind() == model.EnumKind {
					tf.Kind = typepb.Field_TYPE_ENUM
				}
			}
		} else if name := fp.GetTypeName(); name != "" {
			tf.TypeUrl = TypeURL(strings.TrimPrefix(name, "."))
		}
		t.Fields = append(t.Fields, tf)
	}
	if msg.IsMapEntry() {
		if v, err := anypb.New(wrapperspb.Bool(true)); err == nil {
			t.Options = append(t.Options, &typepb.Option{Name: MapEntryOption, Value: v})
		}
	}
	return t
}

// EnumProto converts an enum to its google.protobuf.Enum form
func EnumProto(e *model.Enum) *typepb.Enum {
	out := &typepb.Enum{
		Name:          e.FullName(),
		SourceContext: sourceContext(e.File()),
		Syntax:        syntaxOf(e.File()),
	}
	for _, v := range e.Values {
		out.Enumvalue = append(out.Enumvalue, &typepb.EnumValue{
			Name:   v.SimpleName(),
			Number: v.Proto.GetNumber(),
		})
	}
	return out
}
