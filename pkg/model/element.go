package model

import (
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/apicompiler/pkg/diag"
)

// ElementKind identifies the concrete type of an Element
type ElementKind int

const (
	FileKind ElementKind = iota
	InterfaceKind
	MethodKind
	MessageKind
	FieldKind
	EnumKind
	EnumValueKind
)

func (k ElementKind) String() string {
	switch k {
	case FileKind:
		return "file"
	case InterfaceKind:
		return "interface"
	case MethodKind:
		return "method"
	case MessageKind:
		return "message"
	case FieldKind:
		return "field"
	case EnumKind:
		return "enum"
	case EnumValueKind:
		return "enum value"
	}
	return "unknown"
}

// Element is a node of the element tree
type Element interface {
	diag.Suppressor

	Kind() ElementKind
	SimpleName() string
	FullName() string
	Parent() Element
	Children() []Element
	File() *File
	Model() *Model
	Location() diag.Location
	Comment() string
	Directives() Directives

	attrs() *attrStore
}

// base holds the state shared by all elements
type base struct {
	model      *Model
	parent     Element
	name       string
	fullName   string
	location   diag.Location
	comment    string
	directives Directives
	store      attrStore
}

func (b *base) SimpleName() string     { return b.name }
func (b *base) FullName() string       { return b.fullName }
func (b *base) Parent() Element        { return b.parent }
func (b *base) Model() *Model          { return b.model }
func (b *base) Comment() string        { return b.comment }
func (b *base) Directives() Directives { return b.directives }
func (b *base) attrs() *attrStore      { return &b.store }

func (b *base) Location() diag.Location {
	if b.location == nil {
		return diag.UnknownLocation
	}
	return b.location
}

func (b *base) SuppressionDirectives() []string {
	return b.directives.Suppressions()
}

func (b *base) SuppressionParent() diag.Suppressor {
	if b.parent == nil {
		if b.model == nil {
			return nil
		}
		return b.model
	}
	return b.parent
}

func (b *base) File() *File {
	for el := b.parent; el != nil; el = el.Parent() {
		if f, ok := el.(*File); ok {
			return f
		}
	}
	return nil
}

// File is a protobuf file
type File struct {
	base
	Proto      *descriptorpb.FileDescriptorProto
	Interfaces []*Interface
	Messages   []*Message
	Enums      []*Enum
}

func (f *File) Kind() ElementKind { return FileKind }
func (f *File) File() *File       { return f }

// Package returns the file's package, which is also its full name
func (f *File) Package() string { return f.Proto.GetPackage() }

func (f *File) Children() []Element {
	out := make([]Element, 0, len(f.Interfaces)+len(f.Messages)+len(f.Enums))
	for _, i := range f.Interfaces {
		out = append(out, i)
	}
	for _, m := range f.Messages {
		out = append(out, m)
	}
	for _, e := range f.Enums {
		out = append(out, e)
	}
	return out
}

// Interface is a service declaration
type Interface struct {
	base
	Proto   *descriptorpb.ServiceDescriptorProto
	Methods []*Method
}

func (i *Interface) Kind() ElementKind { return InterfaceKind }

func (i *Interface) Children() []Element {
	out := make([]Element, len(i.Methods))
	for n, m := range i.Methods {
		out[n] = m
	}
	return out
}

// Method looks up a method by simple name
func (i *Interface) Method(name string) *Method {
	for _, m := range i.Methods {
		if m.name == name {
			return m
		}
	}
	return nil
}

// Method is an rpc declaration
type Method struct {
	base
	Proto *descriptorpb.MethodDescriptorProto
}

func (m *Method) Kind() ElementKind     { return MethodKind }
func (m *Method) Children() []Element   { return nil }
func (m *Method) Interface() *Interface { return m.parent.(*Interface) }

// InputType returns the resolved request message, once Resolved is established
func (m *Method) InputType() *Message {
	t, _ := Attr(m, InputTypeKey)
	return t
}

// OutputType returns the resolved response message, once Resolved is established
func (m *Method) OutputType() *Message {
	t, _ := Attr(m, OutputTypeKey)
	return t
}

// Message is a message declaration
type Message struct {
	base
	Proto    *descriptorpb.DescriptorProto
	Fields   []*Field
	Messages []*Message
	Enums    []*Enum
}

func (m *Message) Kind() ElementKind { return MessageKind }

// IsMapEntry reports whether the message is a synthesized map entry
func (m *Message) IsMapEntry() bool { return m.Proto.GetOptions().GetMapEntry() }

func (m *Message) Children() []Element {
	out := make([]Element, 0, len(m.Fields)+len(m.Messages)+len(m.Enums))
	for _, f := range m.Fields {
		out = append(out, f)
	}
	for _, n := range m.Messages {
		out = append(out, n)
	}
	for _, e := range m.Enums {
		out = append(out, e)
	}
	return out
}

// Field looks up a field by simple name
func (m *Message) Field(name string) *Field {
	for _, f := range m.Fields {
		if f.name == name {
			return f
		}
	}
	return nil
}

// Field is a message field
type Field struct {
	base
	Proto *descriptorpb.FieldDescriptorProto
}

func (f *Field) Kind() ElementKind   { return FieldKind }
func (f *Field) Children() []Element { return nil }
func (f *Field) Message() *Message   { return f.parent.(*Message) }

func (f *Field) IsRepeated() bool {
	return f.Proto.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REPEATED
}

// IsMessage reports whether the field has message type
func (f *Field) IsMessage() bool {
	t := f.Proto.GetType()
	return t == descriptorpb.FieldDescriptorProto_TYPE_MESSAGE || t == descriptorpb.FieldDescriptorProto_TYPE_GROUP
}

// IsMap reports whether the field is a map, once Resolved is established
func (f *Field) IsMap() bool {
	t := f.TypeMessage()
	return f.IsRepeated() && t != nil && t.IsMapEntry()
}

// TypeMessage returns the resolved message type of the field, if any
func (f *Field) TypeMessage() *Message {
	t, _ := Attr(f, FieldTypeKey)
	if m, ok := t.(*Message); ok {
		return m
	}
	return nil
}

// TypeEnum returns the resolved enum type of the field, if any
func (f *Field) TypeEnum() *Enum {
	t, _ := Attr(f, FieldTypeKey)
	if e, ok := t.(*Enum); ok {
		return e
	}
	return nil
}

// Enum is an enum declaration
type Enum struct {
	base
	Proto  *descriptorpb.EnumDescriptorProto
	Values []*EnumValue
}

func (e *Enum) Kind() ElementKind { return EnumKind }

func (e *Enum) Children() []Element {
	out := make([]Element, len(e.Values))
	for i, v := range e.Values {
		out[i] = v
	}
	return out
}

// Value looks up an enum value by simple name
func (e *Enum) Value(name string) *EnumValue {
	for _, v := range e.Values {
		if v.name == name {
			return v
		}
	}
	return nil
}

// EnumValue is an enum constant
type EnumValue struct {
	base
	Proto *descriptorpb.EnumValueDescriptorProto
}

func (v *EnumValue) Kind() ElementKind   { return EnumValueKind }
func (v *EnumValue) Children() []Element { return nil }

// Walk visits el and its descendants depth first, parents before children. Returning
// false from fn skips the element's children.
func Walk(el Element, fn func(Element) bool) {
	if !fn(el) {
		return
	}
	for _, c := range el.Children() {
		Walk(c, fn)
	}
}
