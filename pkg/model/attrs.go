package model

import (
	"fmt"
)

// AnyKey is the untyped view of an attribute key
type AnyKey interface {
	Name() string
	Stage() Stage
}

// Key is a typed attribute key. Keys compare by name.
type Key[T any] struct {
	name  string
	stage Stage
}

// NewKey creates an attribute key owned by the given stage
func NewKey[T any](name string, stage Stage) Key[T] {
	return Key[T]{name: name, stage: stage}
}

func (k Key[T]) Name() string { return k.name }
func (k Key[T]) Stage() Stage { return k.stage }

// Built-in attributes written by the Resolved stage
var (
	// FieldTypeKey is the *Message or *Enum a message or enum typed field refers to
	FieldTypeKey = NewKey[Element]("field.type", Resolved)
	// InputTypeKey is the request message of a method
	InputTypeKey = NewKey[*Message]("method.input", Resolved)
	// OutputTypeKey is the response message of a method
	OutputTypeKey = NewKey[*Message]("method.output", Resolved)
)

type attrStore struct {
	values map[string]any
}

// slot is one (element kind, key) declaration
type slot struct {
	key      AnyKey
	required bool
}

// DeclareSlot declares that key may be written on elements of kind. A required slot
// must be populated on every element of that kind once the key's stage is established.
func (m *Model) DeclareSlot(kind ElementKind, key AnyKey, required bool) {
	if m.slots[kind] == nil {
		m.slots[kind] = make(map[string]slot)
	}
	if prev, ok := m.slots[kind][key.Name()]; ok {
		required = required || prev.required
	}
	m.slots[kind][key.Name()] = slot{key: key, required: required}
}

// SlotDeclared reports whether key was declared for kind
func (m *Model) SlotDeclared(kind ElementKind, key AnyKey) bool {
	_, ok := m.slots[kind][key.Name()]
	return ok
}

// Attr returns the attribute stored under key
func Attr[T any](el Element, key Key[T]) (T, bool) {
	var zero T
	if el == nil {
		return zero, false
	}
	v, ok := el.attrs().values[key.name]
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// HasAttr reports whether key has been written on el
func HasAttr(el Element, key AnyKey) bool {
	_, ok := el.attrs().values[key.Name()]
	return ok
}

// SetAttr writes an attribute. Writing an undeclared key or writing a key twice is a
// programming error and panics.
func SetAttr[T any](el Element, key Key[T], v T) {
	m := el.Model()
	if m != nil && !m.SlotDeclared(el.Kind(), key) {
		panic(fmt.Sprintf("attribute %q is not declared for %s elements", key.name, el.Kind()))
	}
	s := el.attrs()
	if _, ok := s.values[key.name]; ok {
		panic(fmt.Sprintf("attribute %q already set on %s", key.name, el.FullName()))
	}
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[key.name] = v
}

// checkSlots verifies every required slot owned by stage is populated
func (m *Model) checkSlots(stage Stage) error {
	var missing []string
	for _, f := range m.files {
		Walk(f, func(el Element) bool {
			for _, s := range m.slots[el.Kind()] {
				if s.required && s.key.Stage() == stage && !HasAttr(el, s.key) {
					missing = append(missing, fmt.Sprintf("%s on %s", s.key.Name(), el.FullName()))
				}
			}
			return true
		})
	}
	if len(missing) > 0 {
		return &InvariantError{Stage: stage, Detail: fmt.Sprintf("unpopulated attributes: %v", missing)}
	}
	return nil
}
