package model

import (
	"sort"
	"strings"
)

// SymbolTable is an immutable index over the declared types and interfaces of a model.
// Lookups never panic; a miss returns nil.
type SymbolTable struct {
	types         map[string]Element // *Message or *Enum
	interfaces    map[string]*Interface
	fieldNames    map[string]bool
	methodsByName map[string][]*Method
	namespaces    map[string]bool
}

// NewSymbolTable indexes every file of the model. Elements whose full name was already
// taken are returned as duplicates; the first declaration wins.
func NewSymbolTable(files []*File) (*SymbolTable, []Element) {
	st := &SymbolTable{
		types:         make(map[string]Element),
		interfaces:    make(map[string]*Interface),
		fieldNames:    make(map[string]bool),
		methodsByName: make(map[string][]*Method),
		namespaces:    make(map[string]bool),
	}
	var dups []Element
	for _, f := range files {
		pkg := f.Package()
		for pkg != "" {
			st.namespaces[pkg] = true
			pkg = parentScope(pkg)
		}
		Walk(f, func(el Element) bool {
			switch e := el.(type) {
			case *Message, *Enum:
				if st.taken(e.FullName()) {
					dups = append(dups, e)
					return true
				}
				st.types[e.FullName()] = e
			case *Interface:
				if st.taken(e.FullName()) {
					dups = append(dups, e)
					return true
				}
				st.interfaces[e.FullName()] = e
			case *Field:
				st.fieldNames[e.SimpleName()] = true
			case *Method:
				st.methodsByName[e.SimpleName()] = append(st.methodsByName[e.SimpleName()], e)
			}
			return true
		})
	}
	return st, dups
}

func (st *SymbolTable) taken(name string) bool {
	if _, ok := st.types[name]; ok {
		return true
	}
	_, ok := st.interfaces[name]
	return ok
}

func parentScope(scope string) string {
	if i := strings.LastIndexByte(scope, '.'); i >= 0 {
		return scope[:i]
	}
	return ""
}

// candidates lists the names partial may refer to from inScope, innermost first:
// "a.b.M" + "R.s" gives "a.b.M.R.s", "a.b.R.s", "a.R.s", "R.s"
func candidates(inScope, partial string) []string {
	if strings.HasPrefix(partial, ".") {
		return []string{partial[1:]}
	}
	var out []string
	for scope := inScope; ; scope = parentScope(scope) {
		out = append(out, qualify(scope, partial))
		if scope == "" {
			return out
		}
	}
}

// ResolveType resolves a possibly partial type name as seen from inScope. The innermost
// enclosing scope that declares a matching type wins.
func (st *SymbolTable) ResolveType(inScope, partial string) Element {
	if st == nil || partial == "" {
		return nil
	}
	for _, c := range candidates(inScope, partial) {
		if t, ok := st.types[c]; ok {
			return t
		}
	}
	return nil
}

// ResolveInterface is ResolveType for interfaces
func (st *SymbolTable) ResolveInterface(inScope, partial string) *Interface {
	if st == nil || partial == "" {
		return nil
	}
	for _, c := range candidates(inScope, partial) {
		if i, ok := st.interfaces[c]; ok {
			return i
		}
	}
	return nil
}

// ResolveType2 is the strict strategy: the first component of partial is looked up
// from the innermost scope outwards, and the first scope where it names anything
// (package, type or interface) anchors the rest of the name. When the remainder is
// not found under that anchor the lookup fails without trying broader scopes.
func (st *SymbolTable) ResolveType2(inScope, partial string) Element {
	if st == nil || partial == "" {
		return nil
	}
	if strings.HasPrefix(partial, ".") {
		return st.types[partial[1:]]
	}
	first, rest, _ := strings.Cut(partial, ".")
	for scope := inScope; ; scope = parentScope(scope) {
		anchor := qualify(scope, first)
		if st.isSymbol(anchor) {
			if rest == "" {
				return st.types[anchor]
			}
			return st.types[anchor+"."+rest]
		}
		if scope == "" {
			return nil
		}
	}
}

func (st *SymbolTable) isSymbol(name string) bool {
	return st.namespaces[name] || st.taken(name)
}

// Resolve finds the element with the given full name: a type, an interface, or a
// field, method or enum value of one.
func (st *SymbolTable) Resolve(id string) Element {
	if st == nil || id == "" {
		return nil
	}
	if t, ok := st.types[id]; ok {
		return t
	}
	if i, ok := st.interfaces[id]; ok {
		return i
	}
	i := strings.LastIndexByte(id, '.')
	if i < 0 {
		return nil
	}
	name := id[i+1:]
	switch p := st.Resolve(id[:i]).(type) {
	case *Message:
		if f := p.Field(name); f != nil {
			return f
		}
	case *Interface:
		if m := p.Method(name); m != nil {
			return m
		}
	case *Enum:
		if v := p.Value(name); v != nil {
			return v
		}
	}
	return nil
}

// LookupType returns the type with the exact full name
func (st *SymbolTable) LookupType(fullName string) Element {
	if st == nil {
		return nil
	}
	return st.types[fullName]
}

// LookupMessage returns the message with the exact full name
func (st *SymbolTable) LookupMessage(fullName string) *Message {
	m, _ := st.LookupType(fullName).(*Message)
	return m
}

// LookupInterface returns the interface with the exact full name
func (st *SymbolTable) LookupInterface(fullName string) *Interface {
	if st == nil {
		return nil
	}
	return st.interfaces[fullName]
}

// LookupMethodsBySimpleName returns every method with the given simple name
func (st *SymbolTable) LookupMethodsBySimpleName(name string) []*Method {
	if st == nil {
		return nil
	}
	return append([]*Method(nil), st.methodsByName[name]...)
}

// HasFieldName reports whether any message declares a field with the simple name
func (st *SymbolTable) HasFieldName(name string) bool {
	return st != nil && st.fieldNames[name]
}

// Types returns the full names of all types, sorted
func (st *SymbolTable) Types() []string {
	if st == nil {
		return nil
	}
	return sortedKeys(st.types)
}

// Interfaces returns the full names of all interfaces, sorted
func (st *SymbolTable) Interfaces() []string {
	if st == nil {
		return nil
	}
	return sortedKeys(st.interfaces)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
