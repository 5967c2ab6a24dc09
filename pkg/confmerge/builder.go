package confmerge

import (
	"fmt"
	"maps"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/apicompiler/pkg/diag"
)

// Builder is a copy-on-write view over a Config. The first error is sticky: later
// operations become no-ops and Build returns it.
type Builder struct {
	parent    *Builder
	base      *Config
	desc      protoreflect.MessageDescriptor
	inherited *Locations
	values    map[protoreflect.FieldNumber]*fieldValue

	// own holds locations recorded against this node during this pass
	own     map[locKey]diag.Location
	dropped map[locKey]bool
	cleared map[protoreflect.FieldNumber]bool
	// nested holds complete location maps for descendant nodes created in this pass
	nested map[NodeID]map[locKey]diag.Location

	err error
}

// NewBuilder returns a builder for a new, empty tree of the given message type
func NewBuilder(desc protoreflect.MessageDescriptor) *Builder {
	return newBuilder(desc, nil)
}

func newBuilder(desc protoreflect.MessageDescriptor, inherited *Locations) *Builder {
	return &Builder{
		desc:      desc,
		inherited: inherited,
		values:    make(map[protoreflect.FieldNumber]*fieldValue),
		own:       make(map[locKey]diag.Location),
		dropped:   make(map[locKey]bool),
		cleared:   make(map[protoreflect.FieldNumber]bool),
		nested:    make(map[NodeID]map[locKey]diag.Location),
	}
}

func newBuilderFrom(c *Config, inherited *Locations) *Builder {
	b := newBuilder(c.desc, inherited)
	b.base = c
	for num, v := range c.values {
		b.values[num] = v
	}
	return b
}

// Err returns the first error recorded by the builder
func (b *Builder) Err() error { return b.err }

func (b *Builder) Descriptor() protoreflect.MessageDescriptor { return b.desc }

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) lookup(name string) protoreflect.FieldDescriptor {
	if b.err != nil {
		return nil
	}
	fd := b.desc.Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		fd = b.desc.Fields().ByJSONName(name)
	}
	if fd == nil {
		b.fail(fmt.Errorf("%s has no field %q", b.desc.FullName(), name))
	}
	return fd
}

func (b *Builder) record(fd protoreflect.FieldDescriptor, key string, loc diag.Location) {
	k := locKey{field: fd.Number(), key: key}
	if loc == nil {
		delete(b.own, k)
		b.dropped[k] = true
		return
	}
	b.own[k] = loc
}

// put replaces the value of fd, clearing sibling members of a real oneof
func (b *Builder) put(fd protoreflect.FieldDescriptor, v *fieldValue) {
	if od := fd.ContainingOneof(); od != nil && !od.IsSynthetic() {
		fields := od.Fields()
		for i := 0; i < fields.Len(); i++ {
			if sib := fields.Get(i); sib.Number() != fd.Number() {
				b.clearField(sib)
			}
		}
	}
	b.values[fd.Number()] = v
}

func (b *Builder) clearField(fd protoreflect.FieldDescriptor) {
	delete(b.values, fd.Number())
	b.cleared[fd.Number()] = true
	for k := range b.own {
		if k.field == fd.Number() {
			delete(b.own, k)
		}
	}
}

// Clear unsets a field and forgets every location recorded for it
func (b *Builder) Clear(field string) *Builder {
	if fd := b.lookup(field); fd != nil {
		b.clearField(fd)
	}
	return b
}

// Has reports whether field currently holds a value
func (b *Builder) Has(field string) bool {
	fd := b.desc.Fields().ByName(protoreflect.Name(field))
	return fd != nil && b.values[fd.Number()] != nil
}

// Len returns the current number of elements of a repeated or map field
func (b *Builder) Len(field string) int {
	fd := b.desc.Fields().ByName(protoreflect.Name(field))
	if fd == nil {
		return 0
	}
	v := b.values[fd.Number()]
	if v == nil {
		return 0
	}
	if fd.IsMap() {
		return len(v.entries)
	}
	return len(v.list)
}

// MessageAt returns the current element i of a repeated message field, or nil
func (b *Builder) MessageAt(field string, i int) *Config {
	fd := b.desc.Fields().ByName(protoreflect.Name(field))
	if fd == nil {
		return nil
	}
	v := b.values[fd.Number()]
	if v == nil || i < 0 || i >= len(v.list) {
		return nil
	}
	return v.list[i].message
}

// Location returns the location currently recorded for field and key of this node, or
// diag.UnknownLocation
func (b *Builder) Location(field, key string) diag.Location {
	fd := b.desc.Fields().ByName(protoreflect.Name(field))
	if fd == nil {
		return diag.UnknownLocation
	}
	k := locKey{field: fd.Number(), key: key}
	if loc, ok := b.own[k]; ok {
		return loc
	}
	if b.base != nil && !b.cleared[k.field] && !b.dropped[k] {
		if loc, ok := b.nodeLocations(b.base.id)[k]; ok {
			return loc
		}
	}
	return diag.UnknownLocation
}

// SetValue sets a singular field when key is empty. With a key, the field must be a map
// and the entry for key is replaced.
func (b *Builder) SetValue(field, key string, value any, loc diag.Location) *Builder {
	fd := b.lookup(field)
	if fd == nil {
		return b
	}
	if key != "" {
		return b.setMapValue(fd, key, value, loc)
	}
	if fd.IsList() || fd.IsMap() {
		b.fail(fmt.Errorf("field %s is not singular", fd.FullName()))
		return b
	}
	el, err := toElement(fd, fd.Message(), value)
	if err != nil {
		b.fail(err)
		return b
	}
	if el.message != nil {
		el.message = b.adopt(el.message, el.message.locations)
	}
	b.put(fd, &fieldValue{single: el})
	b.record(fd, "", loc)
	return b
}

// SetPropagatedValue sets a singular scalar as a propagated default. Legacy merges reset
// such values when the incoming tree does not set them.
func (b *Builder) SetPropagatedValue(field string, value any, loc diag.Location) *Builder {
	fd := b.lookup(field)
	if fd == nil {
		return b
	}
	if fd.IsList() || fd.IsMap() || fd.Message() != nil {
		b.fail(fmt.Errorf("field %s is not a singular scalar", fd.FullName()))
		return b
	}
	el, err := toElement(fd, nil, value)
	if err != nil {
		b.fail(err)
		return b
	}
	b.put(fd, &fieldValue{single: el, propagated: true})
	b.record(fd, "", loc)
	return b
}

func (b *Builder) setMapValue(fd protoreflect.FieldDescriptor, key string, value any, loc diag.Location) *Builder {
	if !fd.IsMap() {
		b.fail(fmt.Errorf("field %s is not a map", fd.FullName()))
		return b
	}
	mk, err := parseMapKey(fd.MapKey(), key)
	if err != nil {
		b.fail(err)
		return b
	}
	el, err := toElement(fd.MapValue(), fd.MapValue().Message(), value)
	if err != nil {
		b.fail(err)
		return b
	}
	if el.message != nil {
		el.message = b.adopt(el.message, el.message.locations)
	}
	b.putEntry(fd, mapEntry{key: mk.String(), mapKey: mk, value: el})
	b.record(fd, mk.String(), loc)
	return b
}

func (b *Builder) putEntry(fd protoreflect.FieldDescriptor, e mapEntry) {
	v := b.mutable(fd)
	if i := v.entryIndex(e.key); i >= 0 {
		v.entries[i] = e
		return
	}
	v.entries = append(v.entries, e)
}

// mutable returns a private copy of fd's value that may be modified in place
func (b *Builder) mutable(fd protoreflect.FieldDescriptor) *fieldValue {
	v := b.values[fd.Number()]
	if v == nil {
		v = &fieldValue{}
	} else {
		v = v.clone()
	}
	b.put(fd, v)
	return v
}

// AddValue appends to a repeated field; the location is keyed by the new index
func (b *Builder) AddValue(field string, value any, loc diag.Location) *Builder {
	fd := b.lookup(field)
	if fd == nil {
		return b
	}
	if !fd.IsList() {
		b.fail(fmt.Errorf("field %s is not repeated", fd.FullName()))
		return b
	}
	el, err := toElement(fd, fd.Message(), value)
	if err != nil {
		b.fail(err)
		return b
	}
	if el.message != nil {
		el.message = b.adopt(el.message, el.message.locations)
	}
	v := b.mutable(fd)
	v.list = append(v.list, el)
	b.record(fd, IndexKey(len(v.list)-1), loc)
	return b
}

// WithBuilder runs fn on a sub-builder over the singular message field, creating the
// child when it is unset.
func (b *Builder) WithBuilder(field string, fn func(*Builder)) *Builder {
	fd := b.messageField(field)
	if fd == nil {
		return b
	}
	if fd.IsList() || fd.IsMap() {
		b.fail(fmt.Errorf("field %s is not singular", fd.FullName()))
		return b
	}
	var current *Config
	if v := b.values[fd.Number()]; v != nil {
		current = v.single.message
	}
	child, ok := b.runSub(fd.Message(), current, fn)
	if ok {
		b.put(fd, &fieldValue{single: element{message: child}})
	}
	return b
}

// WithBuilderAt runs fn on a sub-builder over element index of a repeated message field
func (b *Builder) WithBuilderAt(field string, index int, fn func(*Builder)) *Builder {
	fd := b.messageField(field)
	if fd == nil {
		return b
	}
	v := b.values[fd.Number()]
	if !fd.IsList() || v == nil || index < 0 || index >= len(v.list) {
		b.fail(fmt.Errorf("field %s has no element %d", fd.FullName(), index))
		return b
	}
	child, ok := b.runSub(fd.Message(), v.list[index].message, fn)
	if ok {
		mv := b.mutable(fd)
		mv.list[index] = element{message: child}
	}
	return b
}

// WithAddedBuilder appends a new element to a repeated message field and runs fn on it
func (b *Builder) WithAddedBuilder(field string, fn func(*Builder)) *Builder {
	fd := b.messageField(field)
	if fd == nil {
		return b
	}
	if !fd.IsList() {
		b.fail(fmt.Errorf("field %s is not repeated", fd.FullName()))
		return b
	}
	child, ok := b.runSub(fd.Message(), nil, fn)
	if ok {
		mv := b.mutable(fd)
		mv.list = append(mv.list, element{message: child})
	}
	return b
}

// WithMapBuilder runs fn on a sub-builder over the message stored under key
func (b *Builder) WithMapBuilder(field, key string, fn func(*Builder)) *Builder {
	fd := b.lookup(field)
	if fd == nil {
		return b
	}
	if !fd.IsMap() || fd.MapValue().Message() == nil {
		b.fail(fmt.Errorf("field %s is not a message-valued map", fd.FullName()))
		return b
	}
	mk, err := parseMapKey(fd.MapKey(), key)
	if err != nil {
		b.fail(err)
		return b
	}
	var current *Config
	if v := b.values[fd.Number()]; v != nil {
		if i := v.entryIndex(mk.String()); i >= 0 {
			current = v.entries[i].value.message
		}
	}
	child, ok := b.runSub(fd.MapValue().Message(), current, fn)
	if ok {
		b.putEntry(fd, mapEntry{key: mk.String(), mapKey: mk, value: element{message: child}})
	}
	return b
}

func (b *Builder) messageField(field string) protoreflect.FieldDescriptor {
	fd := b.lookup(field)
	if fd == nil {
		return nil
	}
	if fd.Message() == nil || fd.IsMap() {
		b.fail(fmt.Errorf("field %s is not a message field", fd.FullName()))
		return nil
	}
	return fd
}

// runSub opens a scoped builder, runs fn and folds the sub-builder's location diff into b
func (b *Builder) runSub(desc protoreflect.MessageDescriptor, current *Config, fn func(*Builder)) (*Config, bool) {
	var sub *Builder
	if current != nil {
		sub = newBuilderFrom(current, b.inherited)
	} else {
		sub = newBuilder(desc, b.inherited)
	}
	sub.parent = b
	fn(sub)
	if sub.err != nil {
		b.fail(sub.err)
		return nil, false
	}
	child, diff := sub.build()
	for id, m := range diff {
		b.nested[id] = m
	}
	return child, true
}

// nodeLocations finds the locations of a node created earlier in this pass, falling back
// to the inherited table
func (b *Builder) nodeLocations(id NodeID) map[locKey]diag.Location {
	for cur := b; cur != nil; cur = cur.parent {
		if m, ok := cur.nested[id]; ok {
			return m
		}
	}
	return b.inherited.node(id)
}

// build creates the new node and returns it with the location maps of every node
// created in this pass. The node gets its own copy of the value map so the builder
// stays usable without touching what it already built.
func (b *Builder) build() (*Config, map[NodeID]map[locKey]diag.Location) {
	c := &Config{id: newNodeID(), desc: b.desc, values: maps.Clone(b.values)}
	own := make(map[locKey]diag.Location)
	if b.base != nil {
		for k, loc := range b.nodeLocations(b.base.id) {
			if !b.cleared[k.field] && !b.dropped[k] {
				own[k] = loc
			}
		}
	}
	for k, loc := range b.own {
		own[k] = loc
	}
	diff := make(map[NodeID]map[locKey]diag.Location, len(b.nested)+1)
	for id, m := range b.nested {
		diff[id] = m
	}
	diff[c.id] = own
	return c, diff
}

// Build finalizes the tree. Locations recorded against the previous tree are carried
// forward for every node and field still present.
func (b *Builder) Build() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	c, diff := b.build()
	locs := newLocations()
	c.walk(func(n *Config) {
		m, ok := diff[n.id]
		if !ok {
			m = b.nodeLocations(n.id)
		}
		if len(m) == 0 {
			return
		}
		cp := make(map[locKey]diag.Location, len(m))
		for k, loc := range m {
			cp[k] = loc
		}
		locs.entries[n.id] = cp
	})
	c.locations = locs
	return c, nil
}

// adopt deep-copies a node from another tree under fresh ids, remapping its locations
// from srcLocs into b's nested diff
func (b *Builder) adopt(n *Config, srcLocs *Locations) *Config {
	c := &Config{id: newNodeID(), desc: n.desc, values: make(map[protoreflect.FieldNumber]*fieldValue, len(n.values))}
	if m := srcLocs.node(n.id); len(m) > 0 {
		cp := make(map[locKey]diag.Location, len(m))
		for k, loc := range m {
			cp[k] = loc
		}
		b.nested[c.id] = cp
	}
	for num, v := range n.values {
		nv := v.clone()
		if nv.single.message != nil {
			nv.single.message = b.adopt(nv.single.message, srcLocs)
		}
		for i := range nv.list {
			if nv.list[i].message != nil {
				nv.list[i].message = b.adopt(nv.list[i].message, srcLocs)
			}
		}
		for i := range nv.entries {
			if nv.entries[i].value.message != nil {
				nv.entries[i].value.message = b.adopt(nv.entries[i].value.message, srcLocs)
			}
		}
		c.values[num] = nv
	}
	return c
}
