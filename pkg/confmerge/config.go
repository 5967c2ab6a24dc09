package confmerge

import (
	"strconv"
	"sync/atomic"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/apicompiler/pkg/diag"
)

// NodeID identifies a Config node. IDs are assigned at creation time and never reused.
type NodeID uint64

var lastNodeID atomic.Uint64

func newNodeID() NodeID {
	return NodeID(lastNodeID.Add(1))
}

// element is one value of a singular, repeated, or map field
type element struct {
	scalar  protoreflect.Value
	message *Config
}

type mapEntry struct {
	key    string
	mapKey protoreflect.MapKey
	value  element
}

// fieldValue holds the value of one field. Exactly one of the shapes is used, depending
// on the field descriptor. fieldValues are never mutated once attached to a built Config.
type fieldValue struct {
	single     element
	propagated bool
	list       []element
	entries    []mapEntry
}

func (v *fieldValue) entryIndex(key string) int {
	for i := range v.entries {
		if v.entries[i].key == key {
			return i
		}
	}
	return -1
}

func (v *fieldValue) clone() *fieldValue {
	c := &fieldValue{single: v.single, propagated: v.propagated}
	if v.list != nil {
		c.list = append([]element(nil), v.list...)
	}
	if v.entries != nil {
		c.entries = append([]mapEntry(nil), v.entries...)
	}
	return c
}

// locKey addresses one located value inside a node
type locKey struct {
	field protoreflect.FieldNumber
	key   string
}

// Locations is the side table of a tree: node id -> (field, key) -> location
type Locations struct {
	entries map[NodeID]map[locKey]diag.Location
}

func newLocations() *Locations {
	return &Locations{entries: make(map[NodeID]map[locKey]diag.Location)}
}

func (l *Locations) lookup(id NodeID, k locKey) (diag.Location, bool) {
	if l == nil {
		return nil, false
	}
	loc, ok := l.entries[id][k]
	return loc, ok
}

func (l *Locations) node(id NodeID) map[locKey]diag.Location {
	if l == nil {
		return nil
	}
	return l.entries[id]
}

// Len returns the number of located values in the table
func (l *Locations) Len() int {
	if l == nil {
		return 0
	}
	n := 0
	for _, m := range l.entries {
		n += len(m)
	}
	return n
}

// Config is an immutable configuration tree node
type Config struct {
	id        NodeID
	desc      protoreflect.MessageDescriptor
	values    map[protoreflect.FieldNumber]*fieldValue
	locations *Locations // set on roots only
}

// New returns an empty root Config for the given message type
func New(desc protoreflect.MessageDescriptor) *Config {
	return &Config{
		id:        newNodeID(),
		desc:      desc,
		values:    make(map[protoreflect.FieldNumber]*fieldValue),
		locations: newLocations(),
	}
}

func (c *Config) ID() NodeID                                 { return c.id }
func (c *Config) Descriptor() protoreflect.MessageDescriptor { return c.desc }

// Locations returns the side table owned by this root, or nil for nested nodes
func (c *Config) Locations() *Locations { return c.locations }

func (c *Config) field(name string) protoreflect.FieldDescriptor {
	if c == nil {
		return nil
	}
	return c.desc.Fields().ByName(protoreflect.Name(name))
}

func (c *Config) value(name string) (*fieldValue, protoreflect.FieldDescriptor) {
	fd := c.field(name)
	if fd == nil {
		return nil, nil
	}
	return c.values[fd.Number()], fd
}

// Has reports whether the field is set
func (c *Config) Has(name string) bool {
	v, _ := c.value(name)
	return v != nil
}

// IsPropagated reports whether a singular scalar was set only via default propagation
func (c *Config) IsPropagated(name string) bool {
	v, _ := c.value(name)
	return v != nil && v.propagated
}

// Scalar returns the value of a singular scalar field, or the field default when unset
func (c *Config) Scalar(name string) (protoreflect.Value, bool) {
	v, fd := c.value(name)
	if fd == nil {
		return protoreflect.Value{}, false
	}
	if v == nil {
		return fd.Default(), false
	}
	return v.single.scalar, true
}

// GetString is a convenience accessor for string fields
func (c *Config) GetString(name string) string {
	v, ok := c.Scalar(name)
	if !ok || !v.IsValid() {
		return ""
	}
	s, _ := v.Interface().(string)
	return s
}

// Message returns the child node of a singular message field, or nil
func (c *Config) Message(name string) *Config {
	v, _ := c.value(name)
	if v == nil {
		return nil
	}
	return v.single.message
}

// Len returns the number of elements of a repeated or map field
func (c *Config) Len(name string) int {
	v, fd := c.value(name)
	if v == nil {
		return 0
	}
	if fd.IsMap() {
		return len(v.entries)
	}
	return len(v.list)
}

// ScalarAt returns element i of a repeated scalar field
func (c *Config) ScalarAt(name string, i int) protoreflect.Value {
	v, _ := c.value(name)
	if v == nil || i < 0 || i >= len(v.list) {
		return protoreflect.Value{}
	}
	return v.list[i].scalar
}

// MessageAt returns element i of a repeated message field
func (c *Config) MessageAt(name string, i int) *Config {
	v, _ := c.value(name)
	if v == nil || i < 0 || i >= len(v.list) {
		return nil
	}
	return v.list[i].message
}

// Keys returns the keys of a map field in insertion order
func (c *Config) Keys(name string) []string {
	v, _ := c.value(name)
	if v == nil {
		return nil
	}
	keys := make([]string, len(v.entries))
	for i := range v.entries {
		keys[i] = v.entries[i].key
	}
	return keys
}

// MapScalar returns the scalar stored under key in a map field
func (c *Config) MapScalar(name, key string) (protoreflect.Value, bool) {
	v, _ := c.value(name)
	if v == nil {
		return protoreflect.Value{}, false
	}
	if i := v.entryIndex(key); i >= 0 {
		return v.entries[i].value.scalar, true
	}
	return protoreflect.Value{}, false
}

// MapMessage returns the message stored under key in a map field
func (c *Config) MapMessage(name, key string) *Config {
	v, _ := c.value(name)
	if v == nil {
		return nil
	}
	if i := v.entryIndex(key); i >= 0 {
		return v.entries[i].value.message
	}
	return nil
}

// GetLocation returns the location recorded for node's field and element key. key is
// "" for singular fields, the decimal index for repeated fields and the map key for map
// fields. It returns diag.UnknownLocation when nothing was recorded.
func (c *Config) GetLocation(node *Config, field, key string) diag.Location {
	if c == nil || node == nil {
		return diag.UnknownLocation
	}
	fd := node.field(field)
	if fd == nil {
		return diag.UnknownLocation
	}
	if loc, ok := c.locations.lookup(node.id, locKey{field: fd.Number(), key: key}); ok {
		return loc
	}
	return diag.UnknownLocation
}

// Location is GetLocation for the root node itself
func (c *Config) Location(field, key string) diag.Location {
	return c.GetLocation(c, field, key)
}

// IndexKey formats a repeated field index as an element key
func IndexKey(i int) string {
	return strconv.Itoa(i)
}

// walk visits c and every descendant node, parents first
func (c *Config) walk(fn func(*Config)) {
	if c == nil {
		return
	}
	fn(c)
	for _, v := range c.values {
		if v.single.message != nil {
			v.single.message.walk(fn)
		}
		for _, e := range v.list {
			if e.message != nil {
				e.message.walk(fn)
			}
		}
		for _, e := range v.entries {
			if e.value.message != nil {
				e.value.message.walk(fn)
			}
		}
	}
}

// ToBuilder opens a builder over this tree. Locations recorded in the tree's side table
// are inherited.
func (c *Config) ToBuilder() *Builder {
	return newBuilderFrom(c, c.locations)
}

func (v *fieldValue) lenList() int {
	if v == nil {
		return 0
	}
	return len(v.list)
}
