package confmerge

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/apicompiler/pkg/diag"
)

// toElement converts a caller value into an element for fd. md is the message type of
// the element, or nil for scalars.
func toElement(fd protoreflect.FieldDescriptor, md protoreflect.MessageDescriptor, value any) (element, error) {
	if md != nil {
		switch v := value.(type) {
		case *Config:
			if v.desc.FullName() != md.FullName() {
				return element{}, fmt.Errorf("field %s: want %s, got %s", fd.FullName(), md.FullName(), v.desc.FullName())
			}
			return element{message: v}, nil
		case proto.Message:
			got := v.ProtoReflect().Descriptor()
			if got.FullName() != md.FullName() {
				return element{}, fmt.Errorf("field %s: want %s, got %s", fd.FullName(), md.FullName(), got.FullName())
			}
			return element{message: FromProto(v, nil)}, nil
		default:
			return element{}, fmt.Errorf("field %s: cannot use %T as message", fd.FullName(), value)
		}
	}
	kind := fd.Kind()
	if fd.IsMap() {
		kind = fd.MapValue().Kind()
	}
	sv, err := scalarValue(fd, kind, value)
	if err != nil {
		return element{}, err
	}
	return element{scalar: sv}, nil
}

func scalarValue(fd protoreflect.FieldDescriptor, kind protoreflect.Kind, value any) (protoreflect.Value, error) {
	if v, ok := value.(protoreflect.Value); ok {
		return v, nil
	}
	bad := func() (protoreflect.Value, error) {
		return protoreflect.Value{}, fmt.Errorf("field %s: cannot use %T as %s", fd.FullName(), value, kind)
	}
	switch kind {
	case protoreflect.BoolKind:
		if v, ok := value.(bool); ok {
			return protoreflect.ValueOfBool(v), nil
		}
	case protoreflect.StringKind:
		if v, ok := value.(string); ok {
			return protoreflect.ValueOfString(v), nil
		}
	case protoreflect.BytesKind:
		switch v := value.(type) {
		case []byte:
			return protoreflect.ValueOfBytes(v), nil
		case string:
			return protoreflect.ValueOfBytes([]byte(v)), nil
		}
	case protoreflect.FloatKind:
		if f, ok := asFloat(value); ok {
			return protoreflect.ValueOfFloat32(float32(f)), nil
		}
	case protoreflect.DoubleKind:
		if f, ok := asFloat(value); ok {
			return protoreflect.ValueOfFloat64(f), nil
		}
	case protoreflect.EnumKind:
		ed := fd.Enum()
		if fd.IsMap() {
			ed = fd.MapValue().Enum()
		}
		switch v := value.(type) {
		case protoreflect.EnumNumber:
			return protoreflect.ValueOfEnum(v), nil
		case string:
			ev := ed.Values().ByName(protoreflect.Name(v))
			if ev == nil {
				return protoreflect.Value{}, fmt.Errorf("field %s: unknown %s value %q", fd.FullName(), ed.FullName(), v)
			}
			return protoreflect.ValueOfEnum(ev.Number()), nil
		case protoreflect.Enum:
			return protoreflect.ValueOfEnum(v.Number()), nil
		}
		if i, ok := asInt(value); ok && i >= math.MinInt32 && i <= math.MaxInt32 {
			return protoreflect.ValueOfEnum(protoreflect.EnumNumber(i)), nil
		}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		if i, ok := asInt(value); ok && i >= math.MinInt32 && i <= math.MaxInt32 {
			return protoreflect.ValueOfInt32(int32(i)), nil
		}
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if i, ok := asInt(value); ok {
			return protoreflect.ValueOfInt64(i), nil
		}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		if i, ok := asInt(value); ok && i >= 0 && i <= math.MaxUint32 {
			return protoreflect.ValueOfUint32(uint32(i)), nil
		}
		if u, ok := value.(uint64); ok && u <= math.MaxUint32 {
			return protoreflect.ValueOfUint32(uint32(u)), nil
		}
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if u, ok := value.(uint64); ok {
			return protoreflect.ValueOfUint64(u), nil
		}
		if i, ok := asInt(value); ok && i >= 0 {
			return protoreflect.ValueOfUint64(uint64(i)), nil
		}
	}
	return bad()
}

func asInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	}
	return 0, false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	if i, ok := asInt(value); ok {
		return float64(i), true
	}
	return 0, false
}

func parseMapKey(fd protoreflect.FieldDescriptor, key string) (protoreflect.MapKey, error) {
	var v protoreflect.Value
	switch fd.Kind() {
	case protoreflect.StringKind:
		v = protoreflect.ValueOfString(key)
	case protoreflect.BoolKind:
		b, err := strconv.ParseBool(key)
		if err != nil {
			return protoreflect.MapKey{}, fmt.Errorf("map key %q: %w", key, err)
		}
		v = protoreflect.ValueOfBool(b)
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		i, err := strconv.ParseInt(key, 10, 32)
		if err != nil {
			return protoreflect.MapKey{}, fmt.Errorf("map key %q: %w", key, err)
		}
		v = protoreflect.ValueOfInt32(int32(i))
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		i, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return protoreflect.MapKey{}, fmt.Errorf("map key %q: %w", key, err)
		}
		v = protoreflect.ValueOfInt64(i)
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		u, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return protoreflect.MapKey{}, fmt.Errorf("map key %q: %w", key, err)
		}
		v = protoreflect.ValueOfUint32(uint32(u))
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		u, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return protoreflect.MapKey{}, fmt.Errorf("map key %q: %w", key, err)
		}
		v = protoreflect.ValueOfUint64(u)
	default:
		return protoreflect.MapKey{}, fmt.Errorf("unsupported map key kind %s", fd.Kind())
	}
	return v.MapKey(), nil
}

// FromProto converts a message into a new root Config. When loc is non-nil it is
// recorded for every populated field and element.
func FromProto(msg proto.Message, loc diag.Location) *Config {
	locs := newLocations()
	c := fromMessage(msg.ProtoReflect(), locs, loc)
	c.locations = locs
	return c
}

func fromMessage(m protoreflect.Message, locs *Locations, loc diag.Location) *Config {
	c := &Config{
		id:     newNodeID(),
		desc:   m.Descriptor(),
		values: make(map[protoreflect.FieldNumber]*fieldValue),
	}
	var own map[locKey]diag.Location
	mark := func(fd protoreflect.FieldDescriptor, key string) {
		if loc == nil {
			return
		}
		if own == nil {
			own = make(map[locKey]diag.Location)
			locs.entries[c.id] = own
		}
		own[locKey{field: fd.Number(), key: key}] = loc
	}
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		fv := &fieldValue{}
		switch {
		case fd.IsMap():
			v.Map().Range(func(k protoreflect.MapKey, mv protoreflect.Value) bool {
				e := mapEntry{key: k.String(), mapKey: k}
				if fd.MapValue().Message() != nil {
					e.value.message = fromMessage(mv.Message(), locs, loc)
				} else {
					e.value.scalar = mv
				}
				fv.entries = append(fv.entries, e)
				return true
			})
			sortEntries(fv.entries)
			for _, e := range fv.entries {
				mark(fd, e.key)
			}
		case fd.IsList():
			l := v.List()
			for i := 0; i < l.Len(); i++ {
				if fd.Message() != nil {
					fv.list = append(fv.list, element{message: fromMessage(l.Get(i).Message(), locs, loc)})
				} else {
					fv.list = append(fv.list, element{scalar: l.Get(i)})
				}
				mark(fd, IndexKey(i))
			}
		case fd.Message() != nil:
			fv.single.message = fromMessage(v.Message(), locs, loc)
			mark(fd, "")
		default:
			fv.single.scalar = v
			mark(fd, "")
		}
		c.values[fd.Number()] = fv
		return true
	})
	return c
}

// ToProto writes the tree into msg, which must have the same message type
func (c *Config) ToProto(msg proto.Message) error {
	m := msg.ProtoReflect()
	if m.Descriptor().FullName() != c.desc.FullName() {
		return fmt.Errorf("cannot write %s into %s", c.desc.FullName(), m.Descriptor().FullName())
	}
	c.fill(m)
	return nil
}

func (c *Config) fill(m protoreflect.Message) {
	fields := c.desc.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		v := c.values[fd.Number()]
		if v == nil {
			continue
		}
		switch {
		case fd.IsMap():
			mp := m.Mutable(fd).Map()
			for _, e := range v.entries {
				if e.value.message != nil {
					nv := mp.NewValue()
					e.value.message.fill(nv.Message())
					mp.Set(e.mapKey, nv)
				} else {
					mp.Set(e.mapKey, e.value.scalar)
				}
			}
		case fd.IsList():
			l := m.Mutable(fd).List()
			for _, e := range v.list {
				if e.message != nil {
					nv := l.NewElement()
					e.message.fill(nv.Message())
					l.Append(nv)
				} else {
					l.Append(e.scalar)
				}
			}
		case fd.Message() != nil:
			if v.single.message != nil {
				v.single.message.fill(m.Mutable(fd).Message())
			}
		default:
			m.Set(fd, v.single.scalar)
		}
	}
}

// Proto is ToProto into a freshly allocated message of type T
func Proto[T proto.Message](c *Config, zero T) (T, error) {
	msg := zero.ProtoReflect().New().Interface().(T)
	if err := c.ToProto(msg); err != nil {
		return zero, err
	}
	return msg, nil
}

func sortEntries(entries []mapEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
}
