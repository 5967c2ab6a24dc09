package confmerge

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/apicompiler/pkg/diag"
)

// Policy selects how scalars are reconciled during a merge
type Policy int

const (
	// Legacy resets propagated scalars that the incoming tree leaves unset
	Legacy Policy = iota
	// Proto3 never resets, and treats zero-valued scalars without presence as unset
	Proto3
)

func (p Policy) String() string {
	if p == Proto3 {
		return "proto3"
	}
	return "legacy"
}

// MergeFrom merges other into the builder with legacy semantics
func (b *Builder) MergeFrom(other *Config) *Builder {
	return b.Merge(other, Legacy)
}

// MergeFromWithProto3Semantics merges other into the builder with proto3 semantics
func (b *Builder) MergeFromWithProto3Semantics(other *Config) *Builder {
	return b.Merge(other, Proto3)
}

// Merge merges other using the given policy. other's locations come from its own side
// table; incoming repeated indices are shifted by the pre-merge length.
func (b *Builder) Merge(other *Config, policy Policy) *Builder {
	if b.err != nil || other == nil {
		return b
	}
	locs := other.locations
	b.merge(other, locs, policy)
	return b
}

func (b *Builder) merge(src *Config, srcLocs *Locations, policy Policy) {
	if src.desc.FullName() != b.desc.FullName() {
		b.fail(fmt.Errorf("cannot merge %s into %s", src.desc.FullName(), b.desc.FullName()))
		return
	}
	srcOwn := srcLocs.node(src.id)
	fields := b.desc.Fields()

	if policy == Legacy {
		for i := 0; i < fields.Len(); i++ {
			fd := fields.Get(i)
			if v := b.values[fd.Number()]; v != nil && v.propagated && src.values[fd.Number()] == nil {
				b.clearField(fd)
			}
		}
	}

	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		sv := src.values[fd.Number()]
		if sv == nil {
			continue
		}
		switch {
		case fd.IsMap():
			b.mergeMap(fd, sv, srcOwn, srcLocs)
		case fd.IsList():
			b.mergeList(fd, sv, srcOwn, srcLocs)
		case fd.Message() != nil:
			if sv.single.message == nil {
				continue
			}
			var current *Config
			if v := b.values[fd.Number()]; v != nil {
				current = v.single.message
			}
			child, ok := b.runSub(fd.Message(), current, func(sub *Builder) {
				sub.merge(sv.single.message, srcLocs, policy)
			})
			if !ok {
				return
			}
			b.put(fd, &fieldValue{single: element{message: child}})
			b.carry(fd, "", "", srcOwn)
		default:
			if policy == Proto3 && !fd.HasPresence() && isZero(fd, sv.single.scalar) {
				continue
			}
			b.put(fd, &fieldValue{single: sv.single, propagated: sv.propagated})
			b.carry(fd, "", "", srcOwn)
		}
	}
}

func (b *Builder) mergeList(fd protoreflect.FieldDescriptor, sv *fieldValue, srcOwn map[locKey]diag.Location, srcLocs *Locations) {
	v := b.mutable(fd)
	offset := len(v.list)
	for i, e := range sv.list {
		if e.message != nil {
			e = element{message: b.adopt(e.message, srcLocs)}
		}
		v.list = append(v.list, e)
		b.carry(fd, IndexKey(i), IndexKey(offset+i), srcOwn)
	}
}

func (b *Builder) mergeMap(fd protoreflect.FieldDescriptor, sv *fieldValue, srcOwn map[locKey]diag.Location, srcLocs *Locations) {
	for _, e := range sv.entries {
		if e.value.message != nil {
			e.value = element{message: b.adopt(e.value.message, srcLocs)}
		}
		b.putEntry(fd, e)
		b.carry(fd, e.key, e.key, srcOwn)
	}
}

// carry records the incoming location of srcKey under dstKey, or forgets the stale
// location when the incoming side has none
func (b *Builder) carry(fd protoreflect.FieldDescriptor, srcKey, dstKey string, srcOwn map[locKey]diag.Location) {
	b.record(fd, dstKey, srcOwn[locKey{field: fd.Number(), key: srcKey}])
}

func isZero(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return !v.Bool()
	case protoreflect.StringKind:
		return v.String() == ""
	case protoreflect.BytesKind:
		return len(v.Bytes()) == 0
	case protoreflect.EnumKind:
		return v.Enum() == 0
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return v.Float() == 0
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return v.Int() == 0
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return v.Uint() == 0
	}
	return false
}
