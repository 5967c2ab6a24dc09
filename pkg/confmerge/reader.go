package confmerge

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/apicompiler/pkg/diag"
)

// ReadYAML decodes a YAML (or JSON) document into a Config of the given message type.
// Field names may use the proto or the JSON spelling. Every value records the
// file:line:column it was read from.
func ReadYAML(name string, data []byte, desc protoreflect.MessageDescriptor) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	b := NewBuilder(desc)
	if len(doc.Content) == 0 {
		return b.Build()
	}
	r := &yamlReader{file: name}
	if err := r.readMessage(b, doc.Content[0], true); err != nil {
		return nil, err
	}
	return b.Build()
}

type yamlReader struct {
	file string
}

func (r *yamlReader) loc(n *yaml.Node) diag.Location {
	return diag.SimpleLocation{File: r.file, Line: n.Line, Column: n.Column}
}

func (r *yamlReader) errorf(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%s: %s", r.loc(n).DisplayString(), fmt.Sprintf(format, args...))
}

func (r *yamlReader) readMessage(b *Builder, n *yaml.Node, top bool) error {
	if n.Kind != yaml.MappingNode {
		return r.errorf(n, "expected a mapping for %s", b.desc.FullName())
	}
	fields := b.desc.Fields()
	for i := 0; i+1 < len(n.Content); i += 2 {
		kn, vn := n.Content[i], n.Content[i+1]
		fd := fields.ByName(protoreflect.Name(kn.Value))
		if fd == nil {
			fd = fields.ByJSONName(kn.Value)
		}
		if fd == nil {
			// service documents carry a top-level type marker
			if top && kn.Value == "type" {
				continue
			}
			return r.errorf(kn, "unknown field %q in %s", kn.Value, b.desc.FullName())
		}
		if vn.Tag == "!!null" {
			continue
		}
		if err := r.readField(b, fd, kn, vn); err != nil {
			return err
		}
		if b.err != nil {
			return r.errorf(vn, "%v", b.err)
		}
	}
	return nil
}

func (r *yamlReader) readField(b *Builder, fd protoreflect.FieldDescriptor, kn, vn *yaml.Node) error {
	name := string(fd.Name())
	switch {
	case fd.IsMap():
		if vn.Kind != yaml.MappingNode {
			return r.errorf(vn, "expected a mapping for %s", fd.FullName())
		}
		for i := 0; i+1 < len(vn.Content); i += 2 {
			ek, ev := vn.Content[i], vn.Content[i+1]
			if fd.MapValue().Message() != nil {
				var err error
				b.WithMapBuilder(name, ek.Value, func(sub *Builder) {
					err = r.readValueMessage(sub, ev)
				})
				if err != nil {
					return err
				}
				b.record(fd, ek.Value, r.loc(ek))
				continue
			}
			v, err := r.scalar(fd.MapValue(), ev)
			if err != nil {
				return err
			}
			b.SetValue(name, ek.Value, v, r.loc(ev))
		}
	case fd.IsList():
		items := []*yaml.Node{vn}
		if vn.Kind == yaml.SequenceNode {
			items = vn.Content
		}
		for _, item := range items {
			if fd.Message() != nil {
				var err error
				b.WithAddedBuilder(name, func(sub *Builder) {
					err = r.readValueMessage(sub, item)
				})
				if err != nil {
					return err
				}
				b.record(fd, IndexKey(b.values[fd.Number()].lenList()-1), r.loc(item))
				continue
			}
			v, err := r.scalar(fd, item)
			if err != nil {
				return err
			}
			b.AddValue(name, v, r.loc(item))
		}
	case fd.Message() != nil:
		var err error
		b.WithBuilder(name, func(sub *Builder) {
			err = r.readValueMessage(sub, vn)
		})
		if err != nil {
			return err
		}
		b.record(fd, "", r.loc(kn))
	default:
		v, err := r.scalar(fd, vn)
		if err != nil {
			return err
		}
		b.SetValue(name, "", v, r.loc(vn))
	}
	return nil
}

// readValueMessage reads a message, accepting a bare scalar for wrapper types
func (r *yamlReader) readValueMessage(b *Builder, n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode && isWrapper(b.desc) {
		fd := b.desc.Fields().ByName("value")
		v, err := r.scalar(fd, n)
		if err != nil {
			return err
		}
		b.SetValue("value", "", v, r.loc(n))
		return nil
	}
	return r.readMessage(b, n, false)
}

func isWrapper(md protoreflect.MessageDescriptor) bool {
	return md.ParentFile() != nil &&
		md.ParentFile().Package() == "google.protobuf" &&
		strings.HasSuffix(string(md.Name()), "Value") &&
		md.Fields().Len() == 1 &&
		md.Fields().Get(0).Name() == "value"
}

func (r *yamlReader) scalar(fd protoreflect.FieldDescriptor, n *yaml.Node) (protoreflect.Value, error) {
	if n.Kind != yaml.ScalarNode {
		return protoreflect.Value{}, r.errorf(n, "expected a scalar for %s", fd.FullName())
	}
	s := n.Value
	var (
		v   protoreflect.Value
		err error
	)
	switch fd.Kind() {
	case protoreflect.StringKind:
		return protoreflect.ValueOfString(s), nil
	case protoreflect.BytesKind:
		var raw []byte
		raw, err = base64.StdEncoding.DecodeString(s)
		v = protoreflect.ValueOfBytes(raw)
	case protoreflect.BoolKind:
		var x bool
		x, err = strconv.ParseBool(s)
		v = protoreflect.ValueOfBool(x)
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByName(protoreflect.Name(s)); ev != nil {
			return protoreflect.ValueOfEnum(ev.Number()), nil
		}
		var x int64
		x, err = strconv.ParseInt(s, 10, 32)
		v = protoreflect.ValueOfEnum(protoreflect.EnumNumber(x))
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		var x int64
		x, err = strconv.ParseInt(s, 0, 32)
		v = protoreflect.ValueOfInt32(int32(x))
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		var x int64
		x, err = strconv.ParseInt(s, 0, 64)
		v = protoreflect.ValueOfInt64(x)
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		var x uint64
		x, err = strconv.ParseUint(s, 0, 32)
		v = protoreflect.ValueOfUint32(uint32(x))
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		var x uint64
		x, err = strconv.ParseUint(s, 0, 64)
		v = protoreflect.ValueOfUint64(x)
	case protoreflect.FloatKind:
		var x float64
		x, err = strconv.ParseFloat(s, 32)
		v = protoreflect.ValueOfFloat32(float32(x))
	case protoreflect.DoubleKind:
		var x float64
		x, err = strconv.ParseFloat(s, 64)
		v = protoreflect.ValueOfFloat64(x)
	default:
		return protoreflect.Value{}, r.errorf(n, "unsupported kind %s for %s", fd.Kind(), fd.FullName())
	}
	if err != nil {
		return protoreflect.Value{}, r.errorf(n, "invalid value %q for %s: %v", s, fd.FullName(), err)
	}
	return v, nil
}
