package model

import (
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/apicompiler/pkg/diag"
)

// Field numbers used in SourceCodeInfo paths
const (
	filePackageTag   = 2
	fileMessageTag   = 4
	fileEnumTag      = 5
	fileServiceTag   = 6
	messageFieldTag  = 2
	messageNestedTag = 3
	messageEnumTag   = 4
	enumValueTag     = 2
	serviceMethodTag = 2
)

type sourceInfo struct {
	file      string
	locations map[string]*descriptorpb.SourceCodeInfo_Location
}

func newSourceInfo(fd *descriptorpb.FileDescriptorProto) *sourceInfo {
	si := &sourceInfo{file: fd.GetName(), locations: make(map[string]*descriptorpb.SourceCodeInfo_Location)}
	for _, loc := range fd.GetSourceCodeInfo().GetLocation() {
		key := pathKey(loc.GetPath())
		// the first location for a path is the declaration itself
		if _, seen := si.locations[key]; !seen {
			si.locations[key] = loc
		}
	}
	return si
}

func pathKey(path []int32) string {
	var sb strings.Builder
	for i, p := range path {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(int(p)))
	}
	return sb.String()
}

func extend(path []int32, elems ...int32) []int32 {
	out := make([]int32, 0, len(path)+len(elems))
	out = append(out, path...)
	return append(out, elems...)
}

func (si *sourceInfo) location(path []int32) diag.Location {
	loc, ok := si.locations[pathKey(path)]
	if !ok || len(loc.GetSpan()) < 2 {
		return diag.SimpleLocation{File: si.file}
	}
	return diag.SimpleLocation{File: si.file, Line: int(loc.GetSpan()[0]) + 1, Column: int(loc.GetSpan()[1]) + 1}
}

func (si *sourceInfo) comments(path []int32) string {
	loc, ok := si.locations[pathKey(path)]
	if !ok {
		return ""
	}
	parts := make([]string, 0, 2)
	if c := loc.GetLeadingComments(); c != "" {
		parts = append(parts, c)
	}
	if c := loc.GetTrailingComments(); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, "\n")
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

func (m *Model) build() error {
	seen := make(map[string]bool)
	for _, fd := range m.descriptors.GetFile() {
		if fd.GetName() == "" {
			return fmt.Errorf("descriptor set contains a file without a name")
		}
		if seen[fd.GetName()] {
			return fmt.Errorf("descriptor set contains %s twice", fd.GetName())
		}
		seen[fd.GetName()] = true
		m.files = append(m.files, m.buildFile(fd))
	}
	return nil
}

// init fills the shared element state and parses directives out of the comments
func (m *Model) init(b *base, parent Element, name, fullName string, si *sourceInfo, path []int32) {
	b.model = m
	b.parent = parent
	b.name = name
	b.fullName = fullName
	b.location = si.location(path)
	text, dirs, errs := ParseComment(si.comments(path))
	b.comment = text
	b.directives = dirs
	for _, err := range errs {
		m.AddDiag(diag.Warningf(b.location, "%s: %v", fullName, err))
	}
}

func (m *Model) buildFile(fd *descriptorpb.FileDescriptorProto) *File {
	si := newSourceInfo(fd)
	f := &File{Proto: fd}
	m.init(&f.base, nil, fd.GetName(), fd.GetPackage(), si, []int32{filePackageTag})
	f.location = diag.SimpleLocation{File: fd.GetName()}
	pkg := fd.GetPackage()

	for i, sd := range fd.GetService() {
		path := []int32{fileServiceTag, int32(i)}
		iface := &Interface{Proto: sd}
		m.init(&iface.base, f, sd.GetName(), qualify(pkg, sd.GetName()), si, path)
		for j, md := range sd.GetMethod() {
			meth := &Method{Proto: md}
			m.init(&meth.base, iface, md.GetName(), qualify(iface.fullName, md.GetName()), si, extend(path, serviceMethodTag, int32(j)))
			iface.Methods = append(iface.Methods, meth)
		}
		f.Interfaces = append(f.Interfaces, iface)
	}
	for i, dp := range fd.GetMessageType() {
		f.Messages = append(f.Messages, m.buildMessage(f, pkg, dp, si, []int32{fileMessageTag, int32(i)}))
	}
	for i, ed := range fd.GetEnumType() {
		f.Enums = append(f.Enums, m.buildEnum(f, pkg, ed, si, []int32{fileEnumTag, int32(i)}))
	}
	return f
}

func (m *Model) buildMessage(parent Element, scope string, dp *descriptorpb.DescriptorProto, si *sourceInfo, path []int32) *Message {
	msg := &Message{Proto: dp}
	m.init(&msg.base, parent, dp.GetName(), qualify(scope, dp.GetName()), si, path)
	for i, fp := range dp.GetField() {
		fld := &Field{Proto: fp}
		m.init(&fld.base, msg, fp.GetName(), qualify(msg.fullName, fp.GetName()), si, extend(path, messageFieldTag, int32(i)))
		msg.Fields = append(msg.Fields, fld)
	}
	for i, nested := range dp.GetNestedType() {
		msg.Messages = append(msg.Messages, m.buildMessage(msg, msg.fullName, nested, si, extend(path, messageNestedTag, int32(i))))
	}
	for i, ed := range dp.GetEnumType() {
		msg.Enums = append(msg.Enums, m.buildEnum(msg, msg.fullName, ed, si, extend(path, messageEnumTag, int32(i))))
	}
	return msg
}

func (m *Model) buildEnum(parent Element, scope string, ed *descriptorpb.EnumDescriptorProto, si *sourceInfo, path []int32) *Enum {
	e := &Enum{Proto: ed}
	m.init(&e.base, parent, ed.GetName(), qualify(scope, ed.GetName()), si, path)
	for i, vd := range ed.GetValue() {
		v := &EnumValue{Proto: vd}
		m.init(&v.base, e, vd.GetName(), qualify(e.fullName, vd.GetName()), si, extend(path, enumValueTag, int32(i)))
		e.Values = append(e.Values, v)
	}
	return e
}
