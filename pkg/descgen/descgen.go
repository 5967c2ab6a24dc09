package descgen

import (
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genproto/googleapis/api/annotations"
	"google.golang.org/genproto/googleapis/api/serviceconfig"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/apipb"
	"google.golang.org/protobuf/types/known/typepb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	// well-known types referenced by imported schemas must be in the global registry
	_ "google.golang.org/protobuf/types/known/durationpb"
	_ "google.golang.org/protobuf/types/known/emptypb"
	_ "google.golang.org/protobuf/types/known/fieldmaskpb"
	_ "google.golang.org/protobuf/types/known/structpb"
	_ "google.golang.org/protobuf/types/known/timestamppb"

	"github.com/platinummonkey/apicompiler/pkg/processors"
)

const annotationsFile = "google/api/annotations.proto"

// file collects the declarations of one package
type file struct {
	proto *descriptorpb.FileDescriptorProto
	deps  map[string]bool
}

type generator struct {
	svc      *serviceconfig.Service
	types    map[string]*typepb.Type
	enums    map[string]*typepb.Enum
	messages map[string]*descriptorpb.DescriptorProto
	files    map[string]*file
	external map[string]protoreflect.FileDescriptor
}

// FromService regenerates a descriptor set from a normalized service configuration.
// Types, enums and apis are grouped into one file per package. Files of referenced
// well-known and annotation types are included so the set is self-contained.
func FromService(svc *serviceconfig.Service) (*descriptorpb.FileDescriptorSet, error) {
	g := &generator{
		svc:      svc,
		types:    make(map[string]*typepb.Type),
		enums:    make(map[string]*typepb.Enum),
		messages: make(map[string]*descriptorpb.DescriptorProto),
		files:    make(map[string]*file),
		external: make(map[string]protoreflect.FileDescriptor),
	}
	for _, t := range svc.GetTypes() {
		if _, dup := g.types[t.GetName()]; dup {
			return nil, fmt.Errorf("type %s is listed twice", t.GetName())
		}
		g.types[t.GetName()] = t
	}
	for _, e := range svc.GetEnums() {
		g.enums[e.GetName()] = e
	}

	if err := g.addTypes(); err != nil {
		return nil, err
	}
	for _, e := range svc.GetEnums() {
		g.addEnum(e)
	}
	for _, api := range svc.GetApis() {
		if err := g.addApi(api); err != nil {
			return nil, err
		}
	}

	set, err := g.set()
	if err != nil {
		return nil, err
	}
	if _, err := protodesc.NewFiles(set); err != nil {
		return nil, fmt.Errorf("regenerated descriptors are invalid: %w", err)
	}
	return set, nil
}

// parentOf returns the enclosing type of a nested declaration, or ""
func (g *generator) parentOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	if _, ok := g.types[name[:i]]; ok {
		return name[:i]
	}
	return ""
}

// packageOf strips enclosing types and the simple name
func (g *generator) packageOf(name string) string {
	for p := g.parentOf(name); p != ""; p = g.parentOf(name) {
		name = p
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

func simpleName(name string) string {
	return name[strings.LastIndexByte(name, '.')+1:]
}

func (g *generator) fileFor(name, sourceFile string, syntax typepb.Syntax) *file {
	pkg := g.packageOf(name)
	if f, ok := g.files[pkg]; ok {
		return f
	}
	fileName := sourceFile
	if !strings.HasSuffix(fileName, ".proto") || g.fileNamed(fileName) {
		fileName = strings.ReplaceAll(pkg, ".", "/") + ".proto"
		if pkg == "" {
			fileName = "default.proto"
		}
	}
	fp := &descriptorpb.FileDescriptorProto{Name: proto.String(fileName)}
	if pkg != "" {
		fp.Package = proto.String(pkg)
	}
	if syntax == typepb.Syntax_SYNTAX_PROTO3 {
		fp.Syntax = proto.String("proto3")
	}
	f := &file{proto: fp, deps: make(map[string]bool)}
	g.files[pkg] = f
	return f
}

func (g *generator) fileNamed(name string) bool {
	for _, f := range g.files {
		if f.proto.GetName() == name {
			return true
		}
	}
	return false
}

// addTypes places messages so that parents are created before nested types
func (g *generator) addTypes() error {
	names := make([]string, 0, len(g.types))
	for name := range g.types {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if di, dj := strings.Count(names[i], "."), strings.Count(names[j], "."); di != dj {
			return di < dj
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		t := g.types[name]
		msg, err := g.message(t)
		if err != nil {
			return err
		}
		g.messages[name] = msg
		f := g.fileFor(name, t.GetSourceContext().GetFileName(), t.GetSyntax())
		if p := g.parentOf(name); p != "" {
			g.messages[p].NestedType = append(g.messages[p].NestedType, msg)
		} else {
			f.proto.MessageType = append(f.proto.MessageType, msg)
		}
		for _, fd := range msg.GetField() {
			if ref := strings.TrimPrefix(fd.GetTypeName(), "."); ref != "" {
				if err := g.depend(f, ref); err != nil {
					return fmt.Errorf("field %s.%s: %w", name, fd.GetName(), err)
				}
			}
		}
	}
	return nil
}

func (g *generator) message(t *typepb.Type) (*descriptorpb.DescriptorProto, error) {
	msg := &descriptorpb.DescriptorProto{Name: proto.String(simpleName(t.GetName()))}
	for _, o := range t.GetOneofs() {
		msg.OneofDecl = append(msg.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String(o)})
	}
	for _, tf := range t.GetFields() {
		if tf.GetKind() == typepb.Field_TYPE_UNKNOWN {
			return nil, fmt.Errorf("field %s.%s has no kind", t.GetName(), tf.GetName())
		}
		fd := &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(tf.GetName()),
			Number: proto.Int32(tf.GetNumber()),
			Type:   descriptorpb.FieldDescriptorProto_Type(tf.GetKind()).Enum(),
			Label:  descriptorpb.FieldDescriptorProto_Label(tf.GetCardinality()).Enum(),
		}
		if tf.GetCardinality() == typepb.Field_CARDINALITY_UNKNOWN {
			fd.Label = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
		}
		if tf.GetJsonName() != "" {
			fd.JsonName = proto.String(tf.GetJsonName())
		}
		if tf.GetDefaultValue() != "" && t.GetSyntax() != typepb.Syntax_SYNTAX_PROTO3 {
			fd.DefaultValue = proto.String(tf.GetDefaultValue())
		}
		if tf.GetPacked() {
			fd.Options = &descriptorpb.FieldOptions{Packed: proto.Bool(true)}
		}
		if tf.GetOneofIndex() > 0 {
			fd.OneofIndex = proto.Int32(tf.GetOneofIndex() - 1)
		}
		if url := tf.GetTypeUrl(); url != "" {
			fd.TypeName = proto.String("." + strings.TrimPrefix(url, processors.TypeURLPrefix))
		}
		msg.Field = append(msg.Field, fd)
	}
	if isMapEntry(t) {
		msg.Options = &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)}
	}
	return msg, nil
}

func isMapEntry(t *typepb.Type) bool {
	for _, o := range t.GetOptions() {
		if o.GetName() != processors.MapEntryOption {
			continue
		}
		var v wrapperspb.BoolValue
		if err := o.GetValue().UnmarshalTo(&v); err == nil && v.GetValue() {
			return true
		}
	}
	return false
}

func (g *generator) addEnum(e *typepb.Enum) {
	ed := &descriptorpb.EnumDescriptorProto{Name: proto.String(simpleName(e.GetName()))}
	for _, v := range e.GetEnumvalue() {
		ed.Value = append(ed.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v.GetName()),
			Number: proto.Int32(v.GetNumber()),
		})
	}
	f := g.fileFor(e.GetName(), e.GetSourceContext().GetFileName(), e.GetSyntax())
	if p := g.parentOf(e.GetName()); p != "" {
		g.messages[p].EnumType = append(g.messages[p].EnumType, ed)
		return
	}
	f.proto.EnumType = append(f.proto.EnumType, ed)
}

func (g *generator) addApi(api *apipb.Api) error {
	name := api.GetName()
	f := g.fileFor(name, api.GetSourceContext().GetFileName(), api.GetSyntax())
	sd := &descriptorpb.ServiceDescriptorProto{Name: proto.String(simpleName(name))}
	for _, m := range api.GetMethods() {
		in := strings.TrimPrefix(m.GetRequestTypeUrl(), processors.TypeURLPrefix)
		out := strings.TrimPrefix(m.GetResponseTypeUrl(), processors.TypeURLPrefix)
		for _, ref := range []string{in, out} {
			if err := g.depend(f, ref); err != nil {
				return fmt.Errorf("method %s.%s: %w", name, m.GetName(), err)
			}
		}
		md := &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.GetName()),
			InputType:  proto.String("." + in),
			OutputType: proto.String("." + out),
		}
		if m.GetRequestStreaming() {
			md.ClientStreaming = proto.Bool(true)
		}
		if m.GetResponseStreaming() {
			md.ServerStreaming = proto.Bool(true)
		}
		if rule := httpRule(g.svc, name+"."+m.GetName()); rule != nil {
			r := proto.Clone(rule).(*annotations.HttpRule)
			r.Selector = ""
			md.Options = &descriptorpb.MethodOptions{}
			proto.SetExtension(md.Options, annotations.E_Http, r)
			g.addExternal(annotations.File_google_api_annotations_proto)
			f.deps[annotationsFile] = true
		}
		sd.Method = append(sd.Method, md)
	}
	f.proto.Service = append(f.proto.Service, sd)
	return nil
}

// depend records that f uses the declaration ref
func (g *generator) depend(f *file, ref string) error {
	if _, ok := g.types[ref]; ok {
		g.dependLocal(f, ref)
		return nil
	}
	if _, ok := g.enums[ref]; ok {
		g.dependLocal(f, ref)
		return nil
	}
	d, err := protoregistry.GlobalFiles.FindDescriptorByName(protoreflect.FullName(ref))
	if err != nil {
		return fmt.Errorf("type %s is not defined", ref)
	}
	g.addExternal(d.ParentFile())
	f.deps[d.ParentFile().Path()] = true
	return nil
}

func (g *generator) dependLocal(f *file, ref string) {
	pkg := g.packageOf(ref)
	if pkg == f.proto.GetPackage() {
		return
	}
	if other, ok := g.files[pkg]; ok {
		f.deps[other.proto.GetName()] = true
		return
	}
	// the target file is created later; record it by package and fix up in set
	f.deps["pkg:"+pkg] = true
}

func (g *generator) addExternal(fd protoreflect.FileDescriptor) {
	if _, ok := g.external[fd.Path()]; ok {
		return
	}
	g.external[fd.Path()] = fd
	imports := fd.Imports()
	for i := 0; i < imports.Len(); i++ {
		g.addExternal(imports.Get(i).FileDescriptor)
	}
}

// set orders files so every file follows its dependencies
func (g *generator) set() (*descriptorpb.FileDescriptorSet, error) {
	byName := make(map[string]*descriptorpb.FileDescriptorProto)
	for _, fd := range g.external {
		byName[fd.Path()] = protodesc.ToFileDescriptorProto(fd)
	}
	for pkg, f := range g.files {
		var deps []string
		for d := range f.deps {
			if other, ok := strings.CutPrefix(d, "pkg:"); ok {
				of, found := g.files[other]
				if !found {
					return nil, fmt.Errorf("package %s is referenced but declares nothing", other)
				}
				d = of.proto.GetName()
			}
			if d != f.proto.GetName() {
				deps = append(deps, d)
			}
		}
		sort.Strings(deps)
		f.proto.Dependency = dedupe(deps)
		if prev, ok := byName[f.proto.GetName()]; ok && prev != f.proto {
			return nil, fmt.Errorf("packages %s and %s map to the same file %s", prev.GetPackage(), pkg, f.proto.GetName())
		}
		byName[f.proto.GetName()] = f.proto
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	set := &descriptorpb.FileDescriptorSet{}
	state := make(map[string]int)
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case 1:
			return fmt.Errorf("files import each other cyclically through %s", name)
		case 2:
			return nil
		}
		fp, ok := byName[name]
		if !ok {
			return fmt.Errorf("file %s is imported but unknown", name)
		}
		state[name] = 1
		for _, d := range fp.GetDependency() {
			if err := visit(d); err != nil {
				return err
			}
		}
		state[name] = 2
		set.File = append(set.File, fp)
		return nil
	}
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// httpRule returns the http rule configured for a method, if any
func httpRule(svc *serviceconfig.Service, method string) *annotations.HttpRule {
	var found *annotations.HttpRule
	for _, r := range svc.GetHttp().GetRules() {
		if r.GetSelector() == method {
			found = r
		}
	}
	return found
}
