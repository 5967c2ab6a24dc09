package descgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/api/annotations"
	"google.golang.org/genproto/googleapis/api/serviceconfig"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/apipb"
	"google.golang.org/protobuf/types/known/sourcecontextpb"
	"google.golang.org/protobuf/types/known/typepb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/platinummonkey/apicompiler/pkg/processors"
)

func field(number int32, name string, kind typepb.Field_Kind, typeName string) *typepb.Field {
	f := &typepb.Field{
		Kind:        kind,
		Cardinality: typepb.Field_CARDINALITY_OPTIONAL,
		Number:      number,
		Name:        name,
	}
	if typeName != "" {
		f.TypeUrl = processors.TypeURL(typeName)
	}
	return f
}

func petService(t *testing.T) *serviceconfig.Service {
	t.Helper()
	mapEntry, err := anypb.New(wrapperspb.Bool(true))
	require.NoError(t, err)
	src := &sourcecontextpb.SourceContext{FileName: "pets/v1/pets.proto"}

	tags := field(3, "tags", typepb.Field_TYPE_MESSAGE, "pets.v1.Pet.TagsEntry")
	tags.Cardinality = typepb.Field_CARDINALITY_REPEATED
	return &serviceconfig.Service{
		Name: "pets.example.com",
		Apis: []*apipb.Api{{
			Name:          "pets.v1.PetStore",
			SourceContext: src,
			Syntax:        typepb.Syntax_SYNTAX_PROTO3,
			Methods: []*apipb.Method{{
				Name:            "GetPet",
				RequestTypeUrl:  processors.TypeURL("pets.v1.GetPetRequest"),
				ResponseTypeUrl: processors.TypeURL("pets.v1.Pet"),
			}},
		}},
		Types: []*typepb.Type{
			{
				Name:          "pets.v1.GetPetRequest",
				SourceContext: src,
				Syntax:        typepb.Syntax_SYNTAX_PROTO3,
				Fields:        []*typepb.Field{field(1, "name", typepb.Field_TYPE_STRING, "")},
			},
			{
				Name:          "pets.v1.Pet",
				SourceContext: src,
				Syntax:        typepb.Syntax_SYNTAX_PROTO3,
				Fields: []*typepb.Field{
					field(1, "name", typepb.Field_TYPE_STRING, ""),
					field(2, "born", typepb.Field_TYPE_MESSAGE, "google.protobuf.Timestamp"),
					tags,
					field(4, "kind", typepb.Field_TYPE_ENUM, "pets.v1.Kind"),
				},
			},
			{
				Name:          "pets.v1.Pet.TagsEntry",
				SourceContext: src,
				Syntax:        typepb.Syntax_SYNTAX_PROTO3,
				Fields: []*typepb.Field{
					field(1, "key", typepb.Field_TYPE_STRING, ""),
					field(2, "value", typepb.Field_TYPE_STRING, ""),
				},
				Options: []*typepb.Option{{Name: processors.MapEntryOption, Value: mapEntry}},
			},
		},
		Enums: []*typepb.Enum{{
			Name:          "pets.v1.Kind",
			SourceContext: src,
			Syntax:        typepb.Syntax_SYNTAX_PROTO3,
			Enumvalue: []*typepb.EnumValue{
				{Name: "KIND_UNSPECIFIED", Number: 0},
				{Name: "DOG", Number: 1},
			},
		}},
		Http: &annotations.Http{Rules: []*annotations.HttpRule{{
			Selector: "pets.v1.PetStore.GetPet",
			Pattern:  &annotations.HttpRule_Get{Get: "/v1/{name=pets/*}"},
		}}},
	}
}

func TestFromService(t *testing.T) {
	set, err := FromService(petService(t))
	require.NoError(t, err)

	files, err := protodesc.NewFiles(set)
	require.NoError(t, err)

	fd, err := files.FindFileByPath("pets/v1/pets.proto")
	require.NoError(t, err)
	assert.Equal(t, protoreflect.FullName("pets.v1"), fd.Package())
	assert.Equal(t, protoreflect.Proto3, fd.Syntax())

	// dependencies precede the files importing them
	last := set.GetFile()[len(set.GetFile())-1]
	assert.Equal(t, "pets/v1/pets.proto", last.GetName())

	d, err := files.FindDescriptorByName("pets.v1.Pet")
	require.NoError(t, err)
	pet := d.(protoreflect.MessageDescriptor)
	assert.True(t, pet.Fields().ByName("tags").IsMap())
	assert.Equal(t, protoreflect.FullName("google.protobuf.Timestamp"), pet.Fields().ByName("born").Message().FullName())
	assert.Equal(t, protoreflect.FullName("pets.v1.Kind"), pet.Fields().ByName("kind").Enum().FullName())

	d, err = files.FindDescriptorByName("pets.v1.PetStore")
	require.NoError(t, err)
	method := d.(protoreflect.ServiceDescriptor).Methods().ByName("GetPet")
	require.NotNil(t, method)
	assert.Equal(t, protoreflect.FullName("pets.v1.GetPetRequest"), method.Input().FullName())

	var opts *annotations.HttpRule
	for _, f := range set.GetFile() {
		for _, s := range f.GetService() {
			opts = proto.GetExtension(s.GetMethod()[0].GetOptions(), annotations.E_Http).(*annotations.HttpRule)
		}
	}
	require.NotNil(t, opts)
	assert.Equal(t, "/v1/{name=pets/*}", opts.GetGet())
	assert.Empty(t, opts.GetSelector())
}

func TestFromService_DerivedFileNames(t *testing.T) {
	svc := &serviceconfig.Service{
		Types: []*typepb.Type{
			{Name: "a.v1.Thing", Syntax: typepb.Syntax_SYNTAX_PROTO3,
				Fields: []*typepb.Field{field(1, "other", typepb.Field_TYPE_MESSAGE, "b.Other")}},
			{Name: "b.Other", Syntax: typepb.Syntax_SYNTAX_PROTO3},
		},
	}
	set, err := FromService(svc)
	require.NoError(t, err)

	var names []string
	for _, f := range set.GetFile() {
		names = append(names, f.GetName())
	}
	assert.Equal(t, []string{"b.proto", "a/v1.proto"}, names)
	assert.Equal(t, []string{"b.proto"}, set.GetFile()[1].GetDependency())
}

func TestFromService_Errors(t *testing.T) {
	tests := []struct {
		name string
		svc  *serviceconfig.Service
		want string
	}{
		{
			name: "undefined type",
			svc: &serviceconfig.Service{Types: []*typepb.Type{{
				Name:   "a.Thing",
				Fields: []*typepb.Field{field(1, "x", typepb.Field_TYPE_MESSAGE, "a.Missing")},
			}}},
			want: "type a.Missing is not defined",
		},
		{
			name: "duplicate type",
			svc:  &serviceconfig.Service{Types: []*typepb.Type{{Name: "a.Thing"}, {Name: "a.Thing"}}},
			want: "listed twice",
		},
		{
			name: "method over missing type",
			svc: &serviceconfig.Service{Apis: []*apipb.Api{{
				Name:    "a.Svc",
				Methods: []*apipb.Method{{Name: "Do", RequestTypeUrl: processors.TypeURL("a.In"), ResponseTypeUrl: processors.TypeURL("a.In")}},
			}}},
			want: "method a.Svc.Do",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromService(tt.svc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
