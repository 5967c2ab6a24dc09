package openapi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/typepb"

	"github.com/platinummonkey/apicompiler/pkg/diag"
)

func loadDocument(t *testing.T, name string) *Document {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	doc, err := ParseDocument(name, data)
	require.NoError(t, err)
	return doc
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

func TestImporter_OpenAPI3(t *testing.T) {
	res, err := NewImporter(Options{}, quietLogger()).Import(loadDocument(t, "petstore.yaml"))
	require.NoError(t, err)
	assert.Empty(t, res.Diags)

	svc := res.Service
	assert.Equal(t, "swagger_petstore.v1", svc.GetName())
	assert.Equal(t, "Swagger Petstore", svc.GetTitle())
	assert.Equal(t, uint32(3), svc.GetConfigVersion().GetValue())

	require.Len(t, svc.GetApis(), 1)
	api := svc.GetApis()[0]
	assert.Equal(t, "swagger_petstore.v1.SwaggerPetstore", api.GetName())
	assert.Equal(t, "v1", api.GetVersion())

	require.Len(t, api.GetMethods(), 3)
	list, create, show := api.GetMethods()[0], api.GetMethods()[1], api.GetMethods()[2]
	assert.Equal(t, "ListPets", list.GetName())
	assert.Equal(t, "type.googleapis.com/swagger_petstore.v1.ListPetsRequest", list.GetRequestTypeUrl())
	assert.Equal(t, "type.googleapis.com/swagger_petstore.v1.ListPetsResponse", list.GetResponseTypeUrl())
	assert.Equal(t, "CreatePets", create.GetName())
	assert.Equal(t, "type.googleapis.com/google.protobuf.Empty", create.GetResponseTypeUrl())
	assert.Equal(t, "ShowPetById", show.GetName())
	assert.Equal(t, "type.googleapis.com/swagger_petstore.v1.Pet", show.GetResponseTypeUrl())

	assert.Equal(t, []string{
		"swagger_petstore.v1.CreatePetsRequest",
		"swagger_petstore.v1.ListPetsRequest",
		"swagger_petstore.v1.ListPetsResponse",
		"swagger_petstore.v1.Pet",
		"swagger_petstore.v1.Pet.LabelsEntry",
		"swagger_petstore.v1.ShowPetByIdRequest",
	}, typeNames(svc.GetTypes()))

	pet := svc.GetTypes()[3]
	require.Len(t, pet.GetFields(), 5)
	assert.Equal(t, typepb.Field_TYPE_INT64, pet.GetFields()[0].GetKind())
	assert.Equal(t, "type.googleapis.com/google.protobuf.Timestamp", pet.GetFields()[3].GetTypeUrl())

	showReq := svc.GetTypes()[5]
	require.Len(t, showReq.GetFields(), 1)
	assert.Equal(t, "pet_id", showReq.GetFields()[0].GetName())
	assert.Equal(t, "petId", showReq.GetFields()[0].GetJsonName())

	// header parameters are not bound
	assert.Len(t, svc.GetTypes()[1].GetFields(), 1)

	rules := svc.GetHttp().GetRules()
	require.Len(t, rules, 3)
	assert.Equal(t, "swagger_petstore.v1.SwaggerPetstore.ListPets", rules[0].GetSelector())
	assert.Equal(t, "/pets", rules[0].GetGet())
	assert.Equal(t, "/pets", rules[1].GetPost())
	assert.Equal(t, "body", rules[1].GetBody())
	assert.Equal(t, "/pets/{pet_id}", rules[2].GetGet())

	docs := svc.GetDocumentation().GetRules()
	require.Len(t, docs, 2)
	assert.Equal(t, "A sample pet store.", docs[0].GetDescription())
	assert.Equal(t, "List all pets", docs[1].GetDescription())

	files, err := protodesc.NewFiles(res.Descriptors)
	require.NoError(t, err)
	d, err := files.FindDescriptorByName("swagger_petstore.v1.Pet")
	require.NoError(t, err)
	assert.True(t, d.(protoreflect.MessageDescriptor).Fields().ByName("labels").IsMap())
	_, err = files.FindFileByPath("swagger_petstore/v1.proto")
	assert.NoError(t, err)
}

func TestImporter_Swagger2(t *testing.T) {
	res, err := NewImporter(Options{}, quietLogger()).Import(loadDocument(t, "swagger.yaml"))
	require.NoError(t, err)

	require.Len(t, res.Diags, 1)
	assert.Equal(t, diag.Warning, res.Diags[0].Kind())
	assert.Contains(t, res.Diags[0].Message(), `path variable "authorId"`)

	svc := res.Service
	assert.Equal(t, "library.example.com", svc.GetName())
	api := svc.GetApis()[0]
	assert.Equal(t, "library.v2.Library", api.GetName())

	var names []string
	for _, m := range api.GetMethods() {
		names = append(names, m.GetName())
	}
	assert.Equal(t, []string{"PostShelvesShelfBooks", "DeleteShelvesShelfBooks", "GetAuthorsAuthorId"}, names)
	assert.Equal(t, "type.googleapis.com/google.protobuf.StringValue", api.GetMethods()[0].GetResponseTypeUrl())
	assert.Equal(t, "type.googleapis.com/google.protobuf.Empty", api.GetMethods()[1].GetResponseTypeUrl())
	assert.Equal(t, "type.googleapis.com/library.v2.GetAuthorsAuthorIdResponse", api.GetMethods()[2].GetResponseTypeUrl())

	rules := svc.GetHttp().GetRules()
	require.Len(t, rules, 3)
	assert.Equal(t, "/api/shelves/{shelf}/books", rules[0].GetPost())
	assert.Equal(t, "book", rules[0].GetBody())
	assert.Equal(t, "/api/shelves/{shelf}/books", rules[1].GetDelete())
	assert.Empty(t, rules[1].GetBody())
	assert.Equal(t, "/api/authors/{author_id}", rules[2].GetGet())

	assert.Equal(t, []string{
		"library.v2.Book",
		"library.v2.DeleteShelvesShelfBooksRequest",
		"library.v2.GetAuthorsAuthorIdRequest",
		"library.v2.GetAuthorsAuthorIdResponse",
		"library.v2.PostShelvesShelfBooksRequest",
	}, typeNames(svc.GetTypes()))

	post := svc.GetTypes()[4]
	require.Len(t, post.GetFields(), 2)
	assert.Equal(t, "shelf", post.GetFields()[0].GetName())
	assert.Equal(t, "type.googleapis.com/library.v2.Book", post.GetFields()[1].GetTypeUrl())

	_, err = protodesc.NewFiles(res.Descriptors)
	assert.NoError(t, err)
}

func TestImporter_Options(t *testing.T) {
	res, err := NewImporter(Options{Namespace: "acme.pets.v3", ServiceName: "pets.acme.dev"}, nil).
		Import(loadDocument(t, "petstore.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "pets.acme.dev", res.Service.GetName())
	assert.Equal(t, "acme.pets.v3.SwaggerPetstore", res.Service.GetApis()[0].GetName())
	assert.Equal(t, "v3", res.Service.GetApis()[0].GetVersion())
}

func TestImporter_DuplicateMethodNames(t *testing.T) {
	doc, err := ParseDocument("dup.yaml", []byte(`
openapi: 3.0.0
info: {title: Dup, version: "1"}
paths:
  /a:
    get: {operationId: fetch, responses: {"200": {description: ok}}}
  /b:
    get: {operationId: fetch, responses: {"200": {description: ok}}}
`))
	require.NoError(t, err)
	res, err := NewImporter(Options{}, quietLogger()).Import(doc)
	require.NoError(t, err)

	methods := res.Service.GetApis()[0].GetMethods()
	require.Len(t, methods, 2)
	assert.Equal(t, "Fetch", methods[0].GetName())
	assert.Equal(t, "Fetch1", methods[1].GetName())
	assert.Equal(t, "type.googleapis.com/google.protobuf.Empty", methods[0].GetRequestTypeUrl())
}

func TestNamespace(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Title: "Swagger Petstore", Version: "1.0.0"}, "swagger_petstore.v1"},
		{Info{Title: "Library", Version: "v2beta1"}, "library.v2"},
		{Info{Title: "", Version: ""}, "api.v1"},
		{Info{Title: "3D Printing", Version: "10"}, "_3_d_printing.v10"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, namespace(tt.info), tt.info.Title)
	}
}
