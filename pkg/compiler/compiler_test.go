package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/platinummonkey/apicompiler/pkg/config"
	"github.com/platinummonkey/apicompiler/pkg/diag"
	"github.com/platinummonkey/apicompiler/pkg/observability"
	"github.com/platinummonkey/apicompiler/pkg/openapi"
)

const libraryProto = `syntax = "proto3";

// @api:suppress-file:documentation-*

package example.library.v1;

import "google/api/annotations.proto";

// Library serves books.
service Library {
  rpc GetBook(GetBookRequest) returns (Book) {
    option (google.api.http) = {get: "/v1/{name=books/*}"};
  }
}

message GetBookRequest {
  string name = 1;
}

message Book {
  string name = 1;
  string title = 2;
}
`

const libraryConfig = `type: google.api.Service
config_version: 3
name: library.example.com
title: Library API
`

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

func newCompiler(t *testing.T, opts ...Option) *Compiler {
	t.Helper()
	c, err := New(config.Default(), append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return c
}

func libraryInput() Input {
	return Input{
		Name:          "library",
		Sources:       map[string]string{"library.proto": libraryProto},
		Roots:         []string{"library.proto"},
		Supplementary: []ConfigFile{{Name: "library.yaml", Data: []byte(libraryConfig)}},
	}
}

func errorMessages(diags []diag.Diag) []string {
	var out []string
	for _, d := range diags {
		if d.Kind() == diag.Error {
			out = append(out, d.String())
		}
	}
	return out
}

func TestInput_Source(t *testing.T) {
	in := Input{Name: "empty"}
	_, err := in.Source()
	assert.Error(t, err)

	in = libraryInput()
	src, err := in.Source()
	require.NoError(t, err)
	assert.Equal(t, SourceProto, src)

	in.OpenAPI = &openapi.Document{}
	_, err = in.Source()
	assert.Error(t, err)
}

func TestCompile_ProtoSources(t *testing.T) {
	c := newCompiler(t)
	res, err := c.Compile(context.Background(), libraryInput())
	require.NoError(t, err)
	require.Empty(t, errorMessages(res.Diags))
	require.NotNil(t, res.Service)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, SourceProto, res.Source)

	svc := res.Service
	assert.Equal(t, "library.example.com", svc.GetName())
	assert.Equal(t, "Library API", svc.GetTitle())
	require.Len(t, svc.GetApis(), 1)
	assert.Equal(t, "example.library.v1.Library", svc.GetApis()[0].GetName())

	rules := svc.GetHttp().GetRules()
	require.Len(t, rules, 1)
	assert.Equal(t, "example.library.v1.Library.GetBook", rules[0].GetSelector())
	assert.Equal(t, "/v1/{name=books/*}", rules[0].GetGet())

	// the file-wide directive suppresses every documentation finding
	for _, d := range res.Diags {
		assert.NotContains(t, d.Message(), "has no documentation")
	}
}

func TestCompile_OpenAPI(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "openapi", "testdata", "petstore.yaml"))
	require.NoError(t, err)
	doc, err := openapi.ParseDocument("petstore.yaml", data)
	require.NoError(t, err)

	c := newCompiler(t)
	res, err := c.Compile(context.Background(), Input{
		Name:    "petstore",
		OpenAPI: doc,
		ServiceConfig: &ConfigFile{
			Name: "petstore.yaml",
			Data: []byte("title: Pet Store\n"),
		},
	})
	require.NoError(t, err)
	require.Empty(t, errorMessages(res.Diags))
	require.NotNil(t, res.Service)

	svc := res.Service
	assert.Equal(t, "swagger_petstore.v1", svc.GetName())
	assert.Equal(t, "Pet Store", svc.GetTitle())
	require.Len(t, svc.GetApis(), 1)
	assert.Len(t, svc.GetApis()[0].GetMethods(), 3)
	assert.Len(t, svc.GetHttp().GetRules(), 3)

	var names []string
	for _, typ := range svc.GetTypes() {
		names = append(names, typ.GetName())
	}
	assert.Contains(t, names, "swagger_petstore.v1.Pet")
	assert.NotContains(t, names, "google.protobuf.Timestamp")
}

func TestCompile_DescriptorSet(t *testing.T) {
	c := newCompiler(t)
	first, err := c.Compile(context.Background(), libraryInput())
	require.NoError(t, err)
	require.NotNil(t, first.Descriptors)

	data, err := proto.Marshal(first.Descriptors)
	require.NoError(t, err)
	set, err := DecodeDescriptorSet(data)
	require.NoError(t, err)

	res, err := c.Compile(context.Background(), Input{
		Name:          "library.pb",
		Descriptors:   set,
		ServiceConfig: &ConfigFile{Name: "library.yaml", Data: []byte(libraryConfig)},
		SkipLint:      true,
	})
	require.NoError(t, err)
	require.Empty(t, errorMessages(res.Diags))
	require.NotNil(t, res.Service)
	assert.Equal(t, "library.example.com", res.Service.GetName())
	assert.Len(t, res.Service.GetHttp().GetRules(), 1)

	_, err = DecodeDescriptorSet([]byte{0xff, 0xff})
	assert.Error(t, err)
}

func TestCompile_SourceErrors(t *testing.T) {
	c := newCompiler(t)
	res, err := c.Compile(context.Background(), Input{
		Name:    "broken",
		Sources: map[string]string{"a.proto": "syntax = \"proto3\";\npackage x;\nmessage A {\n  Missing m = 1;\n}\n"},
		Roots:   []string{"a.proto"},
	})
	require.NoError(t, err)
	assert.True(t, res.HasErrors())
	assert.Nil(t, res.Service)
	assert.Nil(t, res.Descriptors)
}

func TestCompile_InvalidServiceConfig(t *testing.T) {
	in := libraryInput()
	in.Supplementary = []ConfigFile{{Name: "bad.yaml", Data: []byte("no_such_field: 1\n")}}

	res, err := newCompiler(t).Compile(context.Background(), in)
	require.NoError(t, err)
	errs := errorMessages(res.Diags)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "bad.yaml")
	assert.Contains(t, errs[0], "no_such_field")
	assert.Nil(t, res.Service)
}

func TestCompile_Suppressions(t *testing.T) {
	src := strings.Replace(libraryProto, "// @api:suppress-file:documentation-*\n", "", 1)
	in := libraryInput()
	in.Sources = map[string]string{"library.proto": src}

	res, err := newCompiler(t).Compile(context.Background(), in)
	require.NoError(t, err)
	var documented int
	for _, d := range res.Diags {
		if strings.Contains(d.Message(), "has no documentation") {
			documented++
		}
	}
	assert.Positive(t, documented)

	in.Suppressions = []string{"documentation-*"}
	res, err = newCompiler(t).Compile(context.Background(), in)
	require.NoError(t, err)
	for _, d := range res.Diags {
		assert.NotContains(t, d.Message(), "has no documentation")
	}
}

func TestCompile_Metrics(t *testing.T) {
	metrics := observability.NewPipelineMetrics(prometheus.NewRegistry())
	c := newCompiler(t, WithMetrics(metrics))

	for i := 0; i < 2; i++ {
		_, err := c.Compile(context.Background(), libraryInput())
		require.NoError(t, err)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheMissesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ConversionsTotal.WithLabelValues("proto", "success")))
	assert.Equal(t, int64(1), c.CacheStats().Hits)
}

func TestCompileAll(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.Concurrency = 2
	c, err := New(cfg, WithLogger(quietLogger()))
	require.NoError(t, err)

	other := libraryInput()
	other.Name = "other"
	other.Sources = map[string]string{"library.proto": strings.Replace(libraryProto, "example.library.v1", "example.other.v1", 1)}
	inputs := []Input{libraryInput(), other, libraryInput()}

	results, err := c.CompileAll(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		require.NotNil(t, res)
		require.False(t, res.HasErrors(), "diagnostics: %v", res.Diags)
		require.Len(t, res.Service.GetApis(), 1)
	}
	assert.Equal(t, "library", results[0].Name)
	assert.Equal(t, "example.other.v1.Library", results[1].Service.GetApis()[0].GetName())
	assert.Equal(t, "example.library.v1.Library", results[2].Service.GetApis()[0].GetName())

	// one at a time, so the failing input cannot cancel the one before it
	cfg.Pipeline.Concurrency = 1
	serial, err := New(cfg, WithLogger(quietLogger()))
	require.NoError(t, err)
	results, err = serial.CompileAll(context.Background(), []Input{libraryInput(), {Name: "nothing"}})
	assert.ErrorContains(t, err, "nothing")
	require.Len(t, results, 2)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])

	_, err = c.CompileAll(context.Background(), nil)
	assert.Error(t, err)
}

func TestNew_LintConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Lint.ConfigPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(cfg)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "apicompiler-lint.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: v1\n"), 0o644))
	cfg.Lint.ConfigPath = path
	_, err = New(cfg, WithLogger(quietLogger()))
	assert.NoError(t, err)
}
