package confmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/api/annotations"
	"google.golang.org/genproto/googleapis/api/serviceconfig"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/apipb"

	"github.com/platinummonkey/apicompiler/pkg/diag"
)

var serviceDesc = (&serviceconfig.Service{}).ProtoReflect().Descriptor()

func at(file string, line int) diag.Location {
	return diag.SimpleLocation{File: file, Line: line, Column: 1}
}

func buildLibrary(t *testing.T) *Config {
	t.Helper()
	b := NewBuilder(serviceDesc)
	b.SetValue("name", "", "library.example.com", at("a.yaml", 1))
	b.SetValue("title", "", "Library", at("a.yaml", 2))
	b.WithBuilder("http", func(h *Builder) {
		h.WithAddedBuilder("rules", func(r *Builder) {
			r.SetValue("selector", "", "example.Library.GetBook", at("a.yaml", 4))
			r.SetValue("get", "", "/v1/{name=books/*}", at("a.yaml", 5))
		})
		h.AddValue("rules", &annotations.HttpRule{Selector: "example.Library.ListBooks"}, at("a.yaml", 6))
	})
	cfg, err := b.Build()
	require.NoError(t, err)
	return cfg
}

func TestBuilder_NestedLocations(t *testing.T) {
	cfg := buildLibrary(t)

	assert.Equal(t, "library.example.com", cfg.GetString("name"))
	assert.Equal(t, "a.yaml:1:1", cfg.Location("name", "").DisplayString())

	http := cfg.Message("http")
	require.NotNil(t, http)
	require.Equal(t, 2, http.Len("rules"))

	rule := http.MessageAt("rules", 0)
	assert.Equal(t, "example.Library.GetBook", rule.GetString("selector"))
	assert.Equal(t, "a.yaml:4:1", cfg.GetLocation(rule, "selector", "").DisplayString())
	assert.Equal(t, "a.yaml:5:1", cfg.GetLocation(rule, "get", "").DisplayString())
	assert.Equal(t, "a.yaml:6:1", cfg.GetLocation(http, "rules", "1").DisplayString())
}

func TestBuilder_RoundTrip(t *testing.T) {
	cfg := buildLibrary(t)

	again, err := cfg.ToBuilder().Build()
	require.NoError(t, err)

	want, err := Proto(cfg, &serviceconfig.Service{})
	require.NoError(t, err)
	got, err := Proto(again, &serviceconfig.Service{})
	require.NoError(t, err)
	assert.True(t, proto.Equal(want, got))

	assert.NotEqual(t, cfg.ID(), again.ID())
	assert.Equal(t, cfg.Locations().Len(), again.Locations().Len())
	assert.Equal(t, cfg.Location("name", ""), again.Location("name", ""))
	assert.Equal(t, cfg.Location("title", ""), again.Location("title", ""))

	rule := again.Message("http").MessageAt("rules", 0)
	assert.Equal(t, "a.yaml:4:1", again.GetLocation(rule, "selector", "").DisplayString())
	assert.Equal(t, "a.yaml:6:1", again.GetLocation(again.Message("http"), "rules", "1").DisplayString())
}

func TestBuilder_UntouchedFieldsKeepLocations(t *testing.T) {
	cfg := buildLibrary(t)

	b := cfg.ToBuilder()
	b.SetValue("title", "", "Library API", at("b.yaml", 9))
	b.WithBuilder("http", func(h *Builder) {
		h.WithBuilderAt("rules", 0, func(r *Builder) {
			r.SetValue("body", "", "*", at("b.yaml", 10))
		})
	})
	next, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "a.yaml:1:1", next.Location("name", "").DisplayString())
	assert.Equal(t, "b.yaml:9:1", next.Location("title", "").DisplayString())

	rule := next.Message("http").MessageAt("rules", 0)
	assert.Equal(t, "a.yaml:4:1", next.GetLocation(rule, "selector", "").DisplayString())
	assert.Equal(t, "b.yaml:10:1", next.GetLocation(rule, "body", "").DisplayString())

	// the original tree is unchanged
	assert.Equal(t, "Library", cfg.GetString("title"))
	assert.Equal(t, "", cfg.Message("http").MessageAt("rules", 0).GetString("body"))
}

func TestBuilder_Clear(t *testing.T) {
	cfg := buildLibrary(t)

	next, err := cfg.ToBuilder().Clear("title").Build()
	require.NoError(t, err)

	assert.False(t, next.Has("title"))
	assert.Equal(t, diag.UnknownLocation, next.Location("title", ""))
	assert.Equal(t, "a.yaml:1:1", next.Location("name", "").DisplayString())
}

func TestBuilder_BuiltConfigIsImmutable(t *testing.T) {
	b := NewBuilder(serviceDesc)
	b.SetValue("name", "", "first.example.com", at("a.yaml", 1))
	first, err := b.Build()
	require.NoError(t, err)

	b.SetValue("name", "", "second.example.com", at("a.yaml", 2))
	b.AddValue("apis", &apipb.Api{Name: "example.Library"}, at("a.yaml", 3))
	b.Clear("title")
	second, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "first.example.com", first.GetString("name"))
	assert.Equal(t, "a.yaml:1:1", first.Location("name", "").DisplayString())
	assert.False(t, first.Has("apis"))

	assert.Equal(t, "second.example.com", second.GetString("name"))
	assert.Equal(t, "a.yaml:2:1", second.Location("name", "").DisplayString())
	assert.Equal(t, 1, second.Len("apis"))
}

func TestBuilder_OneofSiblingsCleared(t *testing.T) {
	b := NewBuilder((&annotations.HttpRule{}).ProtoReflect().Descriptor())
	b.SetValue("get", "", "/v1/books", at("a.yaml", 1))
	b.SetValue("post", "", "/v1/books", at("a.yaml", 2))
	cfg, err := b.Build()
	require.NoError(t, err)

	assert.False(t, cfg.Has("get"))
	assert.True(t, cfg.Has("post"))
	assert.Equal(t, diag.UnknownLocation, cfg.Location("get", ""))
}

func TestBuilder_MapValues(t *testing.T) {
	b := NewBuilder((&serviceconfig.MetricRule{}).ProtoReflect().Descriptor())
	b.SetValue("selector", "", "example.Library.GetBook", at("q.yaml", 1))
	b.SetValue("metric_costs", "reads", int64(1), at("q.yaml", 2))
	b.SetValue("metric_costs", "writes", int64(5), at("q.yaml", 3))
	b.SetValue("metric_costs", "reads", int64(2), at("q.yaml", 4))
	cfg, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"reads", "writes"}, cfg.Keys("metric_costs"))
	v, ok := cfg.MapScalar("metric_costs", "reads")
	require.True(t, ok)
	assert.Equal(t, int64(2), v.Int())
	assert.Equal(t, "q.yaml:4:1", cfg.Location("metric_costs", "reads").DisplayString())

	msg, err := Proto(cfg, &serviceconfig.MetricRule{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"reads": 2, "writes": 5}, msg.GetMetricCosts())
}

func TestBuilder_StickyError(t *testing.T) {
	b := NewBuilder(serviceDesc)
	b.SetValue("no_such_field", "", "x", nil)
	b.SetValue("name", "", "ignored", nil)
	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_field")

	b = NewBuilder(serviceDesc)
	b.SetValue("name", "k", "x", nil)
	_, err = b.Build()
	assert.Error(t, err)

	b = NewBuilder(serviceDesc)
	b.AddValue("name", "x", nil)
	_, err = b.Build()
	assert.Error(t, err)
}

func TestConfig_NodeIdentityIsNotStructural(t *testing.T) {
	a := FromProto(&serviceconfig.Service{Name: "same"}, at("a.yaml", 1))
	b := FromProto(&serviceconfig.Service{Name: "same"}, at("b.yaml", 1))

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, "a.yaml:1:1", a.Location("name", "").DisplayString())
	assert.Equal(t, "b.yaml:1:1", b.Location("name", "").DisplayString())
	assert.Equal(t, diag.UnknownLocation, a.GetLocation(b, "name", ""))
}

func TestConfig_GetLocationUnknown(t *testing.T) {
	cfg := New(serviceDesc)
	assert.Equal(t, diag.UnknownLocation, cfg.Location("name", ""))
	assert.Equal(t, diag.UnknownLocation, cfg.Location("not_a_field", ""))
	assert.Equal(t, diag.UnknownLocation, cfg.GetLocation(nil, "name", ""))
}

func TestFromProto_ToProto(t *testing.T) {
	svc := &serviceconfig.Service{
		Name:  "library.example.com",
		Title: "Library",
		Http: &annotations.Http{Rules: []*annotations.HttpRule{
			{Selector: "a.B.C", Pattern: &annotations.HttpRule_Get{Get: "/v1/c"}},
		}},
	}
	cfg := FromProto(svc, at("svc.yaml", 3))

	assert.Equal(t, "svc.yaml:3:1", cfg.GetLocation(cfg.Message("http"), "rules", "0").DisplayString())

	out, err := Proto(cfg, &serviceconfig.Service{})
	require.NoError(t, err)
	assert.True(t, proto.Equal(svc, out))

	assert.Error(t, cfg.ToProto(&annotations.HttpRule{}))
}

func TestBuilder_Accessors(t *testing.T) {
	b := buildLibrary(t).ToBuilder()

	assert.Equal(t, "a.yaml:1:1", b.Location("name", "").DisplayString())
	b.SetValue("name", "", "books.example.com", at("b.yaml", 3))
	assert.Equal(t, "b.yaml:3:1", b.Location("name", "").DisplayString())
	b.Clear("title")
	assert.Equal(t, diag.UnknownLocation, b.Location("title", ""))
	assert.Equal(t, diag.UnknownLocation, b.Location("no_such_field", ""))

	assert.Equal(t, 0, b.Len("apis"))
	b.WithAddedBuilder("apis", func(a *Builder) {
		a.SetValue("name", "", "example.Library", at("b.yaml", 7))
	})
	b.AddValue("apis", &apipb.Api{Name: "example.Shelves"}, at("b.yaml", 8))
	require.Equal(t, 2, b.Len("apis"))
	assert.Equal(t, "example.Library", b.MessageAt("apis", 0).GetString("name"))
	assert.Equal(t, "example.Shelves", b.MessageAt("apis", 1).GetString("name"))
	assert.Nil(t, b.MessageAt("apis", 5))
	assert.Equal(t, "b.yaml:8:1", b.Location("apis", IndexKey(1)).DisplayString())
}
