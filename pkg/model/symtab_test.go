package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

func messages(pkg string, names ...string) *descriptorpb.FileDescriptorProto {
	f := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(pkg + ".proto"),
		Package: proto.String(pkg),
	}
	for _, n := range names {
		f.MessageType = append(f.MessageType, &descriptorpb.DescriptorProto{Name: proto.String(n)})
	}
	return f
}

func nested(outer string, inner ...string) *descriptorpb.DescriptorProto {
	d := &descriptorpb.DescriptorProto{Name: proto.String(outer)}
	for _, n := range inner {
		d.NestedType = append(d.NestedType, &descriptorpb.DescriptorProto{Name: proto.String(n)})
	}
	return d
}

func symbols(t *testing.T, files ...*descriptorpb.FileDescriptorProto) *SymbolTable {
	t.Helper()
	m, err := New(&descriptorpb.FileDescriptorSet{File: files})
	require.NoError(t, err)
	st, dups := NewSymbolTable(m.Files())
	require.Empty(t, dups)
	return st
}

func TestResolveType_InnerScopeWins(t *testing.T) {
	// declares a.c.D and a.b.c.D
	ac := messages("a")
	ac.MessageType = append(ac.MessageType, nested("c", "D"))
	abc := messages("a.b")
	abc.MessageType = append(abc.MessageType, nested("c", "D"))
	st := symbols(t, ac, abc)

	got := st.ResolveType("a.b", "c.D")
	require.NotNil(t, got)
	assert.Equal(t, "a.b.c.D", got.FullName())

	got = st.ResolveType("a", "c.D")
	require.NotNil(t, got)
	assert.Equal(t, "a.c.D", got.FullName())

	got = st.ResolveType("a.b", ".a.c.D")
	require.NotNil(t, got)
	assert.Equal(t, "a.c.D", got.FullName())

	assert.Nil(t, st.ResolveType("a.b", "c.E"))
	assert.Nil(t, st.ResolveType("a.b", ""))
}

func TestResolveType_CandidateOrder(t *testing.T) {
	assert.Equal(t,
		[]string{"a.b.c.M.N.R.s", "a.b.c.M.R.s", "a.b.c.R.s", "a.b.R.s", "a.R.s", "R.s"},
		candidates("a.b.c.M.N", "R.s"))
	assert.Equal(t, []string{"x.Y"}, candidates("a.b", ".x.Y"))
	assert.Equal(t, []string{"R"}, candidates("", "R"))
}

func TestResolveType2_StrictAnchor(t *testing.T) {
	// a.b.c is a message without D; a.c.D exists in the enclosing scope
	ab := messages("a.b", "c")
	ac := messages("a")
	ac.MessageType = append(ac.MessageType, nested("c", "D"))
	st := symbols(t, ab, ac)

	lenient := st.ResolveType("a.b", "c.D")
	require.NotNil(t, lenient)
	assert.Equal(t, "a.c.D", lenient.FullName())

	// "c" anchors on a.b.c, where D does not exist, and the lookup stops there
	assert.Nil(t, st.ResolveType2("a.b", "c.D"))

	// both agree when the anchor holds the name
	strict := st.ResolveType2("a", "c.D")
	require.NotNil(t, strict)
	assert.Equal(t, "a.c.D", strict.FullName())

	single := st.ResolveType2("a.b.c", "c")
	require.NotNil(t, single)
	assert.Equal(t, "a.b.c", single.FullName())

	assert.Nil(t, st.ResolveType2("a.b", "zzz.D"))
	assert.Equal(t, "a.c.D", st.ResolveType2("a.b", ".a.c.D").FullName())
}

func TestSymbolTable_Resolve(t *testing.T) {
	m := newTestModel(t)
	st, dups := NewSymbolTable(m.Files())
	require.Empty(t, dups)

	tests := []struct {
		id   string
		kind ElementKind
	}{
		{"example.library.v1.Book", MessageKind},
		{"example.library.v1.Book.State", EnumKind},
		{"example.library.v1.Library", InterfaceKind},
		{"example.library.v1.Book.name", FieldKind},
		{"example.library.v1.Book.Author.display_name", FieldKind},
		{"example.library.v1.Library.GetBook", MethodKind},
		{"example.library.v1.Book.State.AVAILABLE", EnumValueKind},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			el := st.Resolve(tt.id)
			require.NotNil(t, el)
			assert.Equal(t, tt.kind, el.Kind())
			assert.Equal(t, tt.id, el.FullName())
		})
	}

	assert.Nil(t, st.Resolve("example.library.v1.Book.missing"))
	assert.Nil(t, st.Resolve("nothing"))
	assert.Nil(t, st.Resolve(""))
}

func TestSymbolTable_Indexes(t *testing.T) {
	m := newTestModel(t)
	st, _ := NewSymbolTable(m.Files())

	assert.True(t, st.HasFieldName("display_name"))
	assert.False(t, st.HasFieldName("title"))

	methods := st.LookupMethodsBySimpleName("GetBook")
	require.Len(t, methods, 1)
	assert.Equal(t, "example.library.v1.Library.GetBook", methods[0].FullName())
	assert.Empty(t, st.LookupMethodsBySimpleName("ListBooks"))

	assert.Equal(t, []string{
		"example.library.v1.Book",
		"example.library.v1.Book.Author",
		"example.library.v1.Book.State",
		"example.library.v1.GetBookRequest",
	}, st.Types())
	assert.Equal(t, []string{"example.library.v1.Library"}, st.Interfaces())
	assert.NotNil(t, st.LookupMessage("example.library.v1.Book"))
	assert.Nil(t, st.LookupMessage("example.library.v1.Book.State"))
}

func TestSymbolTable_Duplicates(t *testing.T) {
	m, err := New(&descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{
		{Name: proto.String("one.proto"), Package: proto.String("p"), MessageType: []*descriptorpb.DescriptorProto{{Name: proto.String("M")}}},
		{Name: proto.String("two.proto"), Package: proto.String("p"), MessageType: []*descriptorpb.DescriptorProto{{Name: proto.String("M")}}},
	}})
	require.NoError(t, err)

	st, dups := NewSymbolTable(m.Files())
	require.Len(t, dups, 1)
	assert.Equal(t, "two.proto", dups[0].File().SimpleName())
	assert.Equal(t, "one.proto", st.LookupType("p.M").File().SimpleName())
}

func TestSymbolTable_NilIsSafe(t *testing.T) {
	var st *SymbolTable
	assert.Nil(t, st.ResolveType("a", "b"))
	assert.Nil(t, st.ResolveType2("a", "b"))
	assert.Nil(t, st.ResolveInterface("a", "b"))
	assert.Nil(t, st.Resolve("a"))
	assert.False(t, st.HasFieldName("a"))
	assert.Nil(t, st.Types())
}
