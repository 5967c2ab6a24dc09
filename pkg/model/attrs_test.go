package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ownerKey = NewKey[string]("test.owner", Merged)

func TestAttributes(t *testing.T) {
	m := newTestModel(t)
	book := m.Files()[0].Messages[0]

	_, ok := Attr(book, ownerKey)
	assert.False(t, ok)

	assert.PanicsWithValue(t, `attribute "test.owner" is not declared for message elements`, func() {
		SetAttr(book, ownerKey, "shelf-team")
	})

	m.DeclareSlot(MessageKind, ownerKey, false)
	assert.True(t, m.SlotDeclared(MessageKind, ownerKey))
	assert.False(t, m.SlotDeclared(FieldKind, ownerKey))

	SetAttr(book, ownerKey, "shelf-team")
	v, ok := Attr(book, ownerKey)
	require.True(t, ok)
	assert.Equal(t, "shelf-team", v)
	assert.True(t, HasAttr(book, ownerKey))

	assert.Panics(t, func() { SetAttr(book, ownerKey, "other") }, "attributes are write-once")

	// other elements are unaffected
	_, ok = Attr(m.Files()[0].Messages[1], ownerKey)
	assert.False(t, ok)
}

func TestAttributes_Redeclare(t *testing.T) {
	m := newTestModel(t)
	m.DeclareSlot(MessageKind, ownerKey, true)
	m.DeclareSlot(MessageKind, ownerKey, false)
	assert.True(t, m.slots[MessageKind][ownerKey.Name()].required)
}
