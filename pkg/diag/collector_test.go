package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	directives []string
	parent     *node
}

func (n *node) SuppressionDirectives() []string { return n.directives }

func (n *node) SuppressionParent() Suppressor {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func TestCollector_Counts(t *testing.T) {
	c := NewCollector(0)
	c.Add(Errorf(nil, "bad %d", 1))
	c.Add(Warningf(SimpleLocation{File: "a.yaml", Line: 2}, "meh"))
	c.Add(Warningf(nil, "meh again"))

	assert.Equal(t, 1, c.ErrorCount())
	assert.Equal(t, 2, c.WarningCount())
	assert.True(t, c.HasErrors())
	assert.False(t, c.Aborted())
	assert.NoError(t, c.Err())

	diags := c.Diags()
	require.Len(t, diags, 3)
	assert.Equal(t, "ERROR: <unknown>: bad 1", diags[0].String())
	assert.Equal(t, "WARNING: a.yaml:2: meh", diags[1].String())
}

func TestCollector_WarningsDoNotFail(t *testing.T) {
	c := NewCollector(0)
	c.Add(Warningf(nil, "only a warning"))
	assert.False(t, c.HasErrors())
}

func TestCollector_Bounded(t *testing.T) {
	c := NewCollector(2)
	assert.Equal(t, Added, c.Add(Warningf(nil, "1")))
	assert.Equal(t, Added, c.Add(Errorf(nil, "2")))
	assert.Equal(t, Aborted, c.Add(Warningf(nil, "3")))
	assert.True(t, c.Aborted())
	assert.ErrorIs(t, c.Err(), ErrTooManyDiagnostics)

	// stays aborted
	assert.Equal(t, Aborted, c.Add(Warningf(nil, "4")))
	assert.Equal(t, 4, c.Len())
}

func TestCollector_Suppression(t *testing.T) {
	root := &node{}
	e := &node{directives: []string{"http-*"}, parent: root}
	child := &node{parent: e}

	c := NewCollector(0)
	assert.Equal(t, Suppressed, c.AddFor(e, "http-param-reserved-keyword", Warningf(nil, "reserved")))
	assert.Equal(t, Suppressed, c.AddFor(child, "http-param-reserved-keyword", Warningf(nil, "reserved")))
	assert.Equal(t, Added, c.AddFor(e, "auth-missing-provider", Warningf(nil, "auth")))
	assert.Equal(t, Added, c.AddFor(root, "http-param-reserved-keyword", Warningf(nil, "root is not covered")))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, c.SuppressedCount())
	assert.Equal(t, "auth", c.Diags()[0].Message())
}

func TestMatchDirective(t *testing.T) {
	tests := []struct {
		pattern string
		id      string
		want    bool
	}{
		{"http-*", "http-param-reserved-keyword", true},
		{"http-param-reserved-keyword", "http-param-reserved-keyword", true},
		{"*", "naming-field", true},
		{"auth-*", "http-param-reserved-keyword", false},
		{"http-[", "http-[", true},
		{"http-[", "http-x", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchDirective(tt.pattern, tt.id))
		})
	}
}

func TestSimpleLocation_DisplayString(t *testing.T) {
	assert.Equal(t, "a.proto:3:7", SimpleLocation{File: "a.proto", Line: 3, Column: 7}.DisplayString())
	assert.Equal(t, "a.proto", SimpleLocation{File: "a.proto"}.DisplayString())
	assert.Equal(t, "<input>:4", SimpleLocation{Line: 4}.DisplayString())
	assert.Equal(t, "<unknown>", UnknownLocation.DisplayString())
}
