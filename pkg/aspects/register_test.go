package aspects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchSelector(t *testing.T) {
	tests := []struct {
		selector, name string
		want           bool
	}{
		{"a.B.C", "a.B.C", true},
		{"a.B.C", "a.B.D", false},
		{"*", "a.B.C", true},
		{"a.B.*", "a.B.C", true},
		{"a.B.*", "a.BC", false},
		{"a.*", "a.B.C", true},
		{"a.B", "a.B.C", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchSelector(tt.selector, tt.name), "%s ~ %s", tt.selector, tt.name)
	}
}

func TestFindRule_LastMatchWins(t *testing.T) {
	rules := readRules(nil, "http", []string{"a.*", "a.B.C", "x.Y"}, func(s string) string { return s })

	r := findRule(rules, "a.B.C")
	require.NotNil(t, r)
	assert.Equal(t, "a.B.C", r.selector)
	assert.True(t, r.used)
	assert.False(t, rules[0].used)

	r = findRule(rules, "a.D")
	require.NotNil(t, r)
	assert.Equal(t, "a.*", r.selector)
	assert.Nil(t, findRule(rules, "q.R"))
	assert.False(t, rules[2].used)
}
