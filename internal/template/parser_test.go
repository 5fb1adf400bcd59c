package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Modes(t *testing.T) {
	nodes, err := Parse("[name] [!first] [?Organisation.name] [*tags] [~!last] [~city]", "")
	require.NoError(t, err)

	var refs []Node
	for _, n := range nodes {
		if _, ok := n.(*TextNode); !ok {
			refs = append(refs, n)
		}
	}
	require.Len(t, refs, 6)

	g, ok := refs[0].(*GeneratorRef)
	require.True(t, ok)
	assert.Equal(t, "name", g.Name)
	assert.False(t, g.Slug)

	f, ok := refs[1].(*FieldRef)
	require.True(t, ok)
	assert.Equal(t, "first", f.Name)

	l, ok := refs[2].(*LookupRef)
	require.True(t, ok)
	assert.Equal(t, []string{"Organisation", "name"}, l.Path)

	a, ok := refs[3].(*ArrayFetch)
	require.True(t, ok)
	assert.Equal(t, "tags", a.Name)

	sf, ok := refs[4].(*FieldRef)
	require.True(t, ok)
	assert.Equal(t, "last", sf.Name)
	assert.True(t, sf.Slug)

	sg, ok := refs[5].(*GeneratorRef)
	require.True(t, ok)
	assert.True(t, sg.Slug)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{name: "conflicting modes", input: "[!?name]", errMsg: "conflicting modifiers"},
		{name: "modifier only", input: "[~!]", errMsg: "has no name"},
		{name: "empty lookup segment", input: "[?Organisation..name]", errMsg: "empty path segment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input, "")
			require.Error(t, err)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
