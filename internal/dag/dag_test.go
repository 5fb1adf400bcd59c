package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, nodes []string, edges [][2]string) *Graph {
	t.Helper()
	g := NewGraph()
	for _, n := range nodes {
		g.AddNode(n, n)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := build(t, []string{"Organisation", "User", "Post"}, [][2]string{
		{"Organisation", "User"},
		{"User", "Post"},
		{"User", "Post"}, // repeated edges are ignored
	})

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, 2, g.Edges())
	assert.Equal(t, []string{"Organisation"}, g.Parents("User"))
	assert.Empty(t, g.Parents("Organisation"))
}

func TestGraph_AddNode_ReplacesData(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", 1)
	g.AddNode("a", 2)

	d, ok := g.Data("a")
	require.True(t, ok)
	assert.Equal(t, 2, d)
	assert.Equal(t, 1, g.Len())

	_, ok = g.Data("b")
	assert.False(t, ok)
}

func TestGraph_AddEdge_Errors(t *testing.T) {
	tests := []struct {
		name   string
		parent string
		child  string
		errMsg string
	}{
		{name: "missing child", parent: "a", child: "nonexistent", errMsg: `unknown node "nonexistent"`},
		{name: "missing parent", parent: "nonexistent", child: "a", errMsg: `unknown node "nonexistent"`},
		{name: "self loop", parent: "a", child: "a", errMsg: "cycle detected: a -> a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			g.AddNode("a", nil)
			err := g.AddEdge(tt.parent, tt.child)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestGraph_Sort(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		edges [][2]string
		want  []string
	}{
		{
			name:  "no edges keeps insertion order",
			nodes: []string{"c", "a", "b"},
			want:  []string{"c", "a", "b"},
		},
		{
			name:  "dependencies pulled forward",
			nodes: []string{"Post", "User", "Organisation"},
			edges: [][2]string{{"Organisation", "User"}, {"User", "Post"}},
			want:  []string{"Organisation", "User", "Post"},
		},
		{
			name:  "diamond",
			nodes: []string{"UserProject", "User", "Project", "Organisation"},
			edges: [][2]string{
				{"User", "UserProject"}, {"Project", "UserProject"},
				{"Organisation", "User"}, {"Organisation", "Project"},
			},
			want: []string{"Organisation", "User", "Project", "UserProject"},
		},
		{
			name:  "unrelated nodes stay in place",
			nodes: []string{"a", "b", "c"},
			edges: [][2]string{{"c", "a"}},
			want:  []string{"c", "a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(t, tt.nodes, tt.edges)
			got, err := g.Sort()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGraph_Sort_Cycle(t *testing.T) {
	g := build(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}})

	_, err := g.Sort()
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Path, 4)
	assert.Equal(t, ce.Path[0], ce.Path[3])
	// each step goes from a dependency to its dependent
	for i := 0; i+1 < len(ce.Path); i++ {
		assert.Contains(t, g.Parents(ce.Path[i+1]), ce.Path[i])
	}
}

func TestGraph_Order(t *testing.T) {
	g := build(t, []string{"b", "a"}, [][2]string{{"a", "b"}})
	order, cycle := g.Order()
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Nil(t, cycle)

	require.NoError(t, g.AddEdge("b", "a"))
	order, cycle = g.Order()
	assert.Equal(t, []string{"b", "a"}, order)
	assert.NotEmpty(t, cycle)
}
