// Package dag provides the dependency graph used to order entities.
// Edges point from a dependency to its dependent: a base entity before the
// entities inheriting from it, a parent table before its child table.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

// Graph is a directed graph that remembers node insertion order. Sorting
// walks nodes in that order and pulls each node's dependencies in front of
// it, so unrelated nodes keep declaration order.
type Graph struct {
	data    map[string]any
	order   []string
	parents map[string][]string // child -> dependencies
	edges   int
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		data:    make(map[string]any),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node, or replaces the data of an existing one.
func (g *Graph) AddNode(id string, data any) {
	if _, exists := g.data[id]; !exists {
		g.order = append(g.order, id)
	}
	g.data[id] = data
}

// AddEdge records that child depends on parent. Repeated edges are ignored.
func (g *Graph) AddEdge(parent, child string) error {
	if _, ok := g.data[parent]; !ok {
		return fmt.Errorf("unknown node %q", parent)
	}
	if _, ok := g.data[child]; !ok {
		return fmt.Errorf("unknown node %q", child)
	}
	if parent == child {
		return &CycleError{Path: []string{parent, child}}
	}
	if !slices.Contains(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
		g.edges++
	}
	return nil
}

// Data returns the data stored with a node.
func (g *Graph) Data(id string) (any, bool) {
	d, ok := g.data[id]
	return d, ok
}

// Parents returns the direct dependencies of a node in edge order.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Edges returns the number of distinct edges.
func (g *Graph) Edges() int {
	return g.edges
}

// CycleError reports a dependency cycle. Path lists the nodes from a
// dependency to its dependent and ends where it starts.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Path, " -> ")
}

const (
	unvisited = iota
	visiting
	visited
)

// Sort returns node ids with every node after its dependencies. It fails
// with a *CycleError when the graph has a cycle.
func (g *Graph) Sort() ([]string, error) {
	state := make(map[string]int, len(g.order))
	out := make([]string, 0, len(g.order))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visited:
			return nil
		case visiting:
			// stack runs from dependent to dependency; report it the other way
			path := slices.Clone(stack[slices.Index(stack, id):])
			path = append(path, id)
			slices.Reverse(path)
			return &CycleError{Path: path}
		}
		state[id] = visiting
		stack = append(stack, id)
		for _, p := range g.parents[id] {
			if err := visit(p); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = visited
		out = append(out, id)
		return nil
	}

	for _, id := range g.order {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Order returns node ids in dependency order. When the graph has a cycle it
// returns insertion order together with the cycle path.
func (g *Graph) Order() ([]string, []string) {
	sorted, err := g.Sort()
	if err != nil {
		return slices.Clone(g.order), err.(*CycleError).Path //nolint:errorlint // Sort only returns *CycleError
	}
	return sorted, nil
}
