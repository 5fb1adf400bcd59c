// Package template implements the bracket token language used by generator specs.
//
// A template is literal text with [token] placeholders. The leading characters
// of a token select how it resolves:
//
//	[name]        generator reference
//	[!name]       field of the instance being generated
//	[?a.b.c]      lookup through connected relationships
//	[*name]       array fetch (placeholder only)
//	[~...]        slug modifier, combinable with the above
//
// Resolved values may contain further tokens; Expand re-scans until none
// remain or the depth bound is hit.
package template

// Position tracks source location for error reporting.
type Position struct {
	File   string
	Line   int
	Column int
}

// Node is the interface for all template AST nodes.
type Node interface {
	Pos() Position
	node() // marker method to restrict implementation
}

// nodeBase provides common Position handling for all nodes.
type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }
func (n *nodeBase) node()         {}

// TextNode is literal text copied to the output.
type TextNode struct {
	nodeBase
	Text string
}

// refBase carries what every token node shares.
type refBase struct {
	nodeBase
	// Slug requests trim, whitespace removal and lower-casing of the result.
	Slug bool
}

// GeneratorRef resolves a named generator.
type GeneratorRef struct {
	refBase
	Name string
}

// FieldRef reads an already assigned field of the current instance.
type FieldRef struct {
	refBase
	Name string
}

// LookupRef follows a dotted path through connected instances.
type LookupRef struct {
	refBase
	Path []string
}

// ArrayFetch is reserved syntax. It evaluates to a placeholder.
type ArrayFetch struct {
	refBase
	Name string
}
