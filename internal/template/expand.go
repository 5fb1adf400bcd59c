package template

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultMaxDepth bounds the number of expansion passes.
const DefaultMaxDepth = 50

// Env resolves tokens for one instance.
type Env interface {
	// Generator resolves a generator name to a raw value.
	Generator(name string) (string, error)
	// Field returns an already assigned field of the current instance.
	Field(name string) (string, error)
	// Lookup follows a path through connected relationships.
	Lookup(path []string) (string, error)
}

// Interpreter expands templates against an Env.
type Interpreter struct {
	// MaxDepth is the maximum number of passes (DefaultMaxDepth if zero).
	MaxDepth int
	// File labels positions in errors, e.g. "User.email".
	File string
}

// Expand expands input with the default interpreter.
func Expand(input string, env Env) (string, error) {
	return (&Interpreter{}).Expand(input, env)
}

// HasTokens reports whether s still contains bracket characters.
func HasTokens(s string) bool {
	return strings.ContainsAny(s, "[]")
}

// Expand resolves every token in input, re-scanning results until no
// brackets remain. Returns a *DepthError if brackets survive MaxDepth passes.
func (in *Interpreter) Expand(input string, env Env) (string, error) {
	budget := in.maxDepth()
	return in.expand(input, env, &budget)
}

func (in *Interpreter) maxDepth() int {
	if in.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return in.MaxDepth
}

// expand runs passes over s until no brackets remain. Every pass, including
// those spent on values under a ~ modifier, draws from the shared budget.
func (in *Interpreter) expand(s string, env Env, budget *int) (string, error) {
	for HasTokens(s) {
		if *budget <= 0 {
			return "", &DepthError{Depth: in.maxDepth(), Remaining: s}
		}
		*budget--

		nodes, err := Parse(s, in.File)
		if err != nil {
			return "", err
		}
		if !hasRefs(nodes) {
			return "", NewLexError(Position{File: in.File, Line: 1, Column: 1}, "unbalanced ']' in "+strconv.Quote(s))
		}

		s, err = in.eval(nodes, env, budget)
		if err != nil {
			return "", err
		}
	}
	return s, nil
}

// eval evaluates one pass of nodes. A ~ value is expanded fully before it is
// slugged so nested generator names keep their case.
func (in *Interpreter) eval(nodes []Node, env Env, budget *int) (string, error) {
	var b strings.Builder
	for _, n := range nodes {
		var (
			v    string
			err  error
			slug bool
			src  string
		)
		switch n := n.(type) {
		case *TextNode:
			b.WriteString(n.Text)
			continue
		case *GeneratorRef:
			v, err = env.Generator(n.Name)
			slug, src = n.Slug, n.Name
		case *FieldRef:
			v, err = env.Field(n.Name)
			slug, src = n.Slug, "!"+n.Name
		case *LookupRef:
			v, err = env.Lookup(n.Path)
			slug, src = n.Slug, "?"+strings.Join(n.Path, ".")
		case *ArrayFetch:
			v = "<array:" + n.Name + ">"
			slug = n.Slug
		}
		if err != nil {
			return "", WrapResolveError(n.Pos(), src, err)
		}
		if slug {
			if v, err = in.expand(v, env, budget); err != nil {
				return "", err
			}
			v = Slug(v)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// Slug trims s, removes all whitespace and lower-cases it.
func Slug(s string) string {
	return cases.Lower(language.Und).String(strings.Join(strings.Fields(s), ""))
}

// Fold normalizes a value for uniqueness comparison: trimmed and lower-cased.
func Fold(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

func hasRefs(nodes []Node) bool {
	for _, n := range nodes {
		if _, ok := n.(*TextNode); !ok {
			return true
		}
	}
	return false
}
