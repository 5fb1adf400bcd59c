// Package loader reads YAML schema files into a merged core.Schema.
//
// A schema file may include other files; includes are loaded depth-first
// before the including file, so later files override earlier generator
// definitions.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapseed/pkg/core"
)

// knownFields are the top-level keys of a schema file.
var knownFields = map[string]bool{
	"include":       true,
	"generators":    true,
	"snippets":      true,
	"entities":      true,
	"relationships": true,
	"triggers":      true,
	"assignments":   true,
	"streams":       true,
}

// File is one parsed schema file.
type File struct {
	Path          string
	Includes      []string
	Generators    []core.GeneratorSpec
	Snippets      map[string][]core.FieldSpec
	Entities      []EntityDecl
	Relationships []core.RelationshipSpec
	Triggers      []core.TriggerSpec
	Assignments   []core.AssignmentSpec
	Streams       []core.StreamSpec
}

// EntityDecl is an entity as declared, before snippets are applied.
type EntityDecl struct {
	core.EntitySpec
	Snippets []string
}

type fileYAML struct {
	Include       []string                 `yaml:"include"`
	Generators    map[string]generatorYAML `yaml:"generators"`
	Snippets      map[string][]fieldYAML   `yaml:"snippets"`
	Entities      []entityYAML             `yaml:"entities"`
	Relationships []relationshipYAML       `yaml:"relationships"`
	Triggers      []triggerYAML            `yaml:"triggers"`
	Assignments   []assignmentYAML         `yaml:"assignments"`
	Streams       []streamYAML             `yaml:"streams"`
}

// generatorYAML accepts a spec string or a list of values.
type generatorYAML string

func (g *generatorYAML) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*g = generatorYAML(node.Value)
		return nil
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		*g = generatorYAML(strings.Join(values, ";"))
		return nil
	default:
		return fmt.Errorf("line %d: generator must be a string or a list", node.Line)
	}
}

// countYAML accepts a row count or @generator.
type countYAML struct {
	N    int
	From string
}

func (c *countYAML) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: count must be a number or @generator", node.Line)
	}
	if name, ok := strings.CutPrefix(node.Value, "@"); ok {
		if name == "" {
			return fmt.Errorf("line %d: count %q names no generator", node.Line, node.Value)
		}
		c.From = name
		return nil
	}
	n, err := strconv.Atoi(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: count must be a number or @generator, got %q", node.Line, node.Value)
	}
	c.N = n
	return nil
}

type fieldYAML struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Key       bool   `yaml:"key"`
	Unique    bool   `yaml:"unique"`
	Required  bool   `yaml:"required"`
	Generator string `yaml:"generator"`
	Default   any    `yaml:"default"`
	Graph     string `yaml:"graph"`
}

type entityYAML struct {
	Name     string      `yaml:"name"`
	Table    string      `yaml:"table"`
	Abstract bool        `yaml:"abstract"`
	Inherits string      `yaml:"inherits"`
	Count    countYAML   `yaml:"count"`
	Snippets []string    `yaml:"snippets"`
	Fields   []fieldYAML `yaml:"fields"`
}

type singularYAML struct {
	Enumerate string   `yaml:"enumerate"`
	Field     string   `yaml:"field"`
	Values    []string `yaml:"values"`
}

type relationshipYAML struct {
	From       string        `yaml:"from"`
	FromColumn string        `yaml:"from_column"`
	To         string        `yaml:"to"`
	ToColumn   string        `yaml:"to_column"`
	Type       string        `yaml:"type"`
	Required   bool          `yaml:"required"`
	Name       string        `yaml:"name"`
	SeedCount  int           `yaml:"seed_count"`
	Default    string        `yaml:"default"`
	Singular   *singularYAML `yaml:"singular"`
	Fields     []fieldYAML   `yaml:"fields"`
}

type scriptYAML struct {
	Path   string `yaml:"path"`
	Entity string `yaml:"entity"`
	Query  string `yaml:"query"`
}

type triggerYAML struct {
	Entity  string       `yaml:"entity"`
	Scripts []scriptYAML `yaml:"scripts"`
}

type assignmentYAML struct {
	Path  string `yaml:"path"`
	Value any    `yaml:"value"`
}

type loopYAML struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Values    []string `yaml:"values"`
	Min       string   `yaml:"min"`
	Max       string   `yaml:"max"`
	Increment string   `yaml:"increment"`
	Format    string   `yaml:"format"`
	Emit      bool     `yaml:"emit"`
}

type streamYAML struct {
	Name   string     `yaml:"name"`
	Entity string     `yaml:"entity"`
	Parent string     `yaml:"parent"`
	Loops  []loopYAML `yaml:"loops"`
}

// Parse parses one schema document. Unknown top-level keys are rejected,
// as are unknown keys inside entries.
func Parse(data []byte, path string) (*File, error) {
	var rawMap map[string]any
	if err := yaml.Unmarshal(data, &rawMap); err != nil {
		return nil, &ParseError{File: path, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	for field := range rawMap {
		if !knownFields[field] {
			return nil, &UnknownFieldError{File: path, Field: field}
		}
	}

	var doc fileYAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ParseError{File: path, Message: fmt.Sprintf("failed to parse schema: %v", err)}
	}

	f := &File{Path: path, Includes: doc.Include, Snippets: make(map[string][]core.FieldSpec)}

	names := make([]string, 0, len(doc.Generators))
	for name := range doc.Generators {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f.Generators = append(f.Generators, core.GeneratorSpec{Name: name, Spec: string(doc.Generators[name]), Source: path})
	}

	for name, fields := range doc.Snippets {
		f.Snippets[name] = convertFields(fields)
	}

	for _, e := range doc.Entities {
		f.Entities = append(f.Entities, EntityDecl{
			EntitySpec: core.EntitySpec{
				Name:      e.Name,
				Table:     e.Table,
				Abstract:  e.Abstract,
				Inherits:  e.Inherits,
				Count:     e.Count.N,
				CountFrom: e.Count.From,
				Fields:    convertFields(e.Fields),
			},
			Snippets: e.Snippets,
		})
	}

	for _, r := range doc.Relationships {
		rs := core.RelationshipSpec{
			From:       r.From,
			FromColumn: r.FromColumn,
			To:         r.To,
			ToColumn:   r.ToColumn,
			Type:       r.Type,
			Required:   r.Required,
			Name:       r.Name,
			SeedCount:  r.SeedCount,
			Default:    r.Default,
			Fields:     convertFields(r.Fields),
		}
		if r.Singular != nil {
			rs.Singular = &core.SingularSpec{Enumerate: r.Singular.Enumerate, Field: r.Singular.Field, Values: r.Singular.Values}
		}
		f.Relationships = append(f.Relationships, rs)
	}

	for _, t := range doc.Triggers {
		ts := core.TriggerSpec{Entity: t.Entity}
		for _, s := range t.Scripts {
			ts.Scripts = append(ts.Scripts, core.TriggerScript{Path: s.Path, Entity: s.Entity, Query: s.Query})
		}
		f.Triggers = append(f.Triggers, ts)
	}

	for _, a := range doc.Assignments {
		f.Assignments = append(f.Assignments, core.AssignmentSpec{Path: a.Path, Value: a.Value})
	}

	for _, s := range doc.Streams {
		ss := core.StreamSpec{Name: s.Name, Entity: s.Entity, Parent: s.Parent}
		for _, l := range s.Loops {
			ss.Loops = append(ss.Loops, core.LoopSpec{
				Name: l.Name, Type: l.Type, Values: l.Values, Min: l.Min, Max: l.Max,
				Increment: l.Increment, Format: l.Format, Emit: l.Emit,
			})
		}
		f.Streams = append(f.Streams, ss)
	}

	return f, nil
}

func convertFields(in []fieldYAML) []core.FieldSpec {
	out := make([]core.FieldSpec, 0, len(in))
	for _, fy := range in {
		out = append(out, core.FieldSpec{
			Name:      fy.Name,
			Type:      fy.Type,
			Key:       fy.Key,
			Unique:    fy.Unique,
			Required:  fy.Required,
			Generator: fy.Generator,
			Default:   fy.Default,
			Graph:     fy.Graph,
		})
	}
	return out
}
