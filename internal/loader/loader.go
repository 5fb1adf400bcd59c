package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapseed/pkg/core"
)

// Result is a merged schema and the files it was read from.
type Result struct {
	Schema *core.Schema
	// Files lists every file read, in load order.
	Files []string
}

// Loader reads schema files and follows their includes.
type Loader struct {
	logger *slog.Logger

	files    []*File
	seen     map[string]bool
	stack    []string
	entities map[string]string
}

// New creates a loader. A nil logger discards.
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{logger: logger}
}

// Load reads paths and their includes and merges them into one schema.
func (l *Loader) Load(paths ...string) (*Result, error) {
	l.files = nil
	l.seen = make(map[string]bool)
	l.stack = nil
	l.entities = make(map[string]string)

	for _, p := range paths {
		if err := l.loadFile(p); err != nil {
			return nil, err
		}
	}

	schema, err := l.merge()
	if err != nil {
		return nil, err
	}

	res := &Result{Schema: schema}
	for _, f := range l.files {
		res.Files = append(res.Files, f.Path)
	}
	l.logger.Debug("schema loaded", "files", len(res.Files), "entities", len(schema.Entities),
		"relationships", len(schema.Relationships), "generators", len(schema.Generators))
	return res, nil
}

// Load reads paths with a discarding logger.
func Load(paths ...string) (*Result, error) {
	return New(nil).Load(paths...)
}

func (l *Loader) loadFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &ParseError{File: path, Message: err.Error()}
	}
	for _, open := range l.stack {
		if open == abs {
			return &ParseError{File: path, Message: "include cycle: " + strings.Join(append(l.stack, abs), " -> ")}
		}
	}
	if l.seen[abs] {
		return nil
	}

	data, err := os.ReadFile(abs) //nolint:gosec // schema paths come from the user
	if err != nil {
		return &ParseError{File: path, Message: fmt.Sprintf("failed to read schema: %v", err)}
	}
	f, err := Parse(data, abs)
	if err != nil {
		return err
	}

	l.stack = append(l.stack, abs)
	for _, inc := range f.Includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(abs), inc)
		}
		if err := l.loadFile(inc); err != nil {
			return err
		}
	}
	l.stack = l.stack[:len(l.stack)-1]

	l.seen[abs] = true
	l.files = append(l.files, f)
	l.logger.Debug("schema file read", "path", abs, "includes", len(f.Includes))
	return nil
}

// merge concatenates the files in load order. Snippets from any file are
// visible to every entity.
func (l *Loader) merge() (*core.Schema, error) {
	snippets := make(map[string][]core.FieldSpec)
	for _, f := range l.files {
		for name, fields := range f.Snippets {
			snippets[name] = fields
		}
	}

	s := &core.Schema{}
	for _, f := range l.files {
		for _, decl := range f.Entities {
			if prev, ok := l.entities[decl.Name]; ok {
				return nil, &core.Error{Kind: core.KindDuplicateEntity, Entity: decl.Name,
					Msg: fmt.Sprintf("declared in %s and %s", prev, f.Path)}
			}
			l.entities[decl.Name] = f.Path

			spec, err := applySnippets(decl, snippets)
			if err != nil {
				return nil, err
			}
			s.Entities = append(s.Entities, spec)
		}
		s.Generators = append(s.Generators, f.Generators...)
		s.Relationships = append(s.Relationships, f.Relationships...)
		s.Triggers = append(s.Triggers, f.Triggers...)
		s.Assignments = append(s.Assignments, f.Assignments...)
		s.Streams = append(s.Streams, f.Streams...)
	}
	return s, nil
}

// applySnippets puts copies of the named snippet fields ahead of the
// entity's own fields.
func applySnippets(decl EntityDecl, snippets map[string][]core.FieldSpec) (core.EntitySpec, error) {
	spec := decl.EntitySpec
	if len(decl.Snippets) == 0 {
		return spec, nil
	}
	var fields []core.FieldSpec
	for _, name := range decl.Snippets {
		sf, ok := snippets[name]
		if !ok {
			return spec, &core.Error{Kind: core.KindUnknownEntity, Entity: decl.Name,
				Msg: fmt.Sprintf("unknown snippet %q", name)}
		}
		fields = append(fields, sf...)
	}
	spec.Fields = append(fields, spec.Fields...)
	return spec, nil
}
