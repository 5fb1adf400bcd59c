// Package model builds the entity definition model from a merged schema:
// fields, inheritance, relationships and synthesized many-to-many join entities.
package model

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapseed/internal/dag"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// JoinKeyField is the key field of every synthesized join entity.
const JoinKeyField = "id"

// Model holds every entity definition and relationship of a schema.
// It is not safe for concurrent use.
type Model struct {
	entities      map[string]*EntityDefinition
	tables        map[string]string
	order         []string
	relationships []*RelationshipDefinition
	logger        *slog.Logger
}

// New creates an empty model. A nil logger discards.
func New(logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Model{
		entities: make(map[string]*EntityDefinition),
		tables:   make(map[string]string),
		logger:   logger,
	}
}

// Build constructs a model from a merged schema.
func Build(s *core.Schema, logger *slog.Logger) (*Model, error) {
	m := New(logger)

	for _, spec := range s.Entities {
		e, err := entityFromSpec(spec)
		if err != nil {
			return nil, err
		}
		if err := m.AddEntity(e); err != nil {
			return nil, err
		}
	}

	if err := m.resolveInheritance(); err != nil {
		return nil, err
	}

	for _, spec := range s.Relationships {
		if err := m.AddRelationship(relationshipFromSpec(spec)); err != nil {
			return nil, err
		}
	}

	m.logger.Debug("model built", "entities", len(m.order), "relationships", len(m.relationships))
	return m, nil
}

func entityFromSpec(spec core.EntitySpec) (*EntityDefinition, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, core.Errorf(core.KindUnknownEntity, "entity has no name")
	}
	if spec.Count < 0 {
		return nil, &core.Error{Kind: core.KindInvalidRange, Entity: spec.Name, Msg: fmt.Sprintf("negative row count %d", spec.Count)}
	}

	e := NewEntity(spec.Name)
	if spec.Table != "" {
		e.TableName = spec.Table
	}
	e.Abstract = spec.Abstract
	e.Inherits = spec.Inherits
	e.RowCount = spec.Count
	e.RowCountFrom = spec.CountFrom

	for _, fs := range spec.Fields {
		if err := e.AddField(FieldFromSpec(fs)); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// FieldFromSpec converts a schema field into a definition.
func FieldFromSpec(fs core.FieldSpec) *FieldDefinition {
	return &FieldDefinition{
		Name:      fs.Name,
		Type:      FieldType(strings.ToLower(fs.Type)),
		Key:       fs.Key,
		Unique:    fs.Unique,
		Required:  fs.Required,
		Generator: fs.Generator,
		Default:   fs.Default,
		Graph:     fs.Graph,
	}
}

func relationshipFromSpec(spec core.RelationshipSpec) *RelationshipDefinition {
	r := &RelationshipDefinition{
		From:       spec.From,
		FromColumn: spec.FromColumn,
		To:         spec.To,
		ToColumn:   spec.ToColumn,
		Type:       RelationType(strings.ToLower(spec.Type)),
		Required:   spec.Required,
		Name:       spec.Name,
		SeedCount:  spec.SeedCount,
		Default:    spec.Default,
	}
	if spec.Singular != nil {
		r.Singular = &Singular{
			Enumerate: spec.Singular.Enumerate,
			Field:     spec.Singular.Field,
			Values:    append([]string(nil), spec.Singular.Values...),
		}
	}
	for _, fs := range spec.Fields {
		r.Fields = append(r.Fields, FieldFromSpec(fs))
	}
	return r
}

// AddEntity registers an entity definition.
func (m *Model) AddEntity(e *EntityDefinition) error {
	if _, exists := m.entities[e.Name]; exists {
		return &core.Error{Kind: core.KindDuplicateEntity, Entity: e.Name, Msg: "entity defined twice"}
	}
	if owner, exists := m.tables[e.TableName]; exists && !e.Abstract {
		return &core.Error{Kind: core.KindDuplicateEntity, Entity: e.Name,
			Msg: fmt.Sprintf("table %q already belongs to %s", e.TableName, owner)}
	}
	m.entities[e.Name] = e
	if !e.Abstract {
		m.tables[e.TableName] = e.Name
	}
	m.order = append(m.order, e.Name)
	return nil
}

// Entity returns the named entity.
func (m *Model) Entity(name string) (*EntityDefinition, bool) {
	e, ok := m.entities[name]
	return e, ok
}

// Entities returns all entities in declaration order, join entities last.
func (m *Model) Entities() []*EntityDefinition {
	out := make([]*EntityDefinition, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.entities[name])
	}
	return out
}

// Relationships returns every relationship, including join endpoints.
func (m *Model) Relationships() []*RelationshipDefinition {
	return m.relationships
}

// References returns the one relationships in which entity is the child.
func (m *Model) References(entity string) []*RelationshipDefinition {
	var out []*RelationshipDefinition
	for _, r := range m.relationships {
		if r.Type == RelationOne && r.From == entity {
			out = append(out, r)
		}
	}
	return out
}

// BackReferences returns the one relationships in which entity is the parent.
func (m *Model) BackReferences(entity string) []*RelationshipDefinition {
	var out []*RelationshipDefinition
	for _, r := range m.relationships {
		if r.Type == RelationOne && r.To == entity {
			out = append(out, r)
		}
	}
	return out
}

// ChildRelationship finds the one relationship whose back-reference column
// on parent is column.
func (m *Model) ChildRelationship(parent, column string) (*RelationshipDefinition, bool) {
	for _, r := range m.BackReferences(parent) {
		if r.ToColumn == column {
			return r, true
		}
	}
	return nil, false
}

// OneBetween finds a one relationship with child as From and parent as To.
func (m *Model) OneBetween(child, parent string) (*RelationshipDefinition, bool) {
	for _, r := range m.References(child) {
		if r.To == parent && !r.Endpoint {
			return r, true
		}
	}
	return nil, false
}

// ManyBetween finds a many relationship joining a and b in either direction.
func (m *Model) ManyBetween(a, b string) (*RelationshipDefinition, bool) {
	for _, r := range m.relationships {
		if r.Type != RelationMany {
			continue
		}
		if (r.From == a && r.To == b) || (r.From == b && r.To == a) {
			return r, true
		}
	}
	return nil, false
}

// resolveInheritance copies base fields into inheriting entities, bases first.
func (m *Model) resolveInheritance() error {
	g := dag.NewGraph()
	for _, name := range m.order {
		g.AddNode(name, m.entities[name])
	}
	for _, name := range m.order {
		e := m.entities[name]
		if e.Inherits == "" {
			continue
		}
		if _, ok := m.entities[e.Inherits]; !ok {
			return &core.Error{Kind: core.KindUnknownEntity, Entity: e.Name, Msg: fmt.Sprintf("inherits unknown entity %q", e.Inherits)}
		}
		if err := g.AddEdge(e.Inherits, e.Name); err != nil {
			return &core.Error{Kind: core.KindInheritanceCycle, Entity: e.Name, Err: err}
		}
	}

	sorted, err := g.Sort()
	if err != nil {
		return &core.Error{Kind: core.KindInheritanceCycle, Err: err}
	}
	for _, name := range sorted {
		e := m.entities[name]
		if e.Inherits == "" {
			continue
		}
		if err := e.InheritFieldsFrom(m.entities[e.Inherits]); err != nil {
			return err
		}
		m.logger.Debug("inherited fields", "entity", e.Name, "base", e.Inherits)
	}
	return nil
}

// AddRelationship validates r, fills column defaults and registers it. A many
// relationship also synthesizes its join entity.
func (m *Model) AddRelationship(r *RelationshipDefinition) error {
	if r.From == "" || r.To == "" || r.Type == "" {
		return &core.Error{Kind: core.KindInvalidRelationship, Entity: r.From,
			Relationship: r.String(), Msg: "from, to and type are required"}
	}
	if r.Type != RelationOne && r.Type != RelationMany {
		return &core.Error{Kind: core.KindInvalidRelationship, Entity: r.From,
			Relationship: r.String(), Msg: fmt.Sprintf("unknown type %q", r.Type)}
	}

	from, err := m.tableEntity(r.From, r)
	if err != nil {
		return err
	}
	to, err := m.tableEntity(r.To, r)
	if err != nil {
		return err
	}

	if r.Type == RelationMany {
		return m.addManyToMany(r, from, to)
	}

	if r.FromColumn == "" {
		r.FromColumn = r.To
	}
	if r.ToColumn == "" {
		r.ToColumn = r.From + "s"
	}
	if err := m.validateSingular(r); err != nil {
		return err
	}
	if f, _ := from.GetField(r.FromColumn, false); f != nil {
		return &core.Error{Kind: core.KindFieldConflict, Entity: from.Name, Field: r.FromColumn,
			Relationship: r.String(), Msg: "reference column collides with a field"}
	}
	if f, _ := to.GetField(r.ToColumn, false); f != nil {
		return &core.Error{Kind: core.KindFieldConflict, Entity: to.Name, Field: r.ToColumn,
			Relationship: r.String(), Msg: "back-reference column collides with a field"}
	}

	from.AddRelation(r)
	m.relationships = append(m.relationships, r)
	return nil
}

func (m *Model) tableEntity(name string, r *RelationshipDefinition) (*EntityDefinition, error) {
	e, ok := m.entities[name]
	if !ok || e.Abstract {
		return nil, &core.Error{Kind: core.KindMissingTable, Entity: name,
			Relationship: r.String(), Msg: "relationship endpoint has no table"}
	}
	return e, nil
}

func (m *Model) validateSingular(r *RelationshipDefinition) error {
	s := r.Singular
	if s == nil {
		return nil
	}
	if s.Enumerate == "" || s.Field == "" || len(s.Values) == 0 {
		return &core.Error{Kind: core.KindInvalidSingular, Entity: r.From, Relationship: r.String(),
			Msg: "enumerate, field and values are required"}
	}
	if _, ok := m.entities[s.Enumerate]; !ok {
		return &core.Error{Kind: core.KindInvalidSingular, Entity: r.From, Relationship: r.String(),
			Msg: fmt.Sprintf("enumerated entity %q does not exist", s.Enumerate)}
	}
	return nil
}

// addManyToMany synthesizes join entity J for a many relationship between
// A and B: a uuid key, a one relationship to each endpoint and the extra
// fields declared on the relationship.
func (m *Model) addManyToMany(r *RelationshipDefinition, a, b *EntityDefinition) error {
	name := r.Name
	if name == "" {
		name = a.Name + b.Name
	}
	if r.FromColumn == "" {
		r.FromColumn = a.Name
	}
	if r.ToColumn == "" {
		r.ToColumn = b.Name
	}
	if r.FromColumn == r.ToColumn {
		return &core.Error{Kind: core.KindInvalidRelationship, Entity: a.Name, Relationship: r.String(),
			Msg: "join columns must differ; set from_column and to_column"}
	}

	join := NewEntity(name)
	join.Join = true
	join.Source = r
	if err := join.AddField(&FieldDefinition{Name: JoinKeyField, Type: TypeUUID, Key: true, Generator: "[uuid]"}); err != nil {
		return err
	}
	for _, f := range r.Fields {
		if err := join.AddField(f.Clone()); err != nil {
			return err
		}
	}
	if err := m.AddEntity(join); err != nil {
		return err
	}
	r.Join = name

	back := name + "s"
	toA := &RelationshipDefinition{From: name, FromColumn: r.FromColumn, To: a.Name, ToColumn: back, Type: RelationOne, Required: true, Endpoint: true}
	toB := &RelationshipDefinition{From: name, FromColumn: r.ToColumn, To: b.Name, ToColumn: back, Type: RelationOne, Required: true, Endpoint: true}
	if a.Name == b.Name {
		toB.ToColumn = back + "By" + r.ToColumn
	}

	a.AddRelation(r)
	m.relationships = append(m.relationships, r)
	for _, er := range []*RelationshipDefinition{toA, toB} {
		join.AddRelation(er)
		m.relationships = append(m.relationships, er)
	}

	m.logger.Debug("synthesized join entity", "entity", name, "relationship", r.String())
	return nil
}
