package model

import (
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// EntityDefinition describes a record type and owns its unique-value cache.
type EntityDefinition struct {
	Name          string
	TableName     string
	Abstract      bool
	Join          bool
	Inherits      string
	Fields        []*FieldDefinition
	Relationships []*RelationshipDefinition
	// RowCount is the fixed number of rows. RowCountFrom, when set, names a
	// generator whose fixed list length is used instead.
	RowCount     int
	RowCountFrom string
	// Source is the many relationship a join entity was synthesized for.
	Source *RelationshipDefinition

	unique map[string]map[string]struct{}
}

// NewEntity creates an empty entity definition.
func NewEntity(name string) *EntityDefinition {
	return &EntityDefinition{Name: name, TableName: name}
}

// AddField appends a field. A second field with the same name, or a second
// key field, is a conflict.
func (e *EntityDefinition) AddField(f *FieldDefinition) error {
	if existing, _ := e.GetField(f.Name, false); existing != nil {
		return &core.Error{Kind: core.KindFieldConflict, Entity: e.Name, Field: f.Name, Msg: "field declared twice"}
	}
	if f.Key {
		if key := e.KeyField(); key != nil {
			return &core.Error{Kind: core.KindFieldConflict, Entity: e.Name, Field: f.Name,
				Msg: "entity already has key field " + key.Name}
		}
	}
	if f.Type == "" {
		f.Type = TypeString
	}
	e.Fields = append(e.Fields, f)
	return nil
}

// AddRelation records a relationship owned by this entity.
func (e *EntityDefinition) AddRelation(r *RelationshipDefinition) {
	e.Relationships = append(e.Relationships, r)
}

// InheritFieldsFrom copies base's fields ahead of e's own fields.
// It fails if e already declares a field with the same name.
func (e *EntityDefinition) InheritFieldsFrom(base *EntityDefinition) error {
	inherited := make([]*FieldDefinition, 0, len(base.Fields)+len(e.Fields))
	for _, f := range base.Fields {
		if own, _ := e.GetField(f.Name, false); own != nil {
			return &core.Error{Kind: core.KindFieldConflict, Entity: e.Name, Field: f.Name,
				Msg: "redefines a field inherited from " + base.Name}
		}
		inherited = append(inherited, f.Clone())
	}
	if baseKey, ownKey := base.KeyField(), e.KeyField(); baseKey != nil && ownKey != nil {
		return &core.Error{Kind: core.KindFieldConflict, Entity: e.Name, Field: ownKey.Name,
			Msg: "entity inherits key field " + baseKey.Name + " from " + base.Name}
	}
	e.Fields = append(inherited, e.Fields...)
	return nil
}

// GetField returns the named field. When failIfNotFound is false a missing
// field returns nil without error.
func (e *EntityDefinition) GetField(name string, failIfNotFound bool) (*FieldDefinition, error) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, nil
		}
	}
	if failIfNotFound {
		return nil, &core.Error{Kind: core.KindUnknownField, Entity: e.Name, Field: name, Msg: "no such field"}
	}
	return nil, nil
}

// KeyField returns the key field, or nil.
func (e *EntityDefinition) KeyField() *FieldDefinition {
	for _, f := range e.Fields {
		if f.Key {
			return f
		}
	}
	return nil
}

// UniqueFields returns the fields whose values must be distinct.
func (e *EntityDefinition) UniqueFields() []*FieldDefinition {
	var out []*FieldDefinition
	for _, f := range e.Fields {
		if f.IsUnique() {
			out = append(out, f)
		}
	}
	return out
}

// Seen reports whether the normalized value was already produced for field.
func (e *EntityDefinition) Seen(field, value string) bool {
	_, ok := e.unique[field][value]
	return ok
}

// Remember commits a normalized value for field into the unique cache.
func (e *EntityDefinition) Remember(field, value string) {
	if e.unique == nil {
		e.unique = make(map[string]map[string]struct{})
	}
	if e.unique[field] == nil {
		e.unique[field] = make(map[string]struct{})
	}
	e.unique[field][value] = struct{}{}
}

// ResetUniqueCache forgets all produced values.
func (e *EntityDefinition) ResetUniqueCache() {
	e.unique = nil
}
