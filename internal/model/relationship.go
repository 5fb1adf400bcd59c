package model

import (
	"fmt"
	"strings"
)

// RelationType is one or many.
type RelationType string

// Relation types.
const (
	RelationOne  RelationType = "one"
	RelationMany RelationType = "many"
)

// Singular assigns one child per enumerated parent to each named role.
type Singular struct {
	Enumerate string
	Field     string
	Values    []string
}

// RelationshipDefinition describes a relationship between two entities.
//
// For a one relationship, From rows hold a Reference in FromColumn and To
// rows collect a ReferenceList in ToColumn. A many relationship is realised
// by the join entity named in Join.
type RelationshipDefinition struct {
	From       string
	FromColumn string
	To         string
	ToColumn   string
	Type       RelationType
	Required   bool
	Name       string
	SeedCount  int
	Default    string
	Singular   *Singular
	Fields     []*FieldDefinition
	Join       string
	// Endpoint marks the one relationships synthesized for a join entity.
	Endpoint bool
}

func (r *RelationshipDefinition) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s (%s)", r.From, r.FromColumn, r.To, r.ToColumn, r.Type)
}

// IsNamed reports whether r is connected by role assignment or a default
// query instead of random fan-out.
func (r *RelationshipDefinition) IsNamed() bool {
	return r.Singular != nil || r.Default != ""
}

// DefaultQuery splits the field:value default target query.
func (r *RelationshipDefinition) DefaultQuery() (field, value string, ok bool) {
	if r.Default == "" {
		return "", "", false
	}
	field, value, ok = strings.Cut(r.Default, ":")
	return strings.TrimSpace(field), strings.TrimSpace(value), ok
}

// Fanout returns the number of join rows per from row, at least one.
func (r *RelationshipDefinition) Fanout() int {
	if r.SeedCount < 1 {
		return 1
	}
	return r.SeedCount
}
