package core

import (
	"fmt"
	"strconv"
)

// InstanceRef addresses one row of a table. Tables are arenas and rows are
// never removed, so a ref stays valid for the lifetime of a dataset.
type InstanceRef struct {
	Table string `json:"table"`
	Index int    `json:"index"`
}

func (r InstanceRef) String() string {
	return fmt.Sprintf("%s[%d]", r.Table, r.Index)
}

// ValueKind tags the variants of Value.
type ValueKind string

// Value kinds.
const (
	ValueLiteral       ValueKind = "literal"
	ValueReference     ValueKind = "reference"
	ValueReferenceList ValueKind = "references"
)

// Value is the closed set of things a field of an instance can hold.
// Only the types in this package implement it.
type Value interface {
	Kind() ValueKind
	isValue()
}

// Literal holds a primitive: string, int64, float64, bool or nil.
type Literal struct {
	V any
}

// Reference is the single-valued side of a one relationship.
type Reference struct {
	Ref InstanceRef
}

// ReferenceList is the back-reference side of a one relationship.
type ReferenceList struct {
	Refs []InstanceRef
}

func (Literal) Kind() ValueKind       { return ValueLiteral }
func (Reference) Kind() ValueKind     { return ValueReference }
func (ReferenceList) Kind() ValueKind { return ValueReferenceList }

func (Literal) isValue()       {}
func (Reference) isValue()     {}
func (ReferenceList) isValue() {}

// Text returns the literal formatted as a string. nil formats as "".
func (l Literal) Text() string {
	switch v := l.V.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// String returns a literal string value.
func String(s string) Literal {
	return Literal{V: s}
}
