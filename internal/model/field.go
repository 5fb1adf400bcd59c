package model

// FieldType is the declared type of a field.
type FieldType string

// Field types. Unknown types are kept verbatim and treated as text.
const (
	TypeString   FieldType = "string"
	TypeText     FieldType = "text"
	TypeNumber   FieldType = "number"
	TypeInteger  FieldType = "integer"
	TypeFloat    FieldType = "float"
	TypeBoolean  FieldType = "boolean"
	TypeDate     FieldType = "date"
	TypeDatetime FieldType = "datetime"
	TypeUUID     FieldType = "uuid"
	TypeEmail    FieldType = "email"
	TypeJSON     FieldType = "json"
)

// IsNumeric reports whether values of t are numbers.
func (t FieldType) IsNumeric() bool {
	return t == TypeNumber || t == TypeInteger || t == TypeFloat
}

// FieldDefinition describes one field of an entity.
type FieldDefinition struct {
	Name      string
	Type      FieldType
	Key       bool
	Unique    bool
	Required  bool
	Generator string
	Default   any
	// Graph is a relationship path flattened into this field.
	Graph string
}

// Clone returns a copy of f.
func (f *FieldDefinition) Clone() *FieldDefinition {
	c := *f
	return &c
}

// IsUnique reports whether values of f must be distinct across rows.
// Key fields are always unique.
func (f *FieldDefinition) IsUnique() bool {
	return f.Unique || f.Key
}

// Raw returns the untokenised starting value of f: the graph lookup, the
// generator template or the default, in that order.
func (f *FieldDefinition) Raw() (any, bool) {
	switch {
	case f.Graph != "":
		return "[?" + f.Graph + "]", true
	case f.Generator != "":
		return f.Generator, true
	case f.Default != nil:
		return f.Default, true
	default:
		return nil, false
	}
}
