package core

// Schema is the fully merged, in-memory schema handed to the model builder.
// Loaders produce it; the generation core never reads files itself.
type Schema struct {
	Entities      []EntitySpec
	Relationships []RelationshipSpec
	Generators    []GeneratorSpec
	Triggers      []TriggerSpec
	Assignments   []AssignmentSpec
	Streams       []StreamSpec
}

// EntitySpec declares an entity type.
type EntitySpec struct {
	Name     string
	Table    string // defaults to Name
	Abstract bool
	Inherits string
	// Count is the fixed row count. CountFrom, when set, names a generator
	// whose fixed list length determines the row count instead.
	Count     int
	CountFrom string
	Fields    []FieldSpec
}

// FieldSpec declares one field of an entity.
type FieldSpec struct {
	Name      string
	Type      string
	Key       bool
	Unique    bool
	Required  bool
	Generator string // token template, e.g. "[firstname]"
	Default   any
	// Graph is a dotted relationship path whose value is flattened into this field.
	Graph string
}

// Relationship types.
const (
	RelationOne  = "one"
	RelationMany = "many"
)

// RelationshipSpec declares a relationship between two entities.
//
// For a one relationship From is the child and To the parent: each From row
// holds a reference in FromColumn and each To row collects back-references
// in ToColumn. A many relationship synthesizes a join entity.
type RelationshipSpec struct {
	From       string
	FromColumn string
	To         string
	ToColumn   string
	Type       string
	Required   bool
	Name       string
	SeedCount  int
	// Default is a field:value query selecting the target for children
	// not placed into a named role.
	Default  string
	Singular *SingularSpec
	Fields   []FieldSpec // extra fields on a synthesized join entity
}

// SingularSpec assigns exactly one child per enumerated parent to each named role.
type SingularSpec struct {
	Enumerate string   // parent entity whose rows are enumerated
	Field     string   // field on the target entity matched against Values
	Values    []string // role values, filled in order
}

// GeneratorSpec declares a named value generator.
type GeneratorSpec struct {
	Name   string
	Spec   string
	Source string // where the definition came from, for provenance
}

// TriggerSpec lists connection scripts run after each instance of Entity is created.
type TriggerSpec struct {
	Entity  string
	Scripts []TriggerScript
}

// TriggerScript connects children at Path on the new instance to a queried target.
type TriggerScript struct {
	Path   string // array field with optional index or range: Users, Users(2), Users(2-4)
	Entity string // target entity
	Query  string // field=value or *
}

// AssignmentSpec overrides a field value by path after connection.
type AssignmentSpec struct {
	Path  string // Table[.index].field[.field...]
	Value any
}

// StreamSpec binds a nested loop chain to a child entity.
type StreamSpec struct {
	Name   string
	Entity string
	Parent string // optional parent entity; the chain runs once per parent row
	Loops  []LoopSpec
}

// Loop kinds.
const (
	LoopNumber = "number"
	LoopDate   = "date"
	LoopList   = "list"
)

// LoopSpec is one level of a stream. Outer levels come first.
type LoopSpec struct {
	Name      string
	Type      string
	Values    []string
	Min       string
	Max       string
	Increment string
	Format    string // date output layout
	// Emit marks levels that produce a row. When no level sets it the
	// innermost level does.
	Emit bool
}
