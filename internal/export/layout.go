package export

import (
	"fmt"

	"github.com/leapstack-labs/leapseed/internal/dag"
	"github.com/leapstack-labs/leapseed/internal/dataset"
	"github.com/leapstack-labs/leapseed/internal/model"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// RowColumn is the synthetic key column of entities without a key field.
// It holds the 1-based row number.
const RowColumn = "_row"

// Column is one exported column.
type Column struct {
	Name string
	Type model.FieldType
	Key  bool
	// Ref is set when the column holds the key of the row a one
	// relationship points at.
	Ref *model.RelationshipDefinition
}

// Layout is the exported shape of one table.
type Layout struct {
	Table   *dataset.Table
	Columns []Column
	// Parents are the tables referenced by this table's columns.
	Parents []string
}

// Key returns the key column.
func (l *Layout) Key() Column {
	for _, c := range l.Columns {
		if c.Key {
			return c
		}
	}
	return Column{Name: RowColumn, Type: model.TypeInteger, Key: true}
}

// Plan returns the layout of every table of src, referenced tables first.
// Tables generated on demand are filled here.
func Plan(src Source) ([]*Layout, error) {
	tables := src.Tables()
	byEntity := make(map[string]*dataset.Table, len(tables))
	for _, t := range tables {
		byEntity[t.Entity.Name] = t
	}

	g := dag.NewGraph()
	layouts := make(map[string]*Layout, len(tables))
	for _, t := range tables {
		full, err := src.EnsureTable(t.Name)
		if err != nil {
			return nil, err
		}
		l, err := layout(full, byEntity)
		if err != nil {
			return nil, err
		}
		layouts[t.Name] = l
		g.AddNode(t.Name, l)
	}
	for _, t := range tables {
		for _, p := range layouts[t.Name].Parents {
			if p != t.Name {
				_ = g.AddEdge(p, t.Name)
			}
		}
	}

	order, _ := g.Order()
	out := make([]*Layout, 0, len(order))
	for _, name := range order {
		out = append(out, layouts[name])
	}
	return out, nil
}

func layout(t *dataset.Table, byEntity map[string]*dataset.Table) (*Layout, error) {
	def := t.Entity
	l := &Layout{Table: t}
	if def.KeyField() == nil {
		l.Columns = append(l.Columns, Column{Name: RowColumn, Type: model.TypeInteger, Key: true})
	}
	for _, f := range def.Fields {
		l.Columns = append(l.Columns, Column{Name: f.Name, Type: f.Type, Key: f.Key})
	}
	for _, r := range def.Relationships {
		if r.Type != model.RelationOne || r.From != def.Name {
			continue
		}
		parent, ok := byEntity[r.To]
		if !ok {
			return nil, &core.Error{Kind: core.KindMissingTable, Entity: def.Name, Relationship: r.String(),
				Msg: fmt.Sprintf("referenced table %s is not exported", r.To)}
		}
		typ := model.TypeInteger
		if key := parent.Entity.KeyField(); key != nil {
			typ = key.Type
		}
		l.Columns = append(l.Columns, Column{Name: r.FromColumn, Type: typ, Ref: r})
		l.Parents = append(l.Parents, parent.Name)
	}
	return l, nil
}

// Values returns the exported values of inst in column order. Literals are
// passed through; references are replaced by the referenced row's key.
func (l *Layout) Values(src Source, inst *dataset.Instance) ([]any, error) {
	out := make([]any, len(l.Columns))
	for i, c := range l.Columns {
		switch {
		case c.Name == RowColumn && c.Key:
			out[i] = int64(inst.Ref.Index + 1)
		case c.Ref != nil:
			ref, ok := inst.Reference(c.Name)
			if !ok {
				continue
			}
			target, err := src.Resolve(ref)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", inst.Ref, c.Name, err)
			}
			out[i] = KeyOf(target)
		default:
			if lit, ok := valueOf(inst, c.Name); ok {
				out[i] = lit.V
			}
		}
	}
	return out, nil
}

// KeyOf returns the key value of inst, or its 1-based row number when the
// entity has no key field.
func KeyOf(inst *dataset.Instance) any {
	if key := inst.Entity.KeyField(); key != nil {
		if lit, ok := valueOf(inst, key.Name); ok {
			return lit.V
		}
	}
	return int64(inst.Ref.Index + 1)
}

func valueOf(inst *dataset.Instance, col string) (core.Literal, bool) {
	v, ok := inst.Get(col)
	if !ok {
		return core.Literal{}, false
	}
	lit, ok := v.(core.Literal)
	return lit, ok
}
