// Package dataset stores generated instances in arena tables addressed by
// core.InstanceRef.
package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapseed/internal/model"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// Table is the ordered rows of one entity. Insertion order is creation
// order and rows are never removed.
type Table struct {
	Name   string
	Entity *model.EntityDefinition
	Rows   []*Instance
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Append creates a new empty row.
func (t *Table) Append() *Instance {
	inst := newInstance(t.Entity, core.InstanceRef{Table: t.Name, Index: len(t.Rows)})
	t.Rows = append(t.Rows, inst)
	return inst
}

// Row returns the row at index.
func (t *Table) Row(index int) (*Instance, bool) {
	if index < 0 || index >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[index], true
}

// Find returns the rows whose field text equals value.
func (t *Table) Find(field, value string) []*Instance {
	var out []*Instance
	for _, row := range t.Rows {
		if v, ok := row.Text(field); ok && v == value {
			out = append(out, row)
		}
	}
	return out
}

// Dataset is the set of tables produced by one generation run.
type Dataset struct {
	tables map[string]*Table
	order  []string
}

// New creates an empty dataset.
func New() *Dataset {
	return &Dataset{tables: make(map[string]*Table)}
}

// AddTable creates the table for an entity. Tables are keyed by entity name.
func (d *Dataset) AddTable(e *model.EntityDefinition) (*Table, error) {
	if _, exists := d.tables[e.Name]; exists {
		return nil, &core.Error{Kind: core.KindDuplicateEntity, Entity: e.Name, Msg: "table already exists"}
	}
	t := &Table{Name: e.Name, Entity: e}
	d.tables[e.Name] = t
	d.order = append(d.order, e.Name)
	return t, nil
}

// Table returns a table by entity name.
func (d *Dataset) Table(name string) (*Table, bool) {
	t, ok := d.tables[name]
	return t, ok
}

// MustTable returns a table or a missing-table error.
func (d *Dataset) MustTable(name string) (*Table, error) {
	t, ok := d.tables[name]
	if !ok {
		return nil, &core.Error{Kind: core.KindMissingTable, Entity: name, Msg: "no table for entity"}
	}
	return t, nil
}

// Tables returns all tables in creation order.
func (d *Dataset) Tables() []*Table {
	out := make([]*Table, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.tables[name])
	}
	return out
}

// EnsureTable returns a table by name. A dataset holds only complete tables.
func (d *Dataset) EnsureTable(name string) (*Table, error) {
	return d.MustTable(name)
}

// Resolve returns the instance a ref points at.
func (d *Dataset) Resolve(ref core.InstanceRef) (*Instance, error) {
	t, err := d.MustTable(ref.Table)
	if err != nil {
		return nil, err
	}
	row, ok := t.Row(ref.Index)
	if !ok {
		return nil, &core.Error{Kind: core.KindUnresolvedPath, Entity: ref.Table,
			Msg: fmt.Sprintf("row %d out of range (%d rows)", ref.Index, t.Len())}
	}
	return row, nil
}

// Connect sets child's reference column to parent and appends child to
// parent's back-reference column. A child already connected through r is
// moved off its previous parent's list.
func (d *Dataset) Connect(child, parent *Instance, r *model.RelationshipDefinition) {
	if old, ok := child.Reference(r.FromColumn); ok {
		if old == parent.Ref {
			return
		}
		if prev, err := d.Resolve(old); err == nil {
			prev.removeReference(r.ToColumn, child.Ref)
		}
	}
	child.Set(r.FromColumn, core.Reference{Ref: parent.Ref})
	parent.AppendReference(r.ToColumn, child.Ref)
}

// Walk follows path from start through reference columns. Every segment but
// the last names a reference column; a back-reference column must be
// followed by a row index. It returns the instance owning the last segment.
func (d *Dataset) Walk(start *Instance, path []string) (*Instance, string, error) {
	if len(path) == 0 {
		return nil, "", &core.Error{Kind: core.KindUnresolvedPath, Entity: start.Entity.Name, Msg: "empty path"}
	}

	cur := start
	for i := 0; i < len(path)-1; i++ {
		seg := path[i]
		v, ok := cur.Get(seg)
		if !ok {
			return nil, "", d.unresolved(start, path, fmt.Sprintf("%s has no value for %q", cur.Ref, seg))
		}

		switch v := v.(type) {
		case core.Reference:
			next, err := d.Resolve(v.Ref)
			if err != nil {
				return nil, "", err
			}
			cur = next
		case core.ReferenceList:
			if i+1 >= len(path)-1 {
				return nil, "", d.unresolved(start, path, fmt.Sprintf("%q holds a list; add an index", seg))
			}
			idx, err := strconv.Atoi(path[i+1])
			if err != nil || idx < 0 || idx >= len(v.Refs) {
				return nil, "", d.unresolved(start, path, fmt.Sprintf("bad index %q into %q (%d entries)", path[i+1], seg, len(v.Refs)))
			}
			next, err := d.Resolve(v.Refs[idx])
			if err != nil {
				return nil, "", err
			}
			cur = next
			i++
		default:
			return nil, "", d.unresolved(start, path, fmt.Sprintf("%q is not a reference", seg))
		}
	}
	return cur, path[len(path)-1], nil
}

func (d *Dataset) unresolved(start *Instance, path []string, msg string) error {
	return &core.Error{Kind: core.KindUnresolvedPath, Entity: start.Entity.Name,
		Field: strings.Join(path, "."), Msg: msg}
}

// Target is an instance and column selected by a path.
type Target struct {
	Instance *Instance
	Column   string
}

// Select resolves an assignment path of the form Table[.index].column[.column...].
// Without an index the path applies to every row of the table.
func (d *Dataset) Select(path string) ([]Target, error) {
	segs := strings.Split(path, ".")
	if len(segs) < 2 {
		return nil, &core.Error{Kind: core.KindUnresolvedPath, Field: path, Msg: "path needs a table and a field"}
	}

	t, err := d.MustTable(segs[0])
	if err != nil {
		return nil, &core.Error{Kind: core.KindUnresolvedPath, Entity: segs[0], Field: path, Err: err}
	}

	rows := t.Rows
	rest := segs[1:]
	if idx, err := strconv.Atoi(rest[0]); err == nil {
		row, ok := t.Row(idx)
		if !ok {
			return nil, &core.Error{Kind: core.KindUnresolvedPath, Entity: t.Name, Field: path,
				Msg: fmt.Sprintf("row %d out of range (%d rows)", idx, t.Len())}
		}
		rows = []*Instance{row}
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return nil, &core.Error{Kind: core.KindUnresolvedPath, Entity: t.Name, Field: path, Msg: "path has no field"}
	}

	targets := make([]Target, 0, len(rows))
	for _, row := range rows {
		inst, col, err := d.Walk(row, rest)
		if err != nil {
			return nil, err
		}
		if _, err := inst.Entity.GetField(col, true); err != nil {
			return nil, err
		}
		targets = append(targets, Target{Instance: inst, Column: col})
	}
	return targets, nil
}
