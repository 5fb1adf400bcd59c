package dataset

import (
	"slices"
	"sort"

	"github.com/leapstack-labs/leapseed/internal/model"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// Instance is one generated row. Its definition is shared and read-only;
// its values are owned by the instance.
type Instance struct {
	Entity *model.EntityDefinition
	Ref    core.InstanceRef
	values map[string]core.Value
}

func newInstance(e *model.EntityDefinition, ref core.InstanceRef) *Instance {
	return &Instance{Entity: e, Ref: ref, values: make(map[string]core.Value)}
}

// Get returns the value of a column.
func (i *Instance) Get(name string) (core.Value, bool) {
	v, ok := i.values[name]
	return v, ok
}

// Set replaces the value of a column.
func (i *Instance) Set(name string, v core.Value) {
	i.values[name] = v
}

// Text returns the literal text of a column. Reference columns have no text.
func (i *Instance) Text(name string) (string, bool) {
	lit, ok := i.values[name].(core.Literal)
	if !ok {
		return "", false
	}
	return lit.Text(), true
}

// Reference returns the single reference held in a column.
func (i *Instance) Reference(name string) (core.InstanceRef, bool) {
	ref, ok := i.values[name].(core.Reference)
	return ref.Ref, ok
}

// References returns the back-references held in a column.
func (i *Instance) References(name string) []core.InstanceRef {
	list, _ := i.values[name].(core.ReferenceList)
	return list.Refs
}

// AppendReference adds ref to the back-reference list in a column.
func (i *Instance) AppendReference(name string, ref core.InstanceRef) {
	list, _ := i.values[name].(core.ReferenceList)
	i.values[name] = core.ReferenceList{Refs: append(list.Refs, ref)}
}

func (i *Instance) removeReference(name string, ref core.InstanceRef) {
	list, _ := i.values[name].(core.ReferenceList)
	refs := make([]core.InstanceRef, 0, len(list.Refs))
	for _, r := range list.Refs {
		if r != ref {
			refs = append(refs, r)
		}
	}
	i.values[name] = core.ReferenceList{Refs: refs}
}

// Columns returns the set columns: declared fields first, then the rest sorted.
func (i *Instance) Columns() []string {
	cols := make([]string, 0, len(i.values))
	seen := make(map[string]bool, len(i.values))
	for _, f := range i.Entity.Fields {
		if _, ok := i.values[f.Name]; ok {
			cols = append(cols, f.Name)
			seen[f.Name] = true
		}
	}
	var rest []string
	for name := range i.values {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// Snapshot returns a copy of the values. Reference lists are copied too.
func (i *Instance) Snapshot() map[string]core.Value {
	out := make(map[string]core.Value, len(i.values))
	for k, v := range i.values {
		if list, ok := v.(core.ReferenceList); ok {
			// clipped so appends after Restore never write into the copy
			v = core.ReferenceList{Refs: slices.Clip(slices.Clone(list.Refs))}
		}
		out[k] = v
	}
	return out
}

// Restore replaces all values with vals.
func (i *Instance) Restore(vals map[string]core.Value) {
	i.values = make(map[string]core.Value, len(vals))
	for k, v := range vals {
		i.values[k] = v
	}
}
