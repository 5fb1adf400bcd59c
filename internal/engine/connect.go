package engine

import (
	"fmt"

	"github.com/leapstack-labs/leapseed/internal/dataset"
	"github.com/leapstack-labs/leapseed/internal/model"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// connectOneToMany connects every unconnected child row of each plain one
// relationship. Parents without children are served first, one child each
// in row order; the remaining children go to random parents.
func (e *Engine) connectOneToMany() error {
	for _, r := range e.model.Relationships() {
		if r.Type != model.RelationOne || r.Endpoint || r.IsNamed() || e.streamed[r.From] {
			continue
		}
		if err := e.connectOne(r); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) connectOne(r *model.RelationshipDefinition) error {
	children, err := e.data.MustTable(r.From)
	if err != nil {
		return err
	}
	parents, err := e.data.MustTable(r.To)
	if err != nil {
		return err
	}

	var pending []*dataset.Instance
	for _, row := range children.Rows {
		if _, ok := row.Reference(r.FromColumn); !ok {
			pending = append(pending, row)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	var needy []*dataset.Instance
	for _, row := range parents.Rows {
		if len(row.References(r.ToColumn)) == 0 {
			needy = append(needy, row)
		}
	}

	self := r.From == r.To
	if parents.Len() == 0 || len(pending) < len(needy) || (self && parents.Len() < 2) {
		return &core.Error{Kind: core.KindInsufficientRows, Entity: r.From, Relationship: r.String(),
			Msg: fmt.Sprintf("%d unconnected %s rows for %d %s rows without children", len(pending), r.From, len(needy), r.To)}
	}
	if self && !derange(pending, needy) {
		return &core.Error{Kind: core.KindInsufficientRows, Entity: r.From, Relationship: r.String(),
			Msg: "the only unconnected row cannot be its own parent"}
	}

	for i, child := range pending {
		parent := e.randomParent(parents, child, self)
		if i < len(needy) {
			parent = needy[i]
		}
		e.data.Connect(child, parent, r)
	}

	e.logger.Debug("connected", "relationship", r.String(), "children", len(pending), "parents", parents.Len())
	return nil
}

// randomParent draws a row of parents. On a self relationship the child
// itself is never drawn; parents must then hold at least two rows.
func (e *Engine) randomParent(parents *dataset.Table, child *dataset.Instance, self bool) *dataset.Instance {
	if !self {
		return parents.Rows[e.rng.Intn(parents.Len())]
	}
	if p := parents.Rows[e.rng.Intn(parents.Len()-1)]; p != child {
		return p
	}
	return parents.Rows[parents.Len()-1]
}

// derange reorders pending so that no row sits at the same position as
// itself in needy. It reports false when a single row is left paired with
// itself.
func derange(pending, needy []*dataset.Instance) bool {
	for i := range needy {
		if pending[i] != needy[i] {
			continue
		}
		j := i + 1
		if j == len(pending) {
			j = 0
		}
		if j == i {
			return false
		}
		pending[i], pending[j] = pending[j], pending[i]
	}
	return true
}

// applyAssignments overwrites the fields selected by each assignment path.
func (e *Engine) applyAssignments() error {
	for _, a := range e.assignments {
		targets, err := e.data.Select(a.Path)
		if err != nil {
			return err
		}
		for _, t := range targets {
			t.Instance.Set(t.Column, core.Literal{V: normalize(a.Value)})
		}
		e.logger.Debug("assigned", "path", a.Path, "rows", len(targets))
	}
	return nil
}
