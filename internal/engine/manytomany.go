package engine

import (
	"github.com/leapstack-labs/leapseed/internal/dataset"
	"github.com/leapstack-labs/leapseed/internal/model"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// connectManyToMany fills the join table of every many relationship.
func (e *Engine) connectManyToMany() error {
	for _, r := range e.model.Relationships() {
		if r.Type != model.RelationMany || e.filled[r.Join] {
			continue
		}
		if err := e.fillJoin(r); err != nil {
			return err
		}
	}
	return nil
}

// fillJoin gives each From row min(fanout, |To|) join rows, counting join
// rows that triggers already created.
func (e *Engine) fillJoin(r *model.RelationshipDefinition) error {
	from, err := e.data.MustTable(r.From)
	if err != nil {
		return err
	}
	to, err := e.data.MustTable(r.To)
	if err != nil {
		return err
	}
	toA, toB, err := e.endpoints(r)
	if err != nil {
		return err
	}

	want := min(r.Fanout(), to.Len())
	created := 0
	for _, a := range from.Rows {
		existing := a.References(toA.ToColumn)
		need := want - len(existing)
		if need <= 0 {
			continue
		}

		candidates := to.Rows
		if e.cfg.Sampling == SampleWithoutReplacement && len(existing) > 0 {
			candidates = e.unjoined(a, existing, to, toB)
		}
		if len(candidates) == 0 {
			continue
		}
		for _, idx := range e.pick(len(candidates), need) {
			if _, err := e.join(r, a, candidates[idx]); err != nil {
				return err
			}
			created++
		}
	}

	e.filled[r.Join] = true
	e.logger.Debug("joined", "relationship", r.String(), "join", r.Join, "rows", created)
	return nil
}

// unjoined returns the rows of to not yet joined with a.
func (e *Engine) unjoined(a *dataset.Instance, existing []core.InstanceRef, to *dataset.Table, toB *model.RelationshipDefinition) []*dataset.Instance {
	taken := make(map[core.InstanceRef]bool, len(existing))
	for _, ref := range existing {
		row, err := e.data.Resolve(ref)
		if err != nil {
			continue
		}
		if b, ok := row.Reference(toB.FromColumn); ok {
			taken[b] = true
		}
	}
	out := make([]*dataset.Instance, 0, to.Len())
	for _, row := range to.Rows {
		if !taken[row.Ref] {
			out = append(out, row)
		}
	}
	return out
}

// join creates one join row connecting a (a From row of r) and b (a To row).
func (e *Engine) join(r *model.RelationshipDefinition, a, b *dataset.Instance) (*dataset.Instance, error) {
	def, ok := e.model.Entity(r.Join)
	if !ok {
		return nil, &core.Error{Kind: core.KindMissingTable, Entity: r.Join, Relationship: r.String(), Msg: "join entity missing"}
	}
	toA, toB, err := e.endpoints(r)
	if err != nil {
		return nil, err
	}
	return e.spawn(def, func(row *dataset.Instance) error {
		e.data.Connect(row, a, toA)
		e.data.Connect(row, b, toB)
		return nil
	})
}

// endpoints returns the join entity's relationships to r.From and r.To.
func (e *Engine) endpoints(r *model.RelationshipDefinition) (toA, toB *model.RelationshipDefinition, err error) {
	for _, er := range e.model.References(r.Join) {
		if !er.Endpoint {
			continue
		}
		switch er.FromColumn {
		case r.FromColumn:
			toA = er
		case r.ToColumn:
			toB = er
		}
	}
	if toA == nil || toB == nil {
		return nil, nil, &core.Error{Kind: core.KindInvalidRelationship, Entity: r.Join, Relationship: r.String(),
			Msg: "join entity has no endpoint relationships"}
	}
	return toA, toB, nil
}
