package engine

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapseed/internal/dataset"
	"github.com/leapstack-labs/leapseed/internal/generator"
	"github.com/leapstack-labs/leapseed/internal/model"
	"github.com/leapstack-labs/leapseed/internal/stream"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// runStreams runs each stream's loop chain once per parent row, or once when
// the stream has no parent. Every emission creates a row of the stream's
// entity whose generator tokens can read the current loop values.
func (e *Engine) runStreams(ctx context.Context) error {
	for _, spec := range e.streams {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.runStream(spec); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runStream(spec core.StreamSpec) error {
	def, _ := e.model.Entity(spec.Entity)

	var link *model.RelationshipDefinition
	parents := []*dataset.Instance{nil}
	if spec.Parent != "" {
		r, ok := e.model.OneBetween(spec.Entity, spec.Parent)
		if !ok {
			return &core.Error{Kind: core.KindInvalidRelationship, Entity: spec.Entity,
				Msg: fmt.Sprintf("stream %q: no one relationship from %s to %s", spec.Name, spec.Entity, spec.Parent)}
		}
		t, err := e.data.MustTable(spec.Parent)
		if err != nil {
			return err
		}
		link = r
		parents = t.Rows
	}

	emitted := 0
	for _, parent := range parents {
		emit := func(vals stream.Context) error {
			overlay := &generator.Overlay{Base: e.registry, Values: vals}
			_, err := e.spawnWith(def, func(child *dataset.Instance) error {
				if parent != nil {
					e.data.Connect(child, parent, link)
				}
				return e.connectRandom(child, link)
			}, overlay)
			emitted++
			return err
		}

		loop, err := stream.Compile(spec.Loops, emit)
		if err != nil {
			return &core.Error{Kind: core.KindInvalidRange, Entity: spec.Entity,
				Msg: fmt.Sprintf("stream %q", spec.Name), Err: err}
		}
		if err := loop.Run(stream.Context{}); err != nil {
			return err
		}
	}

	e.logger.Debug("stream complete", "stream", spec.Name, "entity", spec.Entity, "rows", emitted)
	return nil
}

// connectRandom connects child to a random parent through every plain one
// relationship except skip.
func (e *Engine) connectRandom(child *dataset.Instance, skip *model.RelationshipDefinition) error {
	for _, r := range e.model.References(child.Entity.Name) {
		if r == skip || r.Endpoint || r.IsNamed() {
			continue
		}
		if _, ok := child.Reference(r.FromColumn); ok {
			continue
		}
		parents, err := e.data.MustTable(r.To)
		if err != nil {
			return err
		}
		self := r.From == r.To
		if parents.Len() == 0 || (self && parents.Len() < 2) {
			return &core.Error{Kind: core.KindInsufficientRows, Entity: child.Entity.Name, Relationship: r.String(),
				Msg: "no " + r.To + " rows to connect to"}
		}
		e.data.Connect(child, e.randomParent(parents, child, self), r)
	}
	return nil
}
