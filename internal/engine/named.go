package engine

import (
	"fmt"

	"github.com/leapstack-labs/leapseed/internal/dataset"
	"github.com/leapstack-labs/leapseed/internal/model"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// connectNamed connects the children of relationships that use role
// assignment or a default target query.
func (e *Engine) connectNamed() error {
	for _, r := range e.model.Relationships() {
		if r.Type != model.RelationOne || r.Endpoint || !r.IsNamed() {
			continue
		}
		if r.Singular != nil {
			if err := e.connectSingular(r); err != nil {
				return err
			}
		}
		if err := e.connectDefault(r); err != nil {
			return err
		}
	}
	return nil
}

// connectSingular walks every row of the enumerated entity and, for each
// role value in order, connects the next free child of that row to the
// target whose role field holds the value.
func (e *Engine) connectSingular(r *model.RelationshipDefinition) error {
	s := r.Singular
	link, ok := e.model.OneBetween(r.From, s.Enumerate)
	if !ok {
		return &core.Error{Kind: core.KindInvalidSingular, Entity: r.From, Relationship: r.String(),
			Msg: fmt.Sprintf("no relationship from %s to enumerated entity %s", r.From, s.Enumerate)}
	}
	groups, err := e.data.MustTable(s.Enumerate)
	if err != nil {
		return err
	}
	targets, err := e.data.MustTable(r.To)
	if err != nil {
		return err
	}

	roles := make([]*dataset.Instance, len(s.Values))
	for i, value := range s.Values {
		matches := targets.Find(s.Field, value)
		if len(matches) == 0 {
			return &core.Error{Kind: core.KindEmptyQuery, Entity: r.To, Field: s.Field, Relationship: r.String(),
				Msg: fmt.Sprintf("no %s row with %s = %q", r.To, s.Field, value)}
		}
		roles[i] = matches[0]
	}

	for _, group := range groups.Rows {
		kids := group.References(link.ToColumn)
		next := 0
		for i, target := range roles {
			var child *dataset.Instance
			for next < len(kids) && child == nil {
				row, err := e.data.Resolve(kids[next])
				if err != nil {
					return err
				}
				next++
				if _, taken := row.Reference(r.FromColumn); !taken {
					child = row
				}
			}
			if child == nil {
				return &core.Error{Kind: core.KindInsufficientChildren, Entity: s.Enumerate, Relationship: r.String(),
					Msg: fmt.Sprintf("%s has %d %s rows, too few for role %q", group.Ref, len(kids), r.From, s.Values[i])}
			}
			e.data.Connect(child, target, r)
		}
	}

	e.logger.Debug("assigned roles", "relationship", r.String(), "groups", groups.Len(), "roles", len(roles))
	return nil
}

// connectDefault connects every child still unconnected through r to the
// first row matching the default query.
func (e *Engine) connectDefault(r *model.RelationshipDefinition) error {
	if r.Default == "" {
		return nil
	}
	field, value, ok := r.DefaultQuery()
	if !ok {
		return &core.Error{Kind: core.KindInvalidRelationship, Entity: r.From, Relationship: r.String(),
			Msg: fmt.Sprintf("default %q is not field:value", r.Default)}
	}
	targets, err := e.data.MustTable(r.To)
	if err != nil {
		return err
	}
	matches := targets.Find(field, value)
	if len(matches) == 0 {
		return &core.Error{Kind: core.KindEmptyQuery, Entity: r.To, Field: field, Relationship: r.String(),
			Msg: fmt.Sprintf("default query %q matched nothing", r.Default)}
	}

	children, err := e.data.MustTable(r.From)
	if err != nil {
		return err
	}
	for _, child := range children.Rows {
		if _, ok := child.Reference(r.FromColumn); !ok {
			e.data.Connect(child, matches[0], r)
		}
	}
	return nil
}
