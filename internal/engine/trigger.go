package engine

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapseed/internal/dataset"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// triggerPath matches Field, Field(n) and Field(a-b).
var triggerPath = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(?:\((\d+)(?:-(\d+))?\))?$`)

// parseTriggerPath splits a trigger path into its back-reference column and
// an inclusive 0-based index range. A bare column addresses index 0.
func parseTriggerPath(path string) (field string, lo, hi int, err error) {
	m := triggerPath.FindStringSubmatch(strings.TrimSpace(path))
	if m == nil {
		return "", 0, 0, &core.Error{Kind: core.KindMalformedIndex, Field: path,
			Msg: "trigger path must be Field, Field(n) or Field(a-b)"}
	}
	field = m[1]
	if m[2] != "" {
		if lo, err = strconv.Atoi(m[2]); err != nil {
			return "", 0, 0, badIndex(path, m[2])
		}
		hi = lo
	}
	if m[3] != "" {
		if hi, err = strconv.Atoi(m[3]); err != nil {
			return "", 0, 0, badIndex(path, m[3])
		}
	}
	if hi < lo {
		return "", 0, 0, &core.Error{Kind: core.KindMalformedIndex, Field: path,
			Msg: fmt.Sprintf("range %d-%d runs backwards", lo, hi)}
	}
	return field, lo, hi, nil
}

func badIndex(path, index string) error {
	return &core.Error{Kind: core.KindMalformedIndex, Field: path,
		Msg: fmt.Sprintf("index %s is out of range", index)}
}

// runTriggers runs the scripts registered for the entity of a new row.
func (e *Engine) runTriggers(parent *dataset.Instance) error {
	scripts := e.triggers[parent.Entity.Name]
	if len(scripts) == 0 {
		return nil
	}
	if e.triggerDepth >= maxTriggerDepth {
		return &core.Error{Kind: core.KindInvalidRelationship, Entity: parent.Entity.Name,
			Msg: fmt.Sprintf("triggers nested deeper than %d", maxTriggerDepth)}
	}
	e.triggerDepth++
	defer func() { e.triggerDepth-- }()

	for _, s := range scripts {
		if err := e.runScript(parent, s); err != nil {
			var ce *core.Error
			if errors.As(err, &ce) && ce.Entity == "" {
				return ce.WithEntity(parent.Entity.Name)
			}
			return err
		}
	}
	return nil
}

// runScript makes sure parent has children at the script's indexes and
// connects each of them to the row selected by the script's query.
func (e *Engine) runScript(parent *dataset.Instance, s core.TriggerScript) error {
	field, lo, hi, err := parseTriggerPath(s.Path)
	if err != nil {
		return err
	}
	rel, ok := e.model.ChildRelationship(parent.Entity.Name, field)
	if !ok {
		return &core.Error{Kind: core.KindUnresolvedPath, Entity: parent.Entity.Name, Field: field,
			Msg: "no relationship collects children in this column"}
	}
	childDef, _ := e.model.Entity(rel.From)

	target, err := e.query(s.Entity, s.Query)
	if err != nil {
		return err
	}

	for idx := lo; idx <= hi; idx++ {
		for len(parent.References(field)) <= idx {
			if _, err := e.spawn(childDef, func(child *dataset.Instance) error {
				e.data.Connect(child, parent, rel)
				return nil
			}); err != nil {
				return err
			}
		}
		child, err := e.data.Resolve(parent.References(field)[idx])
		if err != nil {
			return err
		}
		if err := e.link(child, target); err != nil {
			return err
		}
	}
	return nil
}

// query selects one row of entity. The query is field=value for the first
// matching row, or * (or empty) for a random row.
func (e *Engine) query(entity, q string) (*dataset.Instance, error) {
	t, err := e.data.MustTable(entity)
	if err != nil {
		return nil, err
	}
	q = strings.TrimSpace(q)
	if q == "" || q == "*" {
		if t.Len() == 0 {
			return nil, &core.Error{Kind: core.KindEmptyQuery, Entity: entity, Msg: "table is empty"}
		}
		return t.Rows[e.rng.Intn(t.Len())], nil
	}

	field, value, ok := strings.Cut(q, "=")
	if !ok {
		return nil, &core.Error{Kind: core.KindEmptyQuery, Entity: entity, Msg: fmt.Sprintf("query %q is not field=value", q)}
	}
	matches := t.Find(strings.TrimSpace(field), strings.TrimSpace(value))
	if len(matches) == 0 {
		return nil, &core.Error{Kind: core.KindEmptyQuery, Entity: entity, Field: strings.TrimSpace(field),
			Msg: fmt.Sprintf("query %q matched nothing", q)}
	}
	return matches[0], nil
}

// link connects child to target: through a join row when a many
// relationship joins their entities, otherwise through a one relationship
// in either direction.
func (e *Engine) link(child, target *dataset.Instance) error {
	c, t := child.Entity.Name, target.Entity.Name
	if r, ok := e.model.ManyBetween(c, t); ok {
		a, b := child, target
		if r.From != c {
			a, b = target, child
		}
		_, err := e.join(r, a, b)
		return err
	}
	if r, ok := e.model.OneBetween(c, t); ok {
		e.data.Connect(child, target, r)
		return nil
	}
	if r, ok := e.model.OneBetween(t, c); ok {
		e.data.Connect(target, child, r)
		return nil
	}
	return &core.Error{Kind: core.KindInvalidRelationship, Entity: c,
		Msg: fmt.Sprintf("no relationship between %s and %s", c, t)}
}
