package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapseed/internal/dataset"
	"github.com/leapstack-labs/leapseed/internal/generator"
	"github.com/leapstack-labs/leapseed/internal/model"
	"github.com/leapstack-labs/leapseed/internal/template"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// detokeniseAll expands every row of every table. Rows reached earlier
// through a lookup are skipped.
func (e *Engine) detokeniseAll(ctx context.Context) error {
	for _, t := range e.data.Tables() {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, row := range t.Rows {
			if err := e.detokeniseWith(row, nil); err != nil {
				return err
			}
		}
	}
	e.detokenised = true
	return nil
}

// detokeniseWith expands the fields of inst. gen overrides the registry for
// generator tokens. When unique fields collide with earlier rows the whole
// row is expanded again from its raw values, up to MaxUniqueAttempts times.
func (e *Engine) detokeniseWith(inst *dataset.Instance, gen generator.Resolver) error {
	if e.done[inst.Ref] {
		return nil
	}
	def := inst.Entity
	if e.active[inst.Ref] {
		return &core.Error{Kind: core.KindDetokenisationFailed, Entity: def.Name,
			Msg: fmt.Sprintf("lookup cycle through %s", inst.Ref)}
	}
	e.active[inst.Ref] = true
	defer delete(e.active, inst.Ref)

	if gen == nil {
		gen = e.registry
	}
	raw := inst.Snapshot()
	unique := def.UniqueFields()

	var collided *model.FieldDefinition
	for attempt := 1; attempt <= e.cfg.MaxUniqueAttempts; attempt++ {
		env := &instanceEnv{
			engine:    e,
			inst:      inst,
			gen:       gen,
			values:    cloneValues(raw),
			resolving: make(map[string]bool),
			resolved:  make(map[string]bool),
		}
		for _, f := range def.Fields {
			if err := env.resolveField(f.Name); err != nil {
				return err
			}
		}
		for _, f := range def.Fields {
			if v, ok := env.values[f.Name]; ok {
				env.values[f.Name] = coerce(f.Type, v)
			}
		}

		collided = firstCollision(def, unique, env.values)
		if collided == nil {
			for _, f := range unique {
				if text, ok := uniqueText(env.values[f.Name]); ok {
					def.Remember(f.Name, text)
				}
			}
			inst.Restore(env.values)
			e.done[inst.Ref] = true
			return nil
		}

		if lit, ok := raw[collided.Name].(core.Literal); !ok || !hasTokens(lit) {
			break
		}
	}

	return &core.Error{Kind: core.KindUniqueGenerationFailed, Entity: def.Name, Field: collided.Name,
		Msg: fmt.Sprintf("no unused value after %d attempts", e.cfg.MaxUniqueAttempts)}
}

func firstCollision(def *model.EntityDefinition, unique []*model.FieldDefinition, values map[string]core.Value) *model.FieldDefinition {
	for _, f := range unique {
		if text, ok := uniqueText(values[f.Name]); ok && def.Seen(f.Name, text) {
			return f
		}
	}
	return nil
}

// uniqueText is the normalized form compared by the unique cache. Unset and
// null values never collide.
func uniqueText(v core.Value) (string, bool) {
	lit, ok := v.(core.Literal)
	if !ok || lit.V == nil {
		return "", false
	}
	return template.Fold(lit.Text()), true
}

func hasTokens(lit core.Literal) bool {
	s, ok := lit.V.(string)
	return ok && template.HasTokens(s)
}

func cloneValues(in map[string]core.Value) map[string]core.Value {
	out := make(map[string]core.Value, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// coerce converts an expanded string to the field's declared type. Values
// that do not parse stay strings.
func coerce(t model.FieldType, v core.Value) core.Value {
	lit, ok := v.(core.Literal)
	if !ok {
		return v
	}
	s, ok := lit.V.(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(s)

	switch t {
	case model.TypeInteger:
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return core.Literal{V: n}
		}
	case model.TypeNumber:
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return core.Literal{V: n}
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return core.Literal{V: f}
		}
	case model.TypeFloat:
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return core.Literal{V: f}
		}
	case model.TypeBoolean:
		if b, err := strconv.ParseBool(trimmed); err == nil {
			return core.Literal{V: b}
		}
	case model.TypeEmail:
		return core.String(template.Fold(s))
	}
	return v
}

// instanceEnv resolves the tokens of one row against a scratch copy of its
// values. Fields are expanded on first use, so [!field] may name a field
// declared later.
type instanceEnv struct {
	engine    *Engine
	inst      *dataset.Instance
	gen       generator.Resolver
	values    map[string]core.Value
	resolving map[string]bool
	resolved  map[string]bool
}

func (env *instanceEnv) Generator(name string) (string, error) {
	return env.gen.Resolve(name)
}

func (env *instanceEnv) Field(name string) (string, error) {
	if err := env.resolveField(name); err != nil {
		return "", err
	}
	v, ok := env.values[name]
	if !ok {
		if f, _ := env.inst.Entity.GetField(name, false); f == nil {
			return "", &core.Error{Kind: core.KindUnknownField, Entity: env.inst.Entity.Name, Field: name, Msg: "no such field"}
		}
		return "", unassigned(env.inst, name)
	}
	return env.engine.valueText(v)
}

func (env *instanceEnv) Lookup(path []string) (string, error) {
	if len(path) == 1 {
		return env.Field(path[0])
	}
	owner, col, err := env.engine.data.Walk(env.inst, path)
	if err != nil {
		return "", err
	}
	if owner == env.inst {
		return env.Field(col)
	}
	if err := env.engine.detokeniseWith(owner, nil); err != nil {
		return "", err
	}
	v, ok := owner.Get(col)
	if !ok {
		if _, err := owner.Entity.GetField(col, true); err != nil {
			return "", err
		}
		return "", unassigned(owner, col)
	}
	return env.engine.valueText(v)
}

func (env *instanceEnv) resolveField(name string) error {
	if env.resolved[name] {
		return nil
	}
	def := env.inst.Entity
	if env.resolving[name] {
		return &core.Error{Kind: core.KindDetokenisationFailed, Entity: def.Name, Field: name,
			Msg: "field refers to itself"}
	}

	if lit, ok := env.values[name].(core.Literal); ok && hasTokens(lit) {
		env.resolving[name] = true
		in := &template.Interpreter{MaxDepth: env.engine.cfg.MaxDepth, File: def.Name + "." + name}
		out, err := in.Expand(lit.V.(string), env)
		delete(env.resolving, name)
		if err != nil {
			return locate(def.Name, name, err)
		}
		env.values[name] = core.String(out)
	}
	env.resolved[name] = true
	return nil
}

func unassigned(inst *dataset.Instance, field string) error {
	return &core.Error{Kind: core.KindDetokenisationFailed, Entity: inst.Entity.Name, Field: field,
		Msg: fmt.Sprintf("%s has no value", inst.Ref)}
}

// valueText renders a value for interpolation. A reference renders as the
// key of the row it points at.
func (e *Engine) valueText(v core.Value) (string, error) {
	switch v := v.(type) {
	case core.Literal:
		return v.Text(), nil
	case core.Reference:
		target, err := e.data.Resolve(v.Ref)
		if err != nil {
			return "", err
		}
		key := target.Entity.KeyField()
		if key == nil {
			return v.Ref.String(), nil
		}
		if err := e.detokeniseWith(target, nil); err != nil {
			return "", err
		}
		text, _ := target.Text(key.Name)
		return text, nil
	case core.ReferenceList:
		return "", core.Errorf(core.KindUnresolvedPath, "a list of %d references has no text; add an index", len(v.Refs))
	default:
		return "", nil
	}
}

// locate attaches entity and field to an expansion error that does not
// already name where it happened.
func locate(entity, field string, err error) error {
	var ce *core.Error
	if errors.As(err, &ce) {
		if ce.Entity != "" {
			return err
		}
		return &core.Error{Kind: ce.Kind, Entity: entity, Field: field, Err: err}
	}
	return &core.Error{Kind: core.KindDetokenisationFailed, Entity: entity, Field: field, Err: err}
}
