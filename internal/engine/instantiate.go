package engine

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapseed/internal/dataset"
	"github.com/leapstack-labs/leapseed/internal/generator"
	"github.com/leapstack-labs/leapseed/internal/model"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// maxTriggerDepth bounds triggers creating rows whose triggers create rows.
const maxTriggerDepth = 32

// instantiate creates the fixed rows of every concrete entity. Join tables
// and streamed entities get their rows later.
func (e *Engine) instantiate(ctx context.Context) error {
	for _, name := range e.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		def, _ := e.model.Entity(name)
		if def.Join || e.streamed[name] {
			continue
		}

		n, err := e.rowTarget(def)
		if err != nil {
			return err
		}
		for range n {
			if _, err := e.spawn(def, nil); err != nil {
				return err
			}
		}
		e.logger.Debug("instantiated", "entity", name, "rows", n)
	}
	return nil
}

// rowTarget returns the number of rows to create for def. A count taken from
// a generator uses the length of its fixed list.
func (e *Engine) rowTarget(def *model.EntityDefinition) (int, error) {
	if def.RowCountFrom == "" {
		return def.RowCount, nil
	}
	list, ok := e.registry.List(def.RowCountFrom)
	if ok {
		return len(list), nil
	}
	if _, exists := e.registry.Lookup(def.RowCountFrom); exists {
		return 0, &core.Error{Kind: core.KindInvalidGenerator, Entity: def.Name,
			Msg: fmt.Sprintf("row count generator %q is not a fixed list", def.RowCountFrom)}
	}
	return 0, &core.Error{Kind: core.KindUnknownGenerator, Entity: def.Name,
		Msg: fmt.Sprintf("row count generator %q is not registered", def.RowCountFrom)}
}

// spawn creates a row, lets wire connect it, runs the entity's triggers and,
// once the detokenise stage is over, detokenises it.
func (e *Engine) spawn(def *model.EntityDefinition, wire func(*dataset.Instance) error) (*dataset.Instance, error) {
	return e.spawnWith(def, wire, nil)
}

func (e *Engine) spawnWith(def *model.EntityDefinition, wire func(*dataset.Instance) error, gen generator.Resolver) (*dataset.Instance, error) {
	inst, err := e.create(def)
	if err != nil {
		return nil, err
	}
	if wire != nil {
		if err := wire(inst); err != nil {
			return nil, err
		}
	}
	if err := e.runTriggers(inst); err != nil {
		return nil, err
	}
	if e.detokenised {
		if err := e.detokeniseWith(inst, gen); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// create appends a row holding the raw, untokenised value of every field.
func (e *Engine) create(def *model.EntityDefinition) (*dataset.Instance, error) {
	t, err := e.data.MustTable(def.Name)
	if err != nil {
		return nil, err
	}
	inst := t.Append()

	var list []string
	if def.RowCountFrom != "" {
		list, _ = e.registry.List(def.RowCountFrom)
	}
	countToken := "[" + def.RowCountFrom + "]"

	for _, f := range def.Fields {
		switch {
		case len(list) > 0 && f.Generator == countToken:
			inst.Set(f.Name, core.String(list[inst.Ref.Index%len(list)]))
		default:
			if raw, ok := f.Raw(); ok {
				inst.Set(f.Name, core.Literal{V: normalize(raw)})
			} else if f.Key {
				inst.Set(f.Name, keyDefault(f, inst.Ref.Index))
			}
		}
	}
	return inst, nil
}

// keyDefault gives numeric keys the 1-based row number and every other key
// a uuid.
func keyDefault(f *model.FieldDefinition, index int) core.Value {
	if f.Type.IsNumeric() {
		return core.Literal{V: int64(index + 1)}
	}
	return core.String("[" + generator.BuiltinUUID + "]")
}

// normalize maps decoded scalar values onto the literal types.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return int64(n) //nolint:gosec // schema literals
	case float32:
		return float64(n)
	}
	return v
}
