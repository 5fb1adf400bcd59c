// Package engine runs the generation pipeline: it instantiates rows for every
// entity, connects them through their relationships, applies assignments and
// detokenises every field into concrete values.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/leapstack-labs/leapseed/internal/dag"
	"github.com/leapstack-labs/leapseed/internal/dataset"
	"github.com/leapstack-labs/leapseed/internal/generator"
	"github.com/leapstack-labs/leapseed/internal/model"
	"github.com/leapstack-labs/leapseed/internal/template"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// DefaultMaxUniqueAttempts bounds the retries spent producing a row whose
// unique fields do not collide with earlier rows.
const DefaultMaxUniqueAttempts = 1000

// Sampling selects how many-to-many targets are drawn.
type Sampling int

// Sampling modes.
const (
	SampleWithoutReplacement Sampling = iota
	SampleWithReplacement
)

func (s Sampling) String() string {
	if s == SampleWithReplacement {
		return "with-replacement"
	}
	return "without-replacement"
}

// ParseSampling parses a sampling mode name.
func ParseSampling(s string) (Sampling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "without-replacement", "without":
		return SampleWithoutReplacement, nil
	case "with-replacement", "with":
		return SampleWithReplacement, nil
	default:
		return 0, fmt.Errorf("unknown sampling mode %q", s)
	}
}

// Config holds engine configuration.
type Config struct {
	// Seed drives every random choice of a run. Zero uses the current time.
	Seed int64
	// MaxDepth bounds template re-expansion (template.DefaultMaxDepth if zero).
	MaxDepth int
	// MaxUniqueAttempts bounds unique-value retries per row
	// (DefaultMaxUniqueAttempts if zero).
	MaxUniqueAttempts int
	// Sampling selects how many-to-many targets are drawn.
	Sampling Sampling
	// Now overrides the clock of the date and ulid built-ins.
	Now func() time.Time
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine generates one dataset from a schema. An Engine runs once and is not
// safe for concurrent use.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	rng      *rand.Rand
	model    *model.Model
	registry *generator.Registry
	data     *dataset.Dataset

	triggers    map[string][]core.TriggerScript
	assignments []core.AssignmentSpec
	streams     []core.StreamSpec
	streamed    map[string]bool
	order       []string

	stage        Stage
	failed       error
	detokenised  bool
	done         map[core.InstanceRef]bool
	active       map[core.InstanceRef]bool
	filled       map[string]bool
	triggerDepth int
}

// New builds the entity model for s and prepares an engine to generate it.
func New(s *core.Schema, cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.MaxUniqueAttempts <= 0 {
		cfg.MaxUniqueAttempts = DefaultMaxUniqueAttempts
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = template.DefaultMaxDepth
	}

	m, err := model.Build(s, logger)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // reproducible test data
	reg := generator.New(rng, logger)
	if cfg.Now != nil {
		reg.Now = cfg.Now
	}
	for _, g := range s.Generators {
		if err := reg.Register(g.Name, g.Spec, g.Source); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		cfg:         cfg,
		logger:      logger,
		rng:         rng,
		model:       m,
		registry:    reg,
		data:        dataset.New(),
		triggers:    make(map[string][]core.TriggerScript),
		assignments: s.Assignments,
		streams:     s.Streams,
		streamed:    make(map[string]bool),
		done:        make(map[core.InstanceRef]bool),
		active:      make(map[core.InstanceRef]bool),
		filled:      make(map[string]bool),
	}

	for _, t := range s.Triggers {
		if _, ok := m.Entity(t.Entity); !ok {
			return nil, &core.Error{Kind: core.KindUnknownEntity, Entity: t.Entity, Msg: "trigger on unknown entity"}
		}
		e.triggers[t.Entity] = append(e.triggers[t.Entity], t.Scripts...)
	}
	for _, st := range s.Streams {
		if _, ok := m.Entity(st.Entity); !ok {
			return nil, &core.Error{Kind: core.KindUnknownEntity, Entity: st.Entity, Msg: fmt.Sprintf("stream %q emits unknown entity", st.Name)}
		}
		e.streamed[st.Entity] = true
	}

	e.order = e.tableOrder()
	for _, name := range e.order {
		def, _ := m.Entity(name)
		if _, err := e.data.AddTable(def); err != nil {
			return nil, err
		}
	}

	logger.Debug("engine initialized", "seed", cfg.Seed, "tables", len(e.order), "sampling", cfg.Sampling.String())
	return e, nil
}

// tableOrder sorts the concrete entities so that parents come before their
// children and trigger query targets before the triggering entity. On a
// cycle it falls back to declaration order.
func (e *Engine) tableOrder() []string {
	g := dag.NewGraph()
	for _, def := range e.model.Entities() {
		if !def.Abstract {
			g.AddNode(def.Name, def)
		}
	}
	for _, r := range e.model.Relationships() {
		if r.Type != model.RelationOne || r.From == r.To {
			continue
		}
		_ = g.AddEdge(r.To, r.From)
	}
	for entity, scripts := range e.triggers {
		for _, s := range scripts {
			if s.Entity != "" && s.Entity != entity {
				_ = g.AddEdge(s.Entity, entity)
			}
		}
	}

	order, cycle := g.Order()
	if cycle != nil {
		e.logger.Warn("entity dependency cycle, using declaration order", "cycle", strings.Join(cycle, " -> "))
	}
	return order
}

// Model returns the entity model.
func (e *Engine) Model() *model.Model {
	return e.model
}

// Registry returns the generator registry.
func (e *Engine) Registry() *generator.Registry {
	return e.registry
}

// Dataset returns the dataset being generated.
func (e *Engine) Dataset() *dataset.Dataset {
	return e.data
}

// Stage returns the last completed stage.
func (e *Engine) Stage() Stage {
	return e.stage
}

// Seed returns the seed driving this run.
func (e *Engine) Seed() int64 {
	return e.cfg.Seed
}

// Tables returns every table in dependency order.
func (e *Engine) Tables() []*dataset.Table {
	return e.data.Tables()
}

// Resolve returns the instance a ref points at.
func (e *Engine) Resolve(ref core.InstanceRef) (*dataset.Instance, error) {
	return e.data.Resolve(ref)
}

// EnsureTable returns a table, filling a join table on demand once the
// detokenise stage has completed.
func (e *Engine) EnsureTable(name string) (*dataset.Table, error) {
	t, err := e.data.MustTable(name)
	if err != nil {
		return nil, err
	}
	if !t.Entity.Join || e.filled[name] {
		return t, nil
	}
	if !e.detokenised {
		return nil, &core.Error{Kind: core.KindMissingTable, Entity: name,
			Msg: "join table cannot be filled before detokenisation"}
	}
	if err := e.fillJoin(t.Entity.Source); err != nil {
		return nil, err
	}
	return t, nil
}

// Generate runs every stage and returns the finished dataset.
func (e *Engine) Generate(ctx context.Context) (*dataset.Dataset, error) {
	if err := e.Run(ctx, StageDone); err != nil {
		return nil, err
	}
	return e.data, nil
}

// Run advances the pipeline through until. Stages run at most once and in
// order; after a failure every later call returns the same error.
func (e *Engine) Run(ctx context.Context, until Stage) error {
	if e.failed != nil {
		return e.failed
	}

	start := time.Now()
	for e.stage < until {
		next := e.stage + 1
		if err := ctx.Err(); err != nil {
			return err
		}

		e.logger.Debug("stage starting", "stage", next.String())
		if err := e.runStage(ctx, next); err != nil {
			e.failed = err
			e.logger.Error("stage failed", "stage", next.String(), "error", err.Error())
			return err
		}
		e.stage = next
	}

	if e.stage == StageDone {
		e.logger.Info("generation complete", "tables", len(e.order), "rows", e.rowCount(), "duration", time.Since(start))
	}
	return nil
}

func (e *Engine) runStage(ctx context.Context, s Stage) error {
	switch s {
	case StageInstantiate:
		return e.instantiate(ctx)
	case StageConnectOneToMany:
		return e.connectOneToMany()
	case StageApplyAssignments:
		return e.applyAssignments()
	case StageDetokenise:
		return e.detokeniseAll(ctx)
	case StageRunStreams:
		return e.runStreams(ctx)
	case StageConnectManyToMany:
		return e.connectManyToMany()
	case StageConnectNamed:
		return e.connectNamed()
	case StageDone:
		return nil
	default:
		return fmt.Errorf("unknown stage %d", s)
	}
}

func (e *Engine) rowCount() int {
	n := 0
	for _, t := range e.data.Tables() {
		n += t.Len()
	}
	return n
}

// pick draws k row indexes out of m according to the sampling mode.
func (e *Engine) pick(m, k int) []int {
	if k > m && e.cfg.Sampling == SampleWithoutReplacement {
		k = m
	}
	if e.cfg.Sampling == SampleWithReplacement {
		out := make([]int, k)
		for i := range out {
			out[i] = e.rng.Intn(m)
		}
		return out
	}
	return e.rng.Perm(m)[:k]
}
