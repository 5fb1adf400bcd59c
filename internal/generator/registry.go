// Package generator provides the registry of named value generators.
//
// A generator spec is one of:
//   - a built-in keyword (uuid, ulid, datetime, timestamp)
//   - a semicolon separated list, one element picked uniformly per call
//   - a "min>max" integer range, picking from [min, max)
//   - anything else, returned unchanged (it may contain further tokens)
package generator

import (
	"io"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapseed/pkg/core"
	"github.com/oklog/ulid/v2"
)

// Built-in generator keywords.
const (
	BuiltinUUID      = "uuid"
	BuiltinULID      = "ulid"
	BuiltinDatetime  = "datetime"
	BuiltinTimestamp = "timestamp"

	// SourceBuiltin is the provenance recorded for pre-registered built-ins.
	SourceBuiltin = "builtin"

	// DatetimeLayout is the format produced by the datetime built-in.
	DatetimeLayout = "2006-01-02 15:04:05"
)

var builtins = []string{BuiltinUUID, BuiltinULID, BuiltinDatetime, BuiltinTimestamp}

// Resolver produces a raw value for a generator name.
type Resolver interface {
	Resolve(name string) (string, error)
}

// Generator is a registered value spec.
type Generator struct {
	Name   string
	Spec   string
	Source string
}

// Provenance records one registration of a name.
type Provenance struct {
	Spec   string
	Source string
}

// Registry maps generator names to specs. Later registrations of a name
// replace earlier ones; every registration is kept in the name's history.
// A Registry is not safe for concurrent use.
type Registry struct {
	generators map[string]*Generator
	history    map[string][]Provenance
	rng        *rand.Rand
	entropy    io.Reader
	logger     *slog.Logger

	// Now is the clock used by the datetime, timestamp and ulid built-ins.
	Now func() time.Time
}

// New creates a registry with the built-ins pre-registered.
// A nil rng uses a time-seeded source; a nil logger discards.
func New(rng *rand.Rand, logger *slog.Logger) *Registry {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // test data, not secrets
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Registry{
		generators: make(map[string]*Generator),
		history:    make(map[string][]Provenance),
		rng:        rng,
		entropy:    ulid.Monotonic(rng, 0),
		logger:     logger,
		Now:        time.Now,
	}
	for _, name := range builtins {
		_ = r.Register(name, name, SourceBuiltin)
	}
	return r
}

// Rand returns the registry's random source, shared with the pipeline so a
// single seed drives a whole run.
func (r *Registry) Rand() *rand.Rand {
	return r.rng
}

// Register adds or replaces a generator.
func (r *Registry) Register(name, spec, source string) error {
	if strings.TrimSpace(name) == "" {
		return core.Errorf(core.KindInvalidGenerator, "generator name is empty (source %s)", source)
	}
	if prev, ok := r.generators[name]; ok && prev.Source != SourceBuiltin {
		r.logger.Debug("generator overridden", "name", name, "previous_source", prev.Source, "source", source)
	}
	r.generators[name] = &Generator{Name: name, Spec: spec, Source: source}
	r.history[name] = append(r.history[name], Provenance{Spec: spec, Source: source})
	return nil
}

// Lookup returns the current definition of name.
func (r *Registry) Lookup(name string) (*Generator, bool) {
	g, ok := r.generators[name]
	return g, ok
}

// Provenance returns every registration of name, oldest first.
func (r *Registry) Provenance(name string) []Provenance {
	h := r.history[name]
	out := make([]Provenance, len(h))
	copy(out, h)
	return out
}

// Names returns all registered names (sorted).
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the fixed values of a list generator. A plain literal spec is
// a list of one. Built-ins and ranges have no fixed list.
func (r *Registry) List(name string) ([]string, bool) {
	g, ok := r.generators[name]
	if !ok || isBuiltin(g.Spec) {
		return nil, false
	}
	if items, ok := splitList(g.Spec); ok {
		return items, true
	}
	if _, _, ok := parseRange(g.Spec); ok {
		return nil, false
	}
	return []string{g.Spec}, true
}

// Resolve produces a raw value for name.
func (r *Registry) Resolve(name string) (string, error) {
	g, ok := r.generators[name]
	if !ok {
		return "", core.Errorf(core.KindUnknownGenerator, "generator %q is not registered", name)
	}

	switch g.Spec {
	case BuiltinUUID:
		id, err := uuid.NewRandomFromReader(r.rng)
		if err != nil {
			return "", &core.Error{Kind: core.KindInvalidGenerator, Msg: "uuid", Err: err}
		}
		return id.String(), nil
	case BuiltinULID:
		id, err := ulid.New(ulid.Timestamp(r.Now()), r.entropy)
		if err != nil {
			return "", &core.Error{Kind: core.KindInvalidGenerator, Msg: "ulid", Err: err}
		}
		return id.String(), nil
	case BuiltinDatetime:
		return r.Now().Format(DatetimeLayout), nil
	case BuiltinTimestamp:
		return strconv.FormatInt(r.Now().UnixMilli(), 10), nil
	}

	if items, ok := splitList(g.Spec); ok {
		return items[r.rng.Intn(len(items))], nil
	}

	if lo, hi, ok := parseRange(g.Spec); ok {
		if hi <= lo {
			return "", core.Errorf(core.KindInvalidGenerator, "generator %q: empty range %q", name, g.Spec)
		}
		return strconv.FormatInt(lo+r.rng.Int63n(hi-lo), 10), nil
	}

	return g.Spec, nil
}

func isBuiltin(spec string) bool {
	for _, b := range builtins {
		if spec == b {
			return true
		}
	}
	return false
}

func splitList(spec string) ([]string, bool) {
	if !strings.Contains(spec, ";") {
		return nil, false
	}
	parts := strings.Split(spec, ";")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		items = append(items, strings.TrimSpace(p))
	}
	return items, true
}

func parseRange(spec string) (lo, hi int64, ok bool) {
	left, right, found := strings.Cut(spec, ">")
	if !found {
		return 0, 0, false
	}
	lo, err := strconv.ParseInt(strings.TrimSpace(left), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	hi, err = strconv.ParseInt(strings.TrimSpace(right), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

// Overlay shadows registry names with fixed values, such as the current
// iteration values of a stream.
type Overlay struct {
	Base   Resolver
	Values map[string]string
}

// Resolve returns the overlay value for name, falling back to Base.
func (o *Overlay) Resolve(name string) (string, error) {
	if v, ok := o.Values[name]; ok {
		return v, nil
	}
	return o.Base.Resolve(name)
}
