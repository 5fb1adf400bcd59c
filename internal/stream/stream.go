// Package stream implements nested for-loops over numeric, date and list
// ranges. Each step writes the loop value into a shared context and hands it
// to an output callback and the nested loop.
package stream

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapseed/pkg/core"
)

// State is the position of a loop in its lifecycle.
type State int

// Loop states.
const (
	StateInit State = iota
	StateEmit
	StateAdvance
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateEmit:
		return "emit"
	case StateAdvance:
		return "advance"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Context holds the current value of every enclosing loop by name.
type Context map[string]string

// Clone returns a copy of c.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Loop is one level of a nested loop chain.
type Loop struct {
	Name   string
	Range  Range
	Output func(Context) error
	Next   *Loop

	state  State
	cursor cursor
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return l.state
}

// Run iterates the loop to completion, writing values into ctx.
func (l *Loop) Run(ctx Context) error {
	l.state = StateInit
	l.cursor = l.Range.start()

	for {
		if l.cursor.done() {
			l.state = StateComplete
			return nil
		}

		l.state = StateEmit
		ctx[l.Name] = l.cursor.value()
		if l.Output != nil {
			if err := l.Output(ctx); err != nil {
				return err
			}
		}
		if l.Next != nil {
			if err := l.Next.Run(ctx); err != nil {
				return err
			}
		}

		l.state = StateAdvance
		l.cursor.advance()
	}
}

// Range produces the sequence of values of one loop.
type Range interface {
	start() cursor
}

type cursor interface {
	done() bool
	value() string
	advance()
}

// NumberRange steps from Min to Max inclusive. A negative Step starts at Max.
// Values are computed from the iteration count, not accumulated, and Places
// > 0 rounds them to that many decimals.
type NumberRange struct {
	Min, Max, Step float64
	Places         int
}

func (r NumberRange) start() cursor {
	base := r.Min
	if r.Step < 0 {
		base = r.Max
	}
	return &numberCursor{r: r, base: base}
}

type numberCursor struct {
	r    NumberRange
	base float64
	i    int
}

func (c *numberCursor) cur() float64 {
	v := c.base + float64(c.i)*c.r.Step
	if c.r.Places > 0 {
		scale := math.Pow10(c.r.Places)
		v = math.Round(v*scale) / scale
	}
	return v
}

func (c *numberCursor) done() bool {
	if c.r.Step < 0 {
		return c.cur() < c.r.Min
	}
	return c.cur() > c.r.Max
}

func (c *numberCursor) value() string {
	v := c.cur()
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c *numberCursor) advance() {
	c.i++
}

// DateRange steps from Min to Max inclusive by Days plus Step.
// A negative step starts at Max.
type DateRange struct {
	Min, Max time.Time
	Days     int
	Step     time.Duration
	Format   string
}

func (r DateRange) backwards() bool {
	return r.Days < 0 || (r.Days == 0 && r.Step < 0)
}

func (r DateRange) start() cursor {
	c := &dateCursor{r: r, cur: r.Min}
	if r.backwards() {
		c.cur = r.Max
	}
	return c
}

type dateCursor struct {
	r   DateRange
	cur time.Time
}

func (c *dateCursor) done() bool {
	if c.r.backwards() {
		return c.cur.Before(c.r.Min)
	}
	return c.cur.After(c.r.Max)
}

func (c *dateCursor) value() string {
	return c.cur.Format(c.r.Format)
}

func (c *dateCursor) advance() {
	c.cur = c.cur.AddDate(0, 0, c.r.Days).Add(c.r.Step)
}

// ListRange iterates fixed values in order.
type ListRange struct {
	Values []string
}

func (r ListRange) start() cursor {
	return &listCursor{values: r.Values}
}

type listCursor struct {
	values []string
	i      int
}

func (c *listCursor) done() bool    { return c.i >= len(c.values) }
func (c *listCursor) value() string { return c.values[c.i] }
func (c *listCursor) advance()      { c.i++ }

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

// Compile builds a loop chain from specs, outermost first. emit is attached
// to every level marked Emit, or to the innermost level when none is.
func Compile(specs []core.LoopSpec, emit func(Context) error) (*Loop, error) {
	if len(specs) == 0 {
		return nil, core.Errorf(core.KindInvalidRange, "stream has no loops")
	}

	anyEmit := false
	for _, s := range specs {
		anyEmit = anyEmit || s.Emit
	}

	var head, prev *Loop
	for i, s := range specs {
		r, err := compileRange(s)
		if err != nil {
			return nil, err
		}
		l := &Loop{Name: s.Name, Range: r}
		if s.Emit || (!anyEmit && i == len(specs)-1) {
			l.Output = emit
		}
		if prev == nil {
			head = l
		} else {
			prev.Next = l
		}
		prev = l
	}
	return head, nil
}

func compileRange(s core.LoopSpec) (Range, error) {
	if s.Name == "" {
		return nil, core.Errorf(core.KindInvalidRange, "loop has no name")
	}
	kind := s.Type
	if kind == "" {
		kind = core.LoopNumber
		if len(s.Values) > 0 {
			kind = core.LoopList
		}
	}

	switch kind {
	case core.LoopList:
		if len(s.Values) == 0 {
			return nil, rangeErr(s, "list loop has no values")
		}
		return ListRange{Values: append([]string(nil), s.Values...)}, nil

	case core.LoopNumber:
		lo, err := strconv.ParseFloat(strings.TrimSpace(s.Min), 64)
		if err != nil {
			return nil, rangeErr(s, fmt.Sprintf("min %q is not a number", s.Min))
		}
		hi, err := strconv.ParseFloat(strings.TrimSpace(s.Max), 64)
		if err != nil {
			return nil, rangeErr(s, fmt.Sprintf("max %q is not a number", s.Max))
		}
		step := 1.0
		if s.Increment != "" {
			step, err = strconv.ParseFloat(strings.TrimSpace(s.Increment), 64)
			if err != nil {
				return nil, rangeErr(s, fmt.Sprintf("increment %q is not a number", s.Increment))
			}
		}
		if step == 0 {
			return nil, rangeErr(s, "increment is zero")
		}
		places := max(decimals(s.Min), decimals(s.Max), decimals(s.Increment))
		return NumberRange{Min: lo, Max: hi, Step: step, Places: places}, nil

	case core.LoopDate:
		lo, layout, err := parseDate(s.Min)
		if err != nil {
			return nil, rangeErr(s, fmt.Sprintf("min %q is not a date", s.Min))
		}
		hi, _, err := parseDate(s.Max)
		if err != nil {
			return nil, rangeErr(s, fmt.Sprintf("max %q is not a date", s.Max))
		}
		days, step, err := parseStep(s.Increment)
		if err != nil {
			return nil, rangeErr(s, err.Error())
		}
		format := s.Format
		if format == "" {
			format = layout
		}
		return DateRange{Min: lo, Max: hi, Days: days, Step: step, Format: format}, nil

	default:
		return nil, rangeErr(s, fmt.Sprintf("unknown loop type %q", kind))
	}
}

func parseDate(s string) (time.Time, string, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, layout, nil
		}
		lastErr = err
	}
	return time.Time{}, "", lastErr
}

// parseStep accepts "Nd" for whole days or any time.ParseDuration string.
// An empty step is one day.
func parseStep(s string) (int, time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1, 0, nil
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err == nil {
			if n == 0 {
				return 0, 0, fmt.Errorf("increment %q is zero", s)
			}
			return n, 0, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, 0, fmt.Errorf("increment %q is not a duration", s)
	}
	if d == 0 {
		return 0, 0, fmt.Errorf("increment %q is zero", s)
	}
	return 0, d, nil
}

// decimals counts the digits after the decimal point of a plain number.
// Exponent notation counts as zero.
func decimals(s string) int {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "eE") {
		return 0
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

func rangeErr(s core.LoopSpec, msg string) error {
	return &core.Error{Kind: core.KindInvalidRange, Field: s.Name, Msg: msg}
}
