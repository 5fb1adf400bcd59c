package stream

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/leapseed/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, specs []core.LoopSpec, keys ...string) [][]string {
	t.Helper()
	var out [][]string
	head, err := Compile(specs, func(ctx Context) error {
		row := make([]string, 0, len(keys))
		for _, k := range keys {
			row = append(row, ctx[k])
		}
		out = append(out, row)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, head.Run(Context{}))
	assert.Equal(t, StateComplete, head.State())
	return out
}

func flat(rows [][]string) []string {
	var out []string
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

func TestNumberLoop_InclusiveMax(t *testing.T) {
	rows := collect(t, []core.LoopSpec{{Name: "i", Min: "0", Max: "3", Increment: "1"}}, "i")
	assert.Equal(t, []string{"0", "1", "2", "3"}, flat(rows))
}

func TestNumberLoop(t *testing.T) {
	tests := []struct {
		name string
		spec core.LoopSpec
		want []string
	}{
		{name: "default increment", spec: core.LoopSpec{Name: "i", Min: "1", Max: "3"}, want: []string{"1", "2", "3"}},
		{name: "decrementing starts at max", spec: core.LoopSpec{Name: "i", Min: "0", Max: "6", Increment: "-2"}, want: []string{"6", "4", "2", "0"}},
		{name: "fractional", spec: core.LoopSpec{Name: "i", Min: "0", Max: "1", Increment: "0.25"}, want: []string{"0", "0.25", "0.5", "0.75", "1"}},
		{
			name: "tenths reach max",
			spec: core.LoopSpec{Name: "i", Min: "0", Max: "1", Increment: "0.1"},
			want: []string{"0", "0.1", "0.2", "0.3", "0.4", "0.5", "0.6", "0.7", "0.8", "0.9", "1"},
		},
		{
			name: "decrementing tenths",
			spec: core.LoopSpec{Name: "i", Min: "0.7", Max: "1", Increment: "-0.1"},
			want: []string{"1", "0.9", "0.8", "0.7"},
		},
		{
			name: "precision from bounds",
			spec: core.LoopSpec{Name: "i", Min: "0.05", Max: "0.35", Increment: "0.1"},
			want: []string{"0.05", "0.15", "0.25", "0.35"},
		},
		{name: "step past max", spec: core.LoopSpec{Name: "i", Min: "0", Max: "5", Increment: "2"}, want: []string{"0", "2", "4"}},
		{name: "empty when min above max", spec: core.LoopSpec{Name: "i", Min: "5", Max: "1"}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, flat(collect(t, []core.LoopSpec{tt.spec}, "i")))
		})
	}
}

func TestNumberLoop_LongFractionalRun(t *testing.T) {
	got := flat(collect(t, []core.LoopSpec{{Name: "i", Min: "0", Max: "100", Increment: "0.01"}}, "i"))
	require.Len(t, got, 10001)
	assert.Equal(t, "33.33", got[3333])
	assert.Equal(t, "100", got[len(got)-1])
}

func TestDateLoop(t *testing.T) {
	tests := []struct {
		name string
		spec core.LoopSpec
		want []string
	}{
		{
			name: "days",
			spec: core.LoopSpec{Name: "day", Type: core.LoopDate, Min: "2024-01-30", Max: "2024-02-02"},
			want: []string{"2024-01-30", "2024-01-31", "2024-02-01", "2024-02-02"},
		},
		{
			name: "hours with format",
			spec: core.LoopSpec{Name: "day", Type: core.LoopDate, Min: "2024-01-01 22:00:00", Max: "2024-01-02 01:00:00", Increment: "90m", Format: "15:04"},
			want: []string{"22:00", "23:30", "01:00"},
		},
		{
			name: "backwards by week",
			spec: core.LoopSpec{Name: "day", Type: core.LoopDate, Min: "2024-01-01", Max: "2024-01-15", Increment: "-7d"},
			want: []string{"2024-01-15", "2024-01-08", "2024-01-01"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, flat(collect(t, []core.LoopSpec{tt.spec}, "day")))
		})
	}
}

func TestNestedLoops(t *testing.T) {
	specs := []core.LoopSpec{
		{Name: "day", Values: []string{"mon", "tue"}},
		{Name: "hour", Min: "8", Max: "10", Increment: "1"},
	}
	rows := collect(t, specs, "day", "hour")
	assert.Equal(t, [][]string{
		{"mon", "8"}, {"mon", "9"}, {"mon", "10"},
		{"tue", "8"}, {"tue", "9"}, {"tue", "10"},
	}, rows)
}

func TestNestedLoops_EmitOnOuterLevel(t *testing.T) {
	specs := []core.LoopSpec{
		{Name: "day", Values: []string{"mon", "tue"}, Emit: true},
		{Name: "hour", Values: []string{"8", "9"}},
	}
	rows := collect(t, specs, "day")
	assert.Equal(t, [][]string{{"mon"}, {"tue"}}, rows)
}

func TestLoop_CallbackErrorStops(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	head, err := Compile([]core.LoopSpec{{Name: "i", Min: "0", Max: "9"}}, func(Context) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, head.Run(Context{}), boom)
	assert.Equal(t, 2, calls)
	assert.Equal(t, StateEmit, head.State())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		specs []core.LoopSpec
	}{
		{name: "no loops", specs: nil},
		{name: "no name", specs: []core.LoopSpec{{Min: "0", Max: "1"}}},
		{name: "zero increment", specs: []core.LoopSpec{{Name: "i", Min: "0", Max: "1", Increment: "0"}}},
		{name: "bad min", specs: []core.LoopSpec{{Name: "i", Min: "x", Max: "1"}}},
		{name: "bad date", specs: []core.LoopSpec{{Name: "d", Type: core.LoopDate, Min: "yesterday", Max: "2024-01-01"}}},
		{name: "bad date step", specs: []core.LoopSpec{{Name: "d", Type: core.LoopDate, Min: "2024-01-01", Max: "2024-01-02", Increment: "soon"}}},
		{name: "zero date step", specs: []core.LoopSpec{{Name: "d", Type: core.LoopDate, Min: "2024-01-01", Max: "2024-01-02", Increment: "0d"}}},
		{name: "empty list", specs: []core.LoopSpec{{Name: "l", Type: core.LoopList}}},
		{name: "unknown type", specs: []core.LoopSpec{{Name: "l", Type: "weekly"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.specs, nil)
			require.Error(t, err)
			assert.Equal(t, core.KindInvalidRange, core.KindOf(err))
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "init", StateInit.String())
	assert.Equal(t, "complete", StateComplete.String())
	assert.Equal(t, "unknown", State(42).String())
}
