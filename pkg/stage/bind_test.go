package stage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-martian/pkg/mro/model"
	"github.com/askiada/go-martian/pkg/stage"
)

const flagStage = `
stage FLAGS(
    in  bool       dry,
    in  path       ref,
    in  int[]      lanes,
    in  string[][] groups,
    in  map        opts,
    out int        count,
    src py         "flags",
) split using (
    in  float      frac,
)
`

func TestBindFlagsMain(t *testing.T) {
	t.Parallel()

	st := mustStage(t, "/mro", flagStage)
	bindings, err := stage.BindFlags(st, model.PhaseMain, map[string][]string{
		"dry":    {"Yes"},
		"ref":    {`"/refs/hg19"`},
		"lanes":  {"1", "2", "3"},
		"groups": {`["a","b"]`, `["c"]`},
		"opts":   {`{"k": 1}`},
		"frac":   {"0.25"},
	})
	require.NoError(t, err)

	assert.Equal(t, stage.Bindings{
		"dry":    true,
		"ref":    "/refs/hg19",
		"lanes":  []any{int64(1), int64(2), int64(3)},
		"groups": []any{[]any{"a", "b"}, []any{"c"}},
		"opts":   map[string]any{"k": float64(1)},
		"frac":   0.25,
	}, bindings)
}

func TestBindFlagsArrayForms(t *testing.T) {
	t.Parallel()

	st := mustStage(t, "/mro", flagStage)

	tcs := map[string]struct {
		values []string
		want   any
	}{
		"json array":     {values: []string{"[4, 5]"}, want: []any{int64(4), int64(5)}},
		"single element": {values: []string{"7"}, want: []any{int64(7)}},
		"null":           {values: []string{"null"}, want: nil},
		"empty":          {values: []string{}, want: []any{}},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			bindings, err := stage.BindFlags(st, model.PhaseSplit, map[string][]string{"lanes": tc.values})
			require.NoError(t, err)
			assert.Equal(t, tc.want, bindings["lanes"])
		})
	}
}

func TestBindFlagsNestedArray(t *testing.T) {
	t.Parallel()

	st := mustStage(t, "/mro", flagStage)

	tcs := map[string]struct {
		values []string
		want   any
	}{
		"whole value":    {values: []string{`[["a"], ["b", "c"]]`}, want: []any{[]any{"a"}, []any{"b", "c"}}},
		"single element": {values: []string{`["a", "b"]`}, want: []any{[]any{"a", "b"}}},
		"one per flag":   {values: []string{`["a"]`, `["b"]`}, want: []any{[]any{"a"}, []any{"b"}}},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			bindings, err := stage.BindFlags(st, model.PhaseMain, map[string][]string{"groups": tc.values})
			require.NoError(t, err)
			assert.Equal(t, tc.want, bindings["groups"])
		})
	}
}

func TestBindFlagsJoinPerChunk(t *testing.T) {
	t.Parallel()

	st := mustStage(t, "/mro", flagStage)
	bindings, err := stage.BindFlags(st, model.PhaseJoin, map[string][]string{
		"in.dry":     {"no"},
		"split.frac": {"0.5", "0.5"},
		"out.count":  {"3", "null"},
	})
	require.NoError(t, err)

	assert.Equal(t, false, bindings["in.dry"])
	assert.Equal(t, []any{0.5, 0.5}, bindings["split.frac"])
	assert.Equal(t, []any{int64(3), nil}, bindings["out.count"])
	assert.NotContains(t, bindings, "in.lanes")
}

func TestBindFlagsErrors(t *testing.T) {
	t.Parallel()

	st := mustStage(t, "/mro", flagStage)

	tcs := map[string]struct {
		phase  model.Phase
		values map[string][]string
		field  string
		err    error
	}{
		"bad bool": {
			phase: model.PhaseMain, values: map[string][]string{"dry": {"maybe"}}, field: "dry", err: model.ErrInvalidValue,
		},
		"repeated scalar": {
			phase: model.PhaseMain, values: map[string][]string{"frac": {"1", "2"}}, field: "frac", err: model.ErrInvalidValue,
		},
		"bad element": {
			phase: model.PhaseMain, values: map[string][]string{"lanes": {"1", "x"}}, field: "lanes", err: model.ErrInvalidValue,
		},
		"bad chunk": {
			phase: model.PhaseJoin, values: map[string][]string{"out.count": {"1", "one"}}, field: "out.count", err: model.ErrInvalidValue,
		},
		"bad map": {
			phase: model.PhaseMain, values: map[string][]string{"opts": {"[1]"}}, field: "opts", err: model.ErrInvalidValue,
		},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := stage.BindFlags(st, tc.phase, tc.values)
			require.ErrorIs(t, err, tc.err)

			var berr *model.BindingError
			require.ErrorAs(t, err, &berr)
			assert.Equal(t, tc.field, berr.Field)
			assert.Contains(t, berr.Error(), tc.field)
		})
	}
}
