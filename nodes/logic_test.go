package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func runLogic(t *testing.T, config map[string]any, inputs map[string]any) map[string]any {
	t.Helper()
	result := NewLogicHandler(zap.NewNop()).Execute(context.Background(), &NodeContext{
		NodeID: "logic",
		Inputs: inputs,
		Config: config,
	})
	require.True(t, result.Success, "error: %s", result.Error)
	return result.Output
}

func failLogic(t *testing.T, config map[string]any, inputs map[string]any) string {
	t.Helper()
	result := NewLogicHandler(zap.NewNop()).Execute(context.Background(), &NodeContext{
		NodeID: "logic",
		Inputs: inputs,
		Config: config,
	})
	require.False(t, result.Success)
	return result.Error
}

// ---------------------------------------------------------------------------
// filter
// ---------------------------------------------------------------------------

func TestLogic_FilterByItemPath(t *testing.T) {
	t.Parallel()

	out := runLogic(t,
		map[string]any{"operation": "filter", "condition": "item.score > 80"},
		map[string]any{"data": []any{
			map[string]any{"score": float64(90)},
			map[string]any{"score": float64(10)},
		}},
	)

	assert.Equal(t, 1, out["count"])
	require.Len(t, out["data"], 1)
	assert.Equal(t, map[string]any{"score": float64(90)}, out["data"].([]any)[0])
}

func TestLogic_FilterStringEquality(t *testing.T) {
	t.Parallel()

	out := runLogic(t,
		map[string]any{"operation": "filter", "condition": "status == 'active'"},
		map[string]any{"items": []any{
			map[string]any{"status": "active"},
			map[string]any{"status": "archived"},
			map[string]any{"status": "active"},
		}},
	)
	assert.Equal(t, 2, out["count"])
}

func TestLogic_FilterWithoutArrayFails(t *testing.T) {
	t.Parallel()

	msg := failLogic(t,
		map[string]any{"operation": "filter", "condition": "item.x > 1"},
		map[string]any{"data": "not a list"},
	)
	assert.Contains(t, msg, "array")
}

// ---------------------------------------------------------------------------
// condition
// ---------------------------------------------------------------------------

func TestLogic_ConditionOperators(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		condition string
		inputs    map[string]any
		want      bool
	}{
		{"numeric gt", "count > 3", map[string]any{"count": float64(5)}, true},
		{"numeric lte", "count <= 3", map[string]any{"count": float64(5)}, false},
		{"loose equality coerces", "count == 5", map[string]any{"count": "5"}, true},
		{"strict equality does not", "count === 5", map[string]any{"count": "5"}, false},
		{"not equal", "status != 'done'", map[string]any{"status": "open"}, true},
		{"contains", "title contains 'go'", map[string]any{"title": "idiomatic go code"}, true},
		{"startsWith", "name startsWith 'fl'", map[string]any{"name": "flowgrid"}, true},
		{"endsWith", "name endsWith 'grid'", map[string]any{"name": "flowgrid"}, true},
		{"exists hit", "user.email exists", map[string]any{"user": map[string]any{"email": "a@b.c"}}, true},
		{"exists miss", "user.phone exists", map[string]any{"user": map[string]any{}}, false},
		{"empty string", "note empty", map[string]any{"note": ""}, true},
		{"empty list", "tags empty", map[string]any{"tags": []any{}}, true},
		{"nonempty list", "tags empty", map[string]any{"tags": []any{"x"}}, false},
		{"path vs path", "a > b", map[string]any{"a": float64(2), "b": float64(1)}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := runLogic(t,
				map[string]any{"operation": "condition", "condition": tc.condition},
				tc.inputs,
			)
			assert.Equal(t, tc.want, out["result"], "condition: %s", tc.condition)
		})
	}
}

func TestLogic_UnparseableConditionFails(t *testing.T) {
	t.Parallel()

	msg := failLogic(t,
		map[string]any{"operation": "condition", "condition": "no operator here"},
		map[string]any{"x": 1},
	)
	assert.Contains(t, msg, "operator")
}

// ---------------------------------------------------------------------------
// map / transform
// ---------------------------------------------------------------------------

func TestLogic_MapProjectsEachItem(t *testing.T) {
	t.Parallel()

	out := runLogic(t,
		map[string]any{
			"operation": "map",
			"mapping":   map[string]any{"who": "user.name", "raw": "item"},
		},
		map[string]any{"results": []any{
			map[string]any{"user": map[string]any{"name": "ada"}},
		}},
	)

	require.Equal(t, 1, out["count"])
	first := out["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "ada", first["who"])
	assert.NotNil(t, first["raw"])
}

func TestLogic_TransformWithoutArrayReshapesObject(t *testing.T) {
	t.Parallel()

	out := runLogic(t,
		map[string]any{
			"operation": "transform",
			"mapping":   map[string]any{"city": "address.city"},
		},
		map[string]any{"address": map[string]any{"city": "lisbon"}},
	)
	assert.Equal(t, map[string]any{"city": "lisbon"}, out)
}

// ---------------------------------------------------------------------------
// reduce
// ---------------------------------------------------------------------------

func TestLogic_ReduceSumOverField(t *testing.T) {
	t.Parallel()

	out := runLogic(t,
		map[string]any{"operation": "reduce", "expression": "sum:amount"},
		map[string]any{"items": []any{
			map[string]any{"amount": float64(3)},
			map[string]any{"amount": float64(4)},
		}},
	)
	assert.Equal(t, float64(7), out["result"])
}

func TestLogic_ReduceOps(t *testing.T) {
	t.Parallel()

	items := map[string]any{"data": []any{float64(3), float64(1), float64(2)}}

	assert.Equal(t, 3, runLogic(t, map[string]any{"operation": "reduce", "expression": "count"}, items)["result"])
	assert.Equal(t, float64(2), runLogic(t, map[string]any{"operation": "reduce", "expression": "avg"}, items)["result"])
	assert.Equal(t, float64(1), runLogic(t, map[string]any{"operation": "reduce", "expression": "min"}, items)["result"])
	assert.Equal(t, float64(3), runLogic(t, map[string]any{"operation": "reduce", "expression": "max"}, items)["result"])
	assert.Equal(t, float64(3), runLogic(t, map[string]any{"operation": "reduce", "expression": "first"}, items)["result"])
	assert.Equal(t, float64(2), runLogic(t, map[string]any{"operation": "reduce", "expression": "last"}, items)["result"])
	assert.Equal(t, "3, 1, 2", runLogic(t, map[string]any{"operation": "reduce", "expression": "concat"}, items)["result"])
}

func TestLogic_ReduceNoNumericValuesFails(t *testing.T) {
	t.Parallel()

	msg := failLogic(t,
		map[string]any{"operation": "reduce", "expression": "sum:amount"},
		map[string]any{"data": []any{map[string]any{"amount": "n/a"}}},
	)
	assert.Contains(t, msg, "no numeric values")
}

// ---------------------------------------------------------------------------
// sort / slice / passthrough
// ---------------------------------------------------------------------------

func TestLogic_SortDescByField(t *testing.T) {
	t.Parallel()

	out := runLogic(t,
		map[string]any{"operation": "sort", "expression": "desc:score"},
		map[string]any{"data": []any{
			map[string]any{"score": float64(10)},
			map[string]any{"score": float64(90)},
			map[string]any{"score": float64(50)},
		}},
	)

	data := out["data"].([]any)
	assert.Equal(t, float64(90), data[0].(map[string]any)["score"])
	assert.Equal(t, float64(10), data[2].(map[string]any)["score"])
}

func TestLogic_SortDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	original := []any{float64(2), float64(1)}
	_ = runLogic(t,
		map[string]any{"operation": "sort", "expression": "asc"},
		map[string]any{"data": original},
	)
	assert.Equal(t, []any{float64(2), float64(1)}, original)
}

func TestLogic_SliceClampsBounds(t *testing.T) {
	t.Parallel()

	inputs := map[string]any{"data": []any{1, 2, 3, 4, 5}}

	out := runLogic(t, map[string]any{"operation": "slice", "expression": "1:3"}, inputs)
	assert.Equal(t, []any{2, 3}, out["data"])

	out = runLogic(t, map[string]any{"operation": "slice", "expression": "3:99"}, inputs)
	assert.Equal(t, 2, out["count"])

	out = runLogic(t, map[string]any{"operation": "slice", "expression": "4:2"}, inputs)
	assert.Equal(t, 0, out["count"])
}

func TestLogic_DefaultOperationIsPassthrough(t *testing.T) {
	t.Parallel()

	in := map[string]any{"x": 1}
	out := runLogic(t, nil, in)
	assert.Equal(t, in, out)
}

func TestLogic_LocateArrayPrefersWellKnownKeys(t *testing.T) {
	t.Parallel()

	arr, ok := locateArray(map[string]any{
		"aaa":  []any{1},
		"data": []any{2},
	})
	require.True(t, ok)
	assert.Equal(t, []any{2}, arr)

	arr, ok = locateArray(map[string]any{"zeta": []any{3}, "alpha": "x"})
	require.True(t, ok)
	assert.Equal(t, []any{3}, arr)

	_, ok = locateArray(map[string]any{"alpha": "x"})
	assert.False(t, ok)
}

func TestLogic_ValidateConfig(t *testing.T) {
	t.Parallel()
	h := NewLogicHandler(zap.NewNop())

	assert.True(t, h.ValidateConfig(nil).Valid)
	assert.True(t, h.ValidateConfig(map[string]any{
		"operation": "filter", "condition": "item.x > 1",
	}).Valid)

	assert.False(t, h.ValidateConfig(map[string]any{"operation": "explode"}).Valid)
	assert.False(t, h.ValidateConfig(map[string]any{"operation": "filter"}).Valid)
	assert.False(t, h.ValidateConfig(map[string]any{"operation": "map"}).Valid)
	assert.False(t, h.ValidateConfig(map[string]any{"operation": "reduce"}).Valid)
}
