package nodes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/internal/paths"
	"github.com/flowgrid/flowgrid/types"
)

// LogicHandler transforms data flowing between nodes: filter, map,
// reduce, condition, transform, passthrough, sort, and slice.
type LogicHandler struct {
	logger *zap.Logger
}

// NewLogicHandler creates the logic handler.
func NewLogicHandler(logger *zap.Logger) *LogicHandler {
	return &LogicHandler{logger: logger.With(zap.String("handler", "logic"))}
}

// arrayKeys is the priority order for locating the working array among a
// node's inputs.
var arrayKeys = []string{"data", "items", "results", "list", "records", "rows", "values", "entries", "response"}

var logicOperations = map[string]bool{
	"filter": true, "map": true, "reduce": true, "condition": true,
	"transform": true, "passthrough": true, "sort": true, "slice": true,
}

// Execute implements Handler.
func (h *LogicHandler) Execute(ctx context.Context, nc *NodeContext) *types.NodeResult {
	operation := configString(nc.Config, "operation")
	if operation == "" {
		operation = "passthrough"
	}

	h.logger.Debug("executing logic node",
		zap.String("node_id", nc.NodeID),
		zap.String("operation", operation),
	)

	switch operation {
	case "passthrough":
		return types.Succeed(nc.Inputs)
	case "filter":
		return h.filter(nc)
	case "condition":
		return h.condition(nc)
	case "map", "transform":
		return h.mapItems(nc, operation)
	case "reduce":
		return h.reduce(nc)
	case "sort":
		return h.sortItems(nc)
	case "slice":
		return h.sliceItems(nc)
	default:
		return types.Fail(fmt.Sprintf("logic node has unknown operation %q; expected one of filter, map, reduce, condition, transform, passthrough, sort, slice", operation))
	}
}

// ValidateConfig implements Handler.
func (h *LogicHandler) ValidateConfig(config map[string]any) *ValidationResult {
	var errs []string
	operation := configString(config, "operation")
	if operation != "" && !logicOperations[operation] {
		errs = append(errs, fmt.Sprintf("unknown operation %q", operation))
	}
	switch operation {
	case "filter", "condition":
		if cond := configString(config, "condition"); cond == "" {
			errs = append(errs, fmt.Sprintf("%s operation requires a condition (e.g. \"item.score > 80\")", operation))
		} else if _, err := parseCondition(cond); err != nil {
			errs = append(errs, err.Error())
		}
	case "map", "transform":
		if configMap(config, "mapping") == nil {
			errs = append(errs, fmt.Sprintf("%s operation requires a mapping of output keys to source paths", operation))
		}
	case "reduce", "sort", "slice":
		if configString(config, "expression") == "" {
			errs = append(errs, fmt.Sprintf("%s operation requires an expression", operation))
		}
	}
	if len(errs) > 0 {
		return invalidConfig(errs...)
	}
	return validConfig()
}

// locateArray finds the working array: well-known keys first, then the
// first array-valued input in key order.
func locateArray(inputs map[string]any) ([]any, bool) {
	for _, key := range arrayKeys {
		if arr, ok := inputs[key].([]any); ok {
			return arr, true
		}
	}
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if arr, ok := inputs[k].([]any); ok {
			return arr, true
		}
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// filter / condition
// ---------------------------------------------------------------------------

func (h *LogicHandler) filter(nc *NodeContext) *types.NodeResult {
	condExpr := configString(nc.Config, "condition")
	if condExpr == "" {
		return types.Fail("filter operation requires a condition (e.g. \"item.score > 80\")")
	}
	cond, err := parseCondition(condExpr)
	if err != nil {
		return types.Fail(err.Error())
	}

	arr, ok := locateArray(nc.Inputs)
	if !ok {
		return types.Fail("filter operation requires an array input; none of the incoming values contained a list")
	}

	filtered := make([]any, 0, len(arr))
	for _, item := range arr {
		if cond.evaluate(itemScope(item)) {
			filtered = append(filtered, item)
		}
	}
	return types.Succeed(map[string]any{"data": filtered, "count": len(filtered)})
}

func (h *LogicHandler) condition(nc *NodeContext) *types.NodeResult {
	condExpr := configString(nc.Config, "condition")
	if condExpr == "" {
		return types.Fail("condition operation requires a condition (e.g. \"status == 'active'\")")
	}
	cond, err := parseCondition(condExpr)
	if err != nil {
		return types.Fail(err.Error())
	}
	return types.Succeed(map[string]any{"result": cond.evaluate(itemScope(nc.Inputs))})
}

// ---------------------------------------------------------------------------
// map / transform
// ---------------------------------------------------------------------------

func (h *LogicHandler) mapItems(nc *NodeContext, operation string) *types.NodeResult {
	mapping := configStringMap(nc.Config, "mapping")
	if len(mapping) == 0 {
		return types.Fail(fmt.Sprintf("%s operation requires a mapping of output keys to source paths", operation))
	}

	arr, ok := locateArray(nc.Inputs)
	if !ok {
		if operation == "transform" {
			// transform without an array reshapes the inputs object itself.
			return types.Succeed(applyMapping(itemScope(nc.Inputs), mapping))
		}
		return types.Fail("map operation requires an array input; none of the incoming values contained a list")
	}

	mapped := make([]any, len(arr))
	for i, item := range arr {
		mapped[i] = applyMapping(itemScope(item), mapping)
	}
	return types.Succeed(map[string]any{"data": mapped, "count": len(mapped)})
}

func applyMapping(scope map[string]any, mapping map[string]string) map[string]any {
	out := make(map[string]any, len(mapping))
	for key, path := range mapping {
		value, _ := paths.GetNestedValue(scope, path)
		out[key] = value
	}
	return out
}

// itemScope exposes both item.<path> and the item's own top-level keys.
func itemScope(item any) map[string]any {
	scope := map[string]any{"item": item}
	if m, ok := item.(map[string]any); ok {
		for k, v := range m {
			scope[k] = v
		}
	}
	return scope
}

// ---------------------------------------------------------------------------
// reduce
// ---------------------------------------------------------------------------

var reduceOps = map[string]bool{
	"sum": true, "count": true, "avg": true, "min": true,
	"max": true, "concat": true, "first": true, "last": true,
}

func (h *LogicHandler) reduce(nc *NodeContext) *types.NodeResult {
	expr := configString(nc.Config, "expression")
	if expr == "" {
		return types.Fail("reduce operation requires an expression (e.g. \"sum:amount\")")
	}
	op, field, _ := strings.Cut(expr, ":")
	op = strings.TrimSpace(op)
	field = strings.TrimSpace(field)
	if !reduceOps[op] {
		return types.Fail(fmt.Sprintf("reduce operation %q is not supported; expected one of sum, count, avg, min, max, concat, first, last", op))
	}

	arr, ok := locateArray(nc.Inputs)
	if !ok {
		return types.Fail("reduce operation requires an array input; none of the incoming values contained a list")
	}

	extract := func(item any) any {
		if field == "" {
			return item
		}
		value, _ := paths.GetNestedValue(itemScope(item), field)
		return value
	}

	switch op {
	case "count":
		return types.Succeed(map[string]any{"result": len(arr)})

	case "first":
		if len(arr) == 0 {
			return types.Succeed(map[string]any{"result": nil})
		}
		return types.Succeed(map[string]any{"result": extract(arr[0])})

	case "last":
		if len(arr) == 0 {
			return types.Succeed(map[string]any{"result": nil})
		}
		return types.Succeed(map[string]any{"result": extract(arr[len(arr)-1])})

	case "concat":
		parts := make([]string, 0, len(arr))
		for _, item := range arr {
			parts = append(parts, paths.Stringify(extract(item)))
		}
		return types.Succeed(map[string]any{"result": strings.Join(parts, ", ")})

	default: // sum, avg, min, max
		var numbers []float64
		for _, item := range arr {
			if n, ok := toNumber(extract(item)); ok {
				numbers = append(numbers, n)
			}
		}
		if len(numbers) == 0 {
			return types.Fail(fmt.Sprintf("reduce %q found no numeric values for field %q", op, field))
		}
		var result float64
		switch op {
		case "sum", "avg":
			for _, n := range numbers {
				result += n
			}
			if op == "avg" {
				result /= float64(len(numbers))
			}
		case "min":
			result = numbers[0]
			for _, n := range numbers[1:] {
				if n < result {
					result = n
				}
			}
		case "max":
			result = numbers[0]
			for _, n := range numbers[1:] {
				if n > result {
					result = n
				}
			}
		}
		return types.Succeed(map[string]any{"result": result})
	}
}

// ---------------------------------------------------------------------------
// sort / slice
// ---------------------------------------------------------------------------

func (h *LogicHandler) sortItems(nc *NodeContext) *types.NodeResult {
	expr := configString(nc.Config, "expression")
	if expr == "" {
		return types.Fail("sort operation requires an expression (e.g. \"desc:score\")")
	}
	direction, field, _ := strings.Cut(expr, ":")
	direction = strings.ToLower(strings.TrimSpace(direction))
	field = strings.TrimSpace(field)
	if direction != "asc" && direction != "desc" {
		return types.Fail(fmt.Sprintf("sort direction %q is not supported; expected asc or desc", direction))
	}

	arr, ok := locateArray(nc.Inputs)
	if !ok {
		return types.Fail("sort operation requires an array input; none of the incoming values contained a list")
	}

	sorted := make([]any, len(arr))
	copy(sorted, arr)

	keyOf := func(item any) any {
		if field == "" {
			return item
		}
		value, _ := paths.GetNestedValue(itemScope(item), field)
		return value
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		cmp := compareValues(keyOf(sorted[i]), keyOf(sorted[j]))
		if direction == "desc" {
			return cmp > 0
		}
		return cmp < 0
	})

	return types.Succeed(map[string]any{"data": sorted, "count": len(sorted)})
}

// compareValues orders numerically when both sides coerce to numbers,
// lexicographically otherwise.
func compareValues(a, b any) int {
	na, aok := toNumber(a)
	nb, bok := toNumber(b)
	if aok && bok {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(paths.Stringify(a), paths.Stringify(b))
}

func (h *LogicHandler) sliceItems(nc *NodeContext) *types.NodeResult {
	expr := configString(nc.Config, "expression")
	if expr == "" {
		return types.Fail("slice operation requires an expression (e.g. \"0:10\")")
	}

	startText, endText, hasEnd := strings.Cut(expr, ":")
	start, err := strconv.Atoi(strings.TrimSpace(startText))
	if err != nil {
		return types.Fail(fmt.Sprintf("slice start %q is not a number", startText))
	}
	end := -1
	if hasEnd && strings.TrimSpace(endText) != "" {
		end, err = strconv.Atoi(strings.TrimSpace(endText))
		if err != nil {
			return types.Fail(fmt.Sprintf("slice end %q is not a number", endText))
		}
	}

	arr, ok := locateArray(nc.Inputs)
	if !ok {
		return types.Fail("slice operation requires an array input; none of the incoming values contained a list")
	}

	if start < 0 {
		start = 0
	}
	if start > len(arr) {
		start = len(arr)
	}
	if end < 0 || end > len(arr) {
		end = len(arr)
	}
	if end < start {
		end = start
	}

	sliced := arr[start:end]
	return types.Succeed(map[string]any{"data": sliced, "count": len(sliced)})
}

// ---------------------------------------------------------------------------
// condition grammar
// ---------------------------------------------------------------------------

// condOperators is ordered longest-first so that parsing never splits
// ">=" into ">" + "=".
var condOperators = []string{
	"===", "!==", "==", "!=", ">=", "<=", ">", "<",
	"contains", "startsWith", "endsWith", "exists", "empty",
}

type condition struct {
	left  string
	op    string
	right string
}

// parseCondition splits "<leftPath> <op> <rightLiteralOrPath>". The unary
// operators exists and empty take no right-hand side.
func parseCondition(expr string) (*condition, error) {
	trimmed := strings.TrimSpace(expr)
	for _, op := range condOperators {
		idx := strings.Index(trimmed, " "+op)
		if idx < 0 {
			continue
		}
		left := strings.TrimSpace(trimmed[:idx])
		rest := strings.TrimSpace(trimmed[idx+len(op)+1:])
		if left == "" {
			return nil, fmt.Errorf("condition %q has no left-hand path", expr)
		}
		if op != "exists" && op != "empty" && rest == "" {
			return nil, fmt.Errorf("condition %q has no right-hand value for operator %q", expr, op)
		}
		return &condition{left: left, op: op, right: rest}, nil
	}
	return nil, fmt.Errorf("condition %q has no recognized operator", expr)
}

func (c *condition) evaluate(scope map[string]any) bool {
	left, leftOK := paths.GetNestedValue(scope, c.left)

	switch c.op {
	case "exists":
		return leftOK && left != nil
	case "empty":
		return isEmpty(left)
	}

	right := c.resolveRight(scope)

	switch c.op {
	case "==", "===":
		return valuesEqual(left, right, c.op == "===")
	case "!=", "!==":
		return !valuesEqual(left, right, c.op == "!==")
	case ">", ">=", "<", "<=":
		ln, lok := toNumber(left)
		rn, rok := toNumber(right)
		if !lok || !rok {
			return false
		}
		switch c.op {
		case ">":
			return ln > rn
		case ">=":
			return ln >= rn
		case "<":
			return ln < rn
		default:
			return ln <= rn
		}
	case "contains":
		return strings.Contains(paths.Stringify(left), paths.Stringify(right))
	case "startsWith":
		return strings.HasPrefix(paths.Stringify(left), paths.Stringify(right))
	case "endsWith":
		return strings.HasSuffix(paths.Stringify(left), paths.Stringify(right))
	}
	return false
}

// resolveRight interprets the right-hand side: a quoted token is a string
// literal, everything else resolves as a path first and falls back to the
// literal text.
func (c *condition) resolveRight(scope map[string]any) any {
	r := c.right
	if len(r) >= 2 {
		if (r[0] == '\'' && r[len(r)-1] == '\'') || (r[0] == '"' && r[len(r)-1] == '"') {
			return r[1 : len(r)-1]
		}
	}
	if value, ok := paths.GetNestedValue(scope, r); ok {
		return value
	}
	if n, err := strconv.ParseFloat(r, 64); err == nil {
		return n
	}
	if r == "true" {
		return true
	}
	if r == "false" {
		return false
	}
	return r
}

func valuesEqual(left, right any, strict bool) bool {
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if lok && rok {
		if strict {
			// Strict equality additionally requires both sides to share a
			// kind: number-vs-numeric-string must not match.
			if isNumericString(left) != isNumericString(right) {
				return false
			}
		}
		return ln == rn
	}
	return paths.Stringify(left) == paths.Stringify(right)
}

func isNumericString(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func isEmpty(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case []any:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	default:
		return false
	}
}

func toNumber(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return n, err == nil
	case bool:
		if value {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
