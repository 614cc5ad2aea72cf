package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// GetNestedValue
// ---------------------------------------------------------------------------

func TestGetNestedValue_SimpleKey(t *testing.T) {
	t.Parallel()
	v, ok := GetNestedValue(map[string]any{"a": 1}, "a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestGetNestedValue_DeepPath(t *testing.T) {
	t.Parallel()
	scope := map[string]any{
		"user": map[string]any{
			"profile": map[string]any{"name": "ada"},
		},
	}
	v, ok := GetNestedValue(scope, "user.profile.name")
	assert.True(t, ok)
	assert.Equal(t, "ada", v)
}

func TestGetNestedValue_MissingKey(t *testing.T) {
	t.Parallel()
	_, ok := GetNestedValue(map[string]any{"a": 1}, "b")
	assert.False(t, ok)
}

func TestGetNestedValue_NonMapIntermediate(t *testing.T) {
	t.Parallel()
	_, ok := GetNestedValue(map[string]any{"a": "scalar"}, "a.b")
	assert.False(t, ok)
}

func TestGetNestedValue_EmptyPath(t *testing.T) {
	t.Parallel()
	_, ok := GetNestedValue(map[string]any{"a": 1}, "")
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// Interpolate
// ---------------------------------------------------------------------------

func TestInterpolate_ReplacesResolvedPaths(t *testing.T) {
	t.Parallel()
	scope := map[string]any{"name": "world", "n": float64(42)}
	out := Interpolate("hello {{name}}, n={{n}}", scope)
	assert.Equal(t, "hello world, n=42", out)
}

func TestInterpolate_LeavesUnresolvedLiteral(t *testing.T) {
	t.Parallel()
	out := Interpolate("value: {{missing.path}}", map[string]any{})
	assert.Equal(t, "value: {{missing.path}}", out)
}

func TestInterpolateEmpty_RendersUnresolvedAsEmpty(t *testing.T) {
	t.Parallel()
	out := InterpolateEmpty("value: {{missing.path}}", map[string]any{})
	assert.Equal(t, "value: ", out)
}

func TestInterpolate_SerializesObjects(t *testing.T) {
	t.Parallel()
	scope := map[string]any{"obj": map[string]any{"k": "v"}}
	out := Interpolate("{{obj}}", scope)
	assert.JSONEq(t, `{"k":"v"}`, out)
}

func TestInterpolate_WhitespaceInsidePlaceholder(t *testing.T) {
	t.Parallel()
	out := Interpolate("{{ name }}", map[string]any{"name": "x"})
	assert.Equal(t, "x", out)
}

func TestStringify_Bool(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "true", Stringify(true))
}

func TestStringify_Float(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "3.5", Stringify(3.5))
}
