// Package paths implements dotted-path lookup and {{path}} template
// interpolation over nested maps. Every node handler resolves user-authored
// references through this package.
package paths

import (
	"fmt"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_$-]+(?:\.[A-Za-z0-9_$-]+)*)\s*\}\}`)

// GetNestedValue walks scope along the dot-separated path and returns the
// value found. It returns (nil, false) as soon as a missing key or a
// non-map intermediate is hit; it never panics.
func GetNestedValue(scope map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var current any = scope
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Interpolate replaces every {{path}} occurrence in template with the value
// resolved from scope. Unresolved paths are left as the literal placeholder
// so the user can see exactly which reference did not match.
func Interpolate(template string, scope map[string]any) string {
	return replace(template, scope, false)
}

// InterpolateEmpty replaces every {{path}} occurrence, rendering unresolved
// paths as the empty string. The Api handler uses this variant for URLs,
// headers, and bodies; everything else uses Interpolate. The divergence is
// deliberate and load-bearing for existing workflows.
func InterpolateEmpty(template string, scope map[string]any) string {
	return replace(template, scope, true)
}

func replace(template string, scope map[string]any, emptyOnMiss bool) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		path := placeholderRe.FindStringSubmatch(match)[1]
		value, ok := GetNestedValue(scope, path)
		if !ok {
			if emptyOnMiss {
				return ""
			}
			return match
		}
		return Stringify(value)
	})
}

// Stringify renders a resolved value for template substitution: strings
// pass through, everything else is JSON-serialized.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; render integers without a
		// trailing ".0" so URLs and messages read naturally.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
