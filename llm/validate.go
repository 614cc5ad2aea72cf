package llm

import (
	"fmt"

	"github.com/flowgrid/flowgrid/types"
)

// ValidationError describes one schema violation. Missing distinguishes an
// absent required field from a type mismatch; the retry loop uses it to
// name the field in its follow-up instruction.
type ValidationError struct {
	Field    string
	Missing  bool
	WantType types.SchemaType
}

func (e *ValidationError) Error() string {
	if e.Missing {
		return fmt.Sprintf("required field %q is missing", e.Field)
	}
	return fmt.Sprintf("field %q does not match declared type %s", e.Field, e.WantType)
}

// ValidateAgainstSchema checks a decoded result against the schema: every
// required field must be present, and every declared property that is
// present must match its native JSON type.
func ValidateAgainstSchema(result map[string]any, schema *types.JSONSchema) error {
	if schema == nil {
		return nil
	}

	for _, name := range schema.Required {
		if _, ok := result[name]; !ok {
			return &ValidationError{Field: name, Missing: true}
		}
	}

	for name, prop := range schema.Properties {
		value, ok := result[name]
		if !ok || value == nil || prop == nil {
			continue
		}
		if !matchesType(value, prop.Type) {
			return &ValidationError{Field: name, WantType: prop.Type}
		}
	}

	return nil
}

func matchesType(value any, want types.SchemaType) bool {
	switch want {
	case types.SchemaTypeString:
		_, ok := value.(string)
		return ok
	case types.SchemaTypeNumber, types.SchemaTypeInteger:
		switch value.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case types.SchemaTypeBoolean:
		_, ok := value.(bool)
		return ok
	case types.SchemaTypeArray:
		_, ok := value.([]any)
		return ok
	case types.SchemaTypeObject:
		_, ok := value.(map[string]any)
		return ok
	default:
		// Undeclared or unknown types are not validated.
		return true
	}
}
