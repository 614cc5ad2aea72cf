package nodes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/types"
)

// InputHandler declares and coerces the workflow's input fields. With no
// declared fields it passes inputs through unchanged. Coercion is lenient:
// a value that cannot be converted is logged and passed through as-is
// rather than failing the node.
type InputHandler struct {
	logger *zap.Logger
}

// NewInputHandler creates the input handler.
func NewInputHandler(logger *zap.Logger) *InputHandler {
	return &InputHandler{logger: logger.With(zap.String("handler", "input"))}
}

// fieldTypes lists the declarable input field types.
var fieldTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"boolean": true,
	"json":    true,
}

// Execute implements Handler.
func (h *InputHandler) Execute(ctx context.Context, nc *NodeContext) *types.NodeResult {
	fields := configSlice(nc.Config, "fields")
	if len(fields) == 0 {
		return types.Succeed(nc.Inputs)
	}

	output := make(map[string]any, len(fields))
	for _, raw := range fields {
		field, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := configString(field, "name")
		if name == "" {
			continue
		}
		fieldType := configString(field, "type")

		value, present := nc.Inputs[name]
		if !present || value == nil || value == "" {
			if def, hasDefault := field["default"]; hasDefault {
				output[name] = def
			} else {
				output[name] = zeroValue(fieldType)
			}
			continue
		}

		coerced, err := coerceValue(value, fieldType)
		if err != nil {
			h.logger.Warn("input coercion failed, passing value through",
				zap.String("node_id", nc.NodeID),
				zap.String("field", name),
				zap.String("declared_type", fieldType),
				zap.Error(err),
			)
			output[name] = value
			continue
		}
		output[name] = coerced
	}

	return types.Succeed(output)
}

// ValidateConfig implements Handler.
func (h *InputHandler) ValidateConfig(config map[string]any) *ValidationResult {
	fields := configSlice(config, "fields")
	var errs []string
	for i, raw := range fields {
		field, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("field %d is not an object", i))
			continue
		}
		if configString(field, "name") == "" {
			errs = append(errs, fmt.Sprintf("field %d has no name", i))
		}
		if t := configString(field, "type"); t != "" && !fieldTypes[t] {
			errs = append(errs, fmt.Sprintf("field %d has unknown type %q", i, t))
		}
	}
	if len(errs) > 0 {
		return invalidConfig(errs...)
	}
	return validConfig()
}

func zeroValue(fieldType string) any {
	switch fieldType {
	case "number":
		return float64(0)
	case "boolean":
		return false
	case "json":
		return map[string]any{}
	default:
		return ""
	}
}

func coerceValue(value any, fieldType string) (any, error) {
	switch fieldType {
	case "string":
		if s, ok := value.(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", value), nil

	case "number":
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to number", v)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("cannot convert %T to number", value)
		}

	case "boolean":
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1", "yes":
				return true, nil
			case "false", "0", "no":
				return false, nil
			}
			return nil, fmt.Errorf("cannot convert %q to boolean", v)
		default:
			return nil, fmt.Errorf("cannot convert %T to boolean", value)
		}

	case "json":
		switch v := value.(type) {
		case map[string]any, []any:
			return v, nil
		case string:
			var parsed any
			if err := json.Unmarshal([]byte(v), &parsed); err != nil {
				return nil, fmt.Errorf("cannot parse value as JSON: %w", err)
			}
			return parsed, nil
		default:
			return value, nil
		}

	default:
		// Undeclared type: pass through untouched.
		return value, nil
	}
}
