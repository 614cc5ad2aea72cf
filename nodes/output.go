package nodes

import (
	"context"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/internal/paths"
	"github.com/flowgrid/flowgrid/types"
)

// OutputHandler formats the accumulated inputs as the workflow's result:
// json (optionally filtered to declared fields), text, or markdown, each
// supporting an optional {{var}} template.
type OutputHandler struct {
	logger *zap.Logger
}

// NewOutputHandler creates the output handler.
func NewOutputHandler(logger *zap.Logger) *OutputHandler {
	return &OutputHandler{logger: logger.With(zap.String("handler", "output"))}
}

var outputFormats = map[string]bool{"json": true, "text": true, "markdown": true}

// Execute implements Handler.
func (h *OutputHandler) Execute(ctx context.Context, nc *NodeContext) *types.NodeResult {
	// An output node with nothing wired into it is a valid (if useless)
	// workflow; it yields null rather than failing the run.
	if len(nc.Inputs) == 0 {
		return types.Succeed(map[string]any{"result": nil})
	}

	format := configString(nc.Config, "format")
	if format == "" {
		format = "json"
	}
	template := configString(nc.Config, "template")

	switch format {
	case "json":
		result := map[string]any(nc.Inputs)
		if fields := configSlice(nc.Config, "fields"); len(fields) > 0 {
			filtered := make(map[string]any, len(fields))
			for _, raw := range fields {
				if name, ok := raw.(string); ok {
					if value, present := nc.Inputs[name]; present {
						filtered[name] = value
					}
				}
			}
			result = filtered
		}
		return types.Succeed(map[string]any{"result": result})

	case "text", "markdown":
		if template != "" {
			return types.Succeed(map[string]any{"result": paths.Interpolate(template, nc.Inputs)})
		}
		return types.Succeed(map[string]any{"result": renderPlain(nc.Inputs, format == "markdown")})

	default:
		return types.Fail(fmt.Sprintf("output format %q is not supported; expected json, text, or markdown", format))
	}
}

// ValidateConfig implements Handler.
func (h *OutputHandler) ValidateConfig(config map[string]any) *ValidationResult {
	if format := configString(config, "format"); format != "" && !outputFormats[format] {
		return invalidConfig(fmt.Sprintf("unknown output format %q", format))
	}
	return validConfig()
}

// renderPlain renders the inputs as readable lines, one key per line,
// sorted for determinism.
func renderPlain(inputs map[string]any, markdown bool) string {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		value := inputs[k]
		rendered := paths.Stringify(value)
		if _, isMap := value.(map[string]any); isMap {
			if data, err := json.MarshalIndent(value, "", "  "); err == nil {
				rendered = string(data)
			}
		}
		if markdown {
			fmt.Fprintf(&b, "**%s**: %s\n", k, rendered)
		} else {
			fmt.Fprintf(&b, "%s: %s\n", k, rendered)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
