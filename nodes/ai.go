package nodes

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/internal/paths"
	"github.com/flowgrid/flowgrid/llm"
	"github.com/flowgrid/flowgrid/types"
)

const defaultSystemPrompt = "You are a helpful assistant inside an automated workflow. Complete the task described by the user."

// outputContract is appended to every system prompt. The structured layer
// still repairs and validates; this block just raises the odds that no
// repair is needed.
const outputContract = "\n\nBe concise. When asked for JSON, respond with valid JSON only — no prose, no markdown fences. Never truncate your response; if the full answer would be too long, shorten the values, not the structure."

// AIHandler runs a schema-constrained LLM call through the structured
// output layer.
type AIHandler struct {
	providers *llm.Registry
	logger    *zap.Logger
}

// NewAIHandler creates the ai handler.
func NewAIHandler(providers *llm.Registry, logger *zap.Logger) *AIHandler {
	return &AIHandler{
		providers: providers,
		logger:    logger.With(zap.String("handler", "ai")),
	}
}

// Execute implements Handler.
func (h *AIHandler) Execute(ctx context.Context, nc *NodeContext) *types.NodeResult {
	if h.providers == nil {
		return types.Fail("AI node requires a configured LLM provider")
	}

	prompt := configString(nc.Config, "prompt")
	if prompt == "" {
		return types.Fail("AI node has no prompt configured")
	}

	provider, err := h.providers.Get(configString(nc.Config, "provider"))
	if err != nil {
		return types.Fail(err.Error())
	}

	systemPrompt := configString(nc.Config, "systemPrompt")
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	systemPrompt += outputContract

	userPrompt := sanitizePrompt(paths.Interpolate(prompt, nc.Inputs))

	var schema *types.JSONSchema
	if raw := configMap(nc.Config, "outputSchema"); raw != nil {
		schema, err = types.SchemaFromConfig(raw)
		if err != nil {
			return types.Fail(fmt.Sprintf("AI node has an invalid output schema: %v", err))
		}
	}

	cfg := llm.PromptConfig{
		Model:       configString(nc.Config, "model"),
		Temperature: configFloat(nc.Config, "temperature"),
		MaxTokens:   configInt(nc.Config, "maxTokens"),
	}

	h.logger.Debug("executing AI node",
		zap.String("node_id", nc.NodeID),
		zap.String("provider", provider.Name()),
		zap.String("model", cfg.Model),
		zap.Bool("structured", schema != nil),
	)

	structured := llm.NewStructured(provider, h.logger)
	output, err := structured.ExecutePrompt(ctx, cfg, []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(userPrompt),
	}, schema)
	if err != nil {
		return types.Fail(fmt.Sprintf("AI call failed: %v", err))
	}

	return types.Succeed(output)
}

// ValidateConfig implements Handler.
func (h *AIHandler) ValidateConfig(config map[string]any) *ValidationResult {
	var errs []string
	if configString(config, "prompt") == "" {
		errs = append(errs, "prompt is required")
	}
	if raw, present := config["outputSchema"]; present {
		if m, ok := raw.(map[string]any); !ok {
			errs = append(errs, "outputSchema must be an object")
		} else if _, err := types.SchemaFromConfig(m); err != nil {
			errs = append(errs, fmt.Sprintf("outputSchema is invalid: %v", err))
		}
	}
	if t := configFloat(config, "temperature"); t < 0 || t > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}
	if len(errs) > 0 {
		return invalidConfig(errs...)
	}
	return validConfig()
}
