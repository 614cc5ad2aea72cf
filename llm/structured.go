package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/types"
)

// DefaultMaxAttempts bounds the repair/retry loop for schema-constrained
// calls.
const DefaultMaxAttempts = 3

// PromptConfig carries the per-call generation parameters.
type PromptConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Structured wraps a provider with the schema-enforcement policy: JSON
// extraction and repair, schema validation, and bounded retry with
// adaptive retry instructions.
type Structured struct {
	provider    Provider
	logger      *zap.Logger
	maxAttempts int
}

// NewStructured creates a structured executor over the given provider.
func NewStructured(provider Provider, logger *zap.Logger) *Structured {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Structured{
		provider:    provider,
		logger:      logger.With(zap.String("component", "llm_structured")),
		maxAttempts: DefaultMaxAttempts,
	}
}

// WithMaxAttempts overrides the attempt budget. Values below 1 are ignored.
func (s *Structured) WithMaxAttempts(n int) *Structured {
	if n >= 1 {
		s.maxAttempts = n
	}
	return s
}

// ExecutePrompt invokes the provider and returns a map result.
//
// Without a schema, the raw text is returned verbatim under "response",
// opportunistically parsed when it is brace/bracket-delimited JSON. With a
// schema, the call enters the repair/validate/retry loop; exhausting the
// attempt budget raises an error distinguishing truncation from other
// validation failures.
func (s *Structured) ExecutePrompt(ctx context.Context, cfg PromptConfig, messages []Message, schema *types.JSONSchema) (map[string]any, error) {
	if schema == nil {
		return s.executeFreeform(ctx, cfg, messages)
	}

	convo := make([]Message, len(messages))
	copy(convo, messages)
	convo = append(convo, UserMessage(schemaInstruction(schema)))

	var lastErr error
	sawTruncation := false

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		text, finishReason, err := s.complete(ctx, cfg, convo)
		if err != nil {
			if IsAuthoritative(err) {
				return nil, err
			}
			lastErr = err
			s.logger.Warn("provider call failed, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		span := ExtractJSONSpan(StripCodeFences(text))
		repaired := span
		parseable := json.Valid([]byte(span))
		needsCompletion := false
		if !parseable {
			repaired = CompleteJSON(span)
			needsCompletion = repaired != span
			parseable = json.Valid([]byte(repaired))
		}

		// Structural completion and a "length" finish reason are the two
		// truncation symptoms; everything else is generic invalid output.
		truncated := finishReason == "length" || needsCompletion
		if truncated {
			sawTruncation = true
		}

		if !parseable {
			lastErr = fmt.Errorf("response is not valid JSON after repair")
			convo = append(convo, UserMessage(retryInstruction(truncated, "")))
			s.logger.Debug("unparseable response",
				zap.Int("attempt", attempt),
				zap.String("finish_reason", finishReason),
			)
			continue
		}

		result, err := decodeObject(repaired)
		if err != nil {
			lastErr = err
			convo = append(convo, UserMessage(retryInstruction(truncated, "")))
			continue
		}

		if err := ValidateAgainstSchema(result, schema); err != nil {
			lastErr = err
			var verr *ValidationError
			missing := ""
			if errors.As(err, &verr) && verr.Missing {
				missing = verr.Field
			}
			convo = append(convo, UserMessage(retryInstruction(truncated, missing)))
			s.logger.Debug("schema validation failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		if attempt > 1 {
			s.logger.Info("structured output recovered",
				zap.Int("attempt", attempt),
			)
		}
		return result, nil
	}

	code := types.ErrOutputInvalid
	msg := fmt.Sprintf("LLM output failed schema validation after %d attempts", s.maxAttempts)
	if sawTruncation {
		code = types.ErrOutputTruncated
		msg = fmt.Sprintf("LLM output appears truncated or too long after %d attempts; reduce the requested output size or raise max tokens", s.maxAttempts)
	}
	return nil, types.NewError(code, msg).WithCause(lastErr).WithProvider(s.provider.Name())
}

// executeFreeform handles the no-schema path: return text verbatim,
// parsed opportunistically when it looks like JSON.
func (s *Structured) executeFreeform(ctx context.Context, cfg PromptConfig, messages []Message) (map[string]any, error) {
	text, _, err := s.complete(ctx, cfg, messages)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(StripCodeFences(text))
	if strings.HasPrefix(trimmed, "{") {
		if result, err := decodeObject(trimmed); err == nil {
			return result, nil
		}
	}
	if strings.HasPrefix(trimmed, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
			return map[string]any{"response": arr}, nil
		}
	}
	return map[string]any{"response": text}, nil
}

func (s *Structured) complete(ctx context.Context, cfg PromptConfig, messages []Message) (string, string, error) {
	resp, err := s.provider.Completion(ctx, &ChatRequest{
		Model:       cfg.Model,
		Messages:    messages,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return "", "", err
	}
	choice, err := FirstChoice(resp)
	if err != nil {
		return "", "", err
	}
	return choice.Message.Content, choice.FinishReason, nil
}

func decodeObject(text string) (map[string]any, error) {
	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		// Top-level arrays are wrapped so the engine always sees a map.
		var arr []any
		if arrErr := json.Unmarshal([]byte(text), &arr); arrErr == nil {
			return map[string]any{"response": arr}, nil
		}
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	return result, nil
}

// schemaInstruction renders the schema as an explicit output contract
// appended to the conversation.
func schemaInstruction(schema *types.JSONSchema) string {
	data, err := schema.ToJSON()
	if err != nil {
		data = []byte("{}")
	}
	return fmt.Sprintf(
		"Respond with a single JSON object matching this JSON Schema exactly. "+
			"No prose, no markdown fences, no explanations.\n\nSchema:\n%s",
		string(data),
	)
}

// retryInstruction builds the failure-class-specific follow-up message.
func retryInstruction(truncated bool, missingField string) string {
	switch {
	case truncated:
		return "Your previous response was cut off before the JSON was complete. Respond again with shorter values so the full JSON object fits, and output only the JSON."
	case missingField != "":
		return fmt.Sprintf("Your previous response was missing the required field %q. Respond again with the complete JSON object including %q, and output only the JSON.", missingField, missingField)
	default:
		return "Your previous response was not valid JSON matching the schema. Respond again with only a valid JSON object, no other text."
	}
}

// IsAuthoritative reports whether err is an authoritative API error
// (auth, rate limit, quota) that retrying cannot fix.
func IsAuthoritative(err error) bool {
	var terr *types.Error
	if !errors.As(err, &terr) {
		return false
	}
	switch terr.Code {
	case types.ErrUnauthorized, types.ErrForbidden, types.ErrRateLimited, types.ErrQuotaExceeded:
		return true
	}
	return false
}
