package llm

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/types"
)

// ---------------------------------------------------------------------------
// Mock provider
// ---------------------------------------------------------------------------

// scriptedProvider returns canned responses in order, then repeats the
// last one. It records every request it sees.
type scriptedProvider struct {
	responses []string
	errs      []error
	requests  []*ChatRequest
	calls     atomic.Int32
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	i := int(p.calls.Add(1)) - 1
	p.requests = append(p.requests, req)
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	idx := i
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return &ChatResponse{
		Model: "test-model",
		Choices: []ChatChoice{{
			FinishReason: "stop",
			Message:      Message{Role: RoleAssistant, Content: p.responses[idx]},
		}},
	}, nil
}

func testSchema() *types.JSONSchema {
	return types.NewObjectSchema().
		AddProperty("title", types.NewStringSchema()).
		AddProperty("score", types.NewNumberSchema()).
		AddRequired("title", "score")
}

// ---------------------------------------------------------------------------
// ExecutePrompt — schema path
// ---------------------------------------------------------------------------

func TestExecutePrompt_ValidFirstAttempt(t *testing.T) {
	t.Parallel()
	provider := &scriptedProvider{responses: []string{`{"title": "ok", "score": 5}`}}
	s := NewStructured(provider, zap.NewNop())

	out, err := s.ExecutePrompt(context.Background(), PromptConfig{Model: "m"}, []Message{UserMessage("go")}, testSchema())
	require.NoError(t, err)
	assert.Equal(t, "ok", out["title"])
	assert.Equal(t, float64(5), out["score"])
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestExecutePrompt_RepairsFencedTruncation(t *testing.T) {
	t.Parallel()
	provider := &scriptedProvider{responses: []string{
		"```json\n{\"title\": \"ok\", \"score\": 5",
	}}
	s := NewStructured(provider, zap.NewNop())

	out, err := s.ExecutePrompt(context.Background(), PromptConfig{Model: "m"}, []Message{UserMessage("go")}, testSchema())
	require.NoError(t, err)
	assert.Equal(t, "ok", out["title"])
	assert.Equal(t, int32(1), provider.calls.Load(), "brace-balance closure must succeed without a retry")
}

func TestExecutePrompt_MissingFieldRetriesNamingField(t *testing.T) {
	t.Parallel()
	provider := &scriptedProvider{responses: []string{
		`{"title": "no score"}`,
		`{"title": "ok", "score": 1}`,
	}}
	s := NewStructured(provider, zap.NewNop())

	out, err := s.ExecutePrompt(context.Background(), PromptConfig{Model: "m"}, []Message{UserMessage("go")}, testSchema())
	require.NoError(t, err)
	assert.Equal(t, float64(1), out["score"])
	require.Equal(t, int32(2), provider.calls.Load())

	// The retry message must name the missing field.
	second := provider.requests[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, RoleUser, last.Role)
	assert.Contains(t, last.Content, `"score"`)
}

func TestExecutePrompt_ExhaustsAttempts(t *testing.T) {
	t.Parallel()
	provider := &scriptedProvider{responses: []string{`{"title": "never a score"}`}}
	s := NewStructured(provider, zap.NewNop())

	_, err := s.ExecutePrompt(context.Background(), PromptConfig{Model: "m"}, []Message{UserMessage("go")}, testSchema())
	require.Error(t, err)
	assert.Equal(t, int32(3), provider.calls.Load())
	assert.Equal(t, types.ErrOutputInvalid, types.GetErrorCode(err))
}

func TestExecutePrompt_TruncationErrorClass(t *testing.T) {
	t.Parallel()
	// Every attempt is cut off mid-object and never yields the required
	// fields even after closure.
	provider := &scriptedProvider{responses: []string{`{"title": "half`}}
	s := NewStructured(provider, zap.NewNop())

	_, err := s.ExecutePrompt(context.Background(), PromptConfig{Model: "m"}, []Message{UserMessage("go")}, testSchema())
	require.Error(t, err)
	assert.Equal(t, types.ErrOutputTruncated, types.GetErrorCode(err))
}

func TestExecutePrompt_GarbageIsInvalidNotTruncated(t *testing.T) {
	t.Parallel()
	provider := &scriptedProvider{responses: []string{"sorry, I cannot"}}
	s := NewStructured(provider, zap.NewNop())

	_, err := s.ExecutePrompt(context.Background(), PromptConfig{Model: "m"}, []Message{UserMessage("go")}, testSchema())
	require.Error(t, err)
	assert.Equal(t, types.ErrOutputInvalid, types.GetErrorCode(err))
	assert.Equal(t, int32(3), provider.calls.Load())
}

func TestExecutePrompt_AuthoritativeErrorNoRetry(t *testing.T) {
	t.Parallel()
	provider := &scriptedProvider{
		responses: []string{`{"title": "ok", "score": 1}`},
		errs:      []error{types.NewError(types.ErrUnauthorized, "bad key")},
	}
	s := NewStructured(provider, zap.NewNop())

	_, err := s.ExecutePrompt(context.Background(), PromptConfig{Model: "m"}, []Message{UserMessage("go")}, testSchema())
	require.Error(t, err)
	assert.Equal(t, int32(1), provider.calls.Load(), "auth errors must propagate without retry")
	assert.Equal(t, types.ErrUnauthorized, types.GetErrorCode(err))
}

func TestExecutePrompt_TypeMismatchFailsValidation(t *testing.T) {
	t.Parallel()
	provider := &scriptedProvider{responses: []string{
		`{"title": "ok", "score": "not a number"}`,
		`{"title": "ok", "score": 2}`,
	}}
	s := NewStructured(provider, zap.NewNop())

	out, err := s.ExecutePrompt(context.Background(), PromptConfig{Model: "m"}, []Message{UserMessage("go")}, testSchema())
	require.NoError(t, err)
	assert.Equal(t, float64(2), out["score"])
	assert.Equal(t, int32(2), provider.calls.Load())
}

// ---------------------------------------------------------------------------
// ExecutePrompt — freeform path
// ---------------------------------------------------------------------------

func TestExecutePrompt_NoSchemaPlainText(t *testing.T) {
	t.Parallel()
	provider := &scriptedProvider{responses: []string{"just words"}}
	s := NewStructured(provider, zap.NewNop())

	out, err := s.ExecutePrompt(context.Background(), PromptConfig{Model: "m"}, []Message{UserMessage("go")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "just words", out["response"])
}

func TestExecutePrompt_NoSchemaOpportunisticParse(t *testing.T) {
	t.Parallel()
	provider := &scriptedProvider{responses: []string{`{"parsed": true}`}}
	s := NewStructured(provider, zap.NewNop())

	out, err := s.ExecutePrompt(context.Background(), PromptConfig{Model: "m"}, []Message{UserMessage("go")}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, out["parsed"])
}

// ---------------------------------------------------------------------------
// ValidateAgainstSchema
// ---------------------------------------------------------------------------

func TestValidateAgainstSchema_AllowsExtraFields(t *testing.T) {
	t.Parallel()
	err := ValidateAgainstSchema(map[string]any{"title": "x", "score": 1.0, "extra": "y"}, testSchema())
	assert.NoError(t, err)
}

func TestValidateAgainstSchema_ArrayType(t *testing.T) {
	t.Parallel()
	schema := types.NewObjectSchema().AddProperty("tags", types.NewArraySchema(types.NewStringSchema()))
	assert.NoError(t, ValidateAgainstSchema(map[string]any{"tags": []any{"a"}}, schema))
	assert.Error(t, ValidateAgainstSchema(map[string]any{"tags": "a"}, schema))
}
