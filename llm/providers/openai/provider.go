// Package openai implements the llm.Provider interface on top of the
// official openai-go SDK. It also covers OpenAI-compatible gateways via a
// custom base URL.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/llm"
	"github.com/flowgrid/flowgrid/types"
)

const defaultModel = "gpt-4o-mini"

// Config holds the provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Provider calls the OpenAI Chat Completions API through the official SDK.
type Provider struct {
	cfg    Config
	client openai.Client
	logger *zap.Logger
}

// New creates an OpenAI provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Provider{
		cfg:    cfg,
		client: openai.NewClient(opts...),
		logger: logger.With(zap.String("provider", "openai")),
	}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "openai" }

// Completion implements llm.Provider.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(chooseModel(req, p.cfg.Model)),
		Messages: convertMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapError(err, p.Name())
	}

	resp := &llm.ChatResponse{
		ID:       completion.ID,
		Provider: p.Name(),
		Model:    completion.Model,
		Usage: llm.ChatUsage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	for i, choice := range completion.Choices {
		resp.Choices = append(resp.Choices, llm.ChatChoice{
			Index:        i,
			FinishReason: string(choice.FinishReason),
			Message: llm.Message{
				Role:    llm.RoleAssistant,
				Content: choice.Message.Content,
			},
		})
	}
	return resp, nil
}

func convertMessages(msgs []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// mapError translates SDK errors into the structured error codes the
// retry policy keys on.
func mapError(err error, provider string) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return types.NewError(types.ErrUpstreamError, err.Error()).
			WithRetryable(true).
			WithProvider(provider)
	}

	msg := apiErr.Error()
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return types.NewError(types.ErrUnauthorized, msg).WithHTTPStatus(apiErr.StatusCode).WithProvider(provider)
	case http.StatusForbidden:
		return types.NewError(types.ErrForbidden, msg).WithHTTPStatus(apiErr.StatusCode).WithProvider(provider)
	case http.StatusTooManyRequests:
		if strings.Contains(msg, "quota") {
			return types.NewError(types.ErrQuotaExceeded, msg).WithHTTPStatus(apiErr.StatusCode).WithProvider(provider)
		}
		return types.NewError(types.ErrRateLimited, msg).WithHTTPStatus(apiErr.StatusCode).WithProvider(provider)
	case http.StatusNotFound:
		return types.NewError(types.ErrModelNotFound, msg).WithHTTPStatus(apiErr.StatusCode).WithProvider(provider)
	default:
		return types.NewError(types.ErrUpstreamError, msg).
			WithHTTPStatus(apiErr.StatusCode).
			WithRetryable(apiErr.StatusCode >= 500).
			WithProvider(provider)
	}
}

func chooseModel(req *llm.ChatRequest, configModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	if configModel != "" {
		return configModel
	}
	return defaultModel
}
