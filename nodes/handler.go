package nodes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/llm"
	"github.com/flowgrid/flowgrid/types"
)

// defaultHTTPTimeout bounds every outbound HTTP call made by the api and
// webhook handlers.
const defaultHTTPTimeout = 30 * time.Second

// NodeContext is everything a handler may read during one execution.
// GlobalContext is the run-wide accumulation of every prior node's output
// keys; handlers must treat it as read-only.
type NodeContext struct {
	NodeID        string
	Inputs        map[string]any
	Config        map[string]any
	GlobalContext map[string]any
}

// ValidationResult reports the outcome of a config validation pass.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

func validConfig() *ValidationResult {
	return &ValidationResult{Valid: true}
}

func invalidConfig(errs ...string) *ValidationResult {
	return &ValidationResult{Valid: false, Errors: errs}
}

// Handler is the uniform execution contract every node type satisfies.
type Handler interface {
	// Execute runs the node. It must return a NodeResult rather than
	// panicking or returning a Go error: the result is the handler's sole
	// channel back to the executor.
	Execute(ctx context.Context, nc *NodeContext) *types.NodeResult

	// ValidateConfig checks the node's config slice without executing.
	// It is pure and synchronous.
	ValidateConfig(config map[string]any) *ValidationResult
}

// Registry is the fixed map from node type to handler instance. Dispatch
// of an unregistered type is a programmer error, not a runtime-recoverable
// one.
type Registry struct {
	handlers map[types.NodeType]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[types.NodeType]Handler)}
}

// Register binds a handler to a node type, replacing any previous binding.
func (r *Registry) Register(t types.NodeType, h Handler) {
	r.handlers[t] = h
}

// Get returns the handler for the given node type.
func (r *Registry) Get(t types.NodeType) (Handler, error) {
	h, ok := r.handlers[t]
	if !ok {
		return nil, types.NewError(types.ErrUnknownNodeType,
			fmt.Sprintf("unknown node type: %q", t))
	}
	return h, nil
}

// Types returns the registered node types.
func (r *Registry) Types() []types.NodeType {
	out := make([]types.NodeType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

// Deps carries the external collaborators the built-in handlers need.
type Deps struct {
	Logger *zap.Logger
	// HTTPClient is shared by the api and webhook handlers. A nil client
	// falls back to one with the default timeout.
	HTTPClient *http.Client
	// Providers resolves the AI node's configured provider name.
	Providers *llm.Registry
	// Connections resolves stored integration connections.
	Connections ConnectionStore
	// Actions resolves registered third-party actions.
	Actions *ActionRegistry
}

// DefaultRegistry builds the registry with all seven built-in handlers.
func DefaultRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	r := NewRegistry()
	r.Register(types.NodeInput, NewInputHandler(deps.Logger))
	r.Register(types.NodeAPI, NewAPIHandler(deps.HTTPClient, deps.Logger))
	r.Register(types.NodeAI, NewAIHandler(deps.Providers, deps.Logger))
	r.Register(types.NodeLogic, NewLogicHandler(deps.Logger))
	r.Register(types.NodeOutput, NewOutputHandler(deps.Logger))
	r.Register(types.NodeWebhook, NewWebhookHandler(deps.HTTPClient, deps.Logger))
	r.Register(types.NodeIntegration, NewIntegrationHandler(deps.Connections, deps.Actions, deps.Logger))
	return r
}

// ---------------------------------------------------------------------------
// Loosely-typed config accessors
// ---------------------------------------------------------------------------

func configString(config map[string]any, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

func configBool(config map[string]any, key string) bool {
	if v, ok := config[key].(bool); ok {
		return v
	}
	return false
}

func configFloat(config map[string]any, key string) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func configInt(config map[string]any, key string) int {
	switch v := config[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func configMap(config map[string]any, key string) map[string]any {
	if v, ok := config[key].(map[string]any); ok {
		return v
	}
	return nil
}

func configSlice(config map[string]any, key string) []any {
	if v, ok := config[key].([]any); ok {
		return v
	}
	return nil
}

func configStringMap(config map[string]any, key string) map[string]string {
	raw := configMap(config, key)
	if raw == nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
