package nodes

import (
	"context"
	"fmt"
	"sync"

	"dario.cat/mergo"
	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/types"
)

// Connection is a stored, already-decrypted third-party connection.
type Connection struct {
	ID          string
	Provider    string
	Credentials map[string]string
}

// ConnectionStore resolves connection IDs to decrypted connections.
// Persistence and encryption live outside the engine.
type ConnectionStore interface {
	Resolve(ctx context.Context, connectionID string) (*Connection, error)
}

// Action is one invokable third-party operation (e.g. "slack.postMessage").
type Action interface {
	Name() string
	Invoke(ctx context.Context, conn *Connection, params map[string]any) (map[string]any, error)
}

// ActionRegistry is a thread-safe lookup of actions by name.
type ActionRegistry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewActionRegistry creates an empty action registry.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{actions: make(map[string]Action)}
}

// Register adds an action under its own name.
func (r *ActionRegistry) Register(a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[a.Name()] = a
}

// Get returns the action registered under name.
func (r *ActionRegistry) Get(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

// IntegrationHandler resolves a stored connection plus a registered
// third-party action and delegates execution to it. Static config
// parameters merge with dynamic upstream inputs; dynamic values win on
// key collision.
type IntegrationHandler struct {
	connections ConnectionStore
	actions     *ActionRegistry
	logger      *zap.Logger
}

// NewIntegrationHandler creates the integration handler.
func NewIntegrationHandler(connections ConnectionStore, actions *ActionRegistry, logger *zap.Logger) *IntegrationHandler {
	return &IntegrationHandler{
		connections: connections,
		actions:     actions,
		logger:      logger.With(zap.String("handler", "integration")),
	}
}

// Execute implements Handler.
func (h *IntegrationHandler) Execute(ctx context.Context, nc *NodeContext) *types.NodeResult {
	if h.connections == nil || h.actions == nil {
		return types.Fail("integration node requires a connection store and action registry")
	}

	connectionID := configString(nc.Config, "connectionId")
	if connectionID == "" {
		return types.Fail("integration node has no connection selected")
	}
	actionName := configString(nc.Config, "action")
	if actionName == "" {
		return types.Fail("integration node has no action selected")
	}

	action, ok := h.actions.Get(actionName)
	if !ok {
		return types.Fail(fmt.Sprintf("integration action %q is not registered", actionName))
	}

	conn, err := h.connections.Resolve(ctx, connectionID)
	if err != nil {
		return types.Fail(fmt.Sprintf("failed to resolve connection %q: %v", connectionID, err))
	}

	params := map[string]any{}
	if static := configMap(nc.Config, "params"); static != nil {
		for k, v := range static {
			params[k] = v
		}
	}
	// Dynamic upstream values override static config on collision.
	if err := mergo.Merge(&params, nc.Inputs, mergo.WithOverride); err != nil {
		return types.Fail(fmt.Sprintf("failed to merge integration parameters: %v", err))
	}

	h.logger.Debug("invoking integration action",
		zap.String("node_id", nc.NodeID),
		zap.String("action", actionName),
		zap.String("connection_id", connectionID),
	)

	output, err := action.Invoke(ctx, conn, params)
	if err != nil {
		return types.Fail(fmt.Sprintf("integration action %q failed: %v", actionName, err))
	}
	return types.Succeed(output)
}

// ValidateConfig implements Handler.
func (h *IntegrationHandler) ValidateConfig(config map[string]any) *ValidationResult {
	var errs []string
	if configString(config, "connectionId") == "" {
		errs = append(errs, "connectionId is required")
	}
	if configString(config, "action") == "" {
		errs = append(errs, "action is required")
	}
	if len(errs) > 0 {
		return invalidConfig(errs...)
	}
	return validConfig()
}
