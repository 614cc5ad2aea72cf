package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memConnections struct {
	conns map[string]*Connection
}

func (m *memConnections) Resolve(_ context.Context, id string) (*Connection, error) {
	conn, ok := m.conns[id]
	if !ok {
		return nil, errors.New("connection not found")
	}
	return conn, nil
}

type echoAction struct {
	name       string
	lastParams map[string]any
	lastConn   *Connection
	err        error
}

func (a *echoAction) Name() string { return a.name }

func (a *echoAction) Invoke(_ context.Context, conn *Connection, params map[string]any) (map[string]any, error) {
	a.lastConn = conn
	a.lastParams = params
	if a.err != nil {
		return nil, a.err
	}
	return map[string]any{"ok": true}, nil
}

func integrationFixture(action *echoAction) *IntegrationHandler {
	store := &memConnections{conns: map[string]*Connection{
		"conn-1": {ID: "conn-1", Provider: "slack", Credentials: map[string]string{"token": "xoxb"}},
	}}
	actions := NewActionRegistry()
	actions.Register(action)
	return NewIntegrationHandler(store, actions, zap.NewNop())
}

func TestIntegration_InvokesActionWithMergedParams(t *testing.T) {
	t.Parallel()

	action := &echoAction{name: "slack.postMessage"}
	h := integrationFixture(action)

	result := h.Execute(context.Background(), &NodeContext{
		NodeID: "notify",
		Inputs: map[string]any{"text": "from upstream", "extra": 1},
		Config: map[string]any{
			"connectionId": "conn-1",
			"action":       "slack.postMessage",
			"params":       map[string]any{"channel": "#general", "text": "static"},
		},
	})

	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, true, result.Output["ok"])
	require.NotNil(t, action.lastConn)
	assert.Equal(t, "slack", action.lastConn.Provider)

	// Dynamic upstream values override static config on collision.
	assert.Equal(t, "from upstream", action.lastParams["text"])
	assert.Equal(t, "#general", action.lastParams["channel"])
	assert.Equal(t, 1, action.lastParams["extra"])
}

func TestIntegration_MissingPiecesFail(t *testing.T) {
	t.Parallel()

	action := &echoAction{name: "slack.postMessage"}
	h := integrationFixture(action)

	result := h.Execute(context.Background(), &NodeContext{
		Config: map[string]any{"action": "slack.postMessage"},
	})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "connection")

	result = h.Execute(context.Background(), &NodeContext{
		Config: map[string]any{"connectionId": "conn-1"},
	})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "action")

	result = h.Execute(context.Background(), &NodeContext{
		Config: map[string]any{"connectionId": "conn-1", "action": "ghost.op"},
	})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "not registered")

	result = h.Execute(context.Background(), &NodeContext{
		Config: map[string]any{"connectionId": "ghost", "action": "slack.postMessage"},
	})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "resolve")
}

func TestIntegration_ActionErrorPropagates(t *testing.T) {
	t.Parallel()

	action := &echoAction{name: "slack.postMessage", err: errors.New("channel archived")}
	h := integrationFixture(action)

	result := h.Execute(context.Background(), &NodeContext{
		Config: map[string]any{"connectionId": "conn-1", "action": "slack.postMessage"},
	})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "channel archived")
}

func TestIntegration_ValidateConfig(t *testing.T) {
	t.Parallel()

	h := integrationFixture(&echoAction{name: "x"})
	assert.False(t, h.ValidateConfig(nil).Valid)
	assert.True(t, h.ValidateConfig(map[string]any{
		"connectionId": "conn-1", "action": "x",
	}).Valid)
}
