package types

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// NodeType identifies the handler bound to a node.
type NodeType string

const (
	// NodeInput declares and coerces the workflow's input fields.
	NodeInput NodeType = "input"
	// NodeAPI performs an outbound HTTP request.
	NodeAPI NodeType = "api"
	// NodeAI runs a schema-constrained LLM call.
	NodeAI NodeType = "ai"
	// NodeLogic transforms data (filter, map, reduce, ...).
	NodeLogic NodeType = "logic"
	// NodeOutput formats the accumulated result.
	NodeOutput NodeType = "output"
	// NodeWebhook delivers a signed payload to an external URL.
	NodeWebhook NodeType = "webhook"
	// NodeIntegration invokes a registered third-party action.
	NodeIntegration NodeType = "integration"
)

// Position is the node's location on the visual canvas. It is carried
// through serialization but has no effect on execution.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single step in a workflow graph. Config is opaque to the
// executor; each handler validates its own slice of it.
type Node struct {
	ID       string         `json:"id"`
	Type     NodeType       `json:"type"`
	Label    string         `json:"label,omitempty"`
	Config   map[string]any `json:"config,omitempty"`
	Position Position       `json:"position,omitempty"`
}

// Name returns the label when set, otherwise the node ID.
func (n *Node) Name() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Edge is a directed dependency between two nodes. An empty handle means
// "default": the whole source output flows to the target.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Variable declares a workflow-level input variable.
type Variable struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	DefaultValue any    `json:"default_value,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Workflow is the serializable workflow document produced by the visual
// editor. Only Nodes and Edges matter to execution.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Version     string         `json:"version,omitempty"`
	Nodes       []Node         `json:"nodes"`
	Edges       []Edge         `json:"edges"`
	Variables   []Variable     `json:"variables,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty"`
}

// Export serializes the workflow document to indented JSON.
func (w *Workflow) Export() ([]byte, error) {
	return json.MarshalIndent(w, "", "  ")
}

// ImportWorkflow deserializes a workflow document from JSON.
func ImportWorkflow(data []byte) (*Workflow, error) {
	var w Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse workflow document: %w", err)
	}
	return &w, nil
}

// Validate checks the structural invariants of the document: a non-empty
// node set, unique node IDs, and edges whose endpoints exist.
func (w *Workflow) Validate() error {
	if len(w.Nodes) == 0 {
		return fmt.Errorf("workflow must have at least one node")
	}

	nodeIDs := make(map[string]bool, len(w.Nodes))
	for _, node := range w.Nodes {
		if node.ID == "" {
			return fmt.Errorf("node with empty id")
		}
		if nodeIDs[node.ID] {
			return fmt.Errorf("duplicate node id: %s", node.ID)
		}
		nodeIDs[node.ID] = true
	}

	for _, edge := range w.Edges {
		if !nodeIDs[edge.Source] {
			return fmt.Errorf("edge %s references unknown source: %s", edge.ID, edge.Source)
		}
		if !nodeIDs[edge.Target] {
			return fmt.Errorf("edge %s references unknown target: %s", edge.ID, edge.Target)
		}
	}

	return nil
}
