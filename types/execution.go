package types

import "time"

// LogStatus tracks the lifecycle of one node within a run.
type LogStatus string

const (
	StatusPending   LogStatus = "pending"
	StatusRunning   LogStatus = "running"
	StatusCompleted LogStatus = "completed"
	StatusFailed    LogStatus = "failed"
)

// NodeResult is the handler's sole communication channel back to the
// executor. It carries no partial or streaming state.
type NodeResult struct {
	Success bool           `json:"success"`
	Output  map[string]any `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Succeed builds a successful result with the given output.
func Succeed(output map[string]any) *NodeResult {
	return &NodeResult{Success: true, Output: output}
}

// Fail builds a failed result with the given error message.
func Fail(message string) *NodeResult {
	return &NodeResult{Success: false, Error: message}
}

// ExecutionLog records one node's execution within a run. An entry is
// created when the node starts and mutated in place as it completes or
// fails; entries are never deleted.
type ExecutionLog struct {
	NodeID      string         `json:"node_id"`
	NodeName    string         `json:"node_name"`
	Status      LogStatus      `json:"status"`
	Input       map[string]any `json:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at,omitempty"`
	Duration    time.Duration  `json:"duration,omitempty"`
}

// ErrorAnalysis is the structured explanation produced when a run fails.
// It is advisory text for the user, never control flow.
type ErrorAnalysis struct {
	Summary        string   `json:"summary"`
	FailedNode     string   `json:"failed_node"`
	FailedNodeType NodeType `json:"failed_node_type"`
	PossibleCauses []string `json:"possible_causes"`
	SuggestedFixes []string `json:"suggested_fixes"`
	// AffectedNodes lists the labels of nodes transitively downstream of
	// the failure, which never executed.
	AffectedNodes []string `json:"affected_nodes"`
}

// ExecutionRecord is the full result of one engine run.
type ExecutionRecord struct {
	ID            string          `json:"id"`
	Success       bool            `json:"success"`
	Output        map[string]any  `json:"output,omitempty"`
	Error         string          `json:"error,omitempty"`
	ErrorAnalysis *ErrorAnalysis  `json:"error_analysis,omitempty"`
	Logs          []*ExecutionLog `json:"logs"`
	StartedAt     time.Time       `json:"started_at"`
	Duration      time.Duration   `json:"duration"`
}
