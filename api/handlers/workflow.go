package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/engine"
	"github.com/flowgrid/flowgrid/internal/paths"
	"github.com/flowgrid/flowgrid/nodes"
	"github.com/flowgrid/flowgrid/types"
)

// maxRequestBody bounds workflow documents accepted over HTTP.
const maxRequestBody = 4 << 20

// ExecuteRequest is the body of POST /v1/workflows/execute.
type ExecuteRequest struct {
	Workflow types.Workflow `json:"workflow"`
	Input    map[string]any `json:"input,omitempty"`
}

// ValidateRequest is the body of POST /v1/workflows/validate.
type ValidateRequest struct {
	Workflow types.Workflow `json:"workflow"`
}

// NodeIssue reports config problems for one node.
type NodeIssue struct {
	NodeID string   `json:"node_id"`
	Errors []string `json:"errors"`
}

// ValidateResponse is the payload of a validation call.
type ValidateResponse struct {
	Valid  bool        `json:"valid"`
	Issues []NodeIssue `json:"issues,omitempty"`
}

// WorkflowHandler serves workflow execution and validation.
type WorkflowHandler struct {
	executor *engine.Executor
	registry *nodes.Registry
	history  *engine.History
	logger   *zap.Logger
}

// NewWorkflowHandler creates the workflow handler.
func NewWorkflowHandler(executor *engine.Executor, registry *nodes.Registry, history *engine.History, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		executor: executor,
		registry: registry,
		history:  history,
		logger:   logger,
	}
}

// HandleExecute runs a workflow document once and returns the full
// execution record, whether the run succeeded or not.
func (h *WorkflowHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Workflow.Validate(); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidWorkflow, err.Error(), h.logger)
		return
	}

	input := req.Input
	if input == nil {
		input = map[string]any{}
	}
	// Workflow-level variable defaults seed the run input; explicit values
	// in the request win. Templated defaults resolve against the input so
	// far, unresolved references rendering empty.
	for _, variable := range req.Workflow.Variables {
		if _, present := input[variable.Name]; present {
			continue
		}
		if s, ok := variable.DefaultValue.(string); ok {
			input[variable.Name] = paths.InterpolateEmpty(s, input)
			continue
		}
		if variable.DefaultValue != nil {
			input[variable.Name] = variable.DefaultValue
		}
	}

	record := h.executor.Execute(r.Context(), req.Workflow.Nodes, req.Workflow.Edges, input)
	WriteSuccess(w, record)
}

// HandleValidate runs structural validation plus every node's own config
// validation, without executing anything.
func (h *WorkflowHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Workflow.Validate(); err != nil {
		WriteSuccess(w, ValidateResponse{Valid: false, Issues: []NodeIssue{
			{NodeID: "", Errors: []string{err.Error()}},
		}})
		return
	}

	var issues []NodeIssue
	for _, node := range req.Workflow.Nodes {
		handler, err := h.registry.Get(node.Type)
		if err != nil {
			issues = append(issues, NodeIssue{NodeID: node.ID, Errors: []string{err.Error()}})
			continue
		}
		if result := handler.ValidateConfig(node.Config); !result.Valid {
			issues = append(issues, NodeIssue{NodeID: node.ID, Errors: result.Errors})
		}
	}
	WriteSuccess(w, ValidateResponse{Valid: len(issues) == 0, Issues: issues})
}

// HandleExecutions serves GET /v1/executions and /v1/executions/{id}.
func (h *WorkflowHandler) HandleExecutions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrInvalidRequest,
			"execution history is not enabled", h.logger)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/executions")
	id = strings.Trim(id, "/")
	if id == "" {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		WriteSuccess(w, h.history.Recent(limit))
		return
	}

	record, ok := h.history.Get(id)
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrInvalidRequest,
			"no execution with id "+id, h.logger)
		return
	}
	WriteSuccess(w, record)
}

func (h *WorkflowHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"failed to read request body", h.logger)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"request body is not valid JSON: "+err.Error(), h.logger)
		return false
	}
	return true
}
