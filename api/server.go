package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/api/handlers"
	"github.com/flowgrid/flowgrid/engine"
	"github.com/flowgrid/flowgrid/nodes"
)

// Version is reported by the health endpoint. Overridden at build time
// via -ldflags.
var Version = "dev"

// ServerDeps carries the collaborators the HTTP surface needs.
type ServerDeps struct {
	Executor *engine.Executor
	Registry *nodes.Registry
	History  *engine.History
	Logger   *zap.Logger
	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewMux wires all routes onto a fresh ServeMux.
func NewMux(deps ServerDeps) *http.ServeMux {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	workflow := handlers.NewWorkflowHandler(deps.Executor, deps.Registry, deps.History, logger)
	health := handlers.NewHealthHandler(Version)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/workflows/execute", workflow.HandleExecute)
	mux.HandleFunc("POST /v1/workflows/validate", workflow.HandleValidate)
	mux.HandleFunc("GET /v1/executions", workflow.HandleExecutions)
	mux.HandleFunc("GET /v1/executions/{id}", workflow.HandleExecutions)
	mux.HandleFunc("GET /health", health.HandleHealth)
	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}
