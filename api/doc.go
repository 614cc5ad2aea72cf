// Package api exposes the workflow engine over HTTP.
//
// Endpoints:
//   - POST /v1/workflows/validate  — structural + per-node config checks
//   - POST /v1/workflows/execute   — run a workflow document once
//   - GET  /v1/executions          — recent execution records
//   - GET  /v1/executions/{id}     — one execution record
//   - GET  /health                 — liveness
//   - GET  /metrics                — Prometheus exposition
//
// All responses share the envelope in handlers.Response.
package api
