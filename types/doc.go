// Package types provides the shared data model of the flowgrid engine.
//
// It is the lowest-level package of the module and depends on nothing
// internal, so that engine, nodes, and llm can all share one contract
// without import cycles:
//
//   - Node / Edge / Workflow — the serializable workflow document
//   - NodeResult             — a handler's sole channel back to the executor
//   - ExecutionLog / ExecutionRecord — per-run observable state
//   - ErrorAnalysis          — structured failure diagnosis
//   - Error / ErrorCode      — structured errors with retryability
//   - JSONSchema             — schema definitions for structured LLM output
package types
