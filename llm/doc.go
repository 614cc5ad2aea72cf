// Package llm is the contract-enforcement boundary between unreliable LLM
// generation and the rest of the pipeline.
//
// Providers implement the minimal Provider interface (Completion + Name).
// The Structured executor wraps a provider with the reliability policy the
// AI node depends on: schema-guided prompting, markdown fence stripping,
// JSON span extraction and structural repair, schema validation, and a
// bounded retry loop with adaptive retry instructions. Authoritative API
// errors (auth, rate limit, quota) propagate immediately and are never
// retried here.
package llm
