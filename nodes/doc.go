// Package nodes defines the node handler contract and the built-in
// handlers of the flowgrid engine: input, api, ai, logic, output, webhook,
// and integration.
//
// A handler receives a NodeContext (the node's resolved inputs, its
// config, and the run's accumulated global context) and returns a
// types.NodeResult. The Registry binds handlers to node types; adding a
// node type means adding one implementation and one registry entry,
// never touching the executor.
package nodes
