// Package engine executes workflow graphs.
//
// One Execute call owns one run: it builds the adjacency and in-degree
// maps, computes a topological order (rejecting cyclic graphs before any
// node runs), assembles each node's input from its upstream outputs,
// dispatches through the handler registry strictly sequentially, and
// halts on the first failure with a structured diagnosis of what went
// wrong and which downstream nodes never ran.
//
// Sequential execution is a determinism choice, not an optimization
// shortfall; reordering or parallelizing siblings is a behavior change.
package engine
