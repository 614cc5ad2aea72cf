package engine

import (
	"context"

	"github.com/flowgrid/flowgrid/types"
)

// nodeCosts prices one execution of each node type. AI nodes are an order
// of magnitude dearer because they spend provider tokens; input and
// output nodes are free since they touch nothing external.
var nodeCosts = map[types.NodeType]int{
	types.NodeInput:       0,
	types.NodeOutput:      0,
	types.NodeAPI:         1,
	types.NodeLogic:       1,
	types.NodeWebhook:     1,
	types.NodeIntegration: 1,
	types.NodeAI:          10,
}

// CostOf returns the credit price of one execution of the given node type.
// Unknown types are priced like ordinary nodes.
func CostOf(t types.NodeType) int {
	if cost, ok := nodeCosts[t]; ok {
		return cost
	}
	return 1
}

// WorkflowCost sums the credit price of running every node once.
func WorkflowCost(nodeList []types.Node) int {
	total := 0
	for i := range nodeList {
		total += CostOf(nodeList[i].Type)
	}
	return total
}

// Meter is the engine's hook into an external credit ledger. The engine
// checks the full workflow cost before running and deducts the cost of
// the nodes that actually executed afterwards; how balances are stored
// is the caller's concern.
type Meter interface {
	HasEnoughCredits(ctx context.Context, required int) (bool, error)
	DeductCredits(ctx context.Context, amount int) error
}

// NopMeter grants every run and records nothing. It is the default when
// no ledger is wired in.
type NopMeter struct{}

func (NopMeter) HasEnoughCredits(context.Context, int) (bool, error) { return true, nil }
func (NopMeter) DeductCredits(context.Context, int) error            { return nil }
