package engine

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/flowgrid/flowgrid/nodes"
	"github.com/flowgrid/flowgrid/types"
)

// randomDAG builds an acyclic workflow: nodes n0..n{count-1}, edges only
// from lower to higher index, so index order is one valid topological
// order by construction.
func randomDAG(count int, seed int64) ([]types.Node, []types.Edge) {
	rng := rand.New(rand.NewSource(seed))
	nodeList := make([]types.Node, count)
	for i := range nodeList {
		nodeList[i] = types.Node{ID: fmt.Sprintf("n%d", i), Type: types.NodeLogic}
	}
	var edges []types.Edge
	for i := 0; i < count; i++ {
		for j := i + 1; j < count; j++ {
			if rng.Intn(3) == 0 {
				edges = append(edges, edge(nodeList[i].ID, nodeList[j].ID))
			}
		}
	}
	return nodeList, edges
}

func TestProperty_TopologicalOrderIsValid(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("every node appears exactly once and edges point forward", prop.ForAll(
		func(count int, seed int64) bool {
			nodeList, edges := randomDAG(count, seed)

			g, err := buildGraph(nodeList, edges)
			if err != nil {
				t.Logf("buildGraph failed: %v", err)
				return false
			}
			order, err := g.topologicalOrder()
			if err != nil {
				t.Logf("topologicalOrder failed on acyclic graph: %v", err)
				return false
			}

			if len(order) != len(nodeList) {
				t.Logf("order has %d entries, want %d", len(order), len(nodeList))
				return false
			}
			position := make(map[string]int, len(order))
			for i, id := range order {
				if _, dup := position[id]; dup {
					t.Logf("node %s appears twice", id)
					return false
				}
				position[id] = i
			}
			for _, e := range edges {
				if position[e.Source] >= position[e.Target] {
					t.Logf("edge %s->%s violated", e.Source, e.Target)
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 15),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestProperty_CyclicGraphExecutesNoNodes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("closing any chain into a cycle aborts with zero logs", prop.ForAll(
		func(count int) bool {
			nodeList := make([]types.Node, count)
			edges := make([]types.Edge, 0, count)
			for i := range nodeList {
				nodeList[i] = types.Node{ID: fmt.Sprintf("n%d", i), Type: types.NodeLogic}
				if i > 0 {
					edges = append(edges, edge(nodeList[i-1].ID, nodeList[i].ID))
				}
			}
			// Back edge from the tail to the head closes the cycle.
			edges = append(edges, edge(nodeList[count-1].ID, nodeList[0].ID))

			handler := &stubHandler{}
			registry := nodes.NewRegistry()
			registry.Register(types.NodeLogic, handler)

			record := NewExecutor(registry).Execute(context.Background(), nodeList, edges, nil)

			if record.Success {
				t.Logf("cyclic workflow reported success")
				return false
			}
			if len(record.Logs) != 0 {
				t.Logf("cyclic workflow executed %d nodes", len(record.Logs))
				return false
			}
			if handler.calls.Load() != 0 {
				t.Logf("handler was invoked %d times", handler.calls.Load())
				return false
			}
			return true
		},
		gen.IntRange(2, 10),
	))

	properties.TestingRun(t)
}
