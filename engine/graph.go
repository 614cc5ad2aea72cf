package engine

import (
	"fmt"

	"github.com/flowgrid/flowgrid/types"
)

// graph is the executor's view of a workflow: indexed nodes, adjacency,
// incoming edges, and in-degree counts. It is built once per run.
type graph struct {
	nodes map[string]*types.Node
	// order preserves the caller's node ordering so that Kahn's algorithm
	// is deterministic for a given document.
	order     []string
	adjacency map[string][]string
	incoming  map[string][]types.Edge
	indegree  map[string]int
}

// buildGraph indexes nodes and edges, rejecting edges whose endpoints do
// not exist in the node set.
func buildGraph(nodeList []types.Node, edges []types.Edge) (*graph, error) {
	g := &graph{
		nodes:     make(map[string]*types.Node, len(nodeList)),
		order:     make([]string, 0, len(nodeList)),
		adjacency: make(map[string][]string),
		incoming:  make(map[string][]types.Edge),
		indegree:  make(map[string]int, len(nodeList)),
	}

	for i := range nodeList {
		node := &nodeList[i]
		if _, dup := g.nodes[node.ID]; dup {
			return nil, types.NewError(types.ErrInvalidWorkflow,
				fmt.Sprintf("duplicate node id: %s", node.ID))
		}
		g.nodes[node.ID] = node
		g.order = append(g.order, node.ID)
		g.indegree[node.ID] = 0
	}

	for _, edge := range edges {
		if _, ok := g.nodes[edge.Source]; !ok {
			return nil, types.NewError(types.ErrUnknownNode,
				fmt.Sprintf("edge %s references unknown source node: %s", edge.ID, edge.Source))
		}
		if _, ok := g.nodes[edge.Target]; !ok {
			return nil, types.NewError(types.ErrUnknownNode,
				fmt.Sprintf("edge %s references unknown target node: %s", edge.ID, edge.Target))
		}
		g.adjacency[edge.Source] = append(g.adjacency[edge.Source], edge.Target)
		g.incoming[edge.Target] = append(g.incoming[edge.Target], edge)
		g.indegree[edge.Target]++
	}

	return g, nil
}

// topologicalOrder runs Kahn's algorithm. The queue is seeded in document
// order and processed FIFO, so the result is stable for a given input.
// A short order means the graph contains a cycle.
func (g *graph) topologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.indegree))
	for id, d := range g.indegree {
		indegree[id] = d
	}

	queue := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, next := range g.adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(g.order) {
		return nil, types.NewError(types.ErrCyclicGraph,
			"workflow contains a cycle; remove the circular connection between nodes and try again")
	}
	return order, nil
}

// downstreamOf returns every node transitively reachable from start,
// in BFS order, excluding start itself.
func (g *graph) downstreamOf(start string) []*types.Node {
	visited := map[string]bool{start: true}
	queue := append([]string(nil), g.adjacency[start]...)

	var out []*types.Node
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		if node, ok := g.nodes[id]; ok {
			out = append(out, node)
		}
		queue = append(queue, g.adjacency[id]...)
	}
	return out
}
