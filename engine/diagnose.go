package engine

import (
	"fmt"
	"strings"

	"github.com/flowgrid/flowgrid/types"
)

// Diagnose turns a node failure into a structured, user-facing analysis:
// a summary, likely causes, suggested fixes, and the downstream nodes the
// failure prevented from running. It is heuristic keyword matching over
// the error text plus node-type knowledge, never control flow.
func Diagnose(failed *types.Node, errMessage string, g *graph, inputs map[string]any) *types.ErrorAnalysis {
	analysis := &types.ErrorAnalysis{
		Summary:        fmt.Sprintf("Node %q (%s) failed: %s", failed.Name(), failed.Type, errMessage),
		FailedNode:     failed.Name(),
		FailedNodeType: failed.Type,
	}

	for _, node := range g.downstreamOf(failed.ID) {
		analysis.AffectedNodes = append(analysis.AffectedNodes, node.Name())
	}

	lower := strings.ToLower(errMessage)
	causes, fixes := classify(lower)
	causes, fixes = refineByNodeType(failed.Type, lower, causes, fixes)

	// A node that received nothing usually means a miswired edge, which
	// explains most downstream symptoms better than the symptom itself.
	if len(inputs) == 0 && failed.Type != types.NodeInput {
		causes = append([]string{"The node received no input from upstream nodes"}, causes...)
		fixes = append([]string{"Check that the node is connected to an upstream node that produces output"}, fixes...)
	}

	if len(causes) == 0 {
		causes = []string{"The node hit an unexpected error during execution"}
		fixes = []string{
			"Review the node's configuration for mistakes",
			"Inspect the execution log of this node for the exact failure",
		}
	}

	analysis.PossibleCauses = causes
	analysis.SuggestedFixes = fixes
	return analysis
}

// classify maps error-text keywords to cause/fix pairs. Categories are
// checked independently; an error mentioning both "json" and "timeout"
// collects both explanations.
func classify(lower string) (causes, fixes []string) {
	if containsAny(lower, "array", "list") {
		causes = append(causes, "The data is not in the expected array format")
		fixes = append(fixes, "Check that the upstream node outputs an array, or adjust the operation to match the data shape")
	}
	if containsAny(lower, "undefined", "null", "missing") {
		causes = append(causes, "A referenced field does not exist in the input data")
		fixes = append(fixes, "Verify the field names referenced in the node's configuration against the upstream output")
	}
	if containsAny(lower, "network", "timeout", "connection", "request failed", "unreachable") {
		causes = append(causes, "The external service could not be reached or took too long to respond")
		fixes = append(fixes,
			"Confirm the endpoint URL is correct and the service is up",
			"Retry the run; transient network failures often clear on their own")
	}
	if containsAny(lower, "token", "model", "rate limit", "quota", "unauthorized") {
		causes = append(causes, "The AI provider rejected or limited the request")
		fixes = append(fixes,
			"Check the provider API key and account quota",
			"Reduce the prompt size or the requested output length")
	}
	if containsAny(lower, "json", "parse", "unmarshal", "invalid character") {
		causes = append(causes, "A response could not be parsed as valid JSON")
		fixes = append(fixes, "Inspect the raw response in the execution log and adjust the expected format")
	}
	if containsAny(lower, "config", "mapping", "required") {
		causes = append(causes, "The node's configuration is incomplete or inconsistent")
		fixes = append(fixes, "Open the node's settings and fill in the missing or mismatched fields")
	}
	if strings.Contains(lower, "condition") {
		causes = append(causes, "The condition expression could not be evaluated against the input")
		fixes = append(fixes, "Check the condition syntax (field operator value) and that the field exists in the input")
	}
	return causes, fixes
}

// refineByNodeType adds what the failed node's type implies beyond the
// error text.
func refineByNodeType(t types.NodeType, lower string, causes, fixes []string) ([]string, []string) {
	switch t {
	case types.NodeAPI:
		if containsAny(lower, "401", "403", "unauthorized", "forbidden") {
			causes = append(causes, "The API rejected the request's credentials")
			fixes = append(fixes, "Check the Authorization header and that the API key has the required permissions")
		}
		if containsAny(lower, "404", "not found") {
			causes = append(causes, "The API endpoint path does not exist")
			fixes = append(fixes, "Verify the URL path and any interpolated values in it")
		}
	case types.NodeAI:
		if !containsAny(lower, "token", "quota", "rate limit") {
			causes = append(causes, "The model output may not have matched the configured output schema")
			fixes = append(fixes, "Simplify the output schema or make the prompt more explicit about the expected fields")
		}
	case types.NodeLogic:
		if !strings.Contains(lower, "condition") {
			causes = append(causes, "The operation does not match the shape of the incoming data")
			fixes = append(fixes, "Check the configured operation against the upstream node's actual output")
		}
	}
	return causes, fixes
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
