package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/types"
)

func diagnosisFixture(t *testing.T) *graph {
	t.Helper()
	g, err := buildGraph(
		[]types.Node{
			{ID: "fetch", Type: types.NodeAPI, Label: "Fetch Users"},
			{ID: "filter", Type: types.NodeLogic, Label: "Filter Active"},
			{ID: "summarize", Type: types.NodeAI, Label: "Summarize"},
			{ID: "out", Type: types.NodeOutput, Label: "Report"},
		},
		[]types.Edge{edge("fetch", "filter"), edge("filter", "summarize"), edge("summarize", "out")},
	)
	require.NoError(t, err)
	return g
}

func TestDiagnose_ListsDownstreamLabelsOnly(t *testing.T) {
	t.Parallel()
	g := diagnosisFixture(t)

	analysis := Diagnose(g.nodes["filter"], "expected an array", g,
		map[string]any{"users": []any{}})

	assert.Equal(t, "Filter Active", analysis.FailedNode)
	assert.Equal(t, types.NodeLogic, analysis.FailedNodeType)
	assert.Equal(t, []string{"Summarize", "Report"}, analysis.AffectedNodes)
}

func TestDiagnose_ArrayShapeErrors(t *testing.T) {
	t.Parallel()
	g := diagnosisFixture(t)

	analysis := Diagnose(g.nodes["filter"], "filter expects an array input", g,
		map[string]any{"data": "oops"})

	assert.Contains(t, analysis.Summary, "Filter Active")
	require.NotEmpty(t, analysis.PossibleCauses)
	assert.Contains(t, analysis.PossibleCauses[0], "array format")
}

func TestDiagnose_NetworkErrors(t *testing.T) {
	t.Parallel()
	g := diagnosisFixture(t)

	analysis := Diagnose(g.nodes["fetch"], "request failed: connection timeout", g,
		map[string]any{"q": "x"})

	assert.Contains(t, analysis.PossibleCauses,
		"The external service could not be reached or took too long to respond")
}

func TestDiagnose_APIAuthRefinement(t *testing.T) {
	t.Parallel()
	g := diagnosisFixture(t)

	analysis := Diagnose(g.nodes["fetch"], "endpoint returned 401 Unauthorized", g,
		map[string]any{"q": "x"})

	var mentionsCredentials bool
	for _, cause := range analysis.PossibleCauses {
		if cause == "The API rejected the request's credentials" {
			mentionsCredentials = true
		}
	}
	assert.True(t, mentionsCredentials)
}

func TestDiagnose_AITokenErrors(t *testing.T) {
	t.Parallel()
	g := diagnosisFixture(t)

	analysis := Diagnose(g.nodes["summarize"], "provider rate limit exceeded", g,
		map[string]any{"text": "..."})

	require.NotEmpty(t, analysis.SuggestedFixes)
	var mentionsQuota bool
	for _, fix := range analysis.SuggestedFixes {
		if fix == "Check the provider API key and account quota" {
			mentionsQuota = true
		}
	}
	assert.True(t, mentionsQuota)
}

func TestDiagnose_EmptyInputCausePrepended(t *testing.T) {
	t.Parallel()
	g := diagnosisFixture(t)

	analysis := Diagnose(g.nodes["filter"], "something odd happened", g, map[string]any{})

	require.NotEmpty(t, analysis.PossibleCauses)
	assert.Equal(t, "The node received no input from upstream nodes", analysis.PossibleCauses[0])
}

func TestDiagnose_GenericFallback(t *testing.T) {
	t.Parallel()
	g := diagnosisFixture(t)

	analysis := Diagnose(g.nodes["out"], "kaboom", g, map[string]any{"result": 1})

	require.NotEmpty(t, analysis.PossibleCauses)
	require.NotEmpty(t, analysis.SuggestedFixes)
	assert.Contains(t, analysis.PossibleCauses[0], "unexpected error")
}

func TestDiagnose_TerminalNodeHasNoAffected(t *testing.T) {
	t.Parallel()
	g := diagnosisFixture(t)

	analysis := Diagnose(g.nodes["out"], "kaboom", g, map[string]any{"result": 1})
	assert.Empty(t, analysis.AffectedNodes)
}
