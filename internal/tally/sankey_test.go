package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eliminatedPtr(cid int64) *int64 { return &cid }

func TestBuildSankeyFlowsTwoRounds(t *testing.T) {
	// A holds 3 then 2, B holds 1 then 2; B is elected, A eliminated.
	// A's lost vote flows to B, the only gainer.
	result := &Result{
		Rounds: []Round{
			{
				Iteration:      1,
				RetainedTotals: map[string]string{"1": "3", "2": "1"},
				Elected:        []int64{},
			},
			{
				Iteration:      2,
				RetainedTotals: map[string]string{"1": "2", "2": "2"},
				Elected:        []int64{2},
				Eliminated:     eliminatedPtr(1),
			},
		},
	}
	names := map[int64]string{1: "A", 2: "B"}

	data := BuildSankeyFlows(result, names, 4)

	require.Len(t, data.Flows, 5)
	assert.Contains(t, data.Flows, Flow{From: "Voters", To: "Round 1 · A", Flow: 3.0})
	assert.Contains(t, data.Flows, Flow{From: "Voters", To: "Round 1 · B", Flow: 1.0})
	assert.Contains(t, data.Flows, Flow{From: "Round 1 · A", To: "Round 2 · A", Flow: 2.0})
	assert.Contains(t, data.Flows, Flow{From: "Round 1 · B", To: "Round 2 · B", Flow: 1.0})
	assert.Contains(t, data.Flows, Flow{From: "Round 1 · A", To: "Round 2 · B", Flow: 1.0})

	assert.Equal(t, []string{"Round 2 · B"}, data.ElectedNodes)
	assert.Equal(t, []string{"Round 2 · A"}, data.EliminatedNodes)
}

func TestBuildSankeyFlowsScalesFirstRoundToVotesCast(t *testing.T) {
	// Weighted totals sum to 8 but only 4 ballots were cast, so the edges
	// out of the Voters node must sum to 4
	result := &Result{
		Rounds: []Round{
			{
				Iteration:      1,
				RetainedTotals: map[string]string{"1": "6", "2": "2"},
				Elected:        []int64{1},
			},
		},
	}
	names := map[int64]string{1: "A", 2: "B"}

	data := BuildSankeyFlows(result, names, 4)

	require.Len(t, data.Flows, 2)
	assert.Contains(t, data.Flows, Flow{From: "Voters", To: "Round 1 · A", Flow: 3.0})
	assert.Contains(t, data.Flows, Flow{From: "Voters", To: "Round 1 · B", Flow: 1.0})
}

func TestBuildSankeyFlowsElectedNodesCarryForward(t *testing.T) {
	result := &Result{
		Rounds: []Round{
			{
				Iteration:      1,
				RetainedTotals: map[string]string{"1": "3", "2": "1", "3": "1"},
				Elected:        []int64{1},
			},
			{
				Iteration:      2,
				RetainedTotals: map[string]string{"1": "2", "2": "2", "3": "1"},
				Elected:        []int64{2},
			},
		},
	}
	names := map[int64]string{1: "A", 2: "B", 3: "C"}

	data := BuildSankeyFlows(result, names, 5)

	assert.Equal(t, []string{
		"Round 1 · A",
		"Round 2 · A",
		"Round 2 · B",
	}, data.ElectedNodes)
}

func TestBuildSankeyFlowsDropsZeroTotals(t *testing.T) {
	result := &Result{
		Rounds: []Round{
			{
				Iteration:      1,
				RetainedTotals: map[string]string{"1": "4", "2": "0"},
			},
		},
	}

	data := BuildSankeyFlows(result, map[int64]string{1: "A", 2: "B"}, 4)

	require.Len(t, data.Flows, 1)
	assert.Equal(t, "Round 1 · A", data.Flows[0].To)
}

func TestBuildSankeyFlowsEmptyResult(t *testing.T) {
	data := BuildSankeyFlows(nil, nil, 0)

	assert.Empty(t, data.Flows)
	assert.Empty(t, data.ElectedNodes)
	assert.Empty(t, data.EliminatedNodes)

	data = BuildSankeyFlows(&Result{}, nil, 0)
	assert.Empty(t, data.Flows)
}

func TestBuildSankeyFlowsFallsBackToCandidateID(t *testing.T) {
	result := &Result{
		Rounds: []Round{
			{
				Iteration:      1,
				RetainedTotals: map[string]string{"7": "2"},
			},
		},
	}

	data := BuildSankeyFlows(result, nil, 2)

	require.Len(t, data.Flows, 1)
	assert.Equal(t, "Round 1 · Candidate 7", data.Flows[0].To)
}
