package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeQuorumMetOnBothAxes(t *testing.T) {
	// 3 eligible voters at 50% needs 2 voters; weight 12 at 50% needs 6
	status := ComputeQuorum(50, 3, 12, 2, 6)

	assert.True(t, status.QuorumRequired)
	assert.Equal(t, 2, status.RequiredParticipatingVoterCount)
	assert.Equal(t, 6, status.RequiredParticipatingVoteWeightTotal)
	assert.True(t, status.QuorumMet)
}

func TestComputeQuorumVoterAxisShortfall(t *testing.T) {
	status := ComputeQuorum(50, 3, 12, 1, 6)

	assert.False(t, status.QuorumMet)
	assert.Equal(t, 1, status.ParticipatingVoterCount)
}

func TestComputeQuorumWeightAxisShortfall(t *testing.T) {
	// Enough voters showed up but their combined weight falls short
	status := ComputeQuorum(50, 3, 12, 2, 5)

	assert.False(t, status.QuorumMet)
	assert.Equal(t, 5, status.ParticipatingVoteWeightTotal)
}

func TestComputeQuorumZeroPercentNeverMet(t *testing.T) {
	status := ComputeQuorum(0, 3, 12, 3, 12)

	assert.False(t, status.QuorumRequired)
	assert.False(t, status.QuorumMet)
	assert.Equal(t, 0, status.RequiredParticipatingVoterCount)
	assert.Equal(t, 0, status.RequiredParticipatingVoteWeightTotal)
}

func TestComputeQuorumRoundsThresholdsUp(t *testing.T) {
	// 7 voters at 30% is 2.1, which must round up to 3
	status := ComputeQuorum(30, 7, 7, 2, 2)

	assert.Equal(t, 3, status.RequiredParticipatingVoterCount)
	assert.False(t, status.QuorumMet)
}

func TestComputeQuorumTurnoutPercent(t *testing.T) {
	status := ComputeQuorum(50, 4, 8, 2, 4)

	assert.Equal(t, "50", status.TurnoutPercent)
	assert.True(t, status.QuorumMet)
}

func TestComputeQuorumNoEligibleVoters(t *testing.T) {
	status := ComputeQuorum(50, 0, 0, 0, 0)

	assert.True(t, status.QuorumRequired)
	assert.False(t, status.QuorumMet)
	assert.Equal(t, "0", status.TurnoutPercent)
}
