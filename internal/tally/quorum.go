package tally

import "github.com/cockroachdb/apd/v3"

// QuorumStatus reports turnout against an election's quorum on both axes:
// distinct participating voters and total participating vote weight. Both
// thresholds must be met.
type QuorumStatus struct {
	QuorumPercent                        int    `json:"quorum_percent"`
	QuorumRequired                       bool   `json:"quorum_required"`
	QuorumMet                            bool   `json:"quorum_met"`
	RequiredParticipatingVoterCount      int    `json:"required_participating_voter_count"`
	RequiredParticipatingVoteWeightTotal int    `json:"required_participating_vote_weight_total"`
	EligibleVoterCount                   int    `json:"eligible_voter_count"`
	EligibleVoteWeightTotal              int    `json:"eligible_vote_weight_total"`
	ParticipatingVoterCount              int    `json:"participating_voter_count"`
	ParticipatingVoteWeightTotal         int    `json:"participating_vote_weight_total"`
	TurnoutPercent                       string `json:"turnout_percent"`
}

// ceilPercent computes ceil(total * percent / 100) in integer arithmetic
func ceilPercent(total, percent int) int {
	return (total*percent + 99) / 100
}

// ComputeQuorum evaluates turnout against the quorum percentage. A quorum of
// zero means no quorum is required and it is never reported as met.
func ComputeQuorum(quorumPercent, eligibleCount, eligibleWeight, participatingCount, participatingWeight int) QuorumStatus {
	status := QuorumStatus{
		QuorumPercent:                quorumPercent,
		QuorumRequired:               quorumPercent > 0,
		EligibleVoterCount:           eligibleCount,
		EligibleVoteWeightTotal:      eligibleWeight,
		ParticipatingVoterCount:      participatingCount,
		ParticipatingVoteWeightTotal: participatingWeight,
		TurnoutPercent:               turnoutPercent(participatingCount, eligibleCount),
	}

	if quorumPercent > 0 && eligibleCount > 0 {
		status.RequiredParticipatingVoterCount = ceilPercent(eligibleCount, quorumPercent)
	}
	if quorumPercent > 0 && eligibleWeight > 0 {
		status.RequiredParticipatingVoteWeightTotal = ceilPercent(eligibleWeight, quorumPercent)
	}

	status.QuorumMet = status.RequiredParticipatingVoterCount > 0 &&
		status.RequiredParticipatingVoteWeightTotal > 0 &&
		participatingCount >= status.RequiredParticipatingVoterCount &&
		participatingWeight >= status.RequiredParticipatingVoteWeightTotal

	return status
}

// turnoutPercent returns ballots/eligible as an exact decimal percentage
// string, precise enough for any gating decision built on it.
func turnoutPercent(participating, eligible int) string {
	if eligible <= 0 {
		return "0"
	}

	ctx := apd.BaseContext.WithPrecision(decimalPrecision)
	turnout := new(apd.Decimal)
	if _, err := ctx.Quo(turnout, apd.New(int64(participating)*100, 0), apd.New(int64(eligible), 0)); err != nil {
		return "0"
	}
	return turnout.Text('f')
}
