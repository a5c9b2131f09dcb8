package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Candidates A(10), B(11), C(12), D(13), 4 seats, one exclusion group
// allowing at most one of {A, D}.
func fixtureCandidates() []Candidate {
	return []Candidate{
		{ID: 10, Name: "A", TiebreakUUID: "00000000-0000-0000-0000-000000000010"},
		{ID: 11, Name: "B", TiebreakUUID: "00000000-0000-0000-0000-000000000011"},
		{ID: 12, Name: "C", TiebreakUUID: "00000000-0000-0000-0000-000000000012"},
		{ID: 13, Name: "D", TiebreakUUID: "00000000-0000-0000-0000-000000000013"},
	}
}

func fixtureBallots() []Ballot {
	return []Ballot{
		{Weight: 1, Ranking: []int64{10, 12}},
		{Weight: 1, Ranking: []int64{11, 10}},
		{Weight: 1, Ranking: []int64{12, 11}},
		{Weight: 1, Ranking: []int64{11, 12, 10}},
		{Weight: 5, Ranking: []int64{11, 10}},
		{Weight: 2, Ranking: []int64{12, 11, 10}},
		{Weight: 5, Ranking: []int64{10, 12, 11}},
	}
}

func fixtureGroups() []ExclusionGroup {
	return []ExclusionGroup{
		{PublicID: "1", Name: "Incompatibles", MaxElected: 1, CandidateIDs: []int64{10, 13}},
	}
}

func TestTallyFixtureScenario(t *testing.T) {
	result, err := Tally(4, fixtureBallots(), fixtureCandidates(), fixtureGroups())
	require.NoError(t, err)

	assert.LessOrEqual(t, len(result.Elected), 4)
	require.NotEmpty(t, result.Rounds)
	assert.Equal(t, "meek", result.Method)
	assert.NotEmpty(t, result.Quota)

	// At most one of {A, D} may be elected
	constrained := 0
	for _, cid := range result.Elected {
		if cid == 10 || cid == 13 {
			constrained++
		}
	}
	assert.LessOrEqual(t, constrained, 1)

	// B and A clear quota on first preferences, which caps the group and
	// force-excludes D; C fills the remaining seat
	assert.Equal(t, []int64{10, 11, 12}, result.Elected)
	assert.Equal(t, []int64{13}, result.ForcedExcluded)
	assert.Empty(t, result.Eliminated)
}

func TestTallyRoundRecordsAreComplete(t *testing.T) {
	result, err := Tally(4, fixtureBallots(), fixtureCandidates(), fixtureGroups())
	require.NoError(t, err)

	for _, round := range result.Rounds {
		assert.Greater(t, round.Iteration, 0)
		assert.NotNil(t, round.Elected)
		assert.NotNil(t, round.ForcedExclusions)
		assert.NotNil(t, round.TieBreaks)
		assert.NotEmpty(t, round.EligibleCandidates)
		assert.NotEmpty(t, round.RetentionFactors)
		assert.NotEmpty(t, round.RetainedTotals)
		assert.NotEmpty(t, round.MaxRetentionDelta)
		assert.Equal(t, 4, round.Seats)
		assert.NotEmpty(t, round.AuditText)
		assert.NotEmpty(t, round.SummaryText)
		assert.True(t, round.NumericallyConverged)
	}

	last := result.Rounds[len(result.Rounds)-1]
	assert.True(t, last.CountComplete)
}

func TestTallyIdempotent(t *testing.T) {
	first, err := Tally(4, fixtureBallots(), fixtureCandidates(), fixtureGroups())
	require.NoError(t, err)
	second, err := Tally(4, fixtureBallots(), fixtureCandidates(), fixtureGroups())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestTallySingleSeatWithElimination(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Name: "A", TiebreakUUID: "00000000-0000-0000-0000-000000000001"},
		{ID: 2, Name: "B", TiebreakUUID: "00000000-0000-0000-0000-000000000002"},
		{ID: 3, Name: "C", TiebreakUUID: "00000000-0000-0000-0000-000000000003"},
	}
	ballots := []Ballot{
		{Weight: 3, Ranking: []int64{1}},
		{Weight: 2, Ranking: []int64{2}},
		{Weight: 1, Ranking: []int64{3}},
	}

	result, err := Tally(1, ballots, candidates, nil)
	require.NoError(t, err)

	// Quota starts above 3, C is eliminated, then A clears the lower quota
	assert.Equal(t, []int64{1}, result.Elected)
	assert.Equal(t, []int64{3}, result.Eliminated)
	require.Len(t, result.Rounds, 2)
	require.NotNil(t, result.Rounds[0].Eliminated)
	assert.Equal(t, int64(3), *result.Rounds[0].Eliminated)
	assert.Equal(t, []int64{1}, result.Rounds[1].Elected)
}

func TestTallyEliminationTieBrokenByTiebreakUUID(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Name: "A", TiebreakUUID: "00000000-0000-0000-0000-000000000002"},
		{ID: 2, Name: "B", TiebreakUUID: "00000000-0000-0000-0000-000000000001"},
	}
	ballots := []Ballot{
		{Weight: 1, Ranking: []int64{1}},
		{Weight: 1, Ranking: []int64{2}},
	}

	result, err := Tally(1, ballots, candidates, nil)
	require.NoError(t, err)

	// Both candidates sit at 1; the smaller tiebreak UUID loses
	assert.Equal(t, []int64{2}, result.Eliminated)
	assert.Equal(t, []int64{1}, result.Elected)

	require.NotEmpty(t, result.Rounds[0].TieBreaks)
	tb := result.Rounds[0].TieBreaks[0]
	assert.Equal(t, []int64{1, 2}, tb.Candidates)
	assert.Equal(t, int64(2), tb.Selected)
	assert.Equal(t, "tiebreak_uuid", tb.Method)
}

func TestTallyAbstentionsOnlyExhaust(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Name: "A", TiebreakUUID: "00000000-0000-0000-0000-000000000001"},
		{ID: 2, Name: "B", TiebreakUUID: "00000000-0000-0000-0000-000000000002"},
	}
	ballots := []Ballot{
		{Weight: 3, Ranking: nil},
		{Weight: 3, Ranking: []int64{}},
		{Weight: 1, Ranking: []int64{1}},
	}

	result, err := Tally(1, ballots, candidates, nil)
	require.NoError(t, err)

	// Abstaining weight never elects anyone; only A's single vote counts
	assert.Equal(t, []int64{1}, result.Elected)
	assert.Equal(t, "6", result.ExhaustedTotal)
}

func TestTallyElectsAllWhenSeatsCoverCandidates(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Name: "A", TiebreakUUID: "00000000-0000-0000-0000-000000000001"},
		{ID: 2, Name: "B", TiebreakUUID: "00000000-0000-0000-0000-000000000002"},
	}
	ballots := []Ballot{
		{Weight: 1, Ranking: []int64{1, 2}},
	}

	result, err := Tally(3, ballots, candidates, nil)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, result.Elected)
	assert.Empty(t, result.Eliminated)
}

func TestTallyRejectsWholeInputOnBadBallots(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Name: "A", TiebreakUUID: "00000000-0000-0000-0000-000000000001"},
	}
	ballots := []Ballot{
		{Weight: 1, Ranking: []int64{1}},
		{Weight: 0, Ranking: []int64{1}},
		{Weight: 2, Ranking: []int64{99}},
		{Weight: 2, Ranking: []int64{1, 1}},
	}

	_, err := Tally(1, ballots, candidates, nil)
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	// Every bad ballot is reported, none silently skipped
	require.Len(t, validationErr.Faults, 3)
	assert.Equal(t, 1, validationErr.Faults[0].Index)
	assert.Equal(t, 2, validationErr.Faults[1].Index)
	assert.Equal(t, 3, validationErr.Faults[2].Index)
}

func TestTallyRejectsBadSeatCount(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Name: "A", TiebreakUUID: "00000000-0000-0000-0000-000000000001"},
	}

	_, err := Tally(0, nil, candidates, nil)
	assert.Error(t, err)
}

func TestTallyRetainedTotalsAreDecimalStrings(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Name: "A", TiebreakUUID: "00000000-0000-0000-0000-000000000001"},
		{ID: 2, Name: "B", TiebreakUUID: "00000000-0000-0000-0000-000000000002"},
	}
	ballots := []Ballot{
		{Weight: 3, Ranking: []int64{1, 2}},
		{Weight: 1, Ranking: []int64{2}},
	}

	result, err := Tally(1, ballots, candidates, nil)
	require.NoError(t, err)

	first := result.Rounds[0]
	assert.Equal(t, "3", first.RetainedTotals["1"])
	assert.Equal(t, "1", first.RetainedTotals["2"])
}
