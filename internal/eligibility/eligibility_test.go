package eligibility

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"election-ledger/internal/database"
)

type fakeSource struct {
	memberships   []database.Membership
	organizations []database.Organization
	err           error
}

func (f *fakeSource) ListAll() ([]database.Membership, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.memberships, nil
}

func (f *fakeSource) ListOrganizations() ([]database.Organization, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.organizations, nil
}

type fakeDirectory struct {
	ids []int64
	err error
}

func (f *fakeDirectory) AllUserIDs() ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ids, nil
}

func ptr(v int64) *int64 { return &v }

func activeElection(start time.Time) *database.Election {
	return &database.Election{
		ID:            1,
		StartDatetime: start,
		EndDatetime:   start.Add(7 * 24 * time.Hour),
		Status:        database.ElectionStatusActive,
	}
}

func TestOrganizationWeightGoesToRepresentativeOnly(t *testing.T) {
	start := time.Now()

	// Sponsorship created 120 days before an election with a 90 day
	// minimum-age threshold, weight 5: the representative gets weight 5
	// and nobody else gets anything.
	source := &fakeSource{
		organizations: []database.Organization{
			{ID: 10, Name: "Acme Corp", RepresentativeUserID: ptr(1)},
		},
		memberships: []database.Membership{
			{
				OrganizationID: ptr(10),
				Type:           database.MembershipTypeOrganization,
				Weight:         5,
				StartDate:      start.AddDate(0, 0, -120),
			},
		},
	}

	engine := NewEngine(source, &fakeDirectory{ids: []int64{1, 2}}, 90)

	voters, err := engine.EligibleVoters(activeElection(start))
	require.NoError(t, err)
	require.Len(t, voters, 1)
	assert.Equal(t, EligibleVoter{UserID: 1, Weight: 5}, voters[0])
}

func TestWeightsSumAcrossQualifyingMemberships(t *testing.T) {
	start := time.Now()

	source := &fakeSource{
		organizations: []database.Organization{
			{ID: 10, Name: "Acme Corp", RepresentativeUserID: ptr(1)},
		},
		memberships: []database.Membership{
			{
				UserID:    ptr(1),
				Type:      database.MembershipTypeIndividual,
				Weight:    1,
				StartDate: start.AddDate(0, 0, -400),
			},
			{
				OrganizationID: ptr(10),
				Type:           database.MembershipTypeOrganization,
				Weight:         5,
				StartDate:      start.AddDate(0, 0, -200),
			},
		},
	}

	engine := NewEngine(source, &fakeDirectory{ids: []int64{1}}, 90)

	voters, err := engine.EligibleVoters(activeElection(start))
	require.NoError(t, err)
	require.Len(t, voters, 1)
	assert.Equal(t, 6, voters[0].Weight)
}

func TestTooNewMembershipCarriesNoVote(t *testing.T) {
	start := time.Now()

	source := &fakeSource{
		memberships: []database.Membership{
			{
				UserID:    ptr(1),
				Type:      database.MembershipTypeIndividual,
				Weight:    1,
				StartDate: start.AddDate(0, 0, -10),
			},
		},
	}

	engine := NewEngine(source, &fakeDirectory{ids: []int64{1}}, 90)
	election := activeElection(start)

	voters, err := engine.EligibleVoters(election)
	require.NoError(t, err)
	assert.Empty(t, voters)

	ineligible, err := engine.IneligibleVotersWithReasons(election)
	require.NoError(t, err)
	require.Len(t, ineligible, 1)
	assert.Equal(t, ReasonTooNew, ineligible[0].Reason)
	assert.Equal(t, 80, ineligible[0].DaysShort)
}

func TestIneligibleReasons(t *testing.T) {
	start := time.Now()
	expired := start.AddDate(0, 0, -30)

	source := &fakeSource{
		memberships: []database.Membership{
			// user 2: membership lapsed before the election start
			{
				UserID:    ptr(2),
				Type:      database.MembershipTypeIndividual,
				Weight:    1,
				StartDate: start.AddDate(-1, 0, 0),
				EndDate:   &expired,
			},
		},
	}

	engine := NewEngine(source, &fakeDirectory{ids: []int64{2, 3}}, 90)

	ineligible, err := engine.IneligibleVotersWithReasons(activeElection(start))
	require.NoError(t, err)
	require.Len(t, ineligible, 2)

	assert.Equal(t, int64(2), ineligible[0].UserID)
	assert.Equal(t, ReasonExpired, ineligible[0].Reason)
	assert.Equal(t, int64(3), ineligible[1].UserID)
	assert.Equal(t, ReasonNoMembership, ineligible[1].Reason)
}

func TestEligibleAndIneligibleViewsNeverOverlap(t *testing.T) {
	start := time.Now()

	source := &fakeSource{
		memberships: []database.Membership{
			{UserID: ptr(1), Type: database.MembershipTypeIndividual, Weight: 1, StartDate: start.AddDate(-1, 0, 0)},
			{UserID: ptr(2), Type: database.MembershipTypeIndividual, Weight: 2, StartDate: start.AddDate(0, 0, -5)},
		},
	}

	engine := NewEngine(source, &fakeDirectory{ids: []int64{1, 2, 3}}, 90)
	election := activeElection(start)

	voters, err := engine.EligibleVoters(election)
	require.NoError(t, err)
	ineligible, err := engine.IneligibleVotersWithReasons(election)
	require.NoError(t, err)

	eligibleSet := make(map[int64]bool)
	for _, v := range voters {
		eligibleSet[v.UserID] = true
	}
	for _, entry := range ineligible {
		assert.False(t, eligibleSet[entry.UserID], "user %d is in both views", entry.UserID)
	}
	assert.Len(t, voters, 1)
	assert.Len(t, ineligible, 2)
}

func TestUnreachableSourceFailsLoudly(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	engine := NewEngine(source, &fakeDirectory{}, 90)

	_, err := engine.EligibleVoters(activeElection(time.Now()))
	require.Error(t, err)

	var sourceErr *SourceError
	assert.True(t, errors.As(err, &sourceErr))
}

func TestWeightBreakdown(t *testing.T) {
	start := time.Now()

	source := &fakeSource{
		organizations: []database.Organization{
			{ID: 10, Name: "Acme Corp", RepresentativeUserID: ptr(1)},
		},
		memberships: []database.Membership{
			{
				OrganizationID: ptr(10),
				Type:           database.MembershipTypeOrganization,
				Weight:         5,
				StartDate:      start.AddDate(0, 0, -120),
			},
			{
				UserID:    ptr(1),
				Type:      database.MembershipTypeIndividual,
				Weight:    1,
				StartDate: start.AddDate(0, 0, -120),
			},
			// Too new to count, must not appear
			{
				UserID:    ptr(1),
				Type:      database.MembershipTypeIndividual,
				Weight:    3,
				StartDate: start.AddDate(0, 0, -5),
			},
		},
	}

	engine := NewEngine(source, &fakeDirectory{ids: []int64{1}}, 90)

	lines, err := engine.WeightBreakdown(activeElection(start), 1)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	// Individual memberships come before organization sponsorships
	assert.Equal(t, database.MembershipTypeIndividual, lines[0].Label)
	assert.Equal(t, 1, lines[0].Votes)
	assert.Equal(t, "Acme Corp", lines[1].OrgName)
	assert.Equal(t, 5, lines[1].Votes)
}

func TestIsSelfNomination(t *testing.T) {
	assert.True(t, IsSelfNomination(ptr(1), ptr(1)))
	assert.False(t, IsSelfNomination(ptr(1), ptr(2)))
	assert.False(t, IsSelfNomination(nil, ptr(1)))
	assert.False(t, IsSelfNomination(ptr(1), nil))
}
