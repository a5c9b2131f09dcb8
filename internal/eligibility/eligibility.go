package eligibility

import (
	"fmt"
	"sort"
	"time"

	"election-ledger/internal/database"
)

// MembershipSource supplies the membership and organization records the
// engine computes eligibility from. Batch fetches only; the engine never
// issues per-user lookups.
type MembershipSource interface {
	ListAll() ([]database.Membership, error)
	ListOrganizations() ([]database.Organization, error)
}

// UserDirectory enumerates the full electorate, eligible or not
type UserDirectory interface {
	AllUserIDs() ([]int64, error)
}

// SourceError wraps a failure to reach membership data. Eligibility gates a
// governance process, so an unreachable source is surfaced loudly instead of
// degrading to an empty electorate.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("membership data source unreachable: %v", e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Ineligibility reasons.
const (
	ReasonNoMembership = "no_membership"
	ReasonExpired      = "expired"
	ReasonTooNew       = "too_new"
)

// EligibleVoter is one entry in the frozen electorate
type EligibleVoter struct {
	UserID int64 `json:"user_id"`
	Weight int   `json:"weight"`
}

// IneligibleVoter explains why a user cannot vote in an election
type IneligibleVoter struct {
	UserID            int64  `json:"user_id"`
	Reason            string `json:"reason"`
	TermStartDate     string `json:"term_start_date"`
	ElectionStartDate string `json:"election_start_date"`
	DaysAtStart       int    `json:"days_at_start"`
	DaysShort         int    `json:"days_short"`
}

// WeightLine is a single membership contributing to a voter's weight
type WeightLine struct {
	Label   string `json:"label"`
	OrgName string `json:"org_name"`
	Votes   int    `json:"votes"`
}

// facts is the shared per-user eligibility summary both public views are
// derived from, so the eligible and ineligible lists can never disagree.
type facts struct {
	weight               int
	termStart            *time.Time
	hasAnyVoteEligible   bool
	hasActiveAtReference bool
}

type Engine struct {
	memberships          MembershipSource
	users                UserDirectory
	minMembershipAgeDays int
}

func NewEngine(memberships MembershipSource, users UserDirectory, minMembershipAgeDays int) *Engine {
	return &Engine{
		memberships:          memberships,
		users:                users,
		minMembershipAgeDays: minMembershipAgeDays,
	}
}

// referenceDatetime is the point in time eligibility is measured at. For a
// draft election the start may still move, so the later of start and now is
// used to preview the stricter outcome.
func referenceDatetime(election *database.Election) time.Time {
	ref := election.StartDatetime
	if election.Status == database.ElectionStatusDraft && time.Now().After(ref) {
		ref = time.Now()
	}
	return ref
}

func membershipActiveAt(endDate *time.Time, reference time.Time) bool {
	return endDate == nil || !endDate.Before(reference)
}

func membershipOldEnough(startDate time.Time, cutoff time.Time) bool {
	return !startDate.After(cutoff)
}

// voterForMembership resolves who a membership's vote belongs to: the member
// for individual memberships, the organization's single representative for
// sponsorships. Returns false when nobody can receive the vote.
func voterForMembership(m *database.Membership, reps map[int64]int64) (int64, bool) {
	switch m.Type {
	case database.MembershipTypeIndividual:
		if m.UserID == nil {
			return 0, false
		}
		return *m.UserID, true
	case database.MembershipTypeOrganization:
		if m.OrganizationID == nil {
			return 0, false
		}
		rep, ok := reps[*m.OrganizationID]
		return rep, ok
	default:
		return 0, false
	}
}

// factsByUser builds the shared eligibility facts in one pass over all
// membership records. Weights from multiple qualifying memberships sum.
func (e *Engine) factsByUser(election *database.Election) (map[int64]*facts, error) {
	reference := referenceDatetime(election)
	cutoff := reference.AddDate(0, 0, -e.minMembershipAgeDays)

	memberships, err := e.memberships.ListAll()
	if err != nil {
		return nil, &SourceError{Err: err}
	}

	organizations, err := e.memberships.ListOrganizations()
	if err != nil {
		return nil, &SourceError{Err: err}
	}

	reps := make(map[int64]int64, len(organizations))
	for _, org := range organizations {
		if org.RepresentativeUserID != nil {
			reps[org.ID] = *org.RepresentativeUserID
		}
	}

	byUser := make(map[int64]*facts)
	get := func(userID int64) *facts {
		f, ok := byUser[userID]
		if !ok {
			f = &facts{}
			byUser[userID] = f
		}
		return f
	}

	for i := range memberships {
		m := &memberships[i]
		if m.Weight <= 0 {
			continue
		}

		userID, ok := voterForMembership(m, reps)
		if !ok {
			continue
		}

		f := get(userID)
		f.hasAnyVoteEligible = true

		if f.termStart == nil || m.StartDate.Before(*f.termStart) {
			start := m.StartDate
			f.termStart = &start
		}

		active := membershipActiveAt(m.EndDate, reference)
		if active {
			f.hasActiveAtReference = true
		}

		if active && membershipOldEnough(m.StartDate, cutoff) {
			f.weight += m.Weight
		}
	}

	return byUser, nil
}

// EligibleVoters returns the electorate for an election as ordered
// (user, weight) pairs. A user appears once with their summed weight.
func (e *Engine) EligibleVoters(election *database.Election) ([]EligibleVoter, error) {
	byUser, err := e.factsByUser(election)
	if err != nil {
		return nil, err
	}

	var voters []EligibleVoter
	for userID, f := range byUser {
		if f.weight > 0 {
			voters = append(voters, EligibleVoter{UserID: userID, Weight: f.weight})
		}
	}

	sort.Slice(voters, func(i, j int) bool { return voters[i].UserID < voters[j].UserID })
	return voters, nil
}

// IneligibleVotersWithReasons reports every user in the directory who cannot
// vote, with a structured reason.
func (e *Engine) IneligibleVotersWithReasons(election *database.Election) ([]IneligibleVoter, error) {
	byUser, err := e.factsByUser(election)
	if err != nil {
		return nil, err
	}

	allUsers, err := e.users.AllUserIDs()
	if err != nil {
		return nil, &SourceError{Err: err}
	}

	reference := referenceDatetime(election)
	electionStartDay := election.StartDatetime.Format("2006-01-02")

	var out []IneligibleVoter
	for _, userID := range allUsers {
		f := byUser[userID]
		if f != nil && f.weight > 0 {
			continue
		}

		entry := IneligibleVoter{
			UserID:            userID,
			TermStartDate:     "Unknown",
			ElectionStartDate: electionStartDay,
		}

		if f != nil && f.termStart != nil {
			entry.TermStartDate = f.termStart.Format("2006-01-02")
			entry.DaysAtStart = int(election.StartDatetime.Sub(*f.termStart).Hours() / 24)
		}

		switch {
		case f == nil || !f.hasAnyVoteEligible:
			entry.Reason = ReasonNoMembership
		case !f.hasActiveAtReference:
			entry.Reason = ReasonExpired
		default:
			entry.Reason = ReasonTooNew
			if f.termStart != nil {
				daysAtReference := int(reference.Sub(*f.termStart).Hours() / 24)
				if short := e.minMembershipAgeDays - daysAtReference; short > 0 {
					entry.DaysShort = short
				}
			}
		}

		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// WeightBreakdown returns the per-membership lines behind one user's weight,
// individual memberships before organization sponsorships. Applies the same
// cutoffs as the electorate computation.
func (e *Engine) WeightBreakdown(election *database.Election, userID int64) ([]WeightLine, error) {
	reference := referenceDatetime(election)
	cutoff := reference.AddDate(0, 0, -e.minMembershipAgeDays)

	memberships, err := e.memberships.ListAll()
	if err != nil {
		return nil, &SourceError{Err: err}
	}

	organizations, err := e.memberships.ListOrganizations()
	if err != nil {
		return nil, &SourceError{Err: err}
	}

	orgsByID := make(map[int64]*database.Organization, len(organizations))
	reps := make(map[int64]int64, len(organizations))
	for i := range organizations {
		org := &organizations[i]
		orgsByID[org.ID] = org
		if org.RepresentativeUserID != nil {
			reps[org.ID] = *org.RepresentativeUserID
		}
	}

	qualifies := func(m *database.Membership) bool {
		return m.Weight > 0 &&
			membershipActiveAt(m.EndDate, reference) &&
			membershipOldEnough(m.StartDate, cutoff)
	}

	var lines []WeightLine
	for i := range memberships {
		m := &memberships[i]
		if m.Type != database.MembershipTypeIndividual {
			continue
		}
		if m.UserID == nil || *m.UserID != userID || !qualifies(m) {
			continue
		}
		lines = append(lines, WeightLine{Label: m.Type, Votes: m.Weight})
	}

	for i := range memberships {
		m := &memberships[i]
		if m.Type != database.MembershipTypeOrganization {
			continue
		}
		owner, ok := voterForMembership(m, reps)
		if !ok || owner != userID || !qualifies(m) {
			continue
		}
		orgName := ""
		if org, ok := orgsByID[*m.OrganizationID]; ok {
			orgName = org.Name
		}
		lines = append(lines, WeightLine{Label: m.Type, OrgName: orgName, Votes: m.Weight})
	}

	return lines, nil
}

// IsSelfNomination reports whether a candidacy names its own candidate as
// nominator. Checked at nomination time, never at tally time.
func IsSelfNomination(candidateUserID, nominatorUserID *int64) bool {
	if candidateUserID == nil || nominatorUserID == nil {
		return false
	}
	return *candidateUserID == *nominatorUserID
}
