package election

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"election-ledger/internal/ballot"
	"election-ledger/internal/database"
	"election-ledger/internal/database/repositories"
	"election-ledger/pkg/config"
	"election-ledger/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?cache=shared&_busy_timeout=5000")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db))

	cfg := &config.Config{
		Election: config.ElectionConfig{
			MinMembershipAgeDays: 90,
			AllowSelfNomination:  false,
			AppendLockTimeout:    5 * time.Second,
		},
	}
	log := logger.NewLogger("error", "")

	return NewService(db, cfg, log), db
}

func seedVoter(t *testing.T, db *sql.DB, username string, weight int) int64 {
	t.Helper()

	users := repositories.NewUserRepository(db)
	user := &database.User{
		Username:     username,
		Email:        username + "@example.org",
		PasswordHash: "x",
		Role:         "voter",
		IsActive:     true,
	}
	require.NoError(t, users.Create(user))

	memberships := repositories.NewMembershipRepository(db)
	userID := user.ID
	require.NoError(t, memberships.Insert(&database.Membership{
		UserID:    &userID,
		Type:      database.MembershipTypeIndividual,
		Weight:    weight,
		StartDate: time.Now().UTC().AddDate(0, 0, -200),
	}))

	return user.ID
}

func createDraftElection(t *testing.T, svc *Service, quorumPct int) *database.Election {
	t.Helper()

	election := &database.Election{
		Name:          "Board Election",
		Seats:         1,
		StartDatetime: time.Now().UTC().Add(-time.Hour),
		EndDatetime:   time.Now().UTC().Add(time.Hour),
		QuorumPct:     quorumPct,
	}
	require.NoError(t, svc.CreateElection(election, "admin"))
	return election
}

func nominate(t *testing.T, svc *Service, electionID int64, name string) *database.Candidate {
	t.Helper()

	candidate := &database.Candidate{ElectionID: electionID, Name: name}
	require.NoError(t, svc.NominateCandidate(candidate, "admin"))
	return candidate
}

func issuedCredentials(t *testing.T, db *sql.DB, electionID int64) []database.VotingCredential {
	t.Helper()

	credentials, err := repositories.NewCredentialRepository(db).ListByElection(electionID)
	require.NoError(t, err)
	return credentials
}

func TestFullElectionLifecycle(t *testing.T) {
	svc, db := newTestService(t)
	seedVoter(t, db, "alice", 1)
	seedVoter(t, db, "bob", 1)

	election := createDraftElection(t, svc, 0)
	first := nominate(t, svc, election.ID, "A")
	second := nominate(t, svc, election.ID, "B")

	require.NoError(t, svc.OpenElection(election.ID, "admin"))

	credentials := issuedCredentials(t, db, election.ID)
	require.Len(t, credentials, 2)
	for _, c := range credentials {
		assert.Len(t, c.PublicID, 43)
		assert.Equal(t, 1, c.Weight)
	}

	var receipts []*Receipt
	for _, c := range credentials {
		receipt, err := svc.SubmitBallot(election.ID, c.PublicID, []int64{first.ID, second.ID})
		require.NoError(t, err)
		assert.NotEmpty(t, receipt.BallotHash)
		assert.Len(t, receipt.Nonce, 32)
		receipts = append(receipts, receipt)
	}

	require.NoError(t, svc.CloseElection(election.ID, "admin"))

	result, err := svc.TallyElection(election.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, []int64{first.ID}, result.Elected)

	stored, err := svc.Results(election.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Elected, stored.Elected)

	sankey, err := svc.SankeyData(election.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, sankey.Flows)

	export, err := svc.ChainExport(election.ID)
	require.NoError(t, err)
	assert.Len(t, export.Ballots, 2)
	assert.Equal(t, ballot.GenesisChainHash(election.ID), export.GenesisHash)

	status, err := svc.LookupReceipt(election.ID, receipts[0].BallotHash)
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.True(t, status.IsCounted)
}

func TestSubmitBallotRevoteSupersedes(t *testing.T) {
	svc, db := newTestService(t)
	seedVoter(t, db, "alice", 1)

	election := createDraftElection(t, svc, 0)
	first := nominate(t, svc, election.ID, "A")
	second := nominate(t, svc, election.ID, "B")
	require.NoError(t, svc.OpenElection(election.ID, "admin"))

	credential := issuedCredentials(t, db, election.ID)[0]

	old, err := svc.SubmitBallot(election.ID, credential.PublicID, []int64{first.ID})
	require.NoError(t, err)
	replacement, err := svc.SubmitBallot(election.ID, credential.PublicID, []int64{second.ID})
	require.NoError(t, err)

	// The new ballot extends the chain from the old one
	assert.Equal(t, old.ChainHash, replacement.PreviousChainHash)

	oldStatus, err := svc.LookupReceipt(election.ID, old.BallotHash)
	require.NoError(t, err)
	assert.True(t, oldStatus.Exists)
	assert.False(t, oldStatus.IsCounted)
	assert.True(t, oldStatus.Superseded)

	ballots, err := svc.PublicBallots(election.ID)
	require.NoError(t, err)
	require.Len(t, ballots, 2)
	assert.False(t, ballots[0].IsCounted)
	assert.True(t, ballots[1].IsCounted)
	assert.Equal(t, []string{"B"}, ballots[1].Ranking)
}

func TestSubmitBallotRejectsMalformedRanking(t *testing.T) {
	svc, db := newTestService(t)
	seedVoter(t, db, "alice", 1)

	election := createDraftElection(t, svc, 0)
	first := nominate(t, svc, election.ID, "A")
	require.NoError(t, svc.OpenElection(election.ID, "admin"))

	credential := issuedCredentials(t, db, election.ID)[0]

	receipt, err := svc.SubmitBallot(election.ID, credential.PublicID, []int64{first.ID, first.ID, 424242})
	assert.Nil(t, receipt)
	assert.Equal(t, KindValidation, KindOf(err))

	receipt, err = svc.SubmitBallot(election.ID, credential.PublicID, []int64{9999})
	assert.Nil(t, receipt)
	assert.Equal(t, KindValidation, KindOf(err))

	receipt, err = svc.SubmitBallot(election.ID, credential.PublicID, []int64{first.ID, first.ID})
	assert.Nil(t, receipt)
	assert.Equal(t, KindValidation, KindOf(err))

	// A rejected ballot leaves no trace in the ledger
	ballots, err := svc.PublicBallots(election.ID)
	require.NoError(t, err)
	assert.Empty(t, ballots)

	// An empty ranking is a valid abstention, not a malformed ballot
	receipt, err = svc.SubmitBallot(election.ID, credential.PublicID, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{}, receipt.Ranking)
}

func TestSubmitBallotPolicyChecks(t *testing.T) {
	svc, db := newTestService(t)
	seedVoter(t, db, "alice", 1)

	election := createDraftElection(t, svc, 0)
	nominate(t, svc, election.ID, "A")

	// Draft election refuses ballots
	_, err := svc.SubmitBallot(election.ID, "whatever", nil)
	require.Error(t, err)
	assert.Equal(t, KindPolicy, KindOf(err))

	require.NoError(t, svc.OpenElection(election.ID, "admin"))

	// Unknown credential
	_, err = svc.SubmitBallot(election.ID, "not-a-credential", nil)
	require.Error(t, err)
	assert.Equal(t, KindPolicy, KindOf(err))

	// Unknown election
	_, err = svc.SubmitBallot(99999, "whatever", nil)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSelfNominationPolicy(t *testing.T) {
	svc, _ := newTestService(t)
	election := createDraftElection(t, svc, 0)

	userID := int64(7)
	candidate := &database.Candidate{
		ElectionID:        election.ID,
		Name:              "Self Starter",
		UserID:            &userID,
		NominatedByUserID: &userID,
	}
	err := svc.NominateCandidate(candidate, "admin")
	require.Error(t, err)
	assert.Equal(t, KindPolicy, KindOf(err))

	nominator := int64(8)
	candidate.NominatedByUserID = &nominator
	require.NoError(t, svc.NominateCandidate(candidate, "admin"))
}

func TestQuorumReachedAuditedOnce(t *testing.T) {
	svc, db := newTestService(t)
	seedVoter(t, db, "alice", 1)
	seedVoter(t, db, "bob", 1)

	election := createDraftElection(t, svc, 50)
	first := nominate(t, svc, election.ID, "A")
	require.NoError(t, svc.OpenElection(election.ID, "admin"))

	credentials := issuedCredentials(t, db, election.ID)
	require.Len(t, credentials, 2)

	// 2 eligible at 50% needs 1 voter; the first ballot crosses quorum
	_, err := svc.SubmitBallot(election.ID, credentials[0].PublicID, []int64{first.ID})
	require.NoError(t, err)
	_, err = svc.SubmitBallot(election.ID, credentials[1].PublicID, []int64{first.ID})
	require.NoError(t, err)

	audit := repositories.NewAuditLogRepository(db)
	entries, err := audit.GetAuditLogs(10, 0, ActionQuorumReached, &election.ID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	quorum, err := svc.QuorumStatus(election.ID)
	require.NoError(t, err)
	assert.True(t, quorum.QuorumMet)
	assert.Equal(t, 1, quorum.RequiredParticipatingVoterCount)
}

func TestCloseElectionAnonymizesCredentials(t *testing.T) {
	svc, db := newTestService(t)
	seedVoter(t, db, "alice", 1)

	election := createDraftElection(t, svc, 0)
	nominate(t, svc, election.ID, "A")
	require.NoError(t, svc.OpenElection(election.ID, "admin"))
	require.NoError(t, svc.CloseElection(election.ID, "admin"))

	for _, c := range issuedCredentials(t, db, election.ID) {
		assert.Nil(t, c.UserID)
	}

	loaded, err := svc.GetElection(election.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Anonymized)
	assert.Equal(t, database.ElectionStatusClosed, loaded.Status)

	// Closed is terminal for voting
	_, err = svc.SubmitBallot(election.ID, "x", nil)
	require.Error(t, err)
	assert.Equal(t, KindPolicy, KindOf(err))
}

func TestTallyRequiresClosedElection(t *testing.T) {
	svc, db := newTestService(t)
	seedVoter(t, db, "alice", 1)

	election := createDraftElection(t, svc, 0)
	nominate(t, svc, election.ID, "A")
	require.NoError(t, svc.OpenElection(election.ID, "admin"))

	_, err := svc.TallyElection(election.ID, "admin")
	require.Error(t, err)
	assert.Equal(t, KindPolicy, KindOf(err))
}

func TestExtendEndDatetime(t *testing.T) {
	svc, db := newTestService(t)
	seedVoter(t, db, "alice", 1)

	election := createDraftElection(t, svc, 0)
	nominate(t, svc, election.ID, "A")
	require.NoError(t, svc.OpenElection(election.ID, "admin"))

	// Shortening is refused
	err := svc.ExtendEndDatetime(election.ID, time.Now().UTC().Add(30*time.Minute), "admin")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	newEnd := time.Now().UTC().Add(3 * time.Hour)
	require.NoError(t, svc.ExtendEndDatetime(election.ID, newEnd, "admin"))

	loaded, err := svc.GetElection(election.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, newEnd, loaded.EndDatetime, time.Second)
}

func TestCreateExclusionGroupPolicy(t *testing.T) {
	svc, db := newTestService(t)
	seedVoter(t, db, "grace", 1)
	election := createDraftElection(t, svc, 0)

	group := &database.ExclusionGroup{
		ElectionID: election.ID,
		Name:       "regional seats",
		MaxElected: 1,
	}
	require.NoError(t, svc.CreateExclusionGroup(group, "admin"))
	assert.NotZero(t, group.ID)

	bad := &database.ExclusionGroup{ElectionID: election.ID, Name: "empty cap"}
	err := svc.CreateExclusionGroup(bad, "admin")
	assert.Equal(t, KindValidation, KindOf(err))

	nominate(t, svc, election.ID, "Alice")
	require.NoError(t, svc.OpenElection(election.ID, "admin"))

	late := &database.ExclusionGroup{ElectionID: election.ID, Name: "late", MaxElected: 1}
	err = svc.CreateExclusionGroup(late, "admin")
	assert.Equal(t, KindPolicy, KindOf(err))
}
