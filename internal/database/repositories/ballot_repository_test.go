package repositories

import (
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"election-ledger/internal/ballot"
	"election-ledger/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?cache=shared&_busy_timeout=5000")
	require.NoError(t, err)
	// Shared-cache in-memory SQLite misbehaves under concurrent writers;
	// a single connection keeps the database alive for the test's duration.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.RunMigrations(db))
	return db
}

func createTestElection(t *testing.T, db *sql.DB) int64 {
	t.Helper()

	electionRepo := NewElectionRepository(db)
	election := &database.Election{
		Name:          "Board Election",
		Seats:         2,
		StartDatetime: time.Now().Add(-time.Hour),
		EndDatetime:   time.Now().Add(time.Hour),
		Status:        database.ElectionStatusActive,
	}
	require.NoError(t, electionRepo.CreateElection(election))
	return election.ID
}

func newBallotRepo(db *sql.DB) *BallotRepository {
	return NewBallotRepository(db, database.NewElectionLocker(), 5*time.Second)
}

func TestAppendLinksChain(t *testing.T) {
	db := setupTestDB(t)
	electionID := createTestElection(t, db)
	repo := newBallotRepo(db)

	genesis := ballot.GenesisChainHash(electionID)

	head, err := repo.LatestChainHeadHash(electionID)
	require.NoError(t, err)
	assert.Equal(t, genesis, head, "empty ledger head is the genesis hash")

	first := &database.Ballot{
		ElectionID:         electionID,
		CredentialPublicID: "cred-1",
		RankingJSON:        "[1,2]",
		Weight:             1,
		BallotHash:         ballot.ComputeBallotHash(electionID, "cred-1", []int64{1, 2}, 1, "nonce-1"),
	}
	require.NoError(t, repo.Append(first))

	assert.Equal(t, genesis, first.PreviousChainHash)
	assert.Equal(t, ballot.ChainNextHash(genesis, first.BallotHash), first.ChainHash)

	second := &database.Ballot{
		ElectionID:         electionID,
		CredentialPublicID: "cred-2",
		RankingJSON:        "[2]",
		Weight:             3,
		BallotHash:         ballot.ComputeBallotHash(electionID, "cred-2", []int64{2}, 3, "nonce-2"),
	}
	require.NoError(t, repo.Append(second))

	assert.Equal(t, first.ChainHash, second.PreviousChainHash)

	head, err = repo.LatestChainHeadHash(electionID)
	require.NoError(t, err)
	assert.Equal(t, second.ChainHash, head)
}

func TestAppendSupersedesPriorBallot(t *testing.T) {
	db := setupTestDB(t)
	electionID := createTestElection(t, db)
	repo := newBallotRepo(db)

	first := &database.Ballot{
		ElectionID:         electionID,
		CredentialPublicID: "cred-1",
		RankingJSON:        "[1]",
		Weight:             1,
		BallotHash:         ballot.ComputeBallotHash(electionID, "cred-1", []int64{1}, 1, "nonce-a"),
	}
	require.NoError(t, repo.Append(first))

	revote := &database.Ballot{
		ElectionID:         electionID,
		CredentialPublicID: "cred-1",
		RankingJSON:        "[2,1]",
		Weight:             1,
		BallotHash:         ballot.ComputeBallotHash(electionID, "cred-1", []int64{2, 1}, 1, "nonce-b"),
	}
	require.NoError(t, repo.Append(revote))

	// Both ballots stay in the chain
	all, err := repo.ListAll(electionID)
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Only the revote counts
	counted, err := repo.ListCounted(electionID)
	require.NoError(t, err)
	require.Len(t, counted, 1)
	assert.Equal(t, revote.BallotHash, counted[0].BallotHash)

	// The superseded ballot points at its replacement
	old, err := repo.GetByBallotHash(electionID, first.BallotHash)
	require.NoError(t, err)
	assert.False(t, old.IsCounted)
	require.NotNil(t, old.SupersededByID)
	assert.Equal(t, revote.ID, *old.SupersededByID)

	// The revote extends the chain rather than rewriting it
	assert.Equal(t, first.ChainHash, revote.PreviousChainHash)
}

func TestConcurrentAppendsNeverFork(t *testing.T) {
	db := setupTestDB(t)
	electionID := createTestElection(t, db)
	repo := newBallotRepo(db)

	const voters = 20

	var wg sync.WaitGroup
	errs := make(chan error, voters)

	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			credential := fmt.Sprintf("cred-%d", i)
			b := &database.Ballot{
				ElectionID:         electionID,
				CredentialPublicID: credential,
				RankingJSON:        "[1]",
				Weight:             1,
				BallotHash:         ballot.ComputeBallotHash(electionID, credential, []int64{1}, 1, fmt.Sprintf("nonce-%d", i)),
			}
			errs <- repo.Append(b)
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	links, err := repo.ChainLinks(electionID)
	require.NoError(t, err)
	require.Len(t, links, voters)

	// A forked chain fails reconstruction; a linear one does not
	ordered, err := ballot.ReconstructChainOrder(links, ballot.GenesisChainHash(electionID))
	require.NoError(t, err)
	assert.Len(t, ordered, voters)

	head, err := repo.LatestChainHeadHash(electionID)
	require.NoError(t, err)
	assert.Equal(t, ordered[len(ordered)-1].ChainHash, head)
}

func TestCountedTotals(t *testing.T) {
	db := setupTestDB(t)
	electionID := createTestElection(t, db)
	repo := newBallotRepo(db)

	weights := []int{1, 3, 5}
	for i, w := range weights {
		credential := fmt.Sprintf("cred-%d", i)
		b := &database.Ballot{
			ElectionID:         electionID,
			CredentialPublicID: credential,
			RankingJSON:        "[1]",
			Weight:             w,
			BallotHash:         ballot.ComputeBallotHash(electionID, credential, []int64{1}, w, fmt.Sprintf("n-%d", i)),
		}
		require.NoError(t, repo.Append(b))
	}

	count, weight, err := repo.CountedTotals(electionID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 9, weight)
}
