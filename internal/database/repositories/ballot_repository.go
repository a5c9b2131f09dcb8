package repositories

import (
	"database/sql"
	"time"

	"election-ledger/internal/ballot"
	"election-ledger/internal/database"
)

type BallotRepository struct {
	db          *sql.DB
	locker      database.ElectionLocker
	lockTimeout time.Duration
}

func NewBallotRepository(db *sql.DB, locker database.ElectionLocker, lockTimeout time.Duration) *BallotRepository {
	return &BallotRepository{db: db, locker: locker, lockTimeout: lockTimeout}
}

// Append links a ballot onto the election's hash chain and stores it. The
// caller provides ElectionID, CredentialPublicID, RankingJSON, Weight and
// BallotHash; chain linkage is computed here under the per-election lock.
// If the credential already has a counted ballot, that ballot is marked
// superseded in the same transaction.
func (r *BallotRepository) Append(b *database.Ballot) error {
	if err := r.locker.Acquire(b.ElectionID, r.lockTimeout); err != nil {
		return err
	}
	defer r.locker.Release(b.ElectionID)

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	head, err := chainHeadTx(tx, b.ElectionID)
	if err != nil {
		return err
	}

	// Uncount any prior ballot from this credential before inserting, so the
	// one-counted-ballot-per-credential index admits the new row.
	var priorID int64
	hasPrior := false
	err = tx.QueryRow(`
        SELECT id FROM ballots
        WHERE election_id = ? AND credential_public_id = ? AND is_counted
    `, b.ElectionID, b.CredentialPublicID).Scan(&priorID)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return err
	default:
		hasPrior = true
		if _, err := tx.Exec(`UPDATE ballots SET is_counted = FALSE WHERE id = ?`, priorID); err != nil {
			return err
		}
	}

	b.PreviousChainHash = head
	b.ChainHash = ballot.ChainNextHash(head, b.BallotHash)
	b.IsCounted = true

	result, err := tx.Exec(`
        INSERT INTO ballots (election_id, credential_public_id, ranking_json, weight,
                             ballot_hash, previous_chain_hash, chain_hash, is_counted)
        VALUES (?, ?, ?, ?, ?, ?, ?, TRUE)
    `, b.ElectionID, b.CredentialPublicID, b.RankingJSON, b.Weight,
		b.BallotHash, b.PreviousChainHash, b.ChainHash)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id

	if hasPrior {
		if _, err := tx.Exec(`UPDATE ballots SET superseded_by_id = ? WHERE id = ?`, id, priorID); err != nil {
			return err
		}
		b.SupersededByID = nil
	}

	return tx.Commit()
}

// chainHeadTx returns the current chain head hash within a transaction,
// falling back to the genesis hash for an empty ledger.
func chainHeadTx(tx *sql.Tx, electionID int64) (string, error) {
	var head string
	err := tx.QueryRow(`
        SELECT chain_hash FROM ballots
        WHERE election_id = ?
        ORDER BY id DESC LIMIT 1
    `, electionID).Scan(&head)
	if err == sql.ErrNoRows {
		return ballot.GenesisChainHash(electionID), nil
	}
	if err != nil {
		return "", err
	}
	return head, nil
}

// LatestChainHeadHash returns the election's current chain head, which is
// the genesis hash when no ballots have been cast.
func (r *BallotRepository) LatestChainHeadHash(electionID int64) (string, error) {
	var head string
	err := r.db.QueryRow(`
        SELECT chain_hash FROM ballots
        WHERE election_id = ?
        ORDER BY id DESC LIMIT 1
    `, electionID).Scan(&head)
	if err == sql.ErrNoRows {
		return ballot.GenesisChainHash(electionID), nil
	}
	if err != nil {
		return "", err
	}
	return head, nil
}

// GetByBallotHash finds a ballot by its receipt hash
func (r *BallotRepository) GetByBallotHash(electionID int64, hash string) (*database.Ballot, error) {
	query := `
        SELECT id, election_id, credential_public_id, ranking_json, weight,
               ballot_hash, previous_chain_hash, chain_hash, is_counted,
               superseded_by_id, created_at
        FROM ballots
        WHERE election_id = ? AND ballot_hash = ?
    `

	var b database.Ballot
	err := r.db.QueryRow(query, electionID, hash).Scan(
		&b.ID, &b.ElectionID, &b.CredentialPublicID, &b.RankingJSON, &b.Weight,
		&b.BallotHash, &b.PreviousChainHash, &b.ChainHash, &b.IsCounted,
		&b.SupersededByID, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// ListAll returns every ballot in the election in append order, superseded
// ballots included. This is the full-chain view used for integrity checks
// and exports.
func (r *BallotRepository) ListAll(electionID int64) ([]database.Ballot, error) {
	return r.list(electionID, false)
}

// ListCounted returns only the ballots that count toward the tally, in
// append order.
func (r *BallotRepository) ListCounted(electionID int64) ([]database.Ballot, error) {
	return r.list(electionID, true)
}

func (r *BallotRepository) list(electionID int64, countedOnly bool) ([]database.Ballot, error) {
	query := `
        SELECT id, election_id, credential_public_id, ranking_json, weight,
               ballot_hash, previous_chain_hash, chain_hash, is_counted,
               superseded_by_id, created_at
        FROM ballots
        WHERE election_id = ?
    `
	if countedOnly {
		query += ` AND is_counted`
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.Query(query, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ballots []database.Ballot
	for rows.Next() {
		var b database.Ballot
		err := rows.Scan(&b.ID, &b.ElectionID, &b.CredentialPublicID, &b.RankingJSON,
			&b.Weight, &b.BallotHash, &b.PreviousChainHash, &b.ChainHash,
			&b.IsCounted, &b.SupersededByID, &b.CreatedAt)
		if err != nil {
			return nil, err
		}
		ballots = append(ballots, b)
	}

	return ballots, rows.Err()
}

// ChainLinks returns the election's chain in the exchange form used by the
// chain export and the offline verifiers.
func (r *BallotRepository) ChainLinks(electionID int64) ([]ballot.ChainLink, error) {
	ballots, err := r.ListAll(electionID)
	if err != nil {
		return nil, err
	}

	links := make([]ballot.ChainLink, 0, len(ballots))
	for _, b := range ballots {
		links = append(links, ballot.ChainLink{
			BallotHash:        b.BallotHash,
			PreviousChainHash: b.PreviousChainHash,
			ChainHash:         b.ChainHash,
		})
	}
	return links, nil
}

// CountedTotals returns the number of counted ballots and their summed
// weight, the two axes quorum is measured on.
func (r *BallotRepository) CountedTotals(electionID int64) (count int, weight int, err error) {
	err = r.db.QueryRow(`
        SELECT COUNT(*), COALESCE(SUM(weight), 0)
        FROM ballots
        WHERE election_id = ? AND is_counted
    `, electionID).Scan(&count, &weight)
	return count, weight, err
}

// CountByElection returns the total number of ledger entries, superseded
// included.
func (r *BallotRepository) CountByElection(electionID int64) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM ballots WHERE election_id = ?`, electionID).Scan(&count)
	return count, err
}
