package repositories

import (
	"database/sql"

	"election-ledger/internal/database"
)

type CredentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// IssueBatch inserts the frozen credential snapshot for an election in one
// transaction. Credentials are only ever issued as a complete set.
func (r *CredentialRepository) IssueBatch(credentials []database.VotingCredential) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
        INSERT INTO voting_credentials (election_id, user_id, public_id, weight)
        VALUES (?, ?, ?, ?)
    `)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range credentials {
		c := &credentials[i]
		result, err := stmt.Exec(c.ElectionID, c.UserID, c.PublicID, c.Weight)
		if err != nil {
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		c.ID = id
	}

	return tx.Commit()
}

// GetByPublicID finds a credential by its public identifier
func (r *CredentialRepository) GetByPublicID(electionID int64, publicID string) (*database.VotingCredential, error) {
	query := `
        SELECT id, election_id, user_id, public_id, weight, used, issued_at, used_at
        FROM voting_credentials
        WHERE election_id = ? AND public_id = ?
    `
	var c database.VotingCredential
	err := r.db.QueryRow(query, electionID, publicID).Scan(
		&c.ID, &c.ElectionID, &c.UserID, &c.PublicID, &c.Weight,
		&c.Used, &c.IssuedAt, &c.UsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByUserID finds a user's credential for an election. Returns no rows
// after anonymization, when the user link is gone.
func (r *CredentialRepository) GetByUserID(electionID, userID int64) (*database.VotingCredential, error) {
	query := `
        SELECT id, election_id, user_id, public_id, weight, used, issued_at, used_at
        FROM voting_credentials
        WHERE election_id = ? AND user_id = ?
    `
	var c database.VotingCredential
	err := r.db.QueryRow(query, electionID, userID).Scan(
		&c.ID, &c.ElectionID, &c.UserID, &c.PublicID, &c.Weight,
		&c.Used, &c.IssuedAt, &c.UsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkUsed flags a credential as spent on first ballot submission
func (r *CredentialRepository) MarkUsed(credentialID int64) error {
	query := `
        UPDATE voting_credentials
        SET used = TRUE, used_at = CURRENT_TIMESTAMP
        WHERE id = ? AND NOT used
    `
	_, err := r.db.Exec(query, credentialID)
	return err
}

// ListByElection returns every credential issued for an election
func (r *CredentialRepository) ListByElection(electionID int64) ([]database.VotingCredential, error) {
	query := `
        SELECT id, election_id, user_id, public_id, weight, used, issued_at, used_at
        FROM voting_credentials
        WHERE election_id = ?
        ORDER BY id ASC
    `
	rows, err := r.db.Query(query, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []database.VotingCredential
	for rows.Next() {
		var c database.VotingCredential
		if err := rows.Scan(&c.ID, &c.ElectionID, &c.UserID, &c.PublicID, &c.Weight,
			&c.Used, &c.IssuedAt, &c.UsedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// EligibleTotals returns the number of issued credentials and their summed
// weight, the denominators for the two quorum checks.
func (r *CredentialRepository) EligibleTotals(electionID int64) (count int, weight int, err error) {
	err = r.db.QueryRow(`
        SELECT COUNT(*), COALESCE(SUM(weight), 0)
        FROM voting_credentials
        WHERE election_id = ?
    `, electionID).Scan(&count, &weight)
	return count, weight, err
}

// CountByElection returns how many credentials were issued
func (r *CredentialRepository) CountByElection(electionID int64) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM voting_credentials WHERE election_id = ?`, electionID).Scan(&count)
	return count, err
}

// ScrubUserLinks severs the credential-to-user mapping for an election.
// After this runs there is no way to tie a ballot back to a person.
func (r *CredentialRepository) ScrubUserLinks(electionID int64) error {
	query := `UPDATE voting_credentials SET user_id = NULL WHERE election_id = ?`
	_, err := r.db.Exec(query, electionID)
	return err
}
