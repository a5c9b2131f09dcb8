package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"election-ledger/internal/database"
)

type ElectionRepository struct {
	db *sql.DB
}

func NewElectionRepository(db *sql.DB) *ElectionRepository {
	return &ElectionRepository{db: db}
}

const electionColumns = `id, name, description, seats, start_datetime, end_datetime,
       status, quorum_pct, anonymized, result_json, tallied_at, created_at, updated_at`

func scanElection(row *sql.Row) (*database.Election, error) {
	var e database.Election
	err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.Seats, &e.StartDatetime, &e.EndDatetime,
		&e.Status, &e.QuorumPct, &e.Anonymized, &e.ResultJSON, &e.TalliedAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateElection creates a new election record in draft status
func (r *ElectionRepository) CreateElection(election *database.Election) error {
	if election.Status == "" {
		election.Status = database.ElectionStatusDraft
	}
	query := `
        INSERT INTO elections (name, description, seats, start_datetime, end_datetime, status, quorum_pct)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	result, err := r.db.Exec(query, election.Name, election.Description, election.Seats,
		election.StartDatetime, election.EndDatetime, election.Status, election.QuorumPct)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	election.ID = id
	return nil
}

// GetElectionByID retrieves an election by ID
func (r *ElectionRepository) GetElectionByID(electionID int64) (*database.Election, error) {
	query := `SELECT ` + electionColumns + ` FROM elections WHERE id = ?`
	return scanElection(r.db.QueryRow(query, electionID))
}

// ListElections retrieves all elections with pagination
func (r *ElectionRepository) ListElections(limit, offset int) ([]database.Election, error) {
	query := `SELECT ` + electionColumns + `
        FROM elections
        ORDER BY created_at DESC
        LIMIT ? OFFSET ?
    `

	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var elections []database.Election
	for rows.Next() {
		var e database.Election
		err := rows.Scan(
			&e.ID, &e.Name, &e.Description, &e.Seats, &e.StartDatetime, &e.EndDatetime,
			&e.Status, &e.QuorumPct, &e.Anonymized, &e.ResultJSON, &e.TalliedAt,
			&e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		elections = append(elections, e)
	}

	return elections, rows.Err()
}

// TransitionStatus moves an election along its lifecycle. The update is
// conditional on the expected current status so concurrent transitions
// cannot skip a state.
func (r *ElectionRepository) TransitionStatus(electionID int64, from, to string) error {
	query := `UPDATE elections SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`
	result, err := r.db.Exec(query, to, electionID, from)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("election %d is not in status %q", electionID, from)
	}
	return nil
}

// ExtendEndDatetime pushes the election end later. Shortening is refused at
// this level regardless of what the caller validated.
func (r *ElectionRepository) ExtendEndDatetime(electionID int64, newEnd time.Time) error {
	query := `
        UPDATE elections SET end_datetime = ?, updated_at = CURRENT_TIMESTAMP
        WHERE id = ? AND end_datetime < ?
    `
	result, err := r.db.Exec(query, newEnd, electionID, newEnd)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("new end datetime must be later than the current one")
	}
	return nil
}

// SetResult stores the final tally result and stamps the election tallied
func (r *ElectionRepository) SetResult(electionID int64, resultJSON string) error {
	query := `
        UPDATE elections
        SET result_json = ?, status = ?, tallied_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
        WHERE id = ? AND status = ?
    `
	result, err := r.db.Exec(query, resultJSON, database.ElectionStatusTallied,
		electionID, database.ElectionStatusClosed)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("election %d is not closed", electionID)
	}
	return nil
}

// MarkAnonymized records that voter identities were scrubbed
func (r *ElectionRepository) MarkAnonymized(electionID int64) error {
	query := `UPDATE elections SET anonymized = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.Exec(query, electionID)
	return err
}
