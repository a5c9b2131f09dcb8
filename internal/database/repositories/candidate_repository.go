package repositories

import (
	"database/sql"

	"election-ledger/internal/database"
)

type CandidateRepository struct {
	db *sql.DB
}

func NewCandidateRepository(db *sql.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

func (r *CandidateRepository) Insert(c *database.Candidate) error {
	query := `
        INSERT INTO candidates (election_id, user_id, name, statement,
                                nominated_by_user_id, tiebreak_uuid, exclusion_group_id)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	result, err := r.db.Exec(query, c.ElectionID, c.UserID, c.Name, c.Statement,
		c.NominatedByUserID, c.TiebreakUUID, c.ExclusionGroupID)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *CandidateRepository) GetByID(candidateID int64) (*database.Candidate, error) {
	query := `
        SELECT id, election_id, user_id, name, statement, nominated_by_user_id,
               tiebreak_uuid, exclusion_group_id, created_at
        FROM candidates
        WHERE id = ?
    `
	var c database.Candidate
	err := r.db.QueryRow(query, candidateID).Scan(&c.ID, &c.ElectionID, &c.UserID,
		&c.Name, &c.Statement, &c.NominatedByUserID, &c.TiebreakUUID,
		&c.ExclusionGroupID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CandidateRepository) ListByElection(electionID int64) ([]database.Candidate, error) {
	query := `
        SELECT id, election_id, user_id, name, statement, nominated_by_user_id,
               tiebreak_uuid, exclusion_group_id, created_at
        FROM candidates
        WHERE election_id = ?
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(query, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []database.Candidate
	for rows.Next() {
		var c database.Candidate
		if err := rows.Scan(&c.ID, &c.ElectionID, &c.UserID, &c.Name, &c.Statement,
			&c.NominatedByUserID, &c.TiebreakUUID, &c.ExclusionGroupID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CandidateRepository) InsertExclusionGroup(g *database.ExclusionGroup) error {
	query := `INSERT INTO exclusion_groups (election_id, name, max_elected) VALUES (?, ?, ?)`
	result, err := r.db.Exec(query, g.ElectionID, g.Name, g.MaxElected)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = id
	return nil
}

func (r *CandidateRepository) ListExclusionGroups(electionID int64) ([]database.ExclusionGroup, error) {
	query := `SELECT id, election_id, name, max_elected FROM exclusion_groups WHERE election_id = ?`
	rows, err := r.db.Query(query, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []database.ExclusionGroup
	for rows.Next() {
		var g database.ExclusionGroup
		if err := rows.Scan(&g.ID, &g.ElectionID, &g.Name, &g.MaxElected); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
