package repositories

import (
	"database/sql"
	"time"

	"election-ledger/internal/database"
)

type MembershipRepository struct {
	db *sql.DB
}

func NewMembershipRepository(db *sql.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) Insert(m *database.Membership) error {
	query := `
        INSERT INTO memberships (user_id, organization_id, type, weight, start_date, end_date)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	result, err := r.db.Exec(query, m.UserID, m.OrganizationID, m.Type, m.Weight,
		m.StartDate, m.EndDate)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

// ListAll returns every membership on record, current and lapsed. The
// eligibility engine applies the reference-datetime cutoffs itself so that
// ineligibility reasons can be reported.
func (r *MembershipRepository) ListAll() ([]database.Membership, error) {
	query := `
        SELECT id, user_id, organization_id, type, weight, start_date, end_date, created_at
        FROM memberships
        ORDER BY id ASC
    `
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []database.Membership
	for rows.Next() {
		var m database.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Type, &m.Weight,
			&m.StartDate, &m.EndDate, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListByUser returns a user's memberships
func (r *MembershipRepository) ListByUser(userID int64) ([]database.Membership, error) {
	query := `
        SELECT id, user_id, organization_id, type, weight, start_date, end_date, created_at
        FROM memberships
        WHERE user_id = ?
        ORDER BY id ASC
    `
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []database.Membership
	for rows.Next() {
		var m database.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Type, &m.Weight,
			&m.StartDate, &m.EndDate, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MembershipRepository) InsertOrganization(o *database.Organization) error {
	query := `INSERT INTO organizations (name, representative_user_id) VALUES (?, ?)`
	result, err := r.db.Exec(query, o.Name, o.RepresentativeUserID)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = id
	return nil
}

// ListOrganizations returns all organizations with their representatives
func (r *MembershipRepository) ListOrganizations() ([]database.Organization, error) {
	query := `SELECT id, name, representative_user_id, created_at FROM organizations ORDER BY id ASC`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []database.Organization
	for rows.Next() {
		var o database.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.RepresentativeUserID, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SetEndDate terminates a membership
func (r *MembershipRepository) SetEndDate(membershipID int64, endDate time.Time) error {
	query := `UPDATE memberships SET end_date = ? WHERE id = ?`
	_, err := r.db.Exec(query, endDate, membershipID)
	return err
}
