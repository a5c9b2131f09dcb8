package repositories

import (
	"database/sql"

	"election-ledger/internal/database"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *database.User) error {
	query := `
        INSERT INTO users (username, email, password_hash, role)
        VALUES (?, ?, ?, ?)
    `
	result, err := r.db.Exec(query, user.Username, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	user.ID = id
	return nil
}

func (r *UserRepository) GetByUsername(username string) (*database.User, error) {
	query := `
        SELECT id, username, email, password_hash, role, is_active,
               last_login, created_at, updated_at
        FROM users
        WHERE username = ? AND is_active = true
    `

	var user database.User
	err := r.db.QueryRow(query, username).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Role, &user.IsActive, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return &user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(userID int64) (*database.User, error) {
	query := `
        SELECT id, username, email, password_hash, role, is_active,
               last_login, created_at, updated_at
        FROM users
        WHERE id = ?
    `

	var user database.User
	err := r.db.QueryRow(query, userID).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Role, &user.IsActive, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *UserRepository) UpdateLastLogin(userID int64) error {
	query := `
        UPDATE users
        SET last_login = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
        WHERE id = ?
    `
	_, err := r.db.Exec(query, userID)
	return err
}

// ListUsers retrieves all users with pagination and filtering
func (r *UserRepository) ListUsers(role string, isActive *bool, limit, offset int) ([]database.User, error) {
	query := `
        SELECT id, username, email, password_hash, role, is_active,
               last_login, created_at, updated_at
        FROM users
        WHERE 1=1
    `
	args := []interface{}{}

	if role != "" {
		query += " AND role = ?"
		args = append(args, role)
	}

	if isActive != nil {
		query += " AND is_active = ?"
		args = append(args, *isActive)
	}

	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []database.User
	for rows.Next() {
		var user database.User
		err := rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.PasswordHash,
			&user.Role, &user.IsActive, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// AllUserIDs returns the IDs of every active user, the full electorate the
// eligibility report is computed against
func (r *UserRepository) AllUserIDs() ([]int64, error) {
	rows, err := r.db.Query(`SELECT id FROM users WHERE is_active = true ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdatePassword updates user password
func (r *UserRepository) UpdatePassword(userID int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.Exec(query, passwordHash, userID)
	return err
}

// DeactivateUser deactivates a user
func (r *UserRepository) DeactivateUser(userID int64) error {
	query := `UPDATE users SET is_active = false, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.Exec(query, userID)
	return err
}
