package repositories

import (
	"database/sql"
	"time"

	"election-ledger/internal/database"
)

type AuditLogRepository struct {
	db *sql.DB
}

func NewAuditLogRepository(db *sql.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// InsertAuditLog inserts a new audit log entry
func (r *AuditLogRepository) InsertAuditLog(log *database.AuditLog) error {
	query := `
        INSERT INTO audit_logs (election_id, action, actor_id, details, ip_address)
        VALUES (?, ?, ?, ?, ?)
    `
	result, err := r.db.Exec(query, log.ElectionID, log.Action, log.ActorID, log.Details, log.IPAddress)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	log.ID = id
	return nil
}

// GetAuditLogs retrieves audit logs with pagination and filtering
func (r *AuditLogRepository) GetAuditLogs(limit, offset int, action string, electionID *int64, startTime, endTime *time.Time) ([]database.AuditLog, error) {
	query := `
        SELECT id, election_id, action, actor_id, details, ip_address, created_at
        FROM audit_logs
        WHERE 1=1
    `
	args := []interface{}{}

	if action != "" {
		query += " AND action = ?"
		args = append(args, action)
	}

	if electionID != nil {
		query += " AND election_id = ?"
		args = append(args, *electionID)
	}

	if startTime != nil {
		query += " AND created_at >= ?"
		args = append(args, startTime)
	}

	if endTime != nil {
		query += " AND created_at <= ?"
		args = append(args, endTime)
	}

	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []database.AuditLog
	for rows.Next() {
		var log database.AuditLog
		err := rows.Scan(&log.ID, &log.ElectionID, &log.Action, &log.ActorID,
			&log.Details, &log.IPAddress, &log.CreatedAt)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// GetAuditLogsByElection gets the full audit trail for one election
func (r *AuditLogRepository) GetAuditLogsByElection(electionID int64, limit, offset int) ([]database.AuditLog, error) {
	query := `
        SELECT id, election_id, action, actor_id, details, ip_address, created_at
        FROM audit_logs
        WHERE election_id = ?
        ORDER BY created_at DESC
        LIMIT ? OFFSET ?
    `

	rows, err := r.db.Query(query, electionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []database.AuditLog
	for rows.Next() {
		var log database.AuditLog
		err := rows.Scan(&log.ID, &log.ElectionID, &log.Action, &log.ActorID,
			&log.Details, &log.IPAddress, &log.CreatedAt)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}
