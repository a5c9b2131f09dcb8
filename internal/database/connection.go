package database

import (
	"database/sql"
	"fmt"

	"election-ledger/pkg/config"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// NewConnection creates a new database connection based on configuration.
//
// Only sqlite is fully supported: the migrations and repository queries use
// sqlite dialect (AUTOINCREMENT, ? placeholders). The postgres path opens a
// connection but the schema and queries would need $n placeholders and a
// serial-column schema before it is usable.
func NewConnection(cfg *config.DatabaseConfig) (*sql.DB, error) {
	var dsn string
	var driverName string

	switch cfg.Type {
	case "postgres":
		driverName = "postgres"
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)
	case "sqlite":
		driverName = "sqlite3"
		// Foreign keys are off by default in SQLite and the ballot chain
		// relies on them; busy timeout covers concurrent append attempts.
		dsn = cfg.Path + "?_foreign_keys=on&_busy_timeout=5000"
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %v", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	return db, nil
}
