package database

import (
	"database/sql"
	"fmt"
)

// RunMigrations executes database migrations
func RunMigrations(db *sql.DB) error {
	migrations := []string{
		createUsersTable,
		createOrganizationsTable,
		createMembershipsTable,
		createElectionsTable,
		createExclusionGroupsTable,
		createCandidatesTable,
		createCredentialsTable,
		createBallotsTable,
		createAuditLogsTable,
		createIndices,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %v", i+1, err)
		}
	}

	return nil
}

// Database schema definitions

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username VARCHAR(50) UNIQUE NOT NULL,
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    role VARCHAR(20) DEFAULT 'member',
    is_active BOOLEAN DEFAULT TRUE,
    last_login TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

const createOrganizationsTable = `
CREATE TABLE IF NOT EXISTS organizations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name VARCHAR(255) NOT NULL,
    representative_user_id INTEGER REFERENCES users(id),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

const createMembershipsTable = `
CREATE TABLE IF NOT EXISTS memberships (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER REFERENCES users(id),
    organization_id INTEGER REFERENCES organizations(id),
    type VARCHAR(20) NOT NULL,
    weight INTEGER NOT NULL DEFAULT 1,
    start_date TIMESTAMP NOT NULL,
    end_date TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

const createElectionsTable = `
CREATE TABLE IF NOT EXISTS elections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name VARCHAR(255) NOT NULL,
    description TEXT,
    seats INTEGER NOT NULL DEFAULT 1,
    start_datetime TIMESTAMP NOT NULL,
    end_datetime TIMESTAMP NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'draft',
    quorum_pct INTEGER NOT NULL DEFAULT 0,
    anonymized BOOLEAN NOT NULL DEFAULT FALSE,
    result_json TEXT,
    tallied_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

const createExclusionGroupsTable = `
CREATE TABLE IF NOT EXISTS exclusion_groups (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    election_id INTEGER NOT NULL REFERENCES elections(id),
    name VARCHAR(255) NOT NULL,
    max_elected INTEGER NOT NULL DEFAULT 1
);`

const createCandidatesTable = `
CREATE TABLE IF NOT EXISTS candidates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    election_id INTEGER NOT NULL REFERENCES elections(id),
    user_id INTEGER REFERENCES users(id),
    name VARCHAR(255) NOT NULL,
    statement TEXT,
    nominated_by_user_id INTEGER REFERENCES users(id),
    tiebreak_uuid VARCHAR(36) NOT NULL,
    exclusion_group_id INTEGER REFERENCES exclusion_groups(id),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

const createCredentialsTable = `
CREATE TABLE IF NOT EXISTS voting_credentials (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    election_id INTEGER NOT NULL REFERENCES elections(id),
    user_id INTEGER REFERENCES users(id),
    public_id VARCHAR(36) UNIQUE NOT NULL,
    weight INTEGER NOT NULL DEFAULT 1,
    used BOOLEAN NOT NULL DEFAULT FALSE,
    issued_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    used_at TIMESTAMP
);`

const createBallotsTable = `
CREATE TABLE IF NOT EXISTS ballots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    election_id INTEGER NOT NULL REFERENCES elections(id),
    credential_public_id VARCHAR(36) NOT NULL,
    ranking_json TEXT NOT NULL,
    weight INTEGER NOT NULL DEFAULT 1,
    ballot_hash VARCHAR(64) NOT NULL,
    previous_chain_hash VARCHAR(64) NOT NULL,
    chain_hash VARCHAR(64) UNIQUE NOT NULL,
    is_counted BOOLEAN NOT NULL DEFAULT TRUE,
    superseded_by_id INTEGER REFERENCES ballots(id),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

const createAuditLogsTable = `
CREATE TABLE IF NOT EXISTS audit_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    election_id INTEGER REFERENCES elections(id),
    action VARCHAR(100) NOT NULL,
    actor_id VARCHAR(255),
    details TEXT,
    ip_address VARCHAR(45),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

// The partial unique index on ballots enforces one counted ballot per
// credential per election; superseded ballots stay in the chain uncounted.
// Every previous_chain_hash is unique within an election, which is what
// keeps the ledger a chain rather than a tree.
const createIndices = `
CREATE INDEX IF NOT EXISTS idx_memberships_user ON memberships(user_id);
CREATE INDEX IF NOT EXISTS idx_memberships_org ON memberships(organization_id);
CREATE INDEX IF NOT EXISTS idx_elections_status ON elections(status);
CREATE INDEX IF NOT EXISTS idx_candidates_election ON candidates(election_id);
CREATE INDEX IF NOT EXISTS idx_credentials_election ON voting_credentials(election_id);
CREATE INDEX IF NOT EXISTS idx_credentials_user ON voting_credentials(election_id, user_id);
CREATE INDEX IF NOT EXISTS idx_ballots_election ON ballots(election_id);
CREATE INDEX IF NOT EXISTS idx_ballots_hash ON ballots(election_id, ballot_hash);
CREATE UNIQUE INDEX IF NOT EXISTS idx_ballots_prev_chain ON ballots(election_id, previous_chain_hash);
CREATE UNIQUE INDEX IF NOT EXISTS idx_ballots_counted_credential ON ballots(election_id, credential_public_id) WHERE is_counted;
CREATE INDEX IF NOT EXISTS idx_audit_election ON audit_logs(election_id, created_at);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_logs(action);
`
