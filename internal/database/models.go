package database

import "time"

// Election statuses form a one-way lifecycle.
const (
	ElectionStatusDraft   = "draft"
	ElectionStatusActive  = "active"
	ElectionStatusClosed  = "closed"
	ElectionStatusTallied = "tallied"
)

// Election represents an election
type Election struct {
	ID            int64      `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Description   string     `db:"description" json:"description"`
	Seats         int        `db:"seats" json:"seats"`
	StartDatetime time.Time  `db:"start_datetime" json:"start_datetime"`
	EndDatetime   time.Time  `db:"end_datetime" json:"end_datetime"`
	Status        string     `db:"status" json:"status"`
	QuorumPct     int        `db:"quorum_pct" json:"quorum_pct"`
	Anonymized    bool       `db:"anonymized" json:"anonymized"`
	ResultJSON    *string    `db:"result_json" json:"result_json,omitempty"`
	TalliedAt     *time.Time `db:"tallied_at" json:"tallied_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Candidate represents a nominated candidate. The tiebreak UUID is drawn
// once at nomination time and breaks elimination ties deterministically.
type Candidate struct {
	ID                int64     `db:"id" json:"id"`
	ElectionID        int64     `db:"election_id" json:"election_id"`
	UserID            *int64    `db:"user_id" json:"user_id,omitempty"`
	Name              string    `db:"name" json:"name"`
	Statement         string    `db:"statement" json:"statement"`
	NominatedByUserID *int64    `db:"nominated_by_user_id" json:"nominated_by_user_id,omitempty"`
	TiebreakUUID      string    `db:"tiebreak_uuid" json:"tiebreak_uuid"`
	ExclusionGroupID  *int64    `db:"exclusion_group_id" json:"exclusion_group_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// ExclusionGroup caps how many of its candidates may be elected
type ExclusionGroup struct {
	ID         int64  `db:"id" json:"id"`
	ElectionID int64  `db:"election_id" json:"election_id"`
	Name       string `db:"name" json:"name"`
	MaxElected int    `db:"max_elected" json:"max_elected"`
}

// VotingCredential is the frozen link between an eligible voter and an
// election. UserID is cleared when the election is anonymized; PublicID is
// the only voter identifier ballots ever carry.
type VotingCredential struct {
	ID         int64      `db:"id" json:"id"`
	ElectionID int64      `db:"election_id" json:"election_id"`
	UserID     *int64     `db:"user_id" json:"user_id,omitempty"`
	PublicID   string     `db:"public_id" json:"public_id"`
	Weight     int        `db:"weight" json:"weight"`
	Used       bool       `db:"used" json:"used"`
	IssuedAt   time.Time  `db:"issued_at" json:"issued_at"`
	UsedAt     *time.Time `db:"used_at" json:"used_at,omitempty"`
}

// Ballot is one appended ledger entry. RankingJSON stores the ranking as a
// JSON array of candidate IDs in preference order.
type Ballot struct {
	ID                 int64     `db:"id" json:"id"`
	ElectionID         int64     `db:"election_id" json:"election_id"`
	CredentialPublicID string    `db:"credential_public_id" json:"credential_public_id"`
	RankingJSON        string    `db:"ranking_json" json:"ranking_json"`
	Weight             int       `db:"weight" json:"weight"`
	BallotHash         string    `db:"ballot_hash" json:"ballot_hash"`
	PreviousChainHash  string    `db:"previous_chain_hash" json:"previous_chain_hash"`
	ChainHash          string    `db:"chain_hash" json:"chain_hash"`
	IsCounted          bool      `db:"is_counted" json:"is_counted"`
	SupersededByID     *int64    `db:"superseded_by_id" json:"superseded_by_id,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// Organization represents a member organization whose vote is cast by its
// single representative
type Organization struct {
	ID                   int64     `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	RepresentativeUserID *int64    `db:"representative_user_id" json:"representative_user_id,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// Membership types.
const (
	MembershipTypeIndividual   = "individual"
	MembershipTypeOrganization = "organization"
)

// Membership represents a dues-paying membership. Exactly one of UserID and
// OrganizationID is set, matching Type.
type Membership struct {
	ID             int64      `db:"id" json:"id"`
	UserID         *int64     `db:"user_id" json:"user_id,omitempty"`
	OrganizationID *int64     `db:"organization_id" json:"organization_id,omitempty"`
	Type           string     `db:"type" json:"type"`
	Weight         int        `db:"weight" json:"weight"`
	StartDate      time.Time  `db:"start_date" json:"start_date"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID         int64     `db:"id" json:"id"`
	ElectionID *int64    `db:"election_id" json:"election_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	Details    string    `db:"details" json:"details"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// User represents an API user
type User struct {
	ID           int64      `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"` // Never include in JSON
	Role         string     `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
