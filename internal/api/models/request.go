package models

import "time"

// LoginRequest represents an authentication request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CreateElectionRequest represents an election creation request
type CreateElectionRequest struct {
	Name          string    `json:"name" binding:"required"`
	Description   string    `json:"description"`
	Seats         int       `json:"seats" binding:"required,min=1"`
	StartDatetime time.Time `json:"start_datetime" binding:"required"`
	EndDatetime   time.Time `json:"end_datetime" binding:"required"`
	QuorumPct     int       `json:"quorum_pct" binding:"min=0,max=100"`
}

// ExtendElectionRequest pushes an active election's end datetime later
type ExtendElectionRequest struct {
	NewEndDatetime time.Time `json:"new_end_datetime" binding:"required"`
}

// NominateCandidateRequest represents a candidate nomination
type NominateCandidateRequest struct {
	Name              string `json:"name" binding:"required"`
	Statement         string `json:"statement"`
	UserID            *int64 `json:"user_id"`
	NominatedByUserID *int64 `json:"nominated_by_user_id"`
	ExclusionGroupID  *int64 `json:"exclusion_group_id"`
}

// CreateExclusionGroupRequest defines a cap on how many of a candidate set
// may be elected.
type CreateExclusionGroupRequest struct {
	Name       string `json:"name" binding:"required"`
	MaxElected int    `json:"max_elected" binding:"required,min=1"`
}

// SubmitBallotRequest represents a ballot submission. The ranking lists
// candidate ids in preference order; empty is a valid abstention.
type SubmitBallotRequest struct {
	CredentialPublicID string  `json:"credential_public_id" binding:"required"`
	Ranking            []int64 `json:"ranking"`
}

// ReceiptLookupRequest asks whether a ballot hash exists in the ledger
type ReceiptLookupRequest struct {
	BallotHash string `json:"ballot_hash" binding:"required,len=64"`
}
