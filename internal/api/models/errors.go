package models

import (
	"net/http"

	"election-ledger/internal/election"
)

// Error codes
const (
	// General errors
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	// Voting specific errors
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL"
	ErrCodeElectionNotOpen   = "ELECTION_NOT_OPEN"
	ErrCodePolicyViolation   = "POLICY_VIOLATION"
	ErrCodeLedgerBusy        = "LEDGER_BUSY"

	// Ledger errors
	ErrCodeChainIntegrity = "CHAIN_INTEGRITY_VIOLATION"

	// Authentication errors
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken       = "INVALID_TOKEN"

	// Rate limiting
	ErrCodeRateLimited = "RATE_LIMIT_EXCEEDED"
)

// APIError represents a structured API error
type APIError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    string            `json:"details,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	StatusCode int               `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error
func NewAPIError(code, message string, statusCode int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to the error
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

// WithField adds a field error
func (e *APIError) WithField(field, message string) *APIError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
	return e
}

// FromDomainError maps a classified domain error onto the wire. Transient
// failures become 503 with a retryable code; integrity violations are 500
// because the server, not the client, is in the bad state.
func FromDomainError(err error) *APIError {
	switch election.KindOf(err) {
	case election.KindValidation:
		return NewAPIError(ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)
	case election.KindPolicy:
		return NewAPIError(ErrCodePolicyViolation, err.Error(), http.StatusConflict)
	case election.KindNotFound:
		return NewAPIError(ErrCodeNotFound, err.Error(), http.StatusNotFound)
	case election.KindTransient:
		return NewAPIError(ErrCodeLedgerBusy, err.Error(), http.StatusServiceUnavailable)
	case election.KindIntegrity:
		return NewAPIError(ErrCodeChainIntegrity, err.Error(), http.StatusInternalServerError)
	default:
		return NewAPIError(ErrCodeInternalError, "internal server error", http.StatusInternalServerError)
	}
}
