package models

// BaseResponse represents the base API response structure
type BaseResponse struct {
	Success   bool        `json:"success" example:"true"`
	Message   string      `json:"message,omitempty" example:"Operation completed successfully"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp" example:"1640995200"`
	RequestID string      `json:"request_id,omitempty" example:"req_123456"`
}

// ErrorInfo represents error information
type ErrorInfo struct {
	Code    string `json:"code" example:"INVALID_REQUEST"`
	Message string `json:"message" example:"Invalid request parameters"`
	Details string `json:"details,omitempty" example:"Field 'ranking' is malformed"`
}

// ElectionResponse represents election information on the public surface.
// Result data appears only once the election is tallied.
type ElectionResponse struct {
	ID            int64           `json:"id" example:"1"`
	Name          string          `json:"name" example:"2026 Board Election"`
	Description   string          `json:"description,omitempty"`
	Seats         int             `json:"seats" example:"3"`
	StartDatetime int64           `json:"start_datetime" example:"1640995200"`
	EndDatetime   int64           `json:"end_datetime" example:"1641081600"`
	Status        string          `json:"status" example:"active"`
	QuorumPct     int             `json:"quorum_pct" example:"50"`
	Anonymized    bool            `json:"anonymized" example:"false"`
	Candidates    []CandidateInfo `json:"candidates,omitempty"`
}

// CandidateInfo represents candidate information
type CandidateInfo struct {
	ID        int64  `json:"id" example:"1"`
	Name      string `json:"name" example:"Jane Doe"`
	Statement string `json:"statement,omitempty"`
}

// LoginResponse carries the issued bearer token
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	Role      string `json:"role"`
}

// HealthResponse reports component health for the health endpoint
type HealthResponse struct {
	Status    string            `json:"status" example:"healthy"`
	Version   string            `json:"version,omitempty"`
	Checks    map[string]string `json:"checks"`
	Timestamp int64             `json:"timestamp"`
}
