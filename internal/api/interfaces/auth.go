package interfaces

// Claims represents JWT token claims
type Claims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"expires_at"`
}

type AuthServiceInterface interface {
	// Authenticate checks a username/password pair and returns the role
	Authenticate(username, password string) (string, error)

	// GenerateToken issues a signed bearer token for the given identity
	GenerateToken(username, role string) (string, int64, error)

	ValidateToken(token string) (*Claims, error)
}
