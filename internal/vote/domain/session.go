package domain

import "time"

// Session models one refresh-token generation within a session family.
// FamilyID persists across rotations; each refresh revokes the previous
// row and inserts a new one. Presenting a revoked (superseded) refresh
// token is treated as a compromise signal and revokes the whole family.
type Session struct {
	ID          string
	VoterID     string
	FamilyID    string
	Role        string
	RefreshHash string // deterministic fingerprint of the opaque refresh token
	ExpiresAt   time.Time
	Revoked     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TokenPair is what session creation and refresh return: a short-lived
// JWT access token and an opaque rotating refresh token.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // seconds until access expiry
}

// SessionInfo is the re-validated view of a session that downstream
// checks (eligibility, admin operations) rely on. It is produced at call
// time from the store, never from a cached decision.
type SessionInfo struct {
	VoterID  string
	FamilyID string
	Role     string
}
