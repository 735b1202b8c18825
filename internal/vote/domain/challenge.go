package domain

import "time"

// AuthChallenge is a one-time-passcode challenge. At most one active
// (non-expired, non-consumed) challenge exists per voter; issuing a new
// one tombstones any prior active challenge.
type AuthChallenge struct {
	ID                string
	VoterID           string
	CodeHash          string // fingerprint of the 6-digit code, never the code itself
	IssuedAt          time.Time
	ExpiresAt         time.Time
	AttemptsRemaining int
	ConsumedAt        *time.Time // set on success or on attempt exhaustion
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Active reports whether the challenge can still be satisfied at now.
func (c AuthChallenge) Active(now time.Time) bool {
	return c.ConsumedAt == nil && now.Before(c.ExpiresAt) && c.AttemptsRemaining > 0
}

// SessionSeed is produced by a satisfied challenge and consumed exactly
// once by session creation.
type SessionSeed struct {
	VoterID     string
	Role        string
	ChallengeID string
}
