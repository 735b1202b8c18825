package domain

import "time"

// Role values carried on sessions and voter records.
const (
	RoleVoter = "voter"
	RoleAdmin = "admin"
)

// VoterIdentity is a registered voter's credential record. Created by the
// electoral roll import (registration itself is out of scope); only the
// attempt counters are mutated here. Records are deactivated, never
// deleted.
type VoterIdentity struct {
	ID             string
	NINHash        string // deterministic fingerprint, lookup key
	VINHash        string // argon2 encoded, compared after lookup
	PhoneHash      string
	Constituency   string
	Role           string // "voter" or "admin"
	Active         bool
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Locked reports whether the lockout window is still open at now.
func (v VoterIdentity) Locked(now time.Time) bool {
	return v.LockedUntil != nil && now.Before(*v.LockedUntil)
}

// PendingAuth is the handle returned by a successful credential check.
// It references the challenge the voter must now satisfy; it is not a
// session and grants no access on its own.
type PendingAuth struct {
	VoterID     string
	ChallengeID string
}
