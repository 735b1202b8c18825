package domain

import "time"

// Election is the voting window and jurisdiction an eligibility check is
// evaluated against. The window is half-open: [StartsAt, EndsAt).
type Election struct {
	ID           string
	Name         string
	Constituency string
	StartsAt     time.Time
	EndsAt       time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Open reports whether the voting window contains now.
func (e Election) Open(now time.Time) bool {
	return !now.Before(e.StartsAt) && now.Before(e.EndsAt)
}
