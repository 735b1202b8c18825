package store

import (
	"context"
	"errors"
	"time"

	"github.com/civicstack/ballotcore/internal/vote/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrVoteConflict is returned when a vote insert loses the uniqueness
	// race on (voter_id, election_id). The caller decides whether it is an
	// idempotent replay or a genuine second attempt.
	ErrVoteConflict = errors.New("store: vote already recorded for voter and election")
)

// Store is the root data access interface. Concrete drivers (sqlite)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable; each component mutates only its own repository.
type Store interface {
	Voters() Voters
	Challenges() Challenges
	Sessions() Sessions
	Elections() Elections
	VoteRecords() VoteRecords

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back if fn returns
	// an error and committing otherwise. This is the recommended way to
	// run multi-step operations that must be atomic (e.g., refresh
	// rotation, vote recording).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Voters interface {
	// GetVoterByID returns a voter record by id.
	GetVoterByID(ctx context.Context, id string) (domain.VoterIdentity, error)

	// GetVoterByNINHash looks a voter up by the deterministic NIN
	// fingerprint. Used during the credential check.
	GetVoterByNINHash(ctx context.Context, ninHash string) (domain.VoterIdentity, error)

	// CreateVoter inserts a new voter record (id is provided by app via ULID).
	CreateVoter(ctx context.Context, v domain.VoterIdentity) error

	// UpdateLockState sets failed_attempts and locked_until and bumps
	// updated_at. The service computes the new values; this persists them.
	UpdateLockState(ctx context.Context, voterID string, failedAttempts int, lockedUntil *time.Time) error

	// DeactivateVoter flips active=0. Voter records are never deleted.
	DeactivateVoter(ctx context.Context, voterID string) error
}

type Challenges interface {
	// CreateChallenge stores a freshly issued challenge.
	CreateChallenge(ctx context.Context, c domain.AuthChallenge) error

	// GetChallengeByID fetches a challenge regardless of state; the
	// service decides between expired, consumed and active.
	GetChallengeByID(ctx context.Context, id string) (domain.AuthChallenge, error)

	// GetLatestChallengeForVoter returns the most recently issued
	// challenge for a voter, consumed or not. Used for resend throttling.
	GetLatestChallengeForVoter(ctx context.Context, voterID string) (domain.AuthChallenge, error)

	// InvalidateActiveChallenges tombstones every active challenge for the
	// voter (sets consumed_at). Enforces the single-active invariant when
	// a new challenge is issued.
	InvalidateActiveChallenges(ctx context.Context, voterID string, now time.Time) error

	// DecrementChallengeAttempts decrements attempts_remaining and returns
	// the updated challenge.
	DecrementChallengeAttempts(ctx context.Context, id string) (domain.AuthChallenge, error)

	// MarkChallengeConsumed sets consumed_at so the challenge can never be
	// satisfied again.
	MarkChallengeConsumed(ctx context.Context, id string, now time.Time) error

	// DeleteExpiredChallenges is housekeeping.
	DeleteExpiredChallenges(ctx context.Context) error
}

type Sessions interface {
	// CreateSession stores a new session row (one refresh generation).
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByRefreshHash returns the row for a presented refresh
	// token, revoked or not; reuse detection needs to see revoked rows.
	GetSessionByRefreshHash(ctx context.Context, hash string) (domain.Session, error)

	// GetActiveSessionByFamily returns the live (non-revoked, non-expired)
	// row of a session family, or ErrNotFound. This is the call-time
	// revocation check every downstream component uses.
	GetActiveSessionByFamily(ctx context.Context, familyID string, now time.Time) (domain.Session, error)

	// RevokeSession flips revoked=1 for one row. Idempotent.
	RevokeSession(ctx context.Context, id string) error

	// RevokeSessionFamily revokes every row sharing family_id. Used on
	// logout and on refresh-token reuse detection.
	RevokeSessionFamily(ctx context.Context, familyID string) error

	// DeleteExpiredSessions is housekeeping.
	DeleteExpiredSessions(ctx context.Context) error
}

type Elections interface {
	// CreateElection inserts a new election (id is ULID).
	CreateElection(ctx context.Context, e domain.Election) error

	// GetElectionByID fetches an election by its ID.
	GetElectionByID(ctx context.Context, id string) (domain.Election, error)

	// ListElections returns all elections ordered by start date (newest first).
	ListElections(ctx context.Context) ([]domain.Election, error)
}

// VoteRecords backs the embedded ledger. The (voter_id, election_id)
// uniqueness is enforced by the schema, not by application-level checks.
type VoteRecords interface {
	// CreateVoteRecord inserts a vote row. Returns ErrVoteConflict if a
	// record already exists for the (voterID, electionID) pair.
	CreateVoteRecord(ctx context.Context, r VoteRecord) error

	// GetVoteByIdempotencyKey returns the record created by a prior
	// attempt with the same key, or ErrNotFound.
	GetVoteByIdempotencyKey(ctx context.Context, key string) (VoteRecord, error)

	// GetVoteByVoterElection returns the record for a voter/election pair,
	// or ErrNotFound.
	GetVoteByVoterElection(ctx context.Context, voterID, electionID string) (VoteRecord, error)

	// GetVoteByReceiptHash resolves a receipt fingerprint, or ErrNotFound.
	GetVoteByReceiptHash(ctx context.Context, receiptHash string) (VoteRecord, error)
}

// VoteRecord is the embedded ledger row. It deliberately carries no
// candidate: the choice is handed to the tally pipeline at record time
// and is not reconstructable from here.
type VoteRecord struct {
	ID             string
	VoterID        string
	ElectionID     string
	IdempotencyKey string
	ReceiptCode    string // opaque, returned to the voter once
	ReceiptHash    string // fingerprint, lookup key for verification
	CastAt         time.Time
}
