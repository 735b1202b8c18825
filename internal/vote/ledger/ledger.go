// Package ledger defines the narrow contract to the tally service that
// durably records cast votes. The core depends on Record being atomic and
// idempotent keyed on (voterID, electionID), with the idempotency key
// disambiguating retries of the same logical attempt from a genuine
// second attempt.
package ledger

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyVoted reports that a vote for the (voter, election) pair
	// was recorded by a different logical attempt. This is a legitimate
	// terminal state, never retried.
	ErrAlreadyVoted = errors.New("ledger: vote already recorded for this voter and election")

	// ErrUnavailable reports a transient failure (timeout, connection,
	// 5xx). Callers retry with the SAME idempotency key.
	ErrUnavailable = errors.New("ledger: service unavailable")

	// ErrKeyReuse reports an idempotency key presented with a payload
	// that differs from the attempt that first used it.
	ErrKeyReuse = errors.New("ledger: idempotency key reused for a different intent")
)

// RecordRequest is one logical cast attempt. Retries of the same attempt
// carry the same IdempotencyKey.
type RecordRequest struct {
	VoterID        string
	ElectionID     string
	CandidateID    string
	IdempotencyKey string
}

// RecordResult is a successful record. Replayed is true when the request
// matched a previously accepted attempt and the original receipt was
// returned instead of creating a second record.
type RecordResult struct {
	ReceiptCode      string
	VerificationHash string
	Replayed         bool
}

// Verification is the answer to a receipt lookup. It never carries the
// candidate choice.
type Verification struct {
	Valid      bool
	ElectionID string
}

// Client is the boundary to the tally service.
type Client interface {
	// Record durably records a vote, or returns ErrAlreadyVoted /
	// ErrUnavailable / ErrKeyReuse.
	Record(ctx context.Context, req RecordRequest) (RecordResult, error)

	// HasVoted reports whether a record exists for the pair.
	HasVoted(ctx context.Context, voterID, electionID string) (bool, error)

	// Verify resolves a receipt code. Fails closed: malformed and unknown
	// codes both come back as Valid=false with no error.
	Verify(ctx context.Context, receiptCode string) (Verification, error)
}
