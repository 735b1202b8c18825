package domain

import "time"

// Eligibility reason codes. A false result always carries one.
const (
	ReasonAlreadyVoted      = "ALREADY_VOTED"
	ReasonOutsideWindow     = "OUTSIDE_WINDOW"
	ReasonWrongConstituency = "WRONG_CONSTITUENCY"
	ReasonNotVerified       = "NOT_VERIFIED"
)

// EligibilityResult is the outcome of a pre-cast check. It is advisory:
// the authoritative decision happens atomically at the ledger boundary.
type EligibilityResult struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// VoteIntent is the ephemeral, client-keyed submission record. It exists
// only for the duration of the ledger call; the idempotency key is what
// makes retries of the same logical attempt safe.
type VoteIntent struct {
	IdempotencyKey string
	VoterID        string
	ElectionID     string
	CandidateID    string
	SubmittedAt    time.Time
}

// VoteReceipt is returned to the voter after a recorded cast. It proves
// the vote was recorded without revealing the candidate choice.
type VoteReceipt struct {
	ReceiptCode      string `json:"receipt_code"`
	ElectionID       string `json:"election_id"`
	VerificationHash string `json:"verification_hash"`
}
