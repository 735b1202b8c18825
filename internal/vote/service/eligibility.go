package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/civicstack/ballotcore/internal/vote/domain"
	"github.com/civicstack/ballotcore/internal/vote/ledger"
	"github.com/civicstack/ballotcore/internal/vote/store"
	"github.com/civicstack/ballotcore/pkg/slogx"
)

var (
	ErrElectionNotFound = errors.New("election not found")

	// ErrNotEligible carries no reason; callers use Check for the reason
	// and this error only as a gate.
	ErrNotEligible = errors.New("voter not eligible")

	// ErrVoteUnavailable is returned when the ledger stayed unreachable
	// through the retry budget. The cast may retry later with the SAME
	// idempotency key.
	ErrVoteUnavailable = errors.New("vote recording unavailable, retry with the same idempotency key")

	// ErrBadIdempotencyKey rejects keys that are not well-formed UUIDs
	// before anything touches the ledger.
	ErrBadIdempotencyKey = errors.New("idempotency key must be a UUID")
)

const (
	// castRetryInterval is the initial backoff between ledger retries.
	castRetryInterval = 200 * time.Millisecond

	// castRetryBudget bounds the total time spent retrying a transient
	// ledger failure within one HTTP request.
	castRetryBudget = 3 * time.Second
)

// EligibilityService decides whether a session may cast in an election
// and performs the cast. Check is advisory; the ledger's uniqueness
// constraint is the authority, so a voter passing Check can still lose
// the race and get ErrAlreadyVoted from Cast.
type EligibilityService struct {
	Store  store.Store
	Ledger ledger.Client
}

// Check evaluates a voter against an election without casting. A false
// result always names exactly one reason, checked in a fixed order so
// the same state yields the same answer.
func (s *EligibilityService) Check(ctx context.Context, info domain.SessionInfo, electionID string) (domain.EligibilityResult, error) {
	now := time.Now().UTC()

	election, err := s.Store.Elections().GetElectionByID(ctx, electionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.EligibilityResult{}, ErrElectionNotFound
		}
		return domain.EligibilityResult{}, fmt.Errorf("failed to load election: %w", err)
	}

	voter, err := s.Store.Voters().GetVoterByID(ctx, info.VoterID)
	if err != nil {
		return domain.EligibilityResult{}, fmt.Errorf("failed to load voter: %w", err)
	}

	if !voter.Active {
		return domain.EligibilityResult{Reason: domain.ReasonNotVerified}, nil
	}

	if !election.Open(now) {
		return domain.EligibilityResult{Reason: domain.ReasonOutsideWindow}, nil
	}

	if election.Constituency != "" && election.Constituency != voter.Constituency {
		return domain.EligibilityResult{Reason: domain.ReasonWrongConstituency}, nil
	}

	voted, err := s.Ledger.HasVoted(ctx, voter.ID, electionID)
	if err != nil {
		return domain.EligibilityResult{}, fmt.Errorf("failed to check vote state: %w", err)
	}
	if voted {
		return domain.EligibilityResult{Reason: domain.ReasonAlreadyVoted}, nil
	}

	return domain.EligibilityResult{Eligible: true}, nil
}

// Cast records a vote. The eligibility re-check here is a cheap guard;
// exactly-once is enforced by the ledger. Transient ledger failures are
// retried with the same idempotency key inside a bounded budget.
func (s *EligibilityService) Cast(ctx context.Context, info domain.SessionInfo, intent domain.VoteIntent) (domain.VoteReceipt, error) {
	log := slogx.FromContext(ctx)

	if _, err := uuid.Parse(intent.IdempotencyKey); err != nil {
		return domain.VoteReceipt{}, ErrBadIdempotencyKey
	}

	result, err := s.Check(ctx, info, intent.ElectionID)
	if err != nil {
		return domain.VoteReceipt{}, err
	}
	if !result.Eligible && result.Reason != domain.ReasonAlreadyVoted {
		// ALREADY_VOTED falls through to the ledger: the attempt may be an
		// idempotent retry entitled to its original receipt.
		return domain.VoteReceipt{}, ErrNotEligible
	}

	req := ledger.RecordRequest{
		VoterID:        info.VoterID,
		ElectionID:     intent.ElectionID,
		CandidateID:    intent.CandidateID,
		IdempotencyKey: intent.IdempotencyKey,
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = castRetryInterval
	policy.MaxElapsedTime = castRetryBudget

	var recorded ledger.RecordResult
	err = backoff.Retry(func() error {
		res, err := s.Ledger.Record(ctx, req)
		if err != nil {
			if errors.Is(err, ledger.ErrUnavailable) {
				return err // transient, retry with the same key
			}
			return backoff.Permanent(err)
		}
		recorded = res
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		if errors.Is(err, ledger.ErrUnavailable) {
			log.Warn("Ledger unavailable through retry budget",
				slog.String("voter_id", info.VoterID),
				slog.String("election_id", intent.ElectionID),
			)
			return domain.VoteReceipt{}, ErrVoteUnavailable
		}
		return domain.VoteReceipt{}, err
	}

	log.Info("Vote recorded",
		slog.String("election_id", intent.ElectionID),
		slog.Bool("replayed", recorded.Replayed),
	)

	return domain.VoteReceipt{
		ReceiptCode:      recorded.ReceiptCode,
		ElectionID:       intent.ElectionID,
		VerificationHash: recorded.VerificationHash,
	}, nil
}
