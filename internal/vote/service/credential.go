package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/civicstack/ballotcore/internal/vote/domain"
	"github.com/civicstack/ballotcore/internal/vote/store"
	"github.com/civicstack/ballotcore/pkg/cryptox"
	"github.com/civicstack/ballotcore/pkg/slogx"
)

const (
	// DefaultLockoutThreshold is how many consecutive failed credential
	// checks lock the record.
	DefaultLockoutThreshold = 5

	// DefaultLockoutWindow is how long a locked record refuses credential
	// checks.
	DefaultLockoutWindow = 15 * time.Minute
)

var (
	// ErrAuthentication is the single failure the credential check exposes.
	// Unknown NIN, wrong VIN, inactive record and locked record all
	// collapse into it so responses cannot be used to probe the roll.
	ErrAuthentication = errors.New("authentication failed")

	// ErrMalformedCredential is returned before any lookup when the input
	// does not match the credential format.
	ErrMalformedCredential = errors.New("malformed credential")
)

var (
	ninPattern = regexp.MustCompile(`^[0-9]{11}$`)
	vinPattern = regexp.MustCompile(`^[A-Z0-9]{19}$`)
)

// CredentialService performs the first authentication factor: the
// NIN/VIN pair against the imported electoral roll. Success issues an
// OTP challenge; it never issues a session directly.
type CredentialService struct {
	Store      store.Store
	Challenges *ChallengeService

	LockoutThreshold int
	LockoutWindow    time.Duration
}

func (s *CredentialService) lockoutThreshold() int {
	if s.LockoutThreshold > 0 {
		return s.LockoutThreshold
	}
	return DefaultLockoutThreshold
}

func (s *CredentialService) lockoutWindow() time.Duration {
	if s.LockoutWindow > 0 {
		return s.LockoutWindow
	}
	return DefaultLockoutWindow
}

// Submit checks a NIN/VIN pair and, on success, issues an OTP challenge
// for the voter. Every failure after format validation looks identical
// to the caller.
func (s *CredentialService) Submit(ctx context.Context, nin, vin string) (domain.PendingAuth, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	nin = strings.TrimSpace(nin)
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if !ninPattern.MatchString(nin) || !vinPattern.MatchString(vin) {
		return domain.PendingAuth{}, ErrMalformedCredential
	}

	voter, err := s.Store.Voters().GetVoterByNINHash(ctx, cryptox.FingerprintToken(nin))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so unknown NINs are not distinguishable
			// from wrong VINs by response latency.
			_ = cryptox.VerifyCredential(vin, decoyVINHash())
			return domain.PendingAuth{}, ErrAuthentication
		}
		return domain.PendingAuth{}, fmt.Errorf("failed to look up voter: %w", err)
	}

	if !voter.Active || voter.Locked(now) {
		log.Warn("Credential check refused",
			slog.String("voter_id", voter.ID),
			slog.Bool("active", voter.Active),
		)
		return domain.PendingAuth{}, ErrAuthentication
	}

	if err := cryptox.VerifyCredential(vin, voter.VINHash); err != nil {
		if err := s.recordFailure(ctx, voter, now); err != nil {
			return domain.PendingAuth{}, err
		}
		return domain.PendingAuth{}, ErrAuthentication
	}

	// Success clears the failure counter and any expired lock.
	if voter.FailedAttempts > 0 || voter.LockedUntil != nil {
		if err := s.Store.Voters().UpdateLockState(ctx, voter.ID, 0, nil); err != nil {
			return domain.PendingAuth{}, fmt.Errorf("failed to reset lock state: %w", err)
		}
	}

	challenge, err := s.Challenges.Issue(ctx, voter)
	if err != nil {
		return domain.PendingAuth{}, err
	}

	log.Info("Credential check passed, challenge issued",
		slog.String("voter_id", voter.ID),
		slog.String("challenge_id", challenge.ID),
	)

	return domain.PendingAuth{VoterID: voter.ID, ChallengeID: challenge.ID}, nil
}

func (s *CredentialService) recordFailure(ctx context.Context, voter domain.VoterIdentity, now time.Time) error {
	attempts := voter.FailedAttempts + 1

	var lockedUntil *time.Time
	if attempts >= s.lockoutThreshold() {
		until := now.Add(s.lockoutWindow())
		lockedUntil = &until
		slogx.FromContext(ctx).Warn("Voter record locked after repeated failures",
			slog.String("voter_id", voter.ID),
			slog.Int("failed_attempts", attempts),
		)
	}

	if err := s.Store.Voters().UpdateLockState(ctx, voter.ID, attempts, lockedUntil); err != nil {
		return fmt.Errorf("failed to record credential failure: %w", err)
	}
	return nil
}

// decoyVINHash is a throwaway argon2 hash verified against when the NIN
// lookup misses, keeping the failure path's timing flat. Computed once
// on first use so pepper configuration has happened by then.
var decoyVINHash = sync.OnceValue(func() string {
	h, err := cryptox.HashCredential("0000000000000000000")
	if err != nil {
		panic(err)
	}
	return h
})
