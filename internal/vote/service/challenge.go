package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"

	"github.com/civicstack/ballotcore/internal/vote/domain"
	"github.com/civicstack/ballotcore/internal/vote/notify"
	"github.com/civicstack/ballotcore/internal/vote/store"
	"github.com/civicstack/ballotcore/pkg/cryptox"
	"github.com/civicstack/ballotcore/pkg/idx"
	"github.com/civicstack/ballotcore/pkg/slogx"
)

const (
	// DefaultChallengeTTL is how long an issued passcode can be satisfied.
	DefaultChallengeTTL = 5 * time.Minute

	// DefaultChallengeAttempts is the guess budget per challenge. Resends
	// do not replenish it; the budget belongs to the login attempt.
	DefaultChallengeAttempts = 5

	// DefaultResendInterval is the minimum gap between deliveries for the
	// same voter.
	DefaultResendInterval = 60 * time.Second
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrChallengeConsumed = errors.New("challenge already consumed")
	ErrInvalidCode       = errors.New("invalid passcode")
	ErrAttemptsExhausted = errors.New("passcode attempts exhausted")
	ErrResendTooSoon     = errors.New("resend requested too soon")
)

// ChallengeService issues and verifies one-time passcodes, the second
// authentication factor. Codes are HOTP-derived from a per-challenge
// random secret and stored only as fingerprints.
type ChallengeService struct {
	Store  store.Store
	Sender notify.Sender

	TTL            time.Duration
	Attempts       int
	ResendInterval time.Duration
}

func (s *ChallengeService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultChallengeTTL
}

func (s *ChallengeService) attempts() int {
	if s.Attempts > 0 {
		return s.Attempts
	}
	return DefaultChallengeAttempts
}

func (s *ChallengeService) resendInterval() time.Duration {
	if s.ResendInterval > 0 {
		return s.ResendInterval
	}
	return DefaultResendInterval
}

// Issue creates a fresh challenge for the voter, tombstoning any prior
// active one, and dispatches the code. At most one challenge per voter
// can be satisfied at any time.
func (s *ChallengeService) Issue(ctx context.Context, voter domain.VoterIdentity) (domain.AuthChallenge, error) {
	now := time.Now().UTC()

	code, err := generatePasscode()
	if err != nil {
		return domain.AuthChallenge{}, fmt.Errorf("failed to generate passcode: %w", err)
	}

	challenge := domain.AuthChallenge{
		ID:                idx.New().String(),
		VoterID:           voter.ID,
		CodeHash:          cryptox.FingerprintToken(code),
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.ttl()),
		AttemptsRemaining: s.attempts(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Challenges().InvalidateActiveChallenges(ctx, voter.ID, now); err != nil {
			return fmt.Errorf("failed to invalidate prior challenges: %w", err)
		}
		if err := tx.Challenges().CreateChallenge(ctx, challenge); err != nil {
			return fmt.Errorf("failed to create challenge: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.AuthChallenge{}, err
	}

	if err := s.Sender.Dispatch(ctx, voter.ID, voter.PhoneHash, code); err != nil {
		// The challenge stays issued; the voter can request a resend once
		// the interval passes.
		slogx.FromContext(ctx).Error("Passcode delivery failed",
			slog.String("voter_id", voter.ID),
			slog.Any("err", err),
		)
	}

	return challenge, nil
}

// Verify checks a submitted code against a challenge. A correct code
// consumes the challenge and returns the seed session creation feeds on.
// A wrong code burns one attempt; burning the last one consumes the
// challenge as failed.
func (s *ChallengeService) Verify(ctx context.Context, challengeID, code string) (domain.SessionSeed, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	challenge, err := s.Store.Challenges().GetChallengeByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SessionSeed{}, ErrChallengeNotFound
		}
		return domain.SessionSeed{}, fmt.Errorf("failed to load challenge: %w", err)
	}

	switch {
	case challenge.ConsumedAt != nil:
		return domain.SessionSeed{}, ErrChallengeConsumed
	case !now.Before(challenge.ExpiresAt):
		return domain.SessionSeed{}, ErrChallengeExpired
	case challenge.AttemptsRemaining <= 0:
		return domain.SessionSeed{}, ErrAttemptsExhausted
	}

	submitted := []byte(cryptox.FingerprintToken(code))
	if subtle.ConstantTimeCompare(submitted, []byte(challenge.CodeHash)) != 1 {
		updated, err := s.Store.Challenges().DecrementChallengeAttempts(ctx, challengeID)
		if err != nil {
			return domain.SessionSeed{}, fmt.Errorf("failed to burn attempt: %w", err)
		}
		if updated.AttemptsRemaining <= 0 {
			if err := s.Store.Challenges().MarkChallengeConsumed(ctx, challengeID, now); err != nil {
				return domain.SessionSeed{}, fmt.Errorf("failed to consume challenge: %w", err)
			}
			log.Warn("Challenge exhausted", slog.String("challenge_id", challengeID))
			return domain.SessionSeed{}, ErrAttemptsExhausted
		}
		return domain.SessionSeed{}, ErrInvalidCode
	}

	if err := s.Store.Challenges().MarkChallengeConsumed(ctx, challengeID, now); err != nil {
		return domain.SessionSeed{}, fmt.Errorf("failed to consume challenge: %w", err)
	}

	voter, err := s.Store.Voters().GetVoterByID(ctx, challenge.VoterID)
	if err != nil {
		return domain.SessionSeed{}, fmt.Errorf("failed to load voter: %w", err)
	}

	log.Info("Challenge satisfied",
		slog.String("voter_id", voter.ID),
		slog.String("challenge_id", challengeID),
	)

	return domain.SessionSeed{
		VoterID:     voter.ID,
		Role:        voter.Role,
		ChallengeID: challengeID,
	}, nil
}

// Resend reissues the code for a pending login. The fresh challenge
// inherits the remaining attempt budget of the one it replaces, so
// resending never buys more guesses.
func (s *ChallengeService) Resend(ctx context.Context, challengeID string) (domain.AuthChallenge, error) {
	now := time.Now().UTC()

	prior, err := s.Store.Challenges().GetChallengeByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AuthChallenge{}, ErrChallengeNotFound
		}
		return domain.AuthChallenge{}, fmt.Errorf("failed to load challenge: %w", err)
	}

	switch {
	case prior.ConsumedAt != nil:
		return domain.AuthChallenge{}, ErrChallengeConsumed
	case !now.Before(prior.ExpiresAt):
		return domain.AuthChallenge{}, ErrChallengeExpired
	case prior.AttemptsRemaining <= 0:
		return domain.AuthChallenge{}, ErrAttemptsExhausted
	}

	if now.Sub(prior.IssuedAt) < s.resendInterval() {
		return domain.AuthChallenge{}, ErrResendTooSoon
	}

	voter, err := s.Store.Voters().GetVoterByID(ctx, prior.VoterID)
	if err != nil {
		return domain.AuthChallenge{}, fmt.Errorf("failed to load voter: %w", err)
	}

	code, err := generatePasscode()
	if err != nil {
		return domain.AuthChallenge{}, fmt.Errorf("failed to generate passcode: %w", err)
	}

	replacement := domain.AuthChallenge{
		ID:                idx.New().String(),
		VoterID:           voter.ID,
		CodeHash:          cryptox.FingerprintToken(code),
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.ttl()),
		AttemptsRemaining: prior.AttemptsRemaining,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Challenges().InvalidateActiveChallenges(ctx, voter.ID, now); err != nil {
			return fmt.Errorf("failed to invalidate prior challenges: %w", err)
		}
		if err := tx.Challenges().CreateChallenge(ctx, replacement); err != nil {
			return fmt.Errorf("failed to create challenge: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.AuthChallenge{}, err
	}

	if err := s.Sender.Dispatch(ctx, voter.ID, voter.PhoneHash, code); err != nil {
		slogx.FromContext(ctx).Error("Passcode delivery failed",
			slog.String("voter_id", voter.ID),
			slog.Any("err", err),
		)
	}

	return replacement, nil
}

// generatePasscode derives a 6-digit code from a single-use random
// secret at counter 0. Each challenge gets its own secret, so codes are
// independent and unguessable beyond the 10^6 space the attempt budget
// already bounds.
func generatePasscode() (string, error) {
	secret := make([]byte, 20)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}

	return hotp.GenerateCodeCustom(
		base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret),
		0,
		hotp.ValidateOpts{Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1},
	)
}
