package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicstack/ballotcore/internal/vote/domain"
)

func newChallengeService(t *testing.T) (*ChallengeService, *captureSender, domain.VoterIdentity) {
	t.Helper()

	st := newTestStore(t)
	sender := &captureSender{}
	svc := &ChallengeService{Store: st, Sender: sender}
	voter := seedVoter(t, st)
	return svc, sender, voter
}

func TestChallengeIssue(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a six digit code", func(t *testing.T) {
		svc, sender, voter := newChallengeService(t)

		challenge, err := svc.Issue(ctx, voter)
		require.NoError(t, err)
		assert.Equal(t, DefaultChallengeAttempts, challenge.AttemptsRemaining)
		assert.Len(t, sender.last(t), 6)
	})

	t.Run("new challenge tombstones the old one", func(t *testing.T) {
		svc, sender, voter := newChallengeService(t)

		first, err := svc.Issue(ctx, voter)
		require.NoError(t, err)
		firstCode := sender.last(t)

		_, err = svc.Issue(ctx, voter)
		require.NoError(t, err)

		_, err = svc.Verify(ctx, first.ID, firstCode)
		assert.ErrorIs(t, err, ErrChallengeConsumed)
	})
}

func TestChallengeVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("correct code yields a seed and consumes the challenge", func(t *testing.T) {
		svc, sender, voter := newChallengeService(t)
		challenge, err := svc.Issue(ctx, voter)
		require.NoError(t, err)

		seed, err := svc.Verify(ctx, challenge.ID, sender.last(t))
		require.NoError(t, err)
		assert.Equal(t, voter.ID, seed.VoterID)
		assert.Equal(t, domain.RoleVoter, seed.Role)

		_, err = svc.Verify(ctx, challenge.ID, sender.last(t))
		assert.ErrorIs(t, err, ErrChallengeConsumed)
	})

	t.Run("wrong code burns an attempt", func(t *testing.T) {
		svc, sender, voter := newChallengeService(t)
		challenge, err := svc.Issue(ctx, voter)
		require.NoError(t, err)

		_, err = svc.Verify(ctx, challenge.ID, "000000")
		assert.ErrorIs(t, err, ErrInvalidCode)

		// The budget is spent but the code still works within it.
		_, err = svc.Verify(ctx, challenge.ID, sender.last(t))
		require.NoError(t, err)
	})

	t.Run("exhausting attempts consumes the challenge", func(t *testing.T) {
		svc, sender, voter := newChallengeService(t)
		svc.Attempts = 2
		challenge, err := svc.Issue(ctx, voter)
		require.NoError(t, err)

		_, err = svc.Verify(ctx, challenge.ID, "000000")
		assert.ErrorIs(t, err, ErrInvalidCode)
		_, err = svc.Verify(ctx, challenge.ID, "000000")
		assert.ErrorIs(t, err, ErrAttemptsExhausted)

		// Even the correct code is dead now.
		_, err = svc.Verify(ctx, challenge.ID, sender.last(t))
		assert.ErrorIs(t, err, ErrChallengeConsumed)
	})

	t.Run("expired challenge is refused", func(t *testing.T) {
		svc, sender, voter := newChallengeService(t)
		svc.TTL = time.Nanosecond
		challenge, err := svc.Issue(ctx, voter)
		require.NoError(t, err)

		time.Sleep(time.Millisecond)

		_, err = svc.Verify(ctx, challenge.ID, sender.last(t))
		assert.ErrorIs(t, err, ErrChallengeExpired)
	})

	t.Run("unknown challenge id", func(t *testing.T) {
		svc, _, _ := newChallengeService(t)

		_, err := svc.Verify(ctx, "no-such-id", "000000")
		assert.ErrorIs(t, err, ErrChallengeNotFound)
	})
}

func TestChallengeResend(t *testing.T) {
	ctx := context.Background()

	t.Run("throttled inside the resend interval", func(t *testing.T) {
		svc, _, voter := newChallengeService(t)
		challenge, err := svc.Issue(ctx, voter)
		require.NoError(t, err)

		_, err = svc.Resend(ctx, challenge.ID)
		assert.ErrorIs(t, err, ErrResendTooSoon)
	})

	t.Run("replacement inherits the attempt budget", func(t *testing.T) {
		svc, sender, voter := newChallengeService(t)
		svc.ResendInterval = time.Nanosecond
		challenge, err := svc.Issue(ctx, voter)
		require.NoError(t, err)

		// Burn two guesses before resending.
		_, err = svc.Verify(ctx, challenge.ID, "000000")
		assert.ErrorIs(t, err, ErrInvalidCode)
		_, err = svc.Verify(ctx, challenge.ID, "000001")
		assert.ErrorIs(t, err, ErrInvalidCode)

		time.Sleep(time.Millisecond)

		replacement, err := svc.Resend(ctx, challenge.ID)
		require.NoError(t, err)
		assert.Equal(t, DefaultChallengeAttempts-2, replacement.AttemptsRemaining)

		// The old challenge is dead; the new code works.
		_, err = svc.Verify(ctx, challenge.ID, sender.last(t))
		assert.ErrorIs(t, err, ErrChallengeConsumed)

		_, err = svc.Verify(ctx, replacement.ID, sender.last(t))
		require.NoError(t, err)
	})

	t.Run("consumed challenge cannot be resent", func(t *testing.T) {
		svc, sender, voter := newChallengeService(t)
		svc.ResendInterval = time.Nanosecond
		challenge, err := svc.Issue(ctx, voter)
		require.NoError(t, err)

		_, err = svc.Verify(ctx, challenge.ID, sender.last(t))
		require.NoError(t, err)

		_, err = svc.Resend(ctx, challenge.ID)
		assert.ErrorIs(t, err, ErrChallengeConsumed)
	})
}
