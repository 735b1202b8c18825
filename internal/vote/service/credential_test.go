package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCredentialService(t *testing.T) (*CredentialService, *captureSender) {
	t.Helper()

	st := newTestStore(t)
	sender := &captureSender{}
	return &CredentialService{
		Store:      st,
		Challenges: &ChallengeService{Store: st, Sender: sender},
	}, sender
}

func TestCredentialSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("valid pair issues a challenge", func(t *testing.T) {
		svc, sender := newCredentialService(t)
		voter := seedVoter(t, svc.Store)

		pending, err := svc.Submit(ctx, testNIN, testVIN)
		require.NoError(t, err)
		assert.Equal(t, voter.ID, pending.VoterID)
		assert.NotEmpty(t, pending.ChallengeID)
		assert.Len(t, sender.last(t), 6)
	})

	t.Run("vin is case insensitive", func(t *testing.T) {
		svc, _ := newCredentialService(t)
		seedVoter(t, svc.Store)

		_, err := svc.Submit(ctx, testNIN, "abcd1234efgh5678ijk")
		require.NoError(t, err)
	})

	t.Run("malformed input fails before lookup", func(t *testing.T) {
		svc, _ := newCredentialService(t)

		_, err := svc.Submit(ctx, "123", testVIN)
		assert.ErrorIs(t, err, ErrMalformedCredential)

		_, err = svc.Submit(ctx, testNIN, "short")
		assert.ErrorIs(t, err, ErrMalformedCredential)
	})

	t.Run("unknown nin and wrong vin are indistinguishable", func(t *testing.T) {
		svc, _ := newCredentialService(t)
		seedVoter(t, svc.Store)

		_, unknownErr := svc.Submit(ctx, "99999999999", testVIN)
		_, wrongErr := svc.Submit(ctx, testNIN, "XXXX1234XXXX5678XXX")

		assert.ErrorIs(t, unknownErr, ErrAuthentication)
		assert.ErrorIs(t, wrongErr, ErrAuthentication)
	})

	t.Run("repeated failures lock the record", func(t *testing.T) {
		svc, _ := newCredentialService(t)
		svc.LockoutThreshold = 3
		seedVoter(t, svc.Store)

		for range 3 {
			_, err := svc.Submit(ctx, testNIN, "XXXX1234XXXX5678XXX")
			assert.ErrorIs(t, err, ErrAuthentication)
		}

		// Correct credentials are refused while locked, with the same error.
		_, err := svc.Submit(ctx, testNIN, testVIN)
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("success resets the failure counter", func(t *testing.T) {
		svc, _ := newCredentialService(t)
		voter := seedVoter(t, svc.Store)

		_, err := svc.Submit(ctx, testNIN, "XXXX1234XXXX5678XXX")
		assert.ErrorIs(t, err, ErrAuthentication)

		_, err = svc.Submit(ctx, testNIN, testVIN)
		require.NoError(t, err)

		stored, err := svc.Store.Voters().GetVoterByID(ctx, voter.ID)
		require.NoError(t, err)
		assert.Zero(t, stored.FailedAttempts)
		assert.Nil(t, stored.LockedUntil)
	})

	t.Run("expired lock admits correct credentials", func(t *testing.T) {
		svc, _ := newCredentialService(t)
		voter := seedVoter(t, svc.Store)

		past := time.Now().UTC().Add(-time.Minute)
		require.NoError(t, svc.Store.Voters().UpdateLockState(ctx, voter.ID, 5, &past))

		_, err := svc.Submit(ctx, testNIN, testVIN)
		require.NoError(t, err)
	})

	t.Run("deactivated record is refused", func(t *testing.T) {
		svc, _ := newCredentialService(t)
		voter := seedVoter(t, svc.Store)
		require.NoError(t, svc.Store.Voters().DeactivateVoter(ctx, voter.ID))

		_, err := svc.Submit(ctx, testNIN, testVIN)
		assert.ErrorIs(t, err, ErrAuthentication)
	})
}
