package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicstack/ballotcore/internal/vote/domain"
	"github.com/civicstack/ballotcore/pkg/jwtx"
)

const testIssuer = "https://vote.example"

func newSessionService(t *testing.T) (*SessionService, domain.VoterIdentity) {
	t.Helper()

	st := newTestStore(t)
	voter := seedVoter(t, st)

	keypair, err := jwtx.NewKeypair()
	require.NoError(t, err)

	return &SessionService{
		Store:  st,
		Signer: keypair,
		Issuer: testIssuer,
	}, voter
}

func seedFor(voter domain.VoterIdentity) domain.SessionSeed {
	return domain.SessionSeed{VoterID: voter.ID, Role: voter.Role, ChallengeID: "challenge"}
}

func TestSessionCreate(t *testing.T) {
	svc, voter := newSessionService(t)
	ctx := context.Background()

	pair, err := svc.Create(ctx, seedFor(voter))
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)

	info, err := svc.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, voter.ID, info.VoterID)
	assert.Equal(t, domain.RoleVoter, info.Role)
}

func TestSessionRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotation keeps the family and invalidates the old token", func(t *testing.T) {
		svc, voter := newSessionService(t)
		pair, err := svc.Create(ctx, seedFor(voter))
		require.NoError(t, err)

		first, err := svc.Validate(ctx, pair.AccessToken)
		require.NoError(t, err)

		next, err := svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

		second, err := svc.Validate(ctx, next.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, first.FamilyID, second.FamilyID)
	})

	t.Run("reuse of a superseded token kills the family", func(t *testing.T) {
		svc, voter := newSessionService(t)
		pair, err := svc.Create(ctx, seedFor(voter))
		require.NoError(t, err)

		next, err := svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		// Presenting the superseded token again signals theft.
		_, err = svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidRefresh)

		// The rotated-to token is dead too.
		_, err = svc.Refresh(ctx, next.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidRefresh)

		_, err = svc.Validate(ctx, next.AccessToken)
		assert.ErrorIs(t, err, ErrSessionRevoked)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc, _ := newSessionService(t)

		_, err := svc.Refresh(ctx, "never-issued")
		assert.ErrorIs(t, err, ErrInvalidRefresh)
	})
}

func TestSessionRevoke(t *testing.T) {
	ctx := context.Background()

	t.Run("logout revokes the family", func(t *testing.T) {
		svc, voter := newSessionService(t)
		pair, err := svc.Create(ctx, seedFor(voter))
		require.NoError(t, err)

		require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))

		_, err = svc.Validate(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, ErrSessionRevoked)

		_, err = svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("logout is idempotent", func(t *testing.T) {
		svc, voter := newSessionService(t)
		pair, err := svc.Create(ctx, seedFor(voter))
		require.NoError(t, err)

		require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))
		require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))
		require.NoError(t, svc.Revoke(ctx, "never-issued"))
	})
}

func TestSessionValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("garbage token", func(t *testing.T) {
		svc, _ := newSessionService(t)

		_, err := svc.Validate(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, jwtx.ErrInvalid)
	})

	t.Run("token from another issuer", func(t *testing.T) {
		svc, voter := newSessionService(t)
		pair, err := svc.Create(ctx, seedFor(voter))
		require.NoError(t, err)

		svc.Issuer = "https://other.example"
		_, err = svc.Validate(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("expired access token", func(t *testing.T) {
		svc, voter := newSessionService(t)
		svc.AccessTTL = time.Nanosecond

		pair, err := svc.Create(ctx, seedFor(voter))
		require.NoError(t, err)

		time.Sleep(time.Millisecond)

		_, err = svc.Validate(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, jwtx.ErrExpired)
	})
}
