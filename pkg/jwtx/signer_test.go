package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	kp, err := NewKeypair()
	require.NoError(t, err)

	now := time.Now()
	claims := NewAccessClaims("voter-1", "sid-1", "voter", []string{"nin_vin", "otp"}, 15*time.Minute, "ballotcore", now)

	raw, err := kp.Sign(claims)
	require.NoError(t, err)

	got, err := kp.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "voter-1", got.Subject)
	require.Equal(t, "sid-1", got.SID)
	require.Equal(t, "voter", got.Role)
	require.Equal(t, []string{"nin_vin", "otp"}, got.AMR)
	require.NoError(t, got.ValidateExpiry())
	require.NoError(t, got.ValidateIssuer("ballotcore"))
	require.ErrorIs(t, got.ValidateIssuer("other"), ErrIssuer)
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	t.Parallel()

	kp1, err := NewKeypair()
	require.NoError(t, err)
	kp2, err := NewKeypair()
	require.NoError(t, err)

	raw, err := kp1.Sign(NewAccessClaims("voter-1", "sid-1", "voter", nil, time.Minute, "ballotcore", time.Now()))
	require.NoError(t, err)

	_, err = kp2.Verify(raw)
	require.ErrorIs(t, err, ErrInvalid)

	_, err = kp1.Verify("garbage.token.value")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidateExpiry(t *testing.T) {
	t.Parallel()

	expired := NewAccessClaims("v", "s", "voter", nil, time.Minute, "iss", time.Now().Add(-2*time.Minute))
	require.ErrorIs(t, expired.ValidateExpiry(), ErrExpired)

	future := NewAccessClaims("v", "s", "voter", nil, time.Minute, "iss", time.Now().Add(time.Hour))
	require.ErrorIs(t, future.ValidateExpiry(), ErrNotYetValid)
}

func TestKeypairFromSeed(t *testing.T) {
	t.Parallel()

	seed := make([]byte, 32)
	kp1, err := KeypairFromSeed(seed)
	require.NoError(t, err)
	kp2, err := KeypairFromSeed(seed)
	require.NoError(t, err)

	raw, err := kp1.Sign(NewAccessClaims("v", "s", "voter", nil, time.Minute, "iss", time.Now()))
	require.NoError(t, err)

	_, err = kp2.Verify(raw)
	require.NoError(t, err)

	_, err = KeypairFromSeed([]byte("short"))
	require.Error(t, err)
}
