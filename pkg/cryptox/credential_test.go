package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// Set up a temporary pepper file for testing
	pepperPath := filepath.Join(os.TempDir(), "ballotcore-test-pepper")
	SetPepperPath(pepperPath)

	os.Remove(pepperPath)
	defer os.Remove(pepperPath)

	os.Exit(m.Run())
}

func TestHashCredential(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"vin-like secret", "ABCDEFGHIJ1234567K9"},
		{"short secret", "x"},
		{"long secret", strings.Repeat("A", 100)},
		{"empty secret", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashCredential(tt.secret)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

			require.NoError(t, VerifyCredential(tt.secret, hash))
			require.Error(t, VerifyCredential(tt.secret+"x", hash))
		})
	}
}

func TestHashCredentialSalted(t *testing.T) {
	a, err := HashCredential("ABCDEFGHIJ1234567K9")
	require.NoError(t, err)
	b, err := HashCredential("ABCDEFGHIJ1234567K9")
	require.NoError(t, err)

	// Per-hash salts mean two hashes of the same secret differ.
	require.NotEqual(t, a, b)
}

func TestVerifyCredentialMalformed(t *testing.T) {
	for _, malformed := range []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA",
	} {
		require.Error(t, VerifyCredential("secret", malformed))
	}
}

func TestFingerprintTokenDeterministic(t *testing.T) {
	fp1 := FingerprintToken("12345678901")
	fp2 := FingerprintToken("12345678901")
	require.Equal(t, fp1, fp2)
	require.NotEqual(t, fp1, FingerprintToken("12345678902"))
	require.Len(t, fp1, 43)
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken(TokenSize256)
	require.NoError(t, err)
	require.Len(t, tok, 43)

	_, err = GenerateToken(0)
	require.Error(t, err)

	other := MustGenerateToken(TokenSize256)
	require.NotEqual(t, tok, other)
}
