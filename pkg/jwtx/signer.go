package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrIssuer      = errors.New("jwtx: unexpected issuer")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrInvalid     = errors.New("jwtx: invalid token")
)

// Signer signs claims into a compact JWT.
type Signer interface {
	Sign(claims Claims) (string, error)
}

// Verifier parses and verifies a compact JWT, returning its claims.
// Expiry is NOT checked here; callers validate expiry explicitly so the
// distinction between "bad token" and "expired token" stays visible.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// Keypair signs and verifies with a single Ed25519 key. The portal core
// runs as one service, so a single in-memory keypair per process is
// enough; tokens do not outlive a deploy by more than their 15m TTL.
type Keypair struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewKeypair generates a fresh Ed25519 keypair.
func NewKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to generate ed25519 key: %w", err)
	}
	return &Keypair{priv: priv, pub: pub}, nil
}

// KeypairFromSeed builds a deterministic keypair from a 32-byte seed.
// Useful when multiple replicas must verify each other's tokens.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("jwtx: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keypair{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

func (k *Keypair) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(k.priv)
	if err != nil {
		return "", fmt.Errorf("jwtx: failed to sign token: %w", err)
	}
	return signed, nil
}

func (k *Keypair) Verify(raw string) (Claims, error) {
	var claims Claims

	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return k.pub, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalid
	}

	return claims, nil
}
