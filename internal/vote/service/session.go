package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/civicstack/ballotcore/internal/vote/domain"
	"github.com/civicstack/ballotcore/internal/vote/store"
	"github.com/civicstack/ballotcore/pkg/cryptox"
	"github.com/civicstack/ballotcore/pkg/idx"
	"github.com/civicstack/ballotcore/pkg/jwtx"
	"github.com/civicstack/ballotcore/pkg/slogx"
)

var (
	// ErrInvalidRefresh covers unknown, expired, revoked and superseded
	// refresh tokens alike. Reuse of a superseded token additionally
	// revokes the whole family before this is returned.
	ErrInvalidRefresh = errors.New("invalid refresh token")

	// ErrSessionRevoked is returned by Validate when the presented access
	// token is well-formed but its session family no longer has a live row.
	ErrSessionRevoked = errors.New("session revoked")
)

// amrValues lists the factors every session here has satisfied.
var amrValues = []string{"nin_vin", "otp"}

// SessionService mints and rotates voter sessions. Access tokens are
// short-lived JWTs; refresh tokens are opaque, stored as fingerprints
// and rotated on every use within a stable family.
type SessionService struct {
	Store  store.Store
	Signer jwtx.Signer
	Issuer string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (s *SessionService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *SessionService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// Create opens a new session family from a satisfied challenge.
func (s *SessionService) Create(ctx context.Context, seed domain.SessionSeed) (domain.TokenPair, error) {
	now := time.Now().UTC()

	refreshToken, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	session := domain.Session{
		ID:          idx.New().String(),
		VoterID:     seed.VoterID,
		FamilyID:    idx.New().String(),
		Role:        seed.Role,
		RefreshHash: cryptox.FingerprintToken(refreshToken),
		ExpiresAt:   now.Add(s.refreshTTL()),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.Store.Sessions().CreateSession(ctx, session); err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to create session: %w", err)
	}

	pair, err := s.mintPair(session, refreshToken, now)
	if err != nil {
		return domain.TokenPair{}, err
	}

	slogx.FromContext(ctx).Info("Session created",
		slog.String("voter_id", seed.VoterID),
		slog.String("family_id", session.FamilyID),
	)

	return pair, nil
}

// Refresh rotates a refresh token: the presented generation is revoked
// and a new one is issued in the same family. Presenting an already
// revoked generation is treated as theft and kills the family.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	current, err := s.Store.Sessions().GetSessionByRefreshHash(ctx, cryptox.FingerprintToken(refreshToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidRefresh
		}
		return domain.TokenPair{}, fmt.Errorf("failed to look up session: %w", err)
	}

	if current.Revoked {
		// A superseded token came back. Someone other than the legitimate
		// holder may have it, so the whole family is terminated.
		if err := s.Store.Sessions().RevokeSessionFamily(ctx, current.FamilyID); err != nil {
			return domain.TokenPair{}, fmt.Errorf("failed to revoke session family: %w", err)
		}
		log.Warn("Refresh token reuse detected, family revoked",
			slog.String("voter_id", current.VoterID),
			slog.String("family_id", current.FamilyID),
		)
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	if !now.Before(current.ExpiresAt) {
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	newRefresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	next := domain.Session{
		ID:          idx.New().String(),
		VoterID:     current.VoterID,
		FamilyID:    current.FamilyID,
		Role:        current.Role,
		RefreshHash: cryptox.FingerprintToken(newRefresh),
		ExpiresAt:   now.Add(s.refreshTTL()),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().RevokeSession(ctx, current.ID); err != nil {
			return fmt.Errorf("failed to revoke prior generation: %w", err)
		}
		if err := tx.Sessions().CreateSession(ctx, next); err != nil {
			return fmt.Errorf("failed to create next generation: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	return s.mintPair(next, newRefresh, now)
}

// Revoke terminates the session family the refresh token belongs to.
// Unknown tokens succeed silently; logout is idempotent.
func (s *SessionService) Revoke(ctx context.Context, refreshToken string) error {
	session, err := s.Store.Sessions().GetSessionByRefreshHash(ctx, cryptox.FingerprintToken(refreshToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up session: %w", err)
	}

	if err := s.Store.Sessions().RevokeSessionFamily(ctx, session.FamilyID); err != nil {
		return fmt.Errorf("failed to revoke session family: %w", err)
	}

	slogx.FromContext(ctx).Info("Session revoked",
		slog.String("voter_id", session.VoterID),
		slog.String("family_id", session.FamilyID),
	)
	return nil
}

// Validate verifies an access token and re-checks, at call time, that
// its session family still has a live generation. A valid signature
// alone is not enough to act on.
func (s *SessionService) Validate(ctx context.Context, accessToken string) (domain.SessionInfo, error) {
	verifier, ok := s.Signer.(jwtx.Verifier)
	if !ok {
		return domain.SessionInfo{}, errors.New("signer does not support verification")
	}

	claims, err := verifier.Verify(accessToken)
	if err != nil {
		return domain.SessionInfo{}, err
	}
	if err := claims.ValidateIssuer(s.Issuer); err != nil {
		return domain.SessionInfo{}, err
	}
	if err := claims.ValidateExpiry(); err != nil {
		return domain.SessionInfo{}, err
	}

	return s.ValidateFamily(ctx, claims.SID)
}

// ValidateFamily checks that a session family still has a live
// generation. Handlers that already hold verified claims use this for
// the call-time revocation check.
func (s *SessionService) ValidateFamily(ctx context.Context, familyID string) (domain.SessionInfo, error) {
	session, err := s.Store.Sessions().GetActiveSessionByFamily(ctx, familyID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SessionInfo{}, ErrSessionRevoked
		}
		return domain.SessionInfo{}, fmt.Errorf("failed to check session state: %w", err)
	}

	return domain.SessionInfo{
		VoterID:  session.VoterID,
		FamilyID: session.FamilyID,
		Role:     session.Role,
	}, nil
}

func (s *SessionService) mintPair(session domain.Session, refreshToken string, now time.Time) (domain.TokenPair, error) {
	claims := jwtx.NewAccessClaims(
		session.VoterID,
		session.FamilyID,
		session.Role,
		amrValues,
		s.accessTTL(),
		s.Issuer,
		now,
	)

	access, err := s.Signer.Sign(claims)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.accessTTL(),
	}, nil
}
