package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/civicstack/ballotcore/internal/vote/domain"
	"github.com/civicstack/ballotcore/internal/vote/store"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, voter_id, family_id, role, refresh_hash,
	expires_at, revoked, created_at, updated_at`

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, voter_id, family_id, role, refresh_hash,
			expires_at, revoked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.VoterID, s.FamilyID, s.Role, s.RefreshHash,
		s.ExpiresAt, s.Revoked, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *sessionsRepo) GetSessionByRefreshHash(ctx context.Context, hash string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE refresh_hash = ?`, hash)
	return scanSession(row)
}

func (r *sessionsRepo) GetActiveSessionByFamily(ctx context.Context, familyID string, now time.Time) (domain.Session, error) {
	// Expiry is compared in Go; sqlite stores timestamps as text and
	// sub-second precision does not sort lexicographically.
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE family_id = ? AND revoked = 0
		 ORDER BY id DESC LIMIT 1`, familyID)
	s, err := scanSession(row)
	if err != nil {
		return domain.Session{}, err
	}
	if now.After(s.ExpiresAt) {
		return domain.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (r *sessionsRepo) RevokeSession(ctx context.Context, id string) error {
	// No row-affected check: revoking an already-revoked session is a
	// no-op success.
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	return err
}

func (r *sessionsRepo) RevokeSessionFamily(ctx context.Context, familyID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked = 1, updated_at = ? WHERE family_id = ?`,
		time.Now().UTC(), familyID,
	)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, time.Now().UTC())
	return err
}

func scanSession(row *sql.Row) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID, &s.VoterID, &s.FamilyID, &s.Role, &s.RefreshHash,
		&s.ExpiresAt, &s.Revoked, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}
