package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/civicstack/ballotcore/internal/vote/domain"
	"github.com/civicstack/ballotcore/internal/vote/store"
)

type votersRepo struct {
	db dbtx
}

const voterColumns = `id, nin_hash, vin_hash, phone_hash, constituency, role, active,
	failed_attempts, locked_until, created_at, updated_at`

func (r *votersRepo) GetVoterByID(ctx context.Context, id string) (domain.VoterIdentity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+voterColumns+` FROM voters WHERE id = ?`, id)
	return scanVoter(row)
}

func (r *votersRepo) GetVoterByNINHash(ctx context.Context, ninHash string) (domain.VoterIdentity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+voterColumns+` FROM voters WHERE nin_hash = ?`, ninHash)
	return scanVoter(row)
}

func (r *votersRepo) CreateVoter(ctx context.Context, v domain.VoterIdentity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO voters (id, nin_hash, vin_hash, phone_hash, constituency, role, active,
			failed_attempts, locked_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.NINHash, v.VINHash, v.PhoneHash, v.Constituency, v.Role, v.Active,
		v.FailedAttempts, mapOptionalTime(v.LockedUntil), v.CreatedAt, v.UpdatedAt,
	)
	if isUniqueViolation(err, "voters.nin_hash") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *votersRepo) UpdateLockState(ctx context.Context, voterID string, failedAttempts int, lockedUntil *time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE voters SET failed_attempts = ?, locked_until = ?, updated_at = ?
		WHERE id = ?`,
		failedAttempts, mapOptionalTime(lockedUntil), time.Now().UTC(), voterID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *votersRepo) DeactivateVoter(ctx context.Context, voterID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE voters SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), voterID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func scanVoter(row *sql.Row) (domain.VoterIdentity, error) {
	var v domain.VoterIdentity
	var lockedUntil sql.NullTime
	err := row.Scan(
		&v.ID, &v.NINHash, &v.VINHash, &v.PhoneHash, &v.Constituency, &v.Role, &v.Active,
		&v.FailedAttempts, &lockedUntil, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return domain.VoterIdentity{}, mapNotFound(err)
	}
	v.LockedUntil = mapNullTimePtr(lockedUntil)
	return v, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
