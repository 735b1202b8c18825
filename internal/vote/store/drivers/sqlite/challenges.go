package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/civicstack/ballotcore/internal/vote/domain"
)

type challengesRepo struct {
	db dbtx
}

const challengeColumns = `id, voter_id, code_hash, issued_at, expires_at,
	attempts_remaining, consumed_at, created_at, updated_at`

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.AuthChallenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO challenges (id, voter_id, code_hash, issued_at, expires_at,
			attempts_remaining, consumed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.VoterID, c.CodeHash, c.IssuedAt, c.ExpiresAt,
		c.AttemptsRemaining, mapOptionalTime(c.ConsumedAt), c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *challengesRepo) GetChallengeByID(ctx context.Context, id string) (domain.AuthChallenge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id)
	return scanChallenge(row)
}

func (r *challengesRepo) GetLatestChallengeForVoter(ctx context.Context, voterID string) (domain.AuthChallenge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges
		 WHERE voter_id = ? ORDER BY id DESC LIMIT 1`, voterID)
	return scanChallenge(row)
}

func (r *challengesRepo) InvalidateActiveChallenges(ctx context.Context, voterID string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE challenges SET consumed_at = ?, updated_at = ?
		WHERE voter_id = ? AND consumed_at IS NULL`,
		now, now, voterID,
	)
	return err
}

func (r *challengesRepo) DecrementChallengeAttempts(ctx context.Context, id string) (domain.AuthChallenge, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE challenges SET attempts_remaining = attempts_remaining - 1, updated_at = ?
		WHERE id = ? AND attempts_remaining > 0`,
		now, id,
	)
	if err != nil {
		return domain.AuthChallenge{}, err
	}
	if err := requireRowAffected(res); err != nil {
		return domain.AuthChallenge{}, err
	}
	return r.GetChallengeByID(ctx, id)
}

func (r *challengesRepo) MarkChallengeConsumed(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE challenges SET consumed_at = ?, updated_at = ?
		WHERE id = ? AND consumed_at IS NULL`,
		now, now, id,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM challenges WHERE expires_at < ?`, time.Now().UTC())
	return err
}

func scanChallenge(row *sql.Row) (domain.AuthChallenge, error) {
	var c domain.AuthChallenge
	var consumedAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.VoterID, &c.CodeHash, &c.IssuedAt, &c.ExpiresAt,
		&c.AttemptsRemaining, &consumedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.AuthChallenge{}, mapNotFound(err)
	}
	c.ConsumedAt = mapNullTimePtr(consumedAt)
	return c, nil
}
