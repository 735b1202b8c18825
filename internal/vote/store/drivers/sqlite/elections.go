package sqlite

import (
	"context"

	"github.com/civicstack/ballotcore/internal/vote/domain"
	"github.com/civicstack/ballotcore/internal/vote/store"
)

type electionsRepo struct {
	db dbtx
}

func (r *electionsRepo) CreateElection(ctx context.Context, e domain.Election) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO elections (id, name, constituency, starts_at, ends_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Constituency, e.StartsAt, e.EndsAt, e.CreatedAt, e.UpdatedAt,
	)
	if isUniqueViolation(err, "elections.id") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *electionsRepo) GetElectionByID(ctx context.Context, id string) (domain.Election, error) {
	var e domain.Election
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, constituency, starts_at, ends_at, created_at, updated_at
		FROM elections WHERE id = ?`, id).Scan(
		&e.ID, &e.Name, &e.Constituency, &e.StartsAt, &e.EndsAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return domain.Election{}, mapNotFound(err)
	}
	return e, nil
}

func (r *electionsRepo) ListElections(ctx context.Context) ([]domain.Election, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, constituency, starts_at, ends_at, created_at, updated_at
		FROM elections ORDER BY starts_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Election
	for rows.Next() {
		var e domain.Election
		if err := rows.Scan(&e.ID, &e.Name, &e.Constituency, &e.StartsAt, &e.EndsAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
