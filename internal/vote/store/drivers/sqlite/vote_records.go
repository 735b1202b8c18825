package sqlite

import (
	"context"
	"database/sql"

	"github.com/civicstack/ballotcore/internal/vote/store"
)

type voteRecordsRepo struct {
	db dbtx
}

const voteColumns = `id, voter_id, election_id, idempotency_key, receipt_code, receipt_hash, cast_at`

func (r *voteRecordsRepo) CreateVoteRecord(ctx context.Context, rec store.VoteRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vote_records (id, voter_id, election_id, idempotency_key, receipt_code, receipt_hash, cast_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.VoterID, rec.ElectionID, rec.IdempotencyKey, rec.ReceiptCode, rec.ReceiptHash, rec.CastAt,
	)
	// The schema-level uniqueness on (voter_id, election_id) is what makes
	// concurrent casts resolve deterministically: exactly one insert wins.
	if isUniqueViolation(err, "vote_records.voter_id, vote_records.election_id") {
		return store.ErrVoteConflict
	}
	if isUniqueViolation(err, "vote_records.idempotency_key") {
		return store.ErrVoteConflict
	}
	return err
}

func (r *voteRecordsRepo) GetVoteByIdempotencyKey(ctx context.Context, key string) (store.VoteRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+voteColumns+` FROM vote_records WHERE idempotency_key = ?`, key)
	return scanVoteRecord(row)
}

func (r *voteRecordsRepo) GetVoteByVoterElection(ctx context.Context, voterID, electionID string) (store.VoteRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+voteColumns+` FROM vote_records WHERE voter_id = ? AND election_id = ?`,
		voterID, electionID)
	return scanVoteRecord(row)
}

func (r *voteRecordsRepo) GetVoteByReceiptHash(ctx context.Context, receiptHash string) (store.VoteRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+voteColumns+` FROM vote_records WHERE receipt_hash = ?`, receiptHash)
	return scanVoteRecord(row)
}

func scanVoteRecord(row *sql.Row) (store.VoteRecord, error) {
	var rec store.VoteRecord
	err := row.Scan(
		&rec.ID, &rec.VoterID, &rec.ElectionID, &rec.IdempotencyKey,
		&rec.ReceiptCode, &rec.ReceiptHash, &rec.CastAt,
	)
	if err != nil {
		return store.VoteRecord{}, mapNotFound(err)
	}
	return rec, nil
}
