package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civicstack/ballotcore/internal/vote/store"
	"github.com/civicstack/ballotcore/pkg/cryptox"
	"github.com/civicstack/ballotcore/pkg/idx"
)

// Embedded is the sqlite-backed ledger used when no remote tally service
// is configured. Uniqueness is decided by the vote_records schema inside
// a single transaction, so two concurrent casts for the same voter and
// election resolve deterministically: one insert wins, the other observes
// the conflict.
//
// The candidate choice is handed to the tally pipeline at record time and
// is not persisted here; a vote record proves that a vote exists, not
// what it was.
type Embedded struct {
	Store store.Store
}

func NewEmbedded(st store.Store) *Embedded {
	return &Embedded{Store: st}
}

func (l *Embedded) Record(ctx context.Context, req RecordRequest) (RecordResult, error) {
	var result RecordResult

	err := l.Store.WithTx(ctx, func(tx store.Tx) error {
		// A retry of an accepted attempt returns the original receipt.
		prior, err := tx.VoteRecords().GetVoteByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			if prior.VoterID != req.VoterID || prior.ElectionID != req.ElectionID {
				return ErrKeyReuse
			}
			result = RecordResult{
				ReceiptCode:      prior.ReceiptCode,
				VerificationHash: prior.ReceiptHash,
				Replayed:         true,
			}
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		receiptCode, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return err
		}

		rec := store.VoteRecord{
			ID:             idx.New().String(),
			VoterID:        req.VoterID,
			ElectionID:     req.ElectionID,
			IdempotencyKey: req.IdempotencyKey,
			ReceiptCode:    receiptCode,
			ReceiptHash:    cryptox.FingerprintToken(receiptCode),
			CastAt:         time.Now().UTC(),
		}

		if err := tx.VoteRecords().CreateVoteRecord(ctx, rec); err != nil {
			if errors.Is(err, store.ErrVoteConflict) {
				// Lost the race. If the winning record carries our key the
				// cast already happened on a concurrent retry; hand back
				// its receipt instead of failing.
				existing, lookupErr := tx.VoteRecords().GetVoteByVoterElection(ctx, req.VoterID, req.ElectionID)
				if lookupErr != nil {
					return fmt.Errorf("resolving vote conflict: %w", lookupErr)
				}
				if existing.IdempotencyKey == req.IdempotencyKey {
					result = RecordResult{
						ReceiptCode:      existing.ReceiptCode,
						VerificationHash: existing.ReceiptHash,
						Replayed:         true,
					}
					return nil
				}
				return ErrAlreadyVoted
			}
			return err
		}

		result = RecordResult{
			ReceiptCode:      rec.ReceiptCode,
			VerificationHash: rec.ReceiptHash,
		}
		return nil
	})
	if err != nil {
		return RecordResult{}, err
	}

	return result, nil
}

func (l *Embedded) HasVoted(ctx context.Context, voterID, electionID string) (bool, error) {
	_, err := l.Store.VoteRecords().GetVoteByVoterElection(ctx, voterID, electionID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *Embedded) Verify(ctx context.Context, receiptCode string) (Verification, error) {
	// Fail closed with one shape: malformed and unknown codes are
	// indistinguishable to the caller.
	if receiptCode == "" {
		return Verification{}, nil
	}

	rec, err := l.Store.VoteRecords().GetVoteByReceiptHash(ctx, cryptox.FingerprintToken(receiptCode))
	if errors.Is(err, store.ErrNotFound) {
		return Verification{}, nil
	}
	if err != nil {
		return Verification{}, err
	}

	return Verification{Valid: true, ElectionID: rec.ElectionID}, nil
}
