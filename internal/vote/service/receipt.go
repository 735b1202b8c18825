package service

import (
	"context"
	"fmt"

	"github.com/civicstack/ballotcore/internal/vote/ledger"
)

// ReceiptVerification is the public answer to a receipt lookup.
type ReceiptVerification struct {
	Valid      bool   `json:"valid"`
	ElectionID string `json:"election_id,omitempty"`
}

// ReceiptService answers public receipt lookups. It deliberately fails
// closed: malformed and unknown codes produce the same invalid answer,
// and nothing here can recover the candidate choice.
type ReceiptService struct {
	Ledger ledger.Client
}

func (s *ReceiptService) Verify(ctx context.Context, receiptCode string) (ReceiptVerification, error) {
	verification, err := s.Ledger.Verify(ctx, receiptCode)
	if err != nil {
		return ReceiptVerification{}, fmt.Errorf("failed to verify receipt: %w", err)
	}
	return ReceiptVerification{
		Valid:      verification.Valid,
		ElectionID: verification.ElectionID,
	}, nil
}
