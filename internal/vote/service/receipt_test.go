package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicstack/ballotcore/internal/vote/domain"
	"github.com/civicstack/ballotcore/internal/vote/ledger"
)

func TestReceiptVerify(t *testing.T) {
	ctx := context.Background()

	st := newTestStore(t)
	voter := seedVoter(t, st)
	now := time.Now().UTC()
	election := seedElection(t, st, "central", now.Add(-time.Hour), now.Add(time.Hour))

	embedded := ledger.NewEmbedded(st)
	eligibility := &EligibilityService{Store: st, Ledger: embedded}
	receipts := &ReceiptService{Ledger: embedded}

	cast, err := eligibility.Cast(ctx, sessionFor(voter), domain.VoteIntent{
		IdempotencyKey: "12121212-1212-4121-8121-121212121212",
		ElectionID:     election.ID,
		CandidateID:    "candidate-1",
	})
	require.NoError(t, err)

	t.Run("valid receipt names the election only", func(t *testing.T) {
		result, err := receipts.Verify(ctx, cast.ReceiptCode)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Equal(t, election.ID, result.ElectionID)
	})

	t.Run("unknown and malformed codes fail closed", func(t *testing.T) {
		for _, code := range []string{"", "garbage", cast.ReceiptCode + "x"} {
			result, err := receipts.Verify(ctx, code)
			require.NoError(t, err)
			assert.False(t, result.Valid)
			assert.Empty(t, result.ElectionID)
		}
	})
}
