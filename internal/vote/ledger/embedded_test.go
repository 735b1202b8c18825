package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicstack/ballotcore/internal/vote/domain"
	"github.com/civicstack/ballotcore/internal/vote/store"
	"github.com/civicstack/ballotcore/internal/vote/store/drivers/sqlite"
	"github.com/civicstack/ballotcore/pkg/cryptox"
	"github.com/civicstack/ballotcore/pkg/idx"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "ledger-test-*")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedElection(t *testing.T, st store.Store) string {
	t.Helper()

	now := time.Now().UTC()
	election := domain.Election{
		ID:           idx.New().String(),
		Name:         "General Election",
		Constituency: "central",
		StartsAt:     now.Add(-time.Hour),
		EndsAt:       now.Add(time.Hour),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Elections().CreateElection(context.Background(), election))
	return election.ID
}

func TestEmbeddedRecord(t *testing.T) {
	st := newTestStore(t)
	electionID := seedElection(t, st)
	l := NewEmbedded(st)
	ctx := context.Background()

	req := RecordRequest{
		VoterID:        idx.New().String(),
		ElectionID:     electionID,
		CandidateID:    "candidate-1",
		IdempotencyKey: "11111111-1111-4111-8111-111111111111",
	}

	first, err := l.Record(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ReceiptCode)
	assert.NotEmpty(t, first.VerificationHash)
	assert.False(t, first.Replayed)

	t.Run("same key replays original receipt", func(t *testing.T) {
		replay, err := l.Record(ctx, req)
		require.NoError(t, err)
		assert.True(t, replay.Replayed)
		assert.Equal(t, first.ReceiptCode, replay.ReceiptCode)
		assert.Equal(t, first.VerificationHash, replay.VerificationHash)
	})

	t.Run("fresh key for same voter is terminal", func(t *testing.T) {
		second := req
		second.IdempotencyKey = "22222222-2222-4222-8222-222222222222"

		_, err := l.Record(ctx, second)
		assert.ErrorIs(t, err, ErrAlreadyVoted)
	})

	t.Run("key reuse across voters is rejected", func(t *testing.T) {
		stolen := RecordRequest{
			VoterID:        idx.New().String(),
			ElectionID:     electionID,
			IdempotencyKey: req.IdempotencyKey,
		}

		_, err := l.Record(ctx, stolen)
		assert.ErrorIs(t, err, ErrKeyReuse)
	})
}

func TestEmbeddedRecordConcurrent(t *testing.T) {
	st := newTestStore(t)
	electionID := seedElection(t, st)
	l := NewEmbedded(st)
	voterID := idx.New().String()

	// Two distinct attempts race; exactly one must win.
	keys := []string{
		"33333333-3333-4333-8333-333333333333",
		"44444444-4444-4444-8444-444444444444",
	}

	results := make([]error, len(keys))
	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = l.Record(context.Background(), RecordRequest{
				VoterID:        voterID,
				ElectionID:     electionID,
				IdempotencyKey: key,
			})
		}()
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyVoted):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)
}

func TestEmbeddedHasVoted(t *testing.T) {
	st := newTestStore(t)
	electionID := seedElection(t, st)
	l := NewEmbedded(st)
	ctx := context.Background()
	voterID := idx.New().String()

	voted, err := l.HasVoted(ctx, voterID, electionID)
	require.NoError(t, err)
	assert.False(t, voted)

	_, err = l.Record(ctx, RecordRequest{
		VoterID:        voterID,
		ElectionID:     electionID,
		IdempotencyKey: "55555555-5555-4555-8555-555555555555",
	})
	require.NoError(t, err)

	voted, err = l.HasVoted(ctx, voterID, electionID)
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestEmbeddedVerify(t *testing.T) {
	st := newTestStore(t)
	electionID := seedElection(t, st)
	l := NewEmbedded(st)
	ctx := context.Background()

	recorded, err := l.Record(ctx, RecordRequest{
		VoterID:        idx.New().String(),
		ElectionID:     electionID,
		IdempotencyKey: "66666666-6666-4666-8666-666666666666",
	})
	require.NoError(t, err)

	t.Run("known receipt", func(t *testing.T) {
		v, err := l.Verify(ctx, recorded.ReceiptCode)
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.Equal(t, electionID, v.ElectionID)
	})

	t.Run("unknown receipt fails closed", func(t *testing.T) {
		v, err := l.Verify(ctx, "not-a-receipt")
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Empty(t, v.ElectionID)
	})

	t.Run("empty receipt fails closed", func(t *testing.T) {
		v, err := l.Verify(ctx, "")
		require.NoError(t, err)
		assert.False(t, v.Valid)
	})
}
