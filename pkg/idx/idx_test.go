package idx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewIsSortable(t *testing.T) {
	a := New()
	b := New()
	require.NotEqual(t, a, b)
	require.True(t, a.String() < b.String())
}

func TestNewAtEmbedsTime(t *testing.T) {
	at := time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC)
	id := NewAt(at)
	require.Equal(t, at, id.Time())
}

func TestParse(t *testing.T) {
	id := New()

	parsed, err := Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = Parse("")
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Parse("not-a-ulid")
	require.ErrorIs(t, err, ErrInvalid)

	require.True(t, Zero.IsZero())
	require.True(t, Zero.Time().IsZero())
}
