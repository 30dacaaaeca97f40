package outbox

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	t.Parallel()

	limit := time.Minute
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 32 * time.Second},
		{7, time.Minute},
		{60, time.Minute},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, backoff(tc.attempts, limit), "attempts=%d", tc.attempts)
	}
}

func TestJitter(t *testing.T) {
	t.Parallel()

	limit := 200 * time.Millisecond
	got := jitter(rand.New(rand.NewSource(7)), limit)
	require.GreaterOrEqual(t, got, time.Duration(0))
	require.LessOrEqual(t, got, limit)
	require.Equal(t, got, jitter(rand.New(rand.NewSource(7)), limit))

	require.Zero(t, jitter(nil, limit))
	require.Zero(t, jitter(rand.New(rand.NewSource(7)), 0))
}

func TestTruncateError(t *testing.T) {
	t.Parallel()

	require.Empty(t, truncateError(nil, 10))
	require.Equal(t, "hello", truncateError(errors.New("hello world"), 5))
	require.Equal(t, "short", truncateError(errors.New("short"), 50))
	// "é" is two bytes; cutting in the middle drops the whole rune.
	require.Equal(t, "caf", truncateError(errors.New("café"), 4))
}
