package trending

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestLeaderboard(t *testing.T) (*Leaderboard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, nil, nil, zerolog.Nop()), mr
}

func TestBump_IncreasesScoreAndRanksEntity(t *testing.T) {
	lb, _ := newTestLeaderboard(t)
	lb.nowFunc = func() time.Time { return time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	require.NoError(t, lb.Bump(ctx, "canon-1", lb.nowFunc(), 0))

	rank, ok, err := lb.Rank(ctx, "canon-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), rank)
}

func TestBump_OlderMentionDecaysBelowNewer(t *testing.T) {
	lb, _ := newTestLeaderboard(t)
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	lb.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, lb.Bump(ctx, "old", now.Add(-30*24*time.Hour), 1.0))
	require.NoError(t, lb.Bump(ctx, "new", now, 1.0))

	rank, ok, err := lb.Rank(ctx, "new")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), rank)
}

func TestReconcile_NoReaderReturnsError(t *testing.T) {
	lb, _ := newTestLeaderboard(t)
	_, err := lb.Reconcile(context.Background())
	require.Error(t, err)
}

type fakeMentionReader struct {
	records []MentionRecord
}

func (f *fakeMentionReader) MentionsSince(ctx context.Context, cutoff time.Time) ([]MentionRecord, error) {
	return f.records, nil
}

func TestReconcile_RebuildsFromMentionHistory(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	reader := &fakeMentionReader{records: []MentionRecord{
		{CanonicalID: "canon-1", MentionedAt: now, Relevance: 1.0},
		{CanonicalID: "canon-1", MentionedAt: now, Relevance: 1.0},
	}}
	lb := New(rdb, nil, reader, zerolog.Nop())
	lb.nowFunc = func() time.Time { return now }

	n, err := lb.Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	rank, ok, err := lb.Rank(context.Background(), "canon-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), rank)
}
