package storage

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/stdin/venezuelawatch/internal/domain"
)

func newMockMentionStore(t *testing.T) (*MentionStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMentionStore(sqlx.NewDb(db, "postgres")), mock
}

func TestMentionStore_MentionsSince(t *testing.T) {
	s, mock := newMockMentionStore(t)
	cutoff := time.Now().Add(-24 * time.Hour)
	mentionedAt := time.Now()

	rows := sqlmock.NewRows([]string{"canonical_id", "mentioned_at", "relevance"}).
		AddRow("ent-1", mentionedAt, 0.8)
	mock.ExpectQuery(`SELECT canonical_id, mentioned_at, relevance`).
		WithArgs(cutoff).
		WillReturnRows(rows)

	got, err := s.MentionsSince(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "ent-1", got[0].CanonicalID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMentionStore_RecordMention(t *testing.T) {
	s, mock := newMockMentionStore(t)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO entity_mentions`).
		WithArgs("evt-1", "ent-1", "PDVSA", 0.95, 0.8, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.RecordMention(context.Background(), domain.EntityMention{
		EventID: "evt-1", CanonicalID: "ent-1", RawName: "PDVSA", MatchScore: 0.95, Relevance: 0.8, MentionedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMentionStore_RecordSpike(t *testing.T) {
	s, mock := newMockMentionStore(t)
	day := time.Now().Truncate(24 * time.Hour)

	mock.ExpectExec(`INSERT INTO mention_spikes`).
		WithArgs("evt-1", day, 12.0, 3.0, 1.2, 4.5, "HIGH").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.RecordSpike(context.Background(), domain.MentionSpike{
		EventID: "evt-1", SpikeDate: day, MentionCount: 12, BaselineAvg: 3, BaselineStd: 1.2, ZScore: 4.5, Confidence: domain.SpikeHigh,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
