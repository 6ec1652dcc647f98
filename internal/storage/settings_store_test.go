package storage

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockSettingsStore(t *testing.T) (*SettingsStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSettingsStore(sqlx.NewDb(db, "postgres")), mock
}

func TestSettingsStore_Get_Present(t *testing.T) {
	s, mock := newMockSettingsStore(t)

	mock.ExpectQuery(`SELECT value FROM settings WHERE key = \$1`).
		WithArgs("anthropic_api_key").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("sk-live-abc"))

	value, ok, err := s.Get("anthropic_api_key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sk-live-abc", value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsStore_Get_Absent(t *testing.T) {
	s, mock := newMockSettingsStore(t)

	mock.ExpectQuery(`SELECT value FROM settings WHERE key = \$1`).
		WithArgs("missing_key").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	value, ok, err := s.Get("missing_key")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsStore_Set(t *testing.T) {
	s, mock := newMockSettingsStore(t)

	mock.ExpectExec(`INSERT INTO settings`).
		WithArgs("redis_addr", "redis:6380", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(context.Background(), "redis_addr", "redis:6380"))
	require.NoError(t, mock.ExpectationsWereMet())
}
