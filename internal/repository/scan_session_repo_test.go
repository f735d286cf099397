package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeforge/scanapi/internal/models"
)

func TestCreateWithinLimit_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewScanSessionRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("scan_sessions:t1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scan_sessions`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(49))
	mock.ExpectQuery(`INSERT INTO scan_sessions`).
		WithArgs("s1", "t1", "u1", nil, models.DeviceCamera, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"status", "scanned_count", "duplicate_count", "committed_count", "started_at", "updated_at"}).
			AddRow("active", 0, 0, 0, now, now))
	mock.ExpectCommit()

	s := &models.ScanSession{ID: "s1", TenantID: "t1", UserID: "u1", DeviceType: models.DeviceCamera}
	require.NoError(t, repo.CreateWithinLimit(context.Background(), s, 50))

	assert.Equal(t, models.ScanSessionActive, s.Status)
	assert.Equal(t, now, s.StartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithinLimit_LimitReached(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewScanSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scan_sessions`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(50))
	mock.ExpectRollback()

	s := &models.ScanSession{ID: "s1", TenantID: "t1", UserID: "u1", DeviceType: models.DeviceManual}
	err := repo.CreateWithinLimit(context.Background(), s, 50)

	assert.ErrorIs(t, err, ErrSessionLimitReached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewScanSessionRepository(db)

	mock.ExpectQuery(`FROM scan_sessions WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	s, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinish_OnlyActive(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewScanSessionRepository(db)

	mock.ExpectExec(`UPDATE scan_sessions`).
		WithArgs("s1", models.ScanSessionCompleted, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE scan_sessions`).
		WithArgs("s1", models.ScanSessionCancelled, 0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Finish(context.Background(), "s1", models.ScanSessionCompleted, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Finish(context.Background(), "s1", models.ScanSessionCancelled, 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelIdle_ReturnsIDs(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewScanSessionRepository(db)

	cutoff := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`NOT EXISTS`).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s1").AddRow("s2"))

	ids, err := repo.CancelIdle(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
