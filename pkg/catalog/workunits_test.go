// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package catalog

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	return NewDB(sqlx.NewDb(rawDB, "sqlmock")), mock
}

func TestClaimReturnsUnitAndMarksClaimed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkUnitRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "job_id", "unit_type", "batch_number", "start_offset", "end_offset", "record_count",
		"worker_id", "host", "claimed_at", "heartbeat_at", "status", "retry_count", "max_retries",
		"last_error", "started_processing_at", "completed_at",
	}).AddRow("unit-1", "job-1", "parse", 0, int64(0), int64(1000), int64(50),
		"worker-a", "host-a", nil, nil, UnitClaimed, 0, 3, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM claim_work_unit($1, $2, $3)")).
		WithArgs("job-1", "worker-a", "host-a").
		WillReturnRows(rows)

	unit, err := repo.Claim(context.Background(), "job-1", "worker-a", "host-a")
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.Equal(t, "unit-1", unit.ID)
	assert.Equal(t, UnitClaimed, unit.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimReturnsNilWhenNothingPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkUnitRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM claim_work_unit($1, $2, $3)")).
		WithArgs("job-1", "worker-a", "host-a").
		WillReturnRows(sqlmock.NewRows(nil))

	unit, err := repo.Claim(context.Background(), "job-1", "worker-a", "host-a")
	require.NoError(t, err)
	assert.Nil(t, unit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReclaimStaleDoesNotTouchRetryCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkUnitRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT reclaim_stale_work_units($1)")).
		WithArgs(int64(300)).
		WillReturnRows(sqlmock.NewRows([]string{"reclaim_stale_work_units"}).AddRow(2))

	n, err := repo.ReclaimStale(context.Background(), 300)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailRetriesUnderBudgetThenTerminates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkUnitRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT retry_count, max_retries")).
		WillReturnRows(sqlmock.NewRows([]string{"retry_count", "max_retries"}).AddRow(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("retry_count = retry_count + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	retried, err := repo.Fail(context.Background(), "unit-1", "boom")
	require.NoError(t, err)
	assert.True(t, retried)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT retry_count, max_retries")).
		WillReturnRows(sqlmock.NewRows([]string{"retry_count", "max_retries"}).AddRow(3, 3))
	mock.ExpectExec(regexp.QuoteMeta("SET status = $2, last_error = $3, completed_at = now()")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	retried, err = repo.Fail(context.Background(), "unit-1", "boom again")
	require.NoError(t, err)
	assert.False(t, retried)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func countRows(pairs ...any) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"status", "count"})
	for i := 0; i < len(pairs); i += 2 {
		rows.AddRow(pairs[i], pairs[i+1])
	}
	return rows
}

func TestAllTerminalTrueForCompletedAndCancelled(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkUnitRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(countRows(UnitCompleted, 4, UnitCancelled, 1))

	done, err := repo.AllTerminal(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestAllTerminalFalseWhileFailedUnitExists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkUnitRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(countRows(UnitCompleted, 4, UnitFailed, 1))

	done, err := repo.AllTerminal(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, done)
}
