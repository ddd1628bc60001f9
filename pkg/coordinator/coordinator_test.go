// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package coordinator

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/bdp-ingest/pkg/catalog"
)

func newMockCoordinator(t *testing.T) (*Coordinator, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := catalog.NewDB(sqlx.NewDb(rawDB, "sqlmock"))
	jobs := catalog.NewJobRepository(db)
	units := catalog.NewWorkUnitRepository(db)
	return New(jobs, units, Options{MaxRetries: 3, ParseBatchSize: 100}, nil), mock
}

func jobRow(id string, status catalog.JobStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "organization_id", "job_type", "external_version", "internal_version_id", "source_url", "metadata",
		"status", "total_records", "records_processed", "records_stored", "records_failed", "records_skipped",
		"created_at", "started_at", "completed_at",
	}).AddRow(id, "org-1", "uniprot", "2026_01", nil, "https://example.org", []byte(`{}`),
		status, 0, 0, 0, 0, 0, nil, nil, nil)
}

func TestCreateWorkUnitsSplitsIntoCeilBatches(t *testing.T) {
	c, mock := newMockCoordinator(t)

	mock.ExpectBegin()
	for i := 0; i < 3; i++ {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ingestion_work_units")).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("SET total_records")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ingestion_jobs SET status")).WillReturnResult(sqlmock.NewResult(0, 1))

	units, err := c.CreateWorkUnits(context.Background(), "job-1", "flatfile", 250)
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, int64(0), units[0].StartOffset)
	assert.Equal(t, int64(100), units[0].EndOffset)
	assert.Equal(t, int64(200), units[2].StartOffset)
	assert.Equal(t, int64(250), units[2].EndOffset)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWorkUnitsZeroRecordsIsNoop(t *testing.T) {
	c, _ := newMockCoordinator(t)
	units, err := c.CreateWorkUnits(context.Background(), "job-1", "flatfile", 0)
	require.NoError(t, err)
	assert.Nil(t, units)
}

func TestGetJobProgressAggregatesCounts(t *testing.T) {
	c, mock := newMockCoordinator(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM ingestion_jobs WHERE id = $1")).
		WillReturnRows(jobRow("job-1", catalog.JobParsing))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow(catalog.UnitCompleted, 2).
			AddRow(catalog.UnitPending, 1))

	progress, err := c.GetJobProgress(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 3, progress.UnitsTotal)
	assert.Equal(t, 2, progress.UnitsCompleted)
	assert.Equal(t, 1, progress.UnitsPending)
}

func TestVerifyRawFileDetectsMismatch(t *testing.T) {
	c, mock := newMockCoordinator(t)
	expected := "abc123"

	mock.ExpectQuery(regexp.QuoteMeta("FROM ingestion_raw_files WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "job_id", "file_type", "purpose", "object_key", "expected_md5", "computed_md5", "verified",
			"byte_size", "compression", "created_at",
		}).AddRow("raw-1", "job-1", "dat", "primary", "ingest/x/y", &expected, nil, false, 10, nil, nil))
	mock.ExpectExec(regexp.QuoteMeta("SET computed_md5")).WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := c.VerifyRawFile(context.Background(), "raw-1", "different")
	require.NoError(t, err)
	assert.False(t, ok)
}

func rawFileRows() []string {
	return []string{
		"id", "job_id", "file_type", "purpose", "object_key", "expected_md5", "computed_md5", "verified",
		"byte_size", "compression", "created_at",
	}
}

func TestCompleteDownloadRefusesUnverifiedFile(t *testing.T) {
	c, mock := newMockCoordinator(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM ingestion_raw_files WHERE job_id = $1")).
		WillReturnRows(sqlmock.NewRows(rawFileRows()).
			AddRow("raw-1", "job-1", "dat", "primary", "ingest/uniprot/2026_01/sprot.dat", "aaaa", "bbbb", false, 10, nil, nil))

	err := c.CompleteDownload(context.Background(), "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "md5 mismatch for ingest/uniprot/2026_01/sprot.dat")
}

func TestCompleteDownloadTransitionsWhenAllVerified(t *testing.T) {
	c, mock := newMockCoordinator(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM ingestion_raw_files WHERE job_id = $1")).
		WillReturnRows(sqlmock.NewRows(rawFileRows()).
			AddRow("raw-1", "job-1", "dat", "primary", "ingest/uniprot/2026_01/sprot.dat", "aaaa", "aaaa", true, 10, nil, nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ingestion_jobs SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, c.CompleteDownload(context.Background(), "job-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailJobStoresErrorInMetadata(t *testing.T) {
	c, mock := newMockCoordinator(t)

	mock.ExpectExec(regexp.QuoteMeta(`jsonb_set(metadata, '{error}', to_jsonb($3::text))`)).
		WithArgs("job-1", catalog.JobFailed, "md5 mismatch for ingest/x").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, c.FailJob(context.Background(), "job-1", fmt.Errorf("md5 mismatch for ingest/x")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckParsingCompleteFalseWithFailedUnit(t *testing.T) {
	c, mock := newMockCoordinator(t)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow(catalog.UnitCompleted, 2).
			AddRow(catalog.UnitFailed, 1))

	complete, err := c.CheckParsingComplete(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, complete)
}
