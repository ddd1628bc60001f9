// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package catalog

import (
	"context"
	"encoding/json"
)

// JobRepository reads and writes ingestion_jobs and
// ingestion_raw_files.
type JobRepository struct {
	db *DB
}

// NewJobRepository constructs a JobRepository.
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new pending job.
func (r *JobRepository) Create(ctx context.Context, orgID, jobType, externalVersion, sourceURL string, metadata json.RawMessage) (*IngestionJob, error) {
	id := newID()
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ingestion_jobs (id, organization_id, job_type, external_version, source_url, metadata, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, orgID, jobType, externalVersion, sourceURL, metadata, JobPending)
	if err != nil {
		return nil, translate(err, "create job for "+externalVersion)
	}
	return r.Get(ctx, id)
}

// Get returns a job by ID.
func (r *JobRepository) Get(ctx context.Context, id string) (*IngestionJob, error) {
	var j IngestionJob
	err := r.db.GetContext(ctx, &j, `
		SELECT id, organization_id, job_type, external_version, internal_version_id, source_url, metadata,
		       status, total_records, records_processed, records_stored, records_failed, records_skipped,
		       created_at, started_at, completed_at
		FROM ingestion_jobs WHERE id = $1`, id)
	if err != nil {
		return nil, translate(err, "job "+id)
	}
	return &j, nil
}

// SetStatus transitions a job to a new status. started_at is stamped
// on the first transition into downloading; completed_at is stamped
// on completed or failed.
func (r *JobRepository) SetStatus(ctx context.Context, id string, status JobStatus) error {
	switch status {
	case JobDownloading:
		_, err := r.db.ExecContext(ctx, `
			UPDATE ingestion_jobs SET status = $2, started_at = COALESCE(started_at, now())
			WHERE id = $1`, id, status)
		return translate(err, "set job status "+id)
	case JobCompleted, JobFailed:
		_, err := r.db.ExecContext(ctx, `
			UPDATE ingestion_jobs SET status = $2, completed_at = now() WHERE id = $1`, id, status)
		return translate(err, "set job status "+id)
	default:
		_, err := r.db.ExecContext(ctx, `UPDATE ingestion_jobs SET status = $2 WHERE id = $1`, id, status)
		return translate(err, "set job status "+id)
	}
}

// SetFailed marks a job terminally failed, stamping completed_at and
// storing the failure message in the job's metadata under "error" so
// the cause is queryable long after logs rotate.
func (r *JobRepository) SetFailed(ctx context.Context, id, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ingestion_jobs
		SET status = $2, completed_at = now(),
		    metadata = jsonb_set(metadata, '{error}', to_jsonb($3::text))
		WHERE id = $1`, id, JobFailed, message)
	return translate(err, "fail job "+id)
}

// SetInternalVersion links a job to the internal catalog version it
// produced, once create_version has run.
func (r *JobRepository) SetInternalVersion(ctx context.Context, id, versionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ingestion_jobs SET internal_version_id = $2 WHERE id = $1`, id, versionID)
	return translate(err, "set internal version for job "+id)
}

// IncrementCounters atomically adds to a job's record counters.
// Called from the worker loop after each work unit completes, so
// concurrent workers never lose an update to a last-write-wins race.
func (r *JobRepository) IncrementCounters(ctx context.Context, id string, processed, stored, failed, skipped int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ingestion_jobs
		SET records_processed = records_processed + $2,
		    records_stored = records_stored + $3,
		    records_failed = records_failed + $4,
		    records_skipped = records_skipped + $5
		WHERE id = $1`, id, processed, stored, failed, skipped)
	return translate(err, "increment counters for job "+id)
}

// SetTotalRecords records the total record count discovered during
// parsing (count_records summed across raw files).
func (r *JobRepository) SetTotalRecords(ctx context.Context, id string, total int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ingestion_jobs SET total_records = $2 WHERE id = $1`, id, total)
	return translate(err, "set total records for job "+id)
}

// AddRawFile registers a downloaded artifact against a job.
func (r *JobRepository) AddRawFile(ctx context.Context, jobID, fileType, purpose, objectKey string, expectedMD5 *string, byteSize int64, compression *string) (*IngestionRawFile, error) {
	id := newID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ingestion_raw_files
		  (id, job_id, file_type, purpose, object_key, expected_md5, verified, byte_size, compression)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7, $8)`,
		id, jobID, fileType, purpose, objectKey, expectedMD5, byteSize, compression)
	if err != nil {
		return nil, translate(err, "add raw file to job "+jobID)
	}
	return r.GetRawFile(ctx, id)
}

// GetRawFile returns a raw file by ID.
func (r *JobRepository) GetRawFile(ctx context.Context, id string) (*IngestionRawFile, error) {
	var f IngestionRawFile
	err := r.db.GetContext(ctx, &f, `
		SELECT id, job_id, file_type, purpose, object_key, expected_md5, computed_md5, verified,
		       byte_size, compression, created_at
		FROM ingestion_raw_files WHERE id = $1`, id)
	if err != nil {
		return nil, translate(err, "raw file "+id)
	}
	return &f, nil
}

// ListRawFiles returns every raw file registered against a job.
func (r *JobRepository) ListRawFiles(ctx context.Context, jobID string) ([]IngestionRawFile, error) {
	var files []IngestionRawFile
	err := r.db.SelectContext(ctx, &files, `
		SELECT id, job_id, file_type, purpose, object_key, expected_md5, computed_md5, verified,
		       byte_size, compression, created_at
		FROM ingestion_raw_files WHERE job_id = $1 ORDER BY created_at`, jobID)
	return files, translate(err, "list raw files for job "+jobID)
}

// MarkRawFileVerified records the computed digest and whether it
// matched the expected one.
func (r *JobRepository) MarkRawFileVerified(ctx context.Context, id, computedMD5 string, verified bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ingestion_raw_files SET computed_md5 = $2, verified = $3 WHERE id = $1`,
		id, computedMD5, verified)
	return translate(err, "mark raw file verified "+id)
}
