// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// StagedRecordRepository reads and writes ingestion_staged_records.
type StagedRecordRepository struct {
	db *DB
}

// NewStagedRecordRepository constructs a StagedRecordRepository.
func NewStagedRecordRepository(db *DB) *StagedRecordRepository {
	return &StagedRecordRepository{db: db}
}

// maxBatchRows caps how many staged records go into a single INSERT
// statement, keeping the parameter count and statement size sane for
// a worker flushing tens of thousands of parsed records per batch.
const maxBatchRows = 50

// InsertBatch bulk-inserts parsed records for a work unit, splitting
// into statements of at most maxBatchRows rows each.
func (r *StagedRecordRepository) InsertBatch(ctx context.Context, records []IngestionStagedRecord) error {
	for start := 0; start < len(records); start += maxBatchRows {
		end := start + maxBatchRows
		if end > len(records) {
			end = len(records)
		}
		if err := r.insertChunk(ctx, records[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *StagedRecordRepository) insertChunk(ctx context.Context, chunk []IngestionStagedRecord) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO ingestion_staged_records
		(id, job_id, work_unit_id, record_type, record_identifier, record_name, record_data,
		 content_md5, sequence_md5, source_file, source_offset, status) VALUES `)

	args := make([]interface{}, 0, len(chunk)*12)
	for i, rec := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 12
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+11, base+12)
		id := rec.ID
		if id == "" {
			id = newID()
		}
		status := rec.Status
		if status == "" {
			status = RecordStaged
		}
		args = append(args, id, rec.JobID, rec.WorkUnitID, rec.RecordType, rec.RecordIdentifier,
			rec.RecordName, rec.RecordData, rec.ContentMD5, rec.SequenceMD5, rec.SourceFile,
			rec.SourceOffset, status)
	}

	_, err := r.db.ExecContext(ctx, sb.String(), args...)
	return translate(err, "insert staged records")
}

// CountForJob returns the number of staged records for a job, used by
// the coordinator's get_job_progress.
func (r *StagedRecordRepository) CountForJob(ctx context.Context, jobID string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `
		SELECT count(*) FROM ingestion_staged_records WHERE job_id = $1`, jobID)
	return n, translate(err, "count staged records for job "+jobID)
}

// PromoteBatch marks up to limit staged records for a job as promoted,
// returning the rows promoted. Callers loop until the returned slice
// is empty to drain the whole job's staged set.
func (r *StagedRecordRepository) PromoteBatch(ctx context.Context, jobID string, limit int) ([]IngestionStagedRecord, error) {
	var records []IngestionStagedRecord
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &records, `
			SELECT id, job_id, work_unit_id, record_type, record_identifier, record_name, record_data,
			       content_md5, sequence_md5, source_file, source_offset, status, created_at
			FROM ingestion_staged_records
			WHERE job_id = $1 AND status = $2
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED`, jobID, RecordStaged, limit); err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		ids := make([]string, len(records))
		for i, rec := range records {
			ids[i] = rec.ID
		}
		query, args, err := sqlx.In(`
			UPDATE ingestion_staged_records SET status = ? WHERE id IN (?)`, RecordPromoted, ids)
		if err != nil {
			return err
		}
		query = tx.Rebind(query)
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
	return records, translate(err, "promote staged records for job "+jobID)
}
