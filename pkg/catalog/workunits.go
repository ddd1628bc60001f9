// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// WorkUnitRepository reads and writes ingestion_work_units.
type WorkUnitRepository struct {
	db *DB
}

// NewWorkUnitRepository constructs a WorkUnitRepository.
func NewWorkUnitRepository(db *DB) *WorkUnitRepository {
	return &WorkUnitRepository{db: db}
}

// CreateBatch inserts one pending work unit per (start, end) byte
// range, splitting a job's raw file into the ceil(total/batch_size)
// ranges pkg/coordinator computed.
func (r *WorkUnitRepository) CreateBatch(ctx context.Context, jobID, unitType string, ranges []ByteRange, maxRetries int) ([]IngestionWorkUnit, error) {
	units := make([]IngestionWorkUnit, 0, len(ranges))
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for i, rg := range ranges {
			id := newID()
			_, err := tx.ExecContext(ctx, `
				INSERT INTO ingestion_work_units
				  (id, job_id, unit_type, batch_number, start_offset, end_offset, record_count, status, max_retries)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				id, jobID, unitType, i, rg.Start, rg.End, rg.RecordCount, UnitPending, maxRetries)
			if err != nil {
				return err
			}
			units = append(units, IngestionWorkUnit{
				ID: id, JobID: jobID, UnitType: unitType, BatchNumber: i,
				StartOffset: rg.Start, EndOffset: rg.End, RecordCount: rg.RecordCount,
				Status: UnitPending, MaxRetries: maxRetries,
			})
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, "create work units for job "+jobID)
	}
	return units, nil
}

// ByteRange is a [Start, End) byte-offset span covering RecordCount
// records, as computed by pkg/coordinator's splitting logic.
type ByteRange struct {
	Start       int64
	End         int64
	RecordCount int64
}

// Claim atomically claims one pending work unit of jobID for
// workerID/host via the claim_work_unit database function, whose
// SELECT ... FOR UPDATE SKIP LOCKED lets any number of concurrent
// worker processes poll the same table without double-claiming a row
// or blocking on each other's claim. Returns nil if no claimable unit
// exists.
func (r *WorkUnitRepository) Claim(ctx context.Context, jobID, workerID, host string) (*IngestionWorkUnit, error) {
	var unit IngestionWorkUnit
	err := r.db.GetContext(ctx, &unit, `
		SELECT id, job_id, unit_type, batch_number, start_offset, end_offset, record_count,
		       worker_id, host, claimed_at, heartbeat_at, status, retry_count, max_retries,
		       last_error, started_processing_at, completed_at
		FROM claim_work_unit($1, $2, $3)`, jobID, workerID, host)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "claim work unit")
	}
	return &unit, nil
}

// Heartbeat refreshes the heartbeat timestamp for a claimed/processing
// unit, proving the owning worker is still alive.
func (r *WorkUnitRepository) Heartbeat(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ingestion_work_units SET heartbeat_at = now() WHERE id = $1`, id)
	return translate(err, "heartbeat work unit "+id)
}

// StartProcessing transitions a claimed unit into processing.
func (r *WorkUnitRepository) StartProcessing(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ingestion_work_units
		SET status = $2, started_processing_at = now() WHERE id = $1`, id, UnitProcessing)
	return translate(err, "start processing work unit "+id)
}

// Complete transitions a unit into completed.
func (r *WorkUnitRepository) Complete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ingestion_work_units SET status = $2, completed_at = now() WHERE id = $1`,
		id, UnitCompleted)
	return translate(err, "complete work unit "+id)
}

// Fail records a failure. If the unit's retry_count is below
// max_retries it goes back to pending for another worker to claim;
// otherwise it is marked terminally failed.
func (r *WorkUnitRepository) Fail(ctx context.Context, id string, lastError string) (retried bool, err error) {
	var unit IngestionWorkUnit
	txErr := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &unit, `
			SELECT retry_count, max_retries FROM ingestion_work_units WHERE id = $1`, id); err != nil {
			return err
		}
		if unit.RetryCount < unit.MaxRetries {
			retried = true
			_, execErr := tx.ExecContext(ctx, `
				UPDATE ingestion_work_units
				SET status = $2, retry_count = retry_count + 1, last_error = $3,
				    worker_id = NULL, host = NULL, claimed_at = NULL, heartbeat_at = NULL
				WHERE id = $1`, id, UnitPending, lastError)
			return execErr
		}
		retried = false
		_, execErr := tx.ExecContext(ctx, `
			UPDATE ingestion_work_units SET status = $2, last_error = $3, completed_at = now()
			WHERE id = $1`, id, UnitFailed, lastError)
		return execErr
	})
	return retried, translate(txErr, "fail work unit "+id)
}

// ReclaimStale resets every unit that has been claimed/processing with
// no heartbeat for longer than staleness back to pending, WITHOUT
// incrementing retry_count — a reclaim is the scheduler's own timeout,
// not a failure the worker reported, so it must not count against the
// unit's retry budget. Returns the number of units reclaimed.
func (r *WorkUnitRepository) ReclaimStale(ctx context.Context, staleness int64) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT reclaim_stale_work_units($1)`, staleness)
	if err != nil {
		return 0, translate(err, "reclaim stale work units")
	}
	return n, nil
}

// CountByStatus returns, for a job, how many units sit in each status
// — the basis for check_parsing_complete and get_job_progress.
func (r *WorkUnitRepository) CountByStatus(ctx context.Context, jobID string) (map[WorkUnitStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, count(*) FROM ingestion_work_units WHERE job_id = $1 GROUP BY status`, jobID)
	if err != nil {
		return nil, translate(err, "count work units for job "+jobID)
	}
	defer rows.Close()

	counts := map[WorkUnitStatus]int{}
	for rows.Next() {
		var status WorkUnitStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, translate(err, "scan work unit counts for job "+jobID)
		}
		counts[status] = n
	}
	return counts, translate(rows.Err(), "iterate work unit counts for job "+jobID)
}

// AllTerminal reports whether every work unit for a job is completed
// or cancelled, the condition the coordinator tests before the job is
// allowed to transition into storing. A failed unit keeps this false:
// a job with failures must never look parse-complete.
func (r *WorkUnitRepository) AllTerminal(ctx context.Context, jobID string) (bool, error) {
	counts, err := r.CountByStatus(ctx, jobID)
	if err != nil {
		return false, err
	}
	total := 0
	terminal := 0
	for status, n := range counts {
		total += n
		if status == UnitCompleted || status == UnitCancelled {
			terminal += n
		}
	}
	return total > 0 && total == terminal, nil
}
