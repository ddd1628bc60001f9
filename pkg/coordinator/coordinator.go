// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package coordinator drives a single ingestion job through its
// four-phase lifecycle: download, verify, split into work units for
// parsing, and store. It owns no parsing or storage logic itself — it
// only sequences the catalog state that pkg/worker and pkg/semver act
// on.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kraklabs/bdp-ingest/pkg/catalog"
	"github.com/kraklabs/bdp-ingest/pkg/metrics"
)

// Coordinator sequences a job's lifecycle against the catalog.
type Coordinator struct {
	jobs      *catalog.JobRepository
	workUnits *catalog.WorkUnitRepository
	logger    *slog.Logger

	maxRetries     int
	parseBatchSize int64
}

// Options configures a Coordinator from the batch section of the
// running configuration.
type Options struct {
	MaxRetries     int
	ParseBatchSize int64
}

// New constructs a Coordinator.
func New(jobs *catalog.JobRepository, workUnits *catalog.WorkUnitRepository, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.ParseBatchSize <= 0 {
		opts.ParseBatchSize = 5000
	}
	return &Coordinator{jobs: jobs, workUnits: workUnits, logger: logger, maxRetries: opts.MaxRetries, parseBatchSize: opts.ParseBatchSize}
}

// CreateJob registers a new pending job for a source's external
// version.
func (c *Coordinator) CreateJob(ctx context.Context, orgID, jobType, externalVersion, sourceURL string, metadata json.RawMessage) (*catalog.IngestionJob, error) {
	job, err := c.jobs.Create(ctx, orgID, jobType, externalVersion, sourceURL, metadata)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	c.logger.Info("job created", "job_id", job.ID, "external_version", externalVersion)
	return job, nil
}

// StartDownload transitions a job into downloading.
func (c *Coordinator) StartDownload(ctx context.Context, jobID string) error {
	return c.jobs.SetStatus(ctx, jobID, catalog.JobDownloading)
}

// RegisterRawFile records a downloaded artifact against the job.
func (c *Coordinator) RegisterRawFile(ctx context.Context, jobID, fileType, purpose, objectKey string, expectedMD5 *string, byteSize int64, compression *string) (*catalog.IngestionRawFile, error) {
	return c.jobs.AddRawFile(ctx, jobID, fileType, purpose, objectKey, expectedMD5, byteSize, compression)
}

// VerifyRawFile records the computed digest for a raw file and whether
// it matches what was expected. A mismatch does not itself fail the
// job — the caller decides whether a checksum mismatch is fatal for
// this source.
func (c *Coordinator) VerifyRawFile(ctx context.Context, rawFileID, computedMD5 string) (verified bool, err error) {
	f, err := c.jobs.GetRawFile(ctx, rawFileID)
	if err != nil {
		return false, fmt.Errorf("load raw file: %w", err)
	}
	verified = f.ExpectedMD5 == nil || *f.ExpectedMD5 == computedMD5
	if err := c.jobs.MarkRawFileVerified(ctx, rawFileID, computedMD5, verified); err != nil {
		return false, fmt.Errorf("mark raw file verified: %w", err)
	}
	return verified, nil
}

// CompleteDownload transitions a job past the download phase. It
// refuses if any registered raw file is still unverified, so a job can
// never start parsing bytes whose digest did not check out.
func (c *Coordinator) CompleteDownload(ctx context.Context, jobID string) error {
	files, err := c.jobs.ListRawFiles(ctx, jobID)
	if err != nil {
		return fmt.Errorf("list raw files: %w", err)
	}
	for _, f := range files {
		if !f.Verified {
			return fmt.Errorf("md5 mismatch for %s", f.ObjectKey)
		}
	}
	return c.jobs.SetStatus(ctx, jobID, catalog.JobDownloadVerified)
}

// CreateWorkUnits splits totalRecords into ceil(totalRecords /
// parseBatchSize) contiguous record-ordinal ranges and inserts one
// pending work unit per range, then transitions the job into parsing.
// unitType distinguishes the kind of parse a work unit performs (e.g.
// a source with multiple raw file formats creates one batch of units
// per format).
func (c *Coordinator) CreateWorkUnits(ctx context.Context, jobID, unitType string, totalRecords int64) ([]catalog.IngestionWorkUnit, error) {
	if totalRecords <= 0 {
		return nil, nil
	}

	var ranges []catalog.ByteRange
	for start := int64(0); start < totalRecords; start += c.parseBatchSize {
		end := start + c.parseBatchSize
		if end > totalRecords {
			end = totalRecords
		}
		ranges = append(ranges, catalog.ByteRange{Start: start, End: end, RecordCount: end - start})
	}

	units, err := c.workUnits.CreateBatch(ctx, jobID, unitType, ranges, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("create work units: %w", err)
	}
	if err := c.jobs.SetTotalRecords(ctx, jobID, totalRecords); err != nil {
		return nil, fmt.Errorf("set total records: %w", err)
	}
	if err := c.jobs.SetStatus(ctx, jobID, catalog.JobParsing); err != nil {
		return nil, fmt.Errorf("transition job to parsing: %w", err)
	}
	c.logger.Info("work units created", "job_id", jobID, "unit_type", unitType, "count", len(units), "total_records", totalRecords)
	return units, nil
}

// ReclaimStaleWorkUnits resets units abandoned by a dead worker back
// to pending, without touching their retry budget. staleSecs is how
// long a unit may go without a heartbeat before it is considered
// abandoned.
func (c *Coordinator) ReclaimStaleWorkUnits(ctx context.Context, staleSecs int64) (int64, error) {
	n, err := c.workUnits.ReclaimStale(ctx, staleSecs)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale work units: %w", err)
	}
	if n > 0 {
		c.logger.Warn("reclaimed stale work units", "count", n)
		metrics.WorkUnitsReclaimed(n)
	}
	return n, nil
}

// CheckParsingComplete reports whether every work unit for a job has
// reached a terminal status.
func (c *Coordinator) CheckParsingComplete(ctx context.Context, jobID string) (bool, error) {
	return c.workUnits.AllTerminal(ctx, jobID)
}

// StartStoring transitions a job into storing, the phase where staged
// records are promoted into their destination tables.
func (c *Coordinator) StartStoring(ctx context.Context, jobID string) error {
	return c.jobs.SetStatus(ctx, jobID, catalog.JobStoring)
}

// CompleteJob marks a job completed and links it to the internal
// catalog version it produced.
func (c *Coordinator) CompleteJob(ctx context.Context, jobID, versionID string) error {
	if err := c.jobs.SetInternalVersion(ctx, jobID, versionID); err != nil {
		return fmt.Errorf("link internal version: %w", err)
	}
	if err := c.jobs.SetStatus(ctx, jobID, catalog.JobCompleted); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	c.logger.Info("job completed", "job_id", jobID, "version_id", versionID)
	return nil
}

// FailJob marks a job terminally failed, recording the cause in the
// job's metadata so it survives alongside the row.
func (c *Coordinator) FailJob(ctx context.Context, jobID string, cause error) error {
	c.logger.Error("job failed", "job_id", jobID, "error", cause)
	return c.jobs.SetFailed(ctx, jobID, cause.Error())
}

// GetJobProgress aggregates a job's row with its work unit status
// counts.
func (c *Coordinator) GetJobProgress(ctx context.Context, jobID string) (*catalog.JobProgress, error) {
	job, err := c.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	counts, err := c.workUnits.CountByStatus(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("count work units: %w", err)
	}

	progress := &catalog.JobProgress{Job: *job}
	for status, n := range counts {
		progress.UnitsTotal += n
		switch status {
		case catalog.UnitPending:
			progress.UnitsPending = n
		case catalog.UnitClaimed:
			progress.UnitsClaimed = n
		case catalog.UnitProcessing:
			progress.UnitsProcessing = n
		case catalog.UnitCompleted:
			progress.UnitsCompleted = n
		case catalog.UnitFailed:
			progress.UnitsFailed = n
		case catalog.UnitCancelled:
			progress.UnitsCancelled = n
		}
	}
	return progress, nil
}
