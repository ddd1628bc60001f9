// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package worker claims ingestion work units, parses the byte range
// each one names, stages the resulting records, and reports the
// outcome back to the catalog. Any number of worker processes can run
// pkg/worker's loop concurrently against the same job: claim uses
// SELECT ... FOR UPDATE SKIP LOCKED so two workers never grab the same
// unit.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/bdp-ingest/pkg/catalog"
	"github.com/kraklabs/bdp-ingest/pkg/hashutil"
	"github.com/kraklabs/bdp-ingest/pkg/metrics"
	"github.com/kraklabs/bdp-ingest/pkg/parser"
)

// PathResolver maps a work unit's job to the local filesystem path of
// the raw file it should parse. Workers run against a file already
// downloaded and verified by the coordinator's download phase, so this
// is a simple lookup, not a fetch.
type PathResolver func(ctx context.Context, jobID string) (path string, format string, err error)

// Options configures a Pool from the batch section of the running
// configuration.
type Options struct {
	WorkerThreads     int
	HeartbeatInterval time.Duration
	StoreBatchSize    int
}

// Pool runs WorkerThreads claim/process loops against a single job
// until no claimable work unit remains.
type Pool struct {
	workUnits *catalog.WorkUnitRepository
	staged    *catalog.StagedRecordRepository
	jobs      *catalog.JobRepository
	parsers   *parser.Registry
	resolve   PathResolver
	logger    *slog.Logger

	opts Options
	host string
}

// New constructs a Pool.
func New(workUnits *catalog.WorkUnitRepository, staged *catalog.StagedRecordRepository, jobs *catalog.JobRepository, parsers *parser.Registry, resolve PathResolver, opts Options, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WorkerThreads <= 0 {
		opts.WorkerThreads = 4
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.StoreBatchSize <= 0 {
		opts.StoreBatchSize = 50
	}
	host, _ := os.Hostname()
	return &Pool{workUnits: workUnits, staged: staged, jobs: jobs, parsers: parsers, resolve: resolve, opts: opts, logger: logger, host: host}
}

// Run drives opts.WorkerThreads concurrent claim/process loops against
// jobID until ctx is cancelled or every pending work unit of the job
// has been claimed and gone terminal. It blocks until all loops return.
func (p *Pool) Run(ctx context.Context, jobID string) {
	var wg sync.WaitGroup
	for i := 0; i < p.opts.WorkerThreads; i++ {
		workerID := fmt.Sprintf("%s-%d", p.host, i)
		wg.Add(1)
		go func(workerID string) {
			defer wg.Done()
			p.loop(ctx, jobID, workerID)
		}(workerID)
	}
	wg.Wait()
}

func (p *Pool) loop(ctx context.Context, jobID, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		unit, err := p.workUnits.Claim(ctx, jobID, workerID, p.host)
		if err != nil {
			p.logger.Error("claim failed", "worker_id", workerID, "error", err)
			return
		}
		if unit == nil {
			return
		}
		metrics.WorkUnitClaimed()

		p.process(ctx, workerID, *unit)
	}
}

func (p *Pool) process(ctx context.Context, workerID string, unit catalog.IngestionWorkUnit) {
	stop := p.startHeartbeat(ctx, unit.ID)
	defer stop()

	if err := p.workUnits.StartProcessing(ctx, unit.ID); err != nil {
		p.logger.Error("start processing failed", "unit_id", unit.ID, "error", err)
		return
	}

	path, format, err := p.resolve(ctx, unit.JobID)
	if err != nil {
		p.failUnit(ctx, unit, fmt.Errorf("resolve path: %w", err))
		return
	}

	parserImpl, ok := p.parsers.Get(format)
	if !ok {
		p.failUnit(ctx, unit, fmt.Errorf("no parser registered for format %q", format))
		return
	}

	records, err := parserImpl.ParseRange(ctx, path, unit.StartOffset, unit.EndOffset)
	if err != nil {
		p.failUnit(ctx, unit, fmt.Errorf("parse range [%d,%d): %w", unit.StartOffset, unit.EndOffset, err))
		return
	}

	if err := p.stage(ctx, unit, records); err != nil {
		p.failUnit(ctx, unit, fmt.Errorf("stage records: %w", err))
		return
	}

	if err := p.jobs.IncrementCounters(ctx, unit.JobID, int64(len(records)), int64(len(records)), 0, 0); err != nil {
		p.logger.Error("increment counters failed", "unit_id", unit.ID, "job_id", unit.JobID, "error", err)
	}
	if err := p.workUnits.Complete(ctx, unit.ID); err != nil {
		p.logger.Error("complete work unit failed", "unit_id", unit.ID, "error", err)
		return
	}
	metrics.WorkUnitCompleted()
	metrics.RecordsStaged(len(records))
}

func (p *Pool) stage(ctx context.Context, unit catalog.IngestionWorkUnit, records []parser.GenericRecord) error {
	rows := make([]catalog.IngestionStagedRecord, 0, len(records))
	for _, rec := range records {
		contentMD5 := rec.ContentMD5
		if contentMD5 == "" {
			contentMD5 = hashutil.MD5Bytes(rec.RecordData)
		}
		row := catalog.IngestionStagedRecord{
			ID:               uuid.NewString(),
			JobID:            unit.JobID,
			WorkUnitID:       unit.ID,
			RecordType:       rec.RecordType,
			RecordIdentifier: strings.ToLower(rec.RecordIdentifier),
			RecordData:       json.RawMessage(rec.RecordData),
			ContentMD5:       contentMD5,
			Status:           catalog.RecordStaged,
		}
		if rec.RecordName != "" {
			name := strings.ToLower(rec.RecordName)
			row.RecordName = &name
		}
		if rec.SequenceMD5 != "" {
			seq := rec.SequenceMD5
			row.SequenceMD5 = &seq
		}
		if rec.SourceFile != "" {
			sf := rec.SourceFile
			row.SourceFile = &sf
		}
		if rec.SourceOffset != 0 {
			off := rec.SourceOffset
			row.SourceOffset = &off
		}
		rows = append(rows, row)
	}

	for start := 0; start < len(rows); start += p.opts.StoreBatchSize {
		end := start + p.opts.StoreBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := p.staged.InsertBatch(ctx, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) failUnit(ctx context.Context, unit catalog.IngestionWorkUnit, cause error) {
	p.logger.Error("work unit failed", "unit_id", unit.ID, "job_id", unit.JobID, "error", cause)
	retried, err := p.workUnits.Fail(ctx, unit.ID, cause.Error())
	if err != nil {
		p.logger.Error("record failure failed", "unit_id", unit.ID, "error", err)
		return
	}
	if !retried {
		metrics.WorkUnitFailed()
		if err := p.jobs.IncrementCounters(ctx, unit.JobID, 0, 0, 1, 0); err != nil {
			p.logger.Error("increment failure counter failed", "unit_id", unit.ID, "error", err)
		}
	}
}

// startHeartbeat launches a background goroutine that refreshes the
// unit's heartbeat every HeartbeatInterval until the returned stop
// function is called. A unit whose owning worker crashes mid-process
// stops heartbeating and becomes reclaimable once the scheduler's
// staleness window elapses.
func (p *Pool) startHeartbeat(ctx context.Context, unitID string) (stop func()) {
	ticker := time.NewTicker(p.opts.HeartbeatInterval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.workUnits.Heartbeat(ctx, unitID); err != nil {
					p.logger.Warn("heartbeat failed", "unit_id", unitID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}
