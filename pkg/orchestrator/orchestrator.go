// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package orchestrator selects which upstream versions of a source
// need ingesting and schedules the 4-phase pipeline across them,
// sequentially or with bounded concurrency. It owns no parsing,
// storage, or catalog logic itself — pkg/coordinator, pkg/worker, and
// pkg/cascade do that; Pipeline is the single seam this package calls
// into for each target version.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/kraklabs/bdp-ingest/pkg/discovery"
)

// Mode selects which upstream versions of a source are targeted for
// ingestion.
type Mode string

const (
	ModeLatest     Mode = "latest"
	ModeHistorical Mode = "historical"
	ModeStartFrom  Mode = "start_from"
)

// PipelineResult summarizes the outcome of running the 4-phase
// pipeline against one discovered version. Errors on a single target
// never abort the batch; they are recorded here instead.
type PipelineResult struct {
	ExternalVersion   string
	InternalVersionID string
	Skipped           bool
	Err               error
}

// Pipeline runs the full download/verify/parse/store cycle for one
// discovered version and returns the internal catalog version ID it
// produced, or Skipped=true if the target was intentionally bypassed
// (e.g. skip_existing).
type Pipeline func(ctx context.Context, v discovery.Version) (internalVersionID string, skipped bool, err error)

// Orchestrator schedules Pipeline runs across a Discoverer's output.
type Orchestrator struct {
	discoverer discovery.Discoverer
	ingested   discovery.IngestedVersions
	pipeline   Pipeline
	logger     *slog.Logger
}

// New constructs an Orchestrator.
func New(discoverer discovery.Discoverer, ingested discovery.IngestedVersions, pipeline Pipeline, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{discoverer: discoverer, ingested: ingested, pipeline: pipeline, logger: logger}
}

// LatestState describes the entry's current catalog version as
// RunLatest's "anything newer?" check sees it: the Ordering re-derived
// from its stored external version, the external version string
// itself, and whether that version is still the entry's current one.
type LatestState struct {
	Ordering        int64
	ExternalVersion string
	IsCurrent       bool
}

// RunLatest discovers the newest upstream version and runs the
// pipeline against it only if its Ordering exceeds last.Ordering. A
// newest release whose external version equals the last ingested one
// while that ingestion is still current is the same release
// re-discovered under a new path (the upstream moved its "current"
// symbol onto a dated directory) and is never re-ingested.
func (o *Orchestrator) RunLatest(ctx context.Context, entryID string, last LatestState) ([]PipelineResult, error) {
	versions, err := o.discoverer.DiscoverAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	discovered := discovery.DiscoveredVersions(versions)
	newest := discovered.GetNewest()
	if newest == nil {
		o.logger.Info("orchestrator: nothing discovered", "entry_id", entryID)
		return nil, nil
	}
	if discovery.IsMigratedCurrentRelease(newest.ExternalVersion, last.ExternalVersion, last.IsCurrent) {
		o.logger.Info("orchestrator: current release migrated, already ingested", "entry_id", entryID, "external_version", newest.ExternalVersion)
		return nil, nil
	}
	if !discovered.CheckForNewer(last.Ordering) {
		o.logger.Info("orchestrator: no newer version", "entry_id", entryID, "external_version", newest.ExternalVersion)
		return nil, nil
	}

	return o.runSequential(ctx, []discovery.Version{*newest}), nil
}

// HistoricalOptions configures RunHistorical.
type HistoricalOptions struct {
	Start        time.Time
	End          *time.Time
	SkipExisting bool
	BatchSize    int
}

// RunHistorical discovers every version, filters to [Start, End),
// optionally drops already-ingested versions, sorts ascending, and
// runs the pipeline sequentially across windows of BatchSize targets.
func (o *Orchestrator) RunHistorical(ctx context.Context, entryID string, opts HistoricalOptions) ([]PipelineResult, error) {
	versions, err := o.discoverer.DiscoverAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	end := opts.End
	if end == nil {
		farFuture := time.Now().AddDate(100, 0, 0)
		end = &farFuture
	}
	targets := discovery.DiscoveredVersions(versions).FilterByDateRange(opts.Start, *end)
	if opts.SkipExisting {
		ingestedVersions, err := o.ingested.ListIngestedExternalVersions(ctx, entryID)
		if err != nil {
			return nil, fmt.Errorf("list ingested: %w", err)
		}
		targets = targets.FilterNew(ingestedVersions)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Ordering < targets[j].Ordering })

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(targets)
	}

	var all []PipelineResult
	for start := 0; start < len(targets); start += batchSize {
		end := start + batchSize
		if end > len(targets) {
			end = len(targets)
		}
		all = append(all, o.runSequential(ctx, targets[start:end])...)
	}
	return all, nil
}

// RunStartFrom discovers every version at or after cutoff, drops
// already-ingested ones, sorts ascending, and runs them sequentially —
// the UniProt "resume from a known release" mode.
func (o *Orchestrator) RunStartFrom(ctx context.Context, entryID string, cutoff discovery.Version) ([]PipelineResult, error) {
	versions, err := o.discoverer.DiscoverAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	ingestedVersions, err := o.ingested.ListIngestedExternalVersions(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("list ingested: %w", err)
	}

	all := discovery.DiscoveredVersions(versions)
	targets := make(discovery.DiscoveredVersions, 0, len(all))
	for _, v := range all {
		if v.Ordering >= cutoff.Ordering {
			targets = append(targets, v)
		}
	}
	targets = targets.FilterNew(ingestedVersions)
	sort.Slice(targets, func(i, j int) bool { return targets[i].Ordering < targets[j].Ordering })

	return o.runSequential(ctx, targets), nil
}

func (o *Orchestrator) runSequential(ctx context.Context, targets []discovery.Version) []PipelineResult {
	results := make([]PipelineResult, 0, len(targets))
	for _, v := range targets {
		results = append(results, o.runOne(ctx, v))
	}
	return results
}

func (o *Orchestrator) runOne(ctx context.Context, v discovery.Version) PipelineResult {
	internalVersionID, skipped, err := o.pipeline(ctx, v)
	if err != nil {
		o.logger.Error("orchestrator: pipeline failed, continuing batch", "external_version", v.ExternalVersion, "error", err)
	}
	return PipelineResult{ExternalVersion: v.ExternalVersion, InternalVersionID: internalVersionID, Skipped: skipped, Err: err}
}

// CatchupFromDateParallel admits up to concurrency pipeline runs at
// once over every discovered version at or after start, using a
// buffered-channel semaphore the same shape as a bounded worker pool:
// capped at min(concurrency, 4) unless the caller asks for fewer.
func (o *Orchestrator) CatchupFromDateParallel(ctx context.Context, entryID string, start time.Time, concurrency int) ([]PipelineResult, error) {
	versions, err := o.discoverer.DiscoverAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	farFuture := time.Now().AddDate(100, 0, 0)
	targets := discovery.DiscoveredVersions(versions).FilterByDateRange(start, farFuture)

	numWorkers := concurrency
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > 4 {
		numWorkers = 4
	}
	if numWorkers > len(targets) {
		numWorkers = len(targets)
	}
	if numWorkers == 0 {
		return nil, nil
	}

	results := make([]PipelineResult, len(targets))
	indices := make(chan int, len(targets))
	for i := range targets {
		indices <- i
	}
	close(indices)

	var wg sync.WaitGroup
	var mu sync.Mutex
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i, ok := <-indices
				if !ok {
					return
				}
				v := targets[i]
				res := o.runOne(ctx, v)
				mu.Lock()
				results[i] = res
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return results, nil
}

// Summarize tallies a batch's outcomes for logging/reporting.
func Summarize(results []PipelineResult) (succeeded, skipped, failed int) {
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Skipped:
			skipped++
		default:
			succeeded++
		}
	}
	return succeeded, skipped, failed
}
