// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/kraklabs/bdp-ingest/internal/ingesterr"
	"github.com/kraklabs/bdp-ingest/pkg/cascade"
	"github.com/kraklabs/bdp-ingest/pkg/catalog"
	"github.com/kraklabs/bdp-ingest/pkg/changelog"
	"github.com/kraklabs/bdp-ingest/pkg/citations"
	"github.com/kraklabs/bdp-ingest/pkg/coordinator"
	"github.com/kraklabs/bdp-ingest/pkg/discovery"
	"github.com/kraklabs/bdp-ingest/pkg/hashutil"
	"github.com/kraklabs/bdp-ingest/pkg/metrics"
	"github.com/kraklabs/bdp-ingest/pkg/objectstore"
	"github.com/kraklabs/bdp-ingest/pkg/parser"
	"github.com/kraklabs/bdp-ingest/pkg/semver"
	"github.com/kraklabs/bdp-ingest/pkg/transport"
	"github.com/kraklabs/bdp-ingest/pkg/worker"
)

// pipelineRunner holds every component a single source's pipeline
// closure needs to carry out one discovered version's end-to-end
// ingestion. One runner is built per source and its Run method is
// handed to pkg/orchestrator as the Pipeline callback.
type pipelineRunner struct {
	src sourceWiring

	orgID     string
	entryID   string
	cacheDir  string

	store        objectstore.Store
	coordinator  *coordinator.Coordinator
	parsers      *parser.Registry
	jobs         *catalog.JobRepository
	workUnits    *catalog.WorkUnitRepository
	staged       *catalog.StagedRecordRepository
	versions     *catalog.VersionRepository
	semverSvc    *semver.Service
	changelogs   *changelog.Store
	cascader     *cascade.Cascader
	citationsSvc *citations.Service

	workerOpts worker.Options
	logger     *slog.Logger
}

// jobFilePaths tracks where the pipeline put the raw download on local
// disk, keyed by job ID, so pkg/worker's PathResolver can find it
// without every work unit re-deriving the path from job metadata.
// Orchestrator.CatchupFromDateParallel runs multiple pipelines
// concurrently, so access is mutex-guarded.
var jobFilePaths = struct {
	mu sync.Mutex
	m  map[string]jobFile
}{m: make(map[string]jobFile)}

type jobFile struct {
	path   string
	format string
}

func rememberJobFile(jobID, path, format string) {
	jobFilePaths.mu.Lock()
	defer jobFilePaths.mu.Unlock()
	jobFilePaths.m[jobID] = jobFile{path: path, format: format}
}

func resolveJobFile(_ context.Context, jobID string) (string, string, error) {
	jobFilePaths.mu.Lock()
	jf, ok := jobFilePaths.m[jobID]
	jobFilePaths.mu.Unlock()
	if !ok {
		return "", "", ingesterr.NotFoundf("no local file recorded for job %s", jobID)
	}
	return jf.path, jf.format, nil
}

// Run is the orchestrator.Pipeline implementation for one source: it
// downloads the release, verifies its digest, splits it into work
// units, drains them with a worker pool, and on success assigns the
// next internal version, saves its changelog, and cascades the bump
// to every dependent entry.
func (p *pipelineRunner) Run(ctx context.Context, v discovery.Version) (internalVersionID string, skipped bool, err error) {
	pipelineStart := time.Now()
	defer func() {
		metrics.ObservePipelineDuration(time.Since(pipelineStart).Seconds())
	}()

	metadata, _ := json.Marshal(map[string]string{"release_url": v.ReleaseURL})
	job, err := p.coordinator.CreateJob(ctx, p.orgID, p.src.cfg.SourceType, v.ExternalVersion, v.ReleaseURL, metadata)
	if err != nil {
		return "", false, fmt.Errorf("create job: %w", err)
	}
	metrics.JobCreated()

	if err := p.download(ctx, job, v); err != nil {
		p.coordinator.FailJob(ctx, job.ID, err)
		metrics.JobFailed()
		return "", false, err
	}

	totalRecords, err := p.splitAndParse(ctx, job)
	if err != nil {
		p.coordinator.FailJob(ctx, job.ID, err)
		metrics.JobFailed()
		return "", false, err
	}
	if totalRecords == 0 {
		p.coordinator.FailJob(ctx, job.ID, ingesterr.Parsef(nil, "no records found in %s", v.ExternalVersion))
		metrics.JobFailed()
		return "", false, fmt.Errorf("no records parsed for %s", v.ExternalVersion)
	}

	entries := p.diffEntries(totalRecords)
	bump := semver.Minor
	catalogBump := catalog.BumpMinor
	if changelog.HasBreakingChanges(entries) {
		bump = semver.Major
		catalogBump = catalog.BumpMajor
	}

	newVersion, err := p.publish(ctx, job, v, bump)
	if err != nil {
		p.coordinator.FailJob(ctx, job.ID, err)
		metrics.JobFailed()
		return "", false, err
	}

	if err := p.coordinator.CompleteJob(ctx, job.ID, newVersion.ID); err != nil {
		return "", false, fmt.Errorf("complete job: %w", err)
	}
	metrics.JobCompleted()

	p.recordCitations(ctx, newVersion)

	cl, err := p.changelogs.Save(ctx, newVersion.ID, catalogBump, catalog.TriggerNewRelease, nil, entries, 0)
	if err != nil {
		p.logger.Error("save changelog failed", "version_id", newVersion.ID, "error", err)
	} else if saved, err := changelog.DecodeEntries(cl); err != nil {
		p.logger.Error("decode saved changelog failed", "version_id", newVersion.ID, "error", err)
	} else {
		results := p.cascader.CascadeRecursive(ctx, p.entryID, newVersion.ID, newVersion.VersionString,
			saved, p.src.cfg.CascadeDepth)
		for _, r := range results {
			if r.Err != nil {
				metrics.CascadeFailure()
				continue
			}
			metrics.CascadeDependentBumped()
		}
	}

	return newVersion.ID, false, nil
}

func (p *pipelineRunner) diffEntries(totalRecords int64) []changelog.Entry {
	return []changelog.Entry{
		changelog.Added(p.src.cfg.RecordType, int(totalRecords), fmt.Sprintf("%d %s records ingested", totalRecords, p.src.cfg.RecordType)),
	}
}

// recordCitations upserts the source's configured citation policy and
// attaches its release citation to the newly published version. A
// citation failure never fails the pipeline — the version is already
// published.
func (p *pipelineRunner) recordCitations(ctx context.Context, v *catalog.Version) {
	cit := p.src.cfg.Citation
	if cit.PolicyURL != "" {
		_, err := p.citationsSvc.SetupCitationPolicy(ctx, p.orgID, citations.PolicyInput{
			PolicyURL:               cit.PolicyURL,
			LicenseReference:        cit.License,
			Instructions:            cit.Instructions,
			RequiresVersionCitation: cit.RequiresVersionCitation,
		})
		if err != nil {
			p.logger.Warn("setup citation policy failed", "org_id", p.orgID, "error", err)
		}
	}
	if cit.DOI == "" && cit.Title == "" {
		return
	}
	_, err := p.citationsSvc.AddVersionCitation(ctx, v.ID, citations.CitationInput{
		DOI:     cit.DOI,
		Title:   cit.Title,
		Journal: cit.Journal,
		Authors: cit.Authors,
	})
	if err != nil {
		p.logger.Warn("add version citation failed", "version_id", v.ID, "error", err)
	}
}

// download fetches the release's raw file, decompresses it if needed,
// streams it through both a local cache file and the object store
// under an ingest-scoped key, and registers/verifies it against the
// job.
func (p *pipelineRunner) download(ctx context.Context, job *catalog.IngestionJob, v discovery.Version) error {
	start := time.Now()
	defer func() { metrics.ObserveDownloadDuration(time.Since(start).Seconds()) }()

	if err := p.coordinator.StartDownload(ctx, job.ID); err != nil {
		return fmt.Errorf("start download: %w", err)
	}

	raw, err := p.src.download(ctx, v.ReleaseURL)
	if err != nil {
		return ingesterr.Transportf(err, "download %s", v.ReleaseURL)
	}
	metrics.DownloadBytes(int64(len(raw)))

	decompressed, err := transportDecompress(raw)
	if err != nil {
		return ingesterr.Transportf(err, "decompress %s", v.ReleaseURL)
	}

	localPath := filepath.Join(p.cacheDir, job.ID+".dat")
	if err := os.MkdirAll(p.cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(localPath, decompressed, 0o644); err != nil {
		return fmt.Errorf("write local cache: %w", err)
	}

	computedMD5 := hashutil.MD5Bytes(decompressed)
	key := objectstore.IngestKey(p.src.cfg.Name, v.ExternalVersion, filepath.Base(v.ReleaseURL))
	bar := progressbar.DefaultBytes(int64(len(decompressed)), "upload "+v.ExternalVersion)
	body := progressbar.NewReader(bytes.NewReader(decompressed), bar)
	if _, err := p.store.Put(ctx, key, &body, int64(len(decompressed)), "application/octet-stream"); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	_ = bar.Finish()

	rawFile, err := p.coordinator.RegisterRawFile(ctx, job.ID, p.src.cfg.SourceType, "release", key, nil, int64(len(decompressed)), nil)
	if err != nil {
		return fmt.Errorf("register raw file: %w", err)
	}
	verified, err := p.coordinator.VerifyRawFile(ctx, rawFile.ID, computedMD5)
	if err != nil {
		return fmt.Errorf("verify raw file: %w", err)
	}
	if !verified {
		return ingesterr.ChecksumMismatchf("raw file %s failed verification", rawFile.ID)
	}
	if err := p.coordinator.CompleteDownload(ctx, job.ID); err != nil {
		return fmt.Errorf("complete download: %w", err)
	}

	rememberJobFile(job.ID, localPath, p.src.cfg.ParserFormat)
	return nil
}

// splitAndParse counts the downloaded file's records, splits them into
// work units, and drains them with a worker pool. It returns the total
// record count once every work unit has reached a terminal status.
func (p *pipelineRunner) splitAndParse(ctx context.Context, job *catalog.IngestionJob) (int64, error) {
	start := time.Now()
	defer func() { metrics.ObserveParseDuration(time.Since(start).Seconds()) }()

	path, _, err := resolveJobFile(ctx, job.ID)
	if err != nil {
		return 0, err
	}

	totalRecords, err := p.src.parser.CountRecords(ctx, path)
	if err != nil {
		return 0, ingesterr.Parsef(err, "count records in %s", path)
	}

	if _, err := p.coordinator.CreateWorkUnits(ctx, job.ID, p.src.cfg.ParserFormat, totalRecords); err != nil {
		return 0, fmt.Errorf("create work units: %w", err)
	}

	pool := worker.New(p.workUnits, p.staged, p.jobs, p.parsers, resolveJobFile, p.workerOpts, p.logger)
	pool.Run(ctx, job.ID)

	progress, err := p.coordinator.GetJobProgress(ctx, job.ID)
	if err != nil {
		return 0, fmt.Errorf("get job progress: %w", err)
	}
	if progress.UnitsFailed > 0 {
		return 0, ingesterr.Parsef(nil, "%d work units failed for job %s", progress.UnitsFailed, job.ID)
	}

	complete, err := p.coordinator.CheckParsingComplete(ctx, job.ID)
	if err != nil {
		return 0, fmt.Errorf("check parsing complete: %w", err)
	}
	if !complete {
		return 0, ingesterr.Parsef(nil, "work units for job %s did not all reach a terminal state", job.ID)
	}

	return progress.Job.RecordsStored, nil
}

// publish transitions the job into storing, assigns the registry
// entry its next internal version at the given bump, and promotes the
// verified raw file to its canonical data-sources/ key with a
// VersionFile row carrying the stored bytes' SHA-256.
func (p *pipelineRunner) publish(ctx context.Context, job *catalog.IngestionJob, v discovery.Version, bump semver.BumpType) (*catalog.Version, error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreDuration(time.Since(start).Seconds()) }()

	if err := p.coordinator.StartStoring(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("start storing: %w", err)
	}

	newVersion, err := p.semverSvc.CreateVersion(ctx, p.entryID, bump, v.ExternalVersion, v.ReleaseDate)
	if err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}

	path, format, err := resolveJobFile(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve raw file: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cached raw file: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.%s", p.src.cfg.EntrySlug, newVersion.VersionString, format)
	key := objectstore.DataSourceKey(p.src.cfg.OrgSlug, p.src.cfg.EntrySlug, newVersion.VersionString, filename)
	if _, err := p.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/octet-stream"); err != nil {
		return nil, fmt.Errorf("put canonical object %s: %w", key, err)
	}

	checksum := hashutil.SHA256Bytes(data)
	if _, err := p.versions.AddFile(ctx, newVersion.ID, format, key, checksum, int64(len(data)), nil); err != nil {
		return nil, fmt.Errorf("record version file: %w", err)
	}
	if err := p.versions.UpdateSizeAndCounts(ctx, newVersion.ID, int64(len(data)), 0); err != nil {
		return nil, fmt.Errorf("record version size: %w", err)
	}

	return newVersion, nil
}

// transportDecompress reads b fully through transport.Decompress so
// gzip-compressed upstream mirrors are normalized to their plain
// content before local caching and object-store upload.
func transportDecompress(b []byte) ([]byte, error) {
	rc, err := transport.Decompress(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
