// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Command ingestd runs the bdp-ingest pipeline: it discovers new
// upstream releases for one or more configured sources, downloads and
// verifies them, parses them into work units processed by a worker
// pool, and publishes the result as a new catalog version, cascading
// the bump to every dependent entry.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/kraklabs/bdp-ingest/internal/config"
	"github.com/kraklabs/bdp-ingest/internal/ingesterr"
	"github.com/kraklabs/bdp-ingest/internal/logging"
	"github.com/kraklabs/bdp-ingest/internal/pg"
	"github.com/kraklabs/bdp-ingest/pkg/cascade"
	"github.com/kraklabs/bdp-ingest/pkg/catalog"
	"github.com/kraklabs/bdp-ingest/pkg/changelog"
	"github.com/kraklabs/bdp-ingest/pkg/citations"
	"github.com/kraklabs/bdp-ingest/pkg/coordinator"
	"github.com/kraklabs/bdp-ingest/pkg/discovery"
	"github.com/kraklabs/bdp-ingest/pkg/objectstore"
	"github.com/kraklabs/bdp-ingest/pkg/orchestrator"
	"github.com/kraklabs/bdp-ingest/pkg/parser"
	"github.com/kraklabs/bdp-ingest/pkg/semver"
	"github.com/kraklabs/bdp-ingest/pkg/worker"
)

func main() {
	var (
		configPath  = pflag.String("config", "config/ingestd.yaml", "Path to the daemon's YAML configuration")
		mode        = pflag.String("mode", "", "Override every source's configured mode (latest, historical, start_from)")
		sourceName  = pflag.String("source", "", "Run only the named source instead of every configured source")
		concurrency = pflag.Int("concurrency", 0, "Override every source's configured concurrency")
		jsonOutput  = pflag.Bool("json", false, "Print the run summary as JSON instead of colored text")
		debug       = pflag.Bool("debug", false, "Enable debug-level logging")
	)
	pflag.Parse()

	format := logging.FormatText
	if *jsonOutput {
		format = logging.FormatJSON
	}
	logger := logging.New(logging.Options{Debug: *debug, Format: format})

	if err := run(*configPath, *mode, *sourceName, *concurrency, *jsonOutput, logger); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "ingestd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, modeOverride, sourceFilter string, concurrencyOverride int, jsonOutput bool, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return ingesterr.ConfigInvalidf(err, "load config %s", configPath)
	}
	if !cfg.Ingest.Enabled {
		logger.Info("ingestion disabled by config, nothing to do")
		return nil
	}

	sqlxDB, err := pg.Open(ctx, pg.Options{DSN: cfg.Database.DSN, MaxConns: cfg.Database.MaxConns, MinConns: cfg.Database.MinConns})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer sqlxDB.Close()

	if err := pg.Migrate(sqlxDB, cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	store, err := objectstore.NewS3Store(ctx, objectstore.S3Config{
		Endpoint:     cfg.ObjectStore.Endpoint,
		Region:       cfg.ObjectStore.Region,
		Bucket:       cfg.ObjectStore.Bucket,
		AccessKey:    cfg.ObjectStore.AccessKey,
		SecretKey:    cfg.ObjectStore.SecretKey,
		UsePathStyle: cfg.ObjectStore.UsePathStyle,
	})
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	db := catalog.NewDB(sqlxDB)
	orgs := catalog.NewOrganizationRepository(db)
	registry := catalog.NewRegistryRepository(db)
	jobs := catalog.NewJobRepository(db)
	workUnits := catalog.NewWorkUnitRepository(db)
	staged := catalog.NewStagedRecordRepository(db)
	versions := catalog.NewVersionRepository(db)
	changelogRepo := catalog.NewChangelogRepository(db)
	citationRepo := catalog.NewCitationRepository(db)

	semverSvc := semver.NewService(versions)
	changelogs := changelog.NewStore(changelogRepo)
	cascader := cascade.NewCascader(versions, semverSvc, changelogs, logger)
	citationsSvc := citations.NewService(citationRepo)

	results := make(map[string][]orchestrator.PipelineResult)
	for _, srcCfg := range cfg.Sources {
		if sourceFilter != "" && srcCfg.Name != sourceFilter {
			continue
		}
		if modeOverride != "" {
			srcCfg.Mode = config.Mode(modeOverride)
		}
		if concurrencyOverride > 0 {
			srcCfg.Concurrency = concurrencyOverride
		}

		res, err := runSource(ctx, srcCfg, cfg, orgs, registry, jobs, workUnits, staged, versions,
			semverSvc, changelogs, cascader, citationsSvc, store, logger)
		if err != nil {
			logger.Error("source run failed", "source", srcCfg.Name, "error", err)
			continue
		}
		results[srcCfg.Name] = res
	}

	printSummary(results, jsonOutput)
	return nil
}

func runSource(
	ctx context.Context,
	srcCfg config.Source,
	cfg *config.Config,
	orgs *catalog.OrganizationRepository,
	registry *catalog.RegistryRepository,
	jobs *catalog.JobRepository,
	workUnits *catalog.WorkUnitRepository,
	staged *catalog.StagedRecordRepository,
	versions *catalog.VersionRepository,
	semverSvc *semver.Service,
	changelogs *changelog.Store,
	cascader *cascade.Cascader,
	citationsSvc *citations.Service,
	store objectstore.Store,
	logger *slog.Logger,
) ([]orchestrator.PipelineResult, error) {
	org, err := orgs.GetOrCreate(ctx, srcCfg.OrgSlug, srcCfg.OrgSlug)
	if err != nil {
		return nil, fmt.Errorf("resolve organization %s: %w", srcCfg.OrgSlug, err)
	}

	entry, err := registry.GetEntryBySlug(ctx, org.ID, srcCfg.EntrySlug)
	if err != nil {
		if !ingesterr.Is(err, ingesterr.NotFound) {
			return nil, fmt.Errorf("look up registry entry %s: %w", srcCfg.EntrySlug, err)
		}
		entry, err = registry.CreateEntry(ctx, org.ID, srcCfg.EntrySlug, srcCfg.DisplayName, catalog.EntryTypeDataSource)
		if err != nil {
			return nil, fmt.Errorf("create registry entry %s: %w", srcCfg.EntrySlug, err)
		}
		if _, err := registry.CreateDataSource(ctx, entry.ID, catalog.SourceType(srcCfg.SourceType), nil, nil); err != nil {
			return nil, fmt.Errorf("create data source facet for %s: %w", srcCfg.EntrySlug, err)
		}
	}

	wiring, err := buildSourceWiring(srcCfg)
	if err != nil {
		return nil, err
	}

	parsers := parser.NewRegistry()
	parsers.Register(srcCfg.ParserFormat, wiring.parser)

	coord := coordinator.New(jobs, workUnits, coordinator.Options{
		MaxRetries:     cfg.Ingest.MaxRetries,
		ParseBatchSize: int64(cfg.Batch.ParseBatchSize),
	}, logger)

	runner := &pipelineRunner{
		src:          *wiring,
		orgID:        org.ID,
		entryID:      entry.ID,
		cacheDir:     srcCfg.CacheDir,
		store:        store,
		coordinator:  coord,
		parsers:      parsers,
		jobs:         jobs,
		workUnits:    workUnits,
		staged:       staged,
		versions:     versions,
		semverSvc:    semverSvc,
		changelogs:   changelogs,
		cascader:     cascader,
		citationsSvc: citationsSvc,
		workerOpts: worker.Options{
			WorkerThreads:     cfg.Ingest.WorkerThreads,
			HeartbeatInterval: time.Duration(cfg.Batch.HeartbeatIntervalSecs) * time.Second,
			StoreBatchSize:    cfg.Batch.StoreBatchSize,
		},
		logger: logger,
	}

	// Every pipeline run is bounded by the configured job timeout: a
	// hung upstream or parser stalls one job, not the whole batch.
	jobTimeout := time.Duration(cfg.Ingest.JobTimeoutSecs) * time.Second
	pipeline := func(ctx context.Context, v discovery.Version) (string, bool, error) {
		ctx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()
		return runner.Run(ctx, v)
	}
	orch := orchestrator.New(wiring.discoverer, versions, pipeline, logger)

	reclaimed, err := coord.ReclaimStaleWorkUnits(ctx, int64(cfg.Batch.WorkerTimeoutSecs))
	if err != nil {
		logger.Warn("reclaim stale work units failed", "source", srcCfg.Name, "error", err)
	} else if reclaimed > 0 {
		logger.Info("reclaimed stale work units", "source", srcCfg.Name, "count", reclaimed)
	}

	switch config.Mode(srcCfg.Mode) {
	case config.ModeHistorical:
		start, end := parseDateRange(srcCfg.StartDate, srcCfg.EndDate)
		return orch.RunHistorical(ctx, entry.ID, orchestrator.HistoricalOptions{
			Start: start, End: end, SkipExisting: srcCfg.SkipExisting, BatchSize: srcCfg.BatchSize,
		})
	case config.ModeStartFrom:
		ordering, releaseDate := parseStartFrom(srcCfg.StartFromDate)
		return orch.RunStartFrom(ctx, entry.ID, discoveryCutoff(ordering, releaseDate))
	default:
		latest, err := versions.Latest(ctx, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("load current version for %s: %w", srcCfg.EntrySlug, err)
		}
		last := orchestrator.LatestState{Ordering: currentOrdering(latest, wiring.format)}
		if latest != nil {
			last.IsCurrent = latest.IsCurrent
			if latest.ExternalVersion != nil {
				last.ExternalVersion = *latest.ExternalVersion
			}
		}
		return orch.RunLatest(ctx, entry.ID, last)
	}
}

func printSummary(results map[string][]orchestrator.PipelineResult, jsonOutput bool) {
	if jsonOutput {
		fmt.Println("{")
		first := true
		for source, res := range results {
			if !first {
				fmt.Println(",")
			}
			first = false
			succeeded, skipped, failed := orchestrator.Summarize(res)
			fmt.Printf("  %q: {\"succeeded\": %d, \"skipped\": %d, \"failed\": %d}", source, succeeded, skipped, failed)
		}
		fmt.Println("\n}")
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	for source, res := range results {
		succeeded, skipped, failed := orchestrator.Summarize(res)
		fmt.Printf("%s: %s succeeded, %s skipped, %s failed\n",
			source, green(succeeded), yellow(skipped), red(failed))
	}
}
