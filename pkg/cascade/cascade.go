// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package cascade propagates a version bump to every registry entry
// that declares a dependency on the bumped entry, recursively.
package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kraklabs/bdp-ingest/pkg/catalog"
	"github.com/kraklabs/bdp-ingest/pkg/changelog"
	"github.com/kraklabs/bdp-ingest/pkg/semver"
)

// Cascader propagates version bumps across the dependency graph.
type Cascader struct {
	versions   *catalog.VersionRepository
	semverSvc  *semver.Service
	changelogs *changelog.Store
	logger     *slog.Logger
}

// NewCascader constructs a Cascader.
func NewCascader(versions *catalog.VersionRepository, semverSvc *semver.Service, changelogs *changelog.Store, logger *slog.Logger) *Cascader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascader{versions: versions, semverSvc: semverSvc, changelogs: changelogs, logger: logger}
}

// Result is one dependent entry's outcome from a single cascade hop.
type Result struct {
	DependentVersionID string
	EntryID            string
	BumpType           semver.BumpType
	Err                error
}

// Cascade finds every current version that depends on sourceEntryID
// and creates a new version for each, bumping major if
// sourceEntries contains a breaking change and minor otherwise. Each
// new dependent version's dependency list is copied from its
// predecessor with the dependency on sourceEntryID rewritten to the
// new sourceVersion string. A failure on one dependent is logged and
// skipped; it never aborts the rest of the cascade.
func (c *Cascader) Cascade(ctx context.Context, sourceEntryID, sourceVersionID, sourceVersionString string, sourceEntries []changelog.Entry) []Result {
	dependents, err := c.versions.FindDependents(ctx, sourceEntryID)
	if err != nil {
		c.logger.Error("cascade: find dependents failed", "entry_id", sourceEntryID, "error", err)
		return nil
	}

	bump := semver.Minor
	if changelog.HasBreakingChanges(sourceEntries) {
		bump = semver.Major
	}

	results := make([]Result, 0, len(dependents))
	for _, dep := range dependents {
		res := c.cascadeOne(ctx, dep, sourceEntryID, sourceVersionID, sourceVersionString, bump)
		if res.Err != nil {
			c.logger.Error("cascade: dependent failed, skipping", "dependent_entry_id", dep.RegistryEntryID, "error", res.Err)
		}
		results = append(results, res)
	}
	return results
}

func (c *Cascader) cascadeOne(ctx context.Context, dependent catalog.Version, sourceEntryID, sourceVersionID, sourceVersionString string, bump semver.BumpType) Result {
	res := Result{EntryID: dependent.RegistryEntryID, BumpType: bump}

	newVersion, err := c.semverSvc.CreateVersion(ctx, dependent.RegistryEntryID, bump, "", nil)
	if err != nil {
		res.Err = fmt.Errorf("create dependent version: %w", err)
		return res
	}
	res.DependentVersionID = newVersion.ID

	depType, err := c.versions.CopyDependencies(ctx, dependent.ID, newVersion.ID, sourceEntryID)
	if err != nil {
		res.Err = fmt.Errorf("copy dependencies: %w", err)
		return res
	}
	if depType == "" {
		depType = "runtime"
	}
	if err := c.versions.AddDependency(ctx, newVersion.ID, sourceEntryID, sourceVersionString, depType); err != nil {
		res.Err = fmt.Errorf("rewrite dependency: %w", err)
		return res
	}
	if err := c.versions.RecomputeDependencyCount(ctx, newVersion.ID); err != nil {
		res.Err = fmt.Errorf("recompute dependency count: %w", err)
		return res
	}

	entries := []changelog.Entry{changelog.Dependency(
		"dependency",
		fmt.Sprintf("upstream dependency bumped to %s", sourceVersionString),
		bump == semver.Major,
	)}
	if _, err := c.changelogs.Save(ctx, newVersion.ID, toCatalogBump(bump), catalog.TriggerUpstreamDependency, &sourceVersionID, entries, 0); err != nil {
		res.Err = fmt.Errorf("save dependent changelog: %w", err)
		return res
	}

	return res
}

func toCatalogBump(b semver.BumpType) catalog.BumpType {
	if b == semver.Major {
		return catalog.BumpMajor
	}
	return catalog.BumpMinor
}

// CascadeRecursive performs a breadth-first propagation: Cascade runs
// once for sourceVersionID, then recurses into each newly created
// dependent version with maxDepth-1, until maxDepth reaches 0. A depth
// of 0 returns immediately without touching the graph.
func (c *Cascader) CascadeRecursive(ctx context.Context, sourceEntryID, sourceVersionID, sourceVersionString string, sourceEntries []changelog.Entry, maxDepth int) []Result {
	if maxDepth <= 0 {
		return nil
	}

	results := c.Cascade(ctx, sourceEntryID, sourceVersionID, sourceVersionString, sourceEntries)

	var all []Result
	for _, res := range results {
		all = append(all, res)
		if res.Err != nil {
			continue
		}
		childEntries := []changelog.Entry{changelog.Dependency(
			"dependency",
			fmt.Sprintf("upstream dependency bumped to %s", sourceVersionString),
			res.BumpType == semver.Major,
		)}
		versionString, err := c.versionString(ctx, res.DependentVersionID)
		if err != nil {
			c.logger.Error("cascade: reload dependent version failed, stopping this branch", "version_id", res.DependentVersionID, "error", err)
			continue
		}
		grandchildren := c.CascadeRecursive(ctx, res.EntryID, res.DependentVersionID, versionString, childEntries, maxDepth-1)
		all = append(all, grandchildren...)
	}
	return all
}

func (c *Cascader) versionString(ctx context.Context, versionID string) (string, error) {
	v, err := c.versions.Get(ctx, versionID)
	if err != nil {
		return "", err
	}
	return v.VersionString, nil
}
