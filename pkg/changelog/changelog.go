// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package changelog builds and persists the structured diff attached
// to every new catalog version.
package changelog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kraklabs/bdp-ingest/internal/ingesterr"
	"github.com/kraklabs/bdp-ingest/pkg/catalog"
)

// Entry is a single structured diff line. It mirrors
// catalog.ChangelogEntry so callers outside pkg/catalog never need to
// import that package just to build one.
//
// Category is free text, but each source sticks to a small fixed
// vocabulary ("proteins", "terms", "organisms", "dependencies") so
// downstream consumers can group entries across versions.
type Entry = catalog.ChangelogEntry

// Added constructs an "added" Entry.
func Added(category string, count int, description string) Entry {
	return catalog.AddedEntry(category, count, description)
}

// Removed constructs a "removed" Entry.
func Removed(category string, count int, description string, isBreaking bool) Entry {
	return catalog.RemovedEntry(category, count, description, isBreaking)
}

// Modified constructs a "modified" Entry.
func Modified(category string, count int, description string, isBreaking bool) Entry {
	return catalog.ModifiedEntry(category, count, description, isBreaking)
}

// Dependency constructs a "dependency" Entry — the single-entry
// changelog a cascaded version gets.
func Dependency(category string, description string, isBreaking bool) Entry {
	return catalog.DependencyEntry(category, description, isBreaking)
}

// HasBreakingChanges reports whether any entry is marked breaking —
// the signal pkg/cascade uses to decide between a major and minor
// bump.
func HasBreakingChanges(entries []Entry) bool {
	return catalog.HasBreakingChanges(entries)
}

// Store persists changelogs via pkg/catalog.
type Store struct {
	repo *catalog.ChangelogRepository
}

// NewStore constructs a Store.
func NewStore(repo *catalog.ChangelogRepository) *Store {
	return &Store{repo: repo}
}

// Save builds the aggregate Summary from entries and persists the
// changelog for versionID.
func (s *Store) Save(ctx context.Context, versionID string, bump catalog.BumpType, triggeredBy catalog.TriggerReason, triggeredByVersionID *string, entries []Entry, entriesBefore int) (*catalog.VersionChangelog, error) {
	summary := summarize(entries, entriesBefore, triggeredBy)

	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal changelog entries: %w", err)
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("marshal changelog summary: %w", err)
	}

	return s.repo.Save(ctx, versionID, bump, triggeredBy, triggeredByVersionID,
		entriesJSON, summaryJSON, renderSummaryText(entries, summary))
}

func summarize(entries []Entry, entriesBefore int, triggeredBy catalog.TriggerReason) catalog.ChangelogSummary {
	s := catalog.ChangelogSummary{TotalEntriesBefore: entriesBefore, TriggeredBy: triggeredBy}
	s.TotalEntriesAfter = entriesBefore
	for _, e := range entries {
		switch e.ChangeType {
		case catalog.ChangeAdded:
			s.EntriesAdded += e.Count
			s.TotalEntriesAfter += e.Count
		case catalog.ChangeRemoved:
			s.EntriesRemoved += e.Count
			s.TotalEntriesAfter -= e.Count
		case catalog.ChangeModified:
			s.EntriesModified += e.Count
		}
	}
	return s
}

func renderSummaryText(entries []Entry, summary catalog.ChangelogSummary) string {
	if len(entries) == 0 {
		return "no changes detected"
	}
	return fmt.Sprintf("%d added, %d removed, %d modified (%d -> %d total)",
		summary.EntriesAdded, summary.EntriesRemoved, summary.EntriesModified,
		summary.TotalEntriesBefore, summary.TotalEntriesAfter)
}

// Get returns the changelog attached to a version.
func (s *Store) Get(ctx context.Context, versionID string) (*catalog.VersionChangelog, error) {
	return s.repo.GetForVersion(ctx, versionID)
}

// DecodeEntries decodes a stored changelog's entries JSON back into
// typed entries. A row whose JSON no longer unmarshals is a Parse
// error, distinguishable from a missing changelog.
func DecodeEntries(cl *catalog.VersionChangelog) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(cl.Entries, &entries); err != nil {
		return nil, ingesterr.Parsef(err, "decode entries of changelog %s", cl.ID)
	}
	return entries, nil
}

// DecodeSummary decodes a stored changelog's summary JSON.
func DecodeSummary(cl *catalog.VersionChangelog) (catalog.ChangelogSummary, error) {
	var summary catalog.ChangelogSummary
	if err := json.Unmarshal(cl.Summary, &summary); err != nil {
		return catalog.ChangelogSummary{}, ingesterr.Parsef(err, "decode summary of changelog %s", cl.ID)
	}
	return summary, nil
}

// ListForEntry returns every changelog for a registry entry's
// versions, newest first.
func (s *Store) ListForEntry(ctx context.Context, entryID string) ([]catalog.VersionChangelog, error) {
	return s.repo.ListForEntry(ctx, entryID)
}

// FindCascaded returns every changelog a single upstream bump
// produced downstream.
func (s *Store) FindCascaded(ctx context.Context, triggerVersionID string) ([]catalog.VersionChangelog, error) {
	return s.repo.FindCascaded(ctx, triggerVersionID)
}

// Delete removes a changelog by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// CountByTrigger returns how many changelogs exist per trigger reason.
func (s *Store) CountByTrigger(ctx context.Context) (map[catalog.TriggerReason]int, error) {
	return s.repo.CountByTrigger(ctx)
}
