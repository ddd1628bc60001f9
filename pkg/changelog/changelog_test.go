// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package changelog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/bdp-ingest/pkg/catalog"
)

func TestHasBreakingChanges(t *testing.T) {
	entries := []Entry{Added("protein", 10, "new proteins")}
	assert.False(t, HasBreakingChanges(entries))

	entries = append(entries, Removed("protein", 2, "removed proteins", true))
	assert.True(t, HasBreakingChanges(entries))
}

func TestSummarizeCounts(t *testing.T) {
	entries := []Entry{
		Added("protein", 10, "new proteins"),
		Removed("protein", 2, "removed proteins", true),
		Modified("protein", 3, "updated annotations", false),
	}
	s := summarize(entries, 100, catalog.TriggerNewRelease)
	assert.Equal(t, 10, s.EntriesAdded)
	assert.Equal(t, 2, s.EntriesRemoved)
	assert.Equal(t, 3, s.EntriesModified)
	assert.Equal(t, 108, s.TotalEntriesAfter)
}

func TestRenderSummaryTextEmpty(t *testing.T) {
	assert.Equal(t, "no changes detected", renderSummaryText(nil, catalog.ChangelogSummary{}))
}

func TestDependencyEntryIsSingleCount(t *testing.T) {
	e := Dependency("taxonomy", "upstream taxonomy bumped to 3.0.0", true)
	assert.Equal(t, catalog.ChangeDependency, e.ChangeType)
	assert.Equal(t, 1, e.Count)
	assert.True(t, e.IsBreaking)
}
