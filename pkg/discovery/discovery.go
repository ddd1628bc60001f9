// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package discovery finds which upstream releases of a data source
// exist and decides which of them still need to be ingested.
package discovery

import (
	"context"
	"sort"
	"time"
)

// Version is one upstream release a Discoverer found, identified by
// its external (upstream) version string.
type Version struct {
	ExternalVersion string
	ReleaseDate     *time.Time
	ReleaseURL      string
	// Ordering is a monotonically increasing key the source's format
	// rule computes (e.g. parsed year*100+month for UniProt's
	// "2026_01" scheme, or a plain integer for InterPro/GenBank's
	// numeric releases) so DiscoveredVersions can be sorted even when
	// ExternalVersion strings don't compare lexically in release
	// order.
	Ordering int64
}

// Discoverer lists every release a source currently publishes.
type Discoverer interface {
	DiscoverAll(ctx context.Context) ([]Version, error)
}

// DiscoveredVersions is a sortable collection of Version with the
// helper operations pkg/orchestrator and pkg/coordinator need.
type DiscoveredVersions []Version

// sortByOrdering returns a copy sorted oldest-to-newest.
func (vs DiscoveredVersions) sortByOrdering() DiscoveredVersions {
	out := make(DiscoveredVersions, len(vs))
	copy(out, vs)
	sort.Slice(out, func(i, j int) bool { return out[i].Ordering < out[j].Ordering })
	return out
}

// GetNewest returns the release with the highest Ordering, or nil if
// vs is empty.
func (vs DiscoveredVersions) GetNewest() *Version {
	if len(vs) == 0 {
		return nil
	}
	sorted := vs.sortByOrdering()
	v := sorted[len(sorted)-1]
	return &v
}

// GetOldest returns the release with the lowest Ordering, or nil if vs
// is empty.
func (vs DiscoveredVersions) GetOldest() *Version {
	if len(vs) == 0 {
		return nil
	}
	v := vs.sortByOrdering()[0]
	return &v
}

// FilterByDateRange returns every release whose ReleaseDate falls in
// [start, end]. A release with no ReleaseDate is excluded, since a
// date-bounded historical run cannot place it.
func (vs DiscoveredVersions) FilterByDateRange(start, end time.Time) DiscoveredVersions {
	var out DiscoveredVersions
	for _, v := range vs {
		if v.ReleaseDate == nil {
			continue
		}
		if v.ReleaseDate.Before(start) || v.ReleaseDate.After(end) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// FilterNew removes every release whose ExternalVersion already
// appears in ingested, returning only releases that still need a job
// created for them.
func (vs DiscoveredVersions) FilterNew(ingested []string) DiscoveredVersions {
	seen := make(map[string]bool, len(ingested))
	for _, v := range ingested {
		seen[v] = true
	}
	var out DiscoveredVersions
	for _, v := range vs {
		if !seen[v.ExternalVersion] {
			out = append(out, v)
		}
	}
	return out
}

// CheckForNewer reports whether any discovered release has a higher
// Ordering than currentExternalOrdering — the cheap poll
// pkg/orchestrator runs before kicking off a full discovery +
// ingestion pass.
func (vs DiscoveredVersions) CheckForNewer(currentOrdering int64) bool {
	newest := vs.GetNewest()
	return newest != nil && newest.Ordering > currentOrdering
}

// IngestedVersions abstracts the catalog lookup FilterNew needs,
// implemented by pkg/catalog's VersionRepository.
type IngestedVersions interface {
	ListIngestedExternalVersions(ctx context.Context, entryID string) ([]string, error)
}

// DiscoverNew runs a Discoverer and returns only the releases not yet
// present in the catalog for entryID.
func DiscoverNew(ctx context.Context, d Discoverer, ingested IngestedVersions, entryID string) (DiscoveredVersions, error) {
	all, err := d.DiscoverAll(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := ingested.ListIngestedExternalVersions(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return DiscoveredVersions(all).FilterNew(existing), nil
}

// IsMigratedCurrentRelease reports whether a discovered release is the
// last ingested one reappearing in a new location. Some upstreams move
// their "current" symbol onto a dated directory between runs: the
// bytes are unchanged, only the path moved, so a discovered version
// equal to the last ingested external version whose prior ingestion
// was flagged current must not be re-ingested.
func IsMigratedCurrentRelease(discoveredExternal, lastIngestedExternal string, lastWasCurrent bool) bool {
	return lastWasCurrent && discoveredExternal == lastIngestedExternal
}
