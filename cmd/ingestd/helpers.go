// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"time"

	"github.com/kraklabs/bdp-ingest/pkg/catalog"
	"github.com/kraklabs/bdp-ingest/pkg/discovery"
)

// dateLayout is the YYYY-MM-DD form every date-valued Source config
// field uses.
const dateLayout = "2006-01-02"

// parseDateRange parses a historical run's [start, end) config fields.
// A malformed or empty start defaults to the Unix epoch; an empty end
// leaves the upper bound open (orchestrator.RunHistorical treats a nil
// End as unbounded).
func parseDateRange(start, end string) (time.Time, *time.Time) {
	startTime, err := time.Parse(dateLayout, start)
	if err != nil {
		startTime = time.Unix(0, 0).UTC()
	}
	if end == "" {
		return startTime, nil
	}
	endTime, err := time.Parse(dateLayout, end)
	if err != nil {
		return startTime, nil
	}
	return startTime, &endTime
}

// parseStartFrom parses the start_from_date config field into the
// release-ordering terms RunStartFrom compares against: a numeric
// year*10000+month*100+day ordering and the matching date, so
// "resume from this known release" works the same way regardless of
// which source-specific format produced the cutoff.
func parseStartFrom(date string) (int64, *time.Time) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return 0, nil
	}
	ordering := int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
	return ordering, &t
}

// discoveryCutoff builds the discovery.Version RunStartFrom compares
// every discovered release's Ordering against.
func discoveryCutoff(ordering int64, releaseDate *time.Time) discovery.Version {
	return discovery.Version{Ordering: ordering, ReleaseDate: releaseDate}
}

// currentOrdering re-derives the Ordering of an entry's current
// catalog version by re-parsing its stored external_version through
// the same FormatParser discovery uses, so RunLatest's "is there
// anything newer" check compares apples to apples even though the
// catalog itself only stores major.minor.patch, not Ordering.
func currentOrdering(current *catalog.Version, format discovery.FormatParser) int64 {
	if current == nil || current.ExternalVersion == nil {
		return 0
	}
	v, ok := format(*current.ExternalVersion)
	if !ok {
		return 0
	}
	return v.Ordering
}
