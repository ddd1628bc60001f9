// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package discovery

import (
	"regexp"
	"strconv"
	"time"
)

// uniProtReleasePattern matches UniProt's "YYYY_MM" release naming,
// e.g. "2026_01".
var uniProtReleasePattern = regexp.MustCompile(`^(\d{4})_(\d{2})$`)

// ParseUniProtRelease parses a UniProt-style "YYYY_MM" external
// version into an Ordering (year*100+month, sorting correctly without
// needing the release date) and an approximate release date (the
// first of that month, since UniProt's release notes give only
// year/month granularity).
func ParseUniProtRelease(externalVersion string) (ordering int64, releaseDate *time.Time, ok bool) {
	m := uniProtReleasePattern.FindStringSubmatch(externalVersion)
	if m == nil {
		return 0, nil, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	ordering = int64(year)*100 + int64(month)
	d := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return ordering, &d, true
}

// numericReleasePattern matches an "NN" or "NN.N" release number, as
// InterPro ("98.0") and numbered GenBank releases ("259") publish.
var numericReleasePattern = regexp.MustCompile(`^(\d+)(?:\.(\d+))?$`)

// ParseNumericRelease parses InterPro/GenBank-style numeric release
// identifiers into an Ordering that compares as the (major, minor)
// integer pair, so "98.10" sorts above "98.2" where a lexical compare
// would invert them. No release date is derivable from the number
// alone.
func ParseNumericRelease(externalVersion string) (ordering int64, ok bool) {
	m := numericReleasePattern.FindStringSubmatch(externalVersion)
	if m == nil {
		return 0, false
	}
	major, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	var minor int64
	if m[2] != "" {
		minor, err = strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return 0, false
		}
	}
	return major*10000 + minor, true
}

// dateReleasePattern matches an ISO-ish "YYYY-MM-DD" or "YYYYMMDD"
// date-stamped release directory name, as used by several NCBI
// mirrors and Gene Ontology's dated OBO snapshots.
var dateReleasePattern = regexp.MustCompile(`^(\d{4})-?(\d{2})-?(\d{2})$`)

// ParseDateRelease parses a date-stamped external version into an
// Ordering (YYYYMMDD as an integer, which sorts correctly) and the
// exact release date.
func ParseDateRelease(externalVersion string) (ordering int64, releaseDate *time.Time, ok bool) {
	m := dateReleasePattern.FindStringSubmatch(externalVersion)
	if m == nil {
		return 0, nil, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	ordering = int64(year)*10000 + int64(month)*100 + int64(day)
	return ordering, &d, true
}
