// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package semver implements the internal versioning scheme assigned to
// catalog entries: a lenient major.minor.patch parse, pure major/minor
// bumps (there is no patch-bump operation in this system; every new
// internal version is either a breaking or non-breaking release of a
// data source), and integer-column ordering so the catalog never has
// to fall back to lexical comparison of the human-readable string.
package semver

import (
	"fmt"
	"strconv"
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
)

// Version is a parsed major.minor.patch triple.
type Version struct {
	Major int
	Minor int
	Patch int
}

// BumpType selects which component a bump increments.
type BumpType string

const (
	// Major bumps produce (M+1, 0, 0).
	Major BumpType = "major"
	// Minor bumps produce (M, m+1, 0).
	Minor BumpType = "minor"
)

// Parse lenently parses a version string of the form "M", "M.m", or
// "M.m.p". Absent components default to 0. Unparseable input yields
// (1, 0, 0) rather than an error, matching the catalog's tolerance for
// malformed upstream version strings that still need *some* internal
// version assigned.
func Parse(s string) Version {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "v")
	parts := strings.SplitN(s, ".", 3)

	v := Version{Major: 1}
	nums := make([]int, 0, 3)
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			// Any unparseable component makes the whole string
			// unparseable: fall back to the default (1, 0, 0).
			return Version{Major: 1, Minor: 0, Patch: 0}
		}
		nums = append(nums, n)
	}
	if len(nums) == 0 {
		return Version{Major: 1}
	}
	v.Major = nums[0]
	if len(nums) > 1 {
		v.Minor = nums[1]
	}
	if len(nums) > 2 {
		v.Patch = nums[2]
	}
	return v
}

// String renders "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 comparing v to other on (Major, Minor,
// Patch), matching the integer-column ordering the catalog uses —
// never the lexical string.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return cmp(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return cmp(v.Minor, other.Minor)
	}
	return cmp(v.Patch, other.Patch)
}

// Less reports whether v sorts strictly before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

func cmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Bump applies a pure bump to v and returns the result. Bumps never
// mutate v and are not idempotent-collapsing: bumping twice always
// produces two increments, never a single no-op.
func Bump(v Version, bump BumpType) Version {
	switch bump {
	case Major:
		return Version{Major: v.Major + 1, Minor: 0, Patch: 0}
	case Minor:
		return Version{Major: v.Major, Minor: v.Minor + 1, Patch: 0}
	default:
		return v
	}
}

// IsWellFormedSemver reports whether s parses as a strict 3-component
// semantic version per the SemVer 2.0 grammar. This is used only to
// decide whether an upstream external_version string (as opposed to
// the internal version we assign) is itself already valid semver
// worth surfacing verbatim in a dependency's external_version field,
// e.g. InterPro-style "98.0" releases do not qualify but a source that
// publishes "2.4.1" does.
func IsWellFormedSemver(s string) bool {
	_, err := mmsemver.NewVersion(s)
	return err == nil
}
