// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package semver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLenient(t *testing.T) {
	cases := []struct {
		in   string
		want Version
	}{
		{"1.2.3", Version{1, 2, 3}},
		{"1.2", Version{1, 2, 0}},
		{"1", Version{1, 0, 0}},
		{"v2.5.0", Version{2, 5, 0}},
		{"not-a-version", Version{1, 0, 0}},
		{"", Version{1, 0, 0}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Parse(c.in), "parsing %q", c.in)
	}
}

func TestBumpMajor(t *testing.T) {
	v := Version{Major: 1, Minor: 4, Patch: 9}
	got := Bump(v, Major)
	assert.Equal(t, Version{Major: 2, Minor: 0, Patch: 0}, got)
}

func TestBumpMinor(t *testing.T) {
	v := Version{Major: 1, Minor: 4, Patch: 9}
	got := Bump(v, Minor)
	assert.Equal(t, Version{Major: 1, Minor: 5, Patch: 0}, got)
}

func TestBumpTwiceIsNotCollapsed(t *testing.T) {
	v := Version{Major: 1}
	once := Bump(v, Minor)
	twice := Bump(once, Minor)
	assert.Equal(t, Version{Major: 1, Minor: 2, Patch: 0}, twice)
	assert.NotEqual(t, once, twice)
}

func TestCompareUsesIntegerColumns(t *testing.T) {
	a := Version{Major: 2, Minor: 0, Patch: 0}
	b := Version{Major: 10, Minor: 0, Patch: 0}
	assert.True(t, a.Less(b), "2.0.0 must sort before 10.0.0 numerically")
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestStringRoundTrip(t *testing.T) {
	assert.Equal(t, "1.2.3", Version{1, 2, 3}.String())
}

func TestIsWellFormedSemver(t *testing.T) {
	assert.True(t, IsWellFormedSemver("2.4.1"))
	assert.False(t, IsWellFormedSemver("98.0"))
	assert.False(t, IsWellFormedSemver("2025_01"))
}
