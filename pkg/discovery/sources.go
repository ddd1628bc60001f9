// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package discovery

import (
	"context"
	"fmt"
	"strings"
)

// FormatParser turns one directory/link name from an upstream listing
// into a Version, or reports ok=false if the name doesn't match that
// source's release naming convention (README, latest symlinks, and
// other non-release entries are skipped this way).
type FormatParser func(name string) (Version, bool)

// UniProtFormat wraps ParseUniProtRelease as a FormatParser, building
// the ReleaseURL from baseURL + the matched directory name.
func UniProtFormat(baseURL string) FormatParser {
	return func(name string) (Version, bool) {
		ordering, releaseDate, ok := ParseUniProtRelease(strings.TrimSuffix(name, "/"))
		if !ok {
			return Version{}, false
		}
		return Version{
			ExternalVersion: strings.TrimSuffix(name, "/"),
			ReleaseDate:     releaseDate,
			ReleaseURL:      joinURL(baseURL, name),
			Ordering:        ordering,
		}, true
	}
}

// NumericReleaseFormat wraps ParseNumericRelease as a FormatParser, for
// InterPro and numbered GenBank/RefSeq releases.
func NumericReleaseFormat(baseURL string) FormatParser {
	return func(name string) (Version, bool) {
		trimmed := strings.TrimSuffix(name, "/")
		ordering, ok := ParseNumericRelease(trimmed)
		if !ok {
			return Version{}, false
		}
		return Version{
			ExternalVersion: trimmed,
			ReleaseURL:      joinURL(baseURL, name),
			Ordering:        ordering,
		}, true
	}
}

// DateReleaseFormat wraps ParseDateRelease as a FormatParser, for
// Gene Ontology and NCBI Taxonomy's dated snapshot directories.
func DateReleaseFormat(baseURL string) FormatParser {
	return func(name string) (Version, bool) {
		trimmed := strings.TrimSuffix(name, "/")
		ordering, releaseDate, ok := ParseDateRelease(trimmed)
		if !ok {
			return Version{}, false
		}
		return Version{
			ExternalVersion: trimmed,
			ReleaseDate:     releaseDate,
			ReleaseURL:      joinURL(baseURL, name),
			Ordering:        ordering,
		}, true
	}
}

func joinURL(base, name string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(name, "/")
}

// DirLister abstracts the single operation a directory-listing
// discoverer needs, implemented by both transport.FTPClient (via
// ListDirs) and transport.HTTPClient (via ListDirectoryIndex) so one
// discoverer type serves both transports.
type DirLister interface {
	Names(ctx context.Context) ([]string, error)
}

// DirectoryDiscoverer lists an upstream release directory and parses
// every entry with format, skipping anything format doesn't recognize
// as a release. This is the shape every concrete source discoverer
// (UniProt over FTP, InterPro over HTTPS, ...) reduces to once its
// transport-specific listing call is wrapped as a DirLister.
type DirectoryDiscoverer struct {
	lister DirLister
	format FormatParser
}

// NewDirectoryDiscoverer builds a Discoverer from a DirLister and the
// FormatParser matching the source's release naming convention.
func NewDirectoryDiscoverer(lister DirLister, format FormatParser) *DirectoryDiscoverer {
	return &DirectoryDiscoverer{lister: lister, format: format}
}

var _ Discoverer = (*DirectoryDiscoverer)(nil)

// DiscoverAll implements Discoverer.
func (d *DirectoryDiscoverer) DiscoverAll(ctx context.Context) ([]Version, error) {
	names, err := d.lister.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	var out []Version
	for _, name := range names {
		v, ok := d.format(name)
		if !ok {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
