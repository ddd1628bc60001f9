// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package semver

import (
	"context"
	"database/sql"
	"time"

	"github.com/kraklabs/bdp-ingest/pkg/catalog"
)

// Service wires the pure version math in this package to the catalog:
// it is the thing pkg/coordinator and pkg/cascade call to assign a new
// internal version to a registry entry.
type Service struct {
	versions *catalog.VersionRepository
}

// NewService constructs a Service over a catalog.VersionRepository.
func NewService(versions *catalog.VersionRepository) *Service {
	return &Service{versions: versions}
}

// LatestVersion returns the parsed current Version for entryID, or the
// zero Version if the entry has never been published.
func (s *Service) LatestVersion(ctx context.Context, entryID string) (Version, error) {
	row, err := s.versions.Latest(ctx, entryID)
	if err != nil {
		return Version{}, err
	}
	if row == nil {
		return Version{}, nil
	}
	return Version{Major: row.VersionMajor, Minor: row.VersionMinor, Patch: row.VersionPatch}, nil
}

// LatestVersionID returns the catalog row ID of entryID's current
// version, or "" if none exists.
func (s *Service) LatestVersionID(ctx context.Context, entryID string) (string, error) {
	row, err := s.versions.Latest(ctx, entryID)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", nil
	}
	return row.ID, nil
}

// PreviousVersionID returns the catalog row ID of the version that was
// current immediately before the one at before, or "" if before was
// the first version.
func (s *Service) PreviousVersionID(ctx context.Context, entryID string, before Version) (string, error) {
	row, err := s.versions.Previous(ctx, entryID, catalog.Version{VersionMajor: before.Major, VersionMinor: before.Minor, VersionPatch: before.Patch})
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", nil
	}
	return row.ID, nil
}

// CreateVersion bumps entryID's current version by bump and persists
// the result, recording externalVersion and releaseDate for
// provenance. If the entry has no current version yet, the new
// version is 1.0.0 (the pure Bump function is never called on an
// empty Version — a first release is not a "bump").
func (s *Service) CreateVersion(ctx context.Context, entryID string, bump BumpType, externalVersion string, releaseDate *time.Time) (*catalog.Version, error) {
	current, err := s.LatestVersion(ctx, entryID)
	if err != nil {
		return nil, err
	}

	var next Version
	if current == (Version{}) {
		next = Version{Major: 1, Minor: 0, Patch: 0}
	} else {
		next = Bump(current, bump)
	}

	in := catalog.NewVersionInput{
		RegistryEntryID: entryID,
		Major:           next.Major,
		Minor:           next.Minor,
		Patch:           next.Patch,
	}
	if externalVersion != "" {
		in.ExternalVersion = &externalVersion
	}
	if releaseDate != nil {
		in.ReleaseDate = &sql.NullTime{Time: *releaseDate, Valid: true}
	}

	return s.versions.Create(ctx, in)
}
