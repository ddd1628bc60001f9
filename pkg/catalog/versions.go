// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// VersionRepository reads and writes versions, version_files, and
// dependencies.
type VersionRepository struct {
	db *DB
}

// NewVersionRepository constructs a VersionRepository.
func NewVersionRepository(db *DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Latest returns the current version for a registry entry (the row
// with is_current = true), or nil if the entry has never been
// published.
func (r *VersionRepository) Latest(ctx context.Context, entryID string) (*Version, error) {
	var v Version
	err := r.db.GetContext(ctx, &v, `
		SELECT id, registry_entry_id, version_string, version_major, version_minor, version_patch,
		       external_version, release_date, size_bytes, download_count, dependency_count,
		       is_current, published_at, created_at
		FROM versions WHERE registry_entry_id = $1 AND is_current = true`, entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "latest version for entry "+entryID)
	}
	return &v, nil
}

// Previous returns the version that was current immediately before
// before, ordered by (version_major, version_minor, version_patch),
// or nil if before is the first version of the entry.
func (r *VersionRepository) Previous(ctx context.Context, entryID string, before Version) (*Version, error) {
	var v Version
	err := r.db.GetContext(ctx, &v, `
		SELECT id, registry_entry_id, version_string, version_major, version_minor, version_patch,
		       external_version, release_date, size_bytes, download_count, dependency_count,
		       is_current, published_at, created_at
		FROM versions
		WHERE registry_entry_id = $1
		  AND (version_major, version_minor, version_patch) < ($2, $3, $4)
		ORDER BY version_major DESC, version_minor DESC, version_patch DESC
		LIMIT 1`, entryID, before.VersionMajor, before.VersionMinor, before.VersionPatch)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "previous version for entry "+entryID)
	}
	return &v, nil
}

// Get returns a version by ID.
func (r *VersionRepository) Get(ctx context.Context, id string) (*Version, error) {
	var v Version
	err := r.db.GetContext(ctx, &v, `
		SELECT id, registry_entry_id, version_string, version_major, version_minor, version_patch,
		       external_version, release_date, size_bytes, download_count, dependency_count,
		       is_current, published_at, created_at
		FROM versions WHERE id = $1`, id)
	if err != nil {
		return nil, translate(err, "version "+id)
	}
	return &v, nil
}

// GetByExternalVersion looks up a version by its upstream external
// identifier, used by discovery's ingested_versions filter.
func (r *VersionRepository) GetByExternalVersion(ctx context.Context, entryID, externalVersion string) (*Version, error) {
	var v Version
	err := r.db.GetContext(ctx, &v, `
		SELECT id, registry_entry_id, version_string, version_major, version_minor, version_patch,
		       external_version, release_date, size_bytes, download_count, dependency_count,
		       is_current, published_at, created_at
		FROM versions WHERE registry_entry_id = $1 AND external_version = $2`, entryID, externalVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "version by external "+externalVersion)
	}
	return &v, nil
}

// ListIngestedExternalVersions returns every external_version already
// recorded for an entry, for discovery's filter_new operation.
func (r *VersionRepository) ListIngestedExternalVersions(ctx context.Context, entryID string) ([]string, error) {
	var out []string
	err := r.db.SelectContext(ctx, &out, `
		SELECT external_version FROM versions
		WHERE registry_entry_id = $1 AND external_version IS NOT NULL`, entryID)
	if err != nil {
		return nil, translate(err, "ingested versions for entry "+entryID)
	}
	return out, nil
}

// NewVersionInput is the data needed to insert a Version row. The
// major/minor/patch triple and version_string are supplied by the
// caller (pkg/semver computes them) so this package stays ignorant of
// the bump rules.
type NewVersionInput struct {
	RegistryEntryID     string
	Major, Minor, Patch int
	ExternalVersion     *string
	ReleaseDate         *sql.NullTime
}

// Create inserts a new version row, demotes any currently-current
// version of the same entry, and marks the new row current. The
// demote-then-insert happens in a single transaction so a reader never
// observes two current versions, or zero, for the same entry.
func (r *VersionRepository) Create(ctx context.Context, in NewVersionInput) (*Version, error) {
	id := newID()
	versionString := fmt.Sprintf("%d.%d.%d", in.Major, in.Minor, in.Patch)

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE versions SET is_current = false
			WHERE registry_entry_id = $1 AND is_current = true`, in.RegistryEntryID); err != nil {
			return err
		}

		var releaseDate interface{}
		if in.ReleaseDate != nil && in.ReleaseDate.Valid {
			releaseDate = in.ReleaseDate.Time
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO versions
			  (id, registry_entry_id, version_string, version_major, version_minor, version_patch,
			   external_version, release_date, is_current, published_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, now())`,
			id, in.RegistryEntryID, versionString, in.Major, in.Minor, in.Patch,
			in.ExternalVersion, releaseDate)
		return err
	})
	if err != nil {
		return nil, translate(err, "create version for entry "+in.RegistryEntryID)
	}
	return r.Get(ctx, id)
}

// UpdateSizeAndCounts records the total byte size and dependency count
// once a version's files/dependencies are known.
func (r *VersionRepository) UpdateSizeAndCounts(ctx context.Context, versionID string, sizeBytes int64, dependencyCount int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE versions SET size_bytes = $2, dependency_count = $3 WHERE id = $1`,
		versionID, sizeBytes, dependencyCount)
	return translate(err, "update size/counts for version "+versionID)
}

// AddFile attaches a stored artifact to a version.
func (r *VersionRepository) AddFile(ctx context.Context, versionID, format, objectKey, checksum string, byteSize int64, compression *string) (*VersionFile, error) {
	id := newID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO version_files (id, version_id, format, object_key, checksum, byte_size, compression)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, versionID, format, objectKey, checksum, byteSize, compression)
	if err != nil {
		return nil, translate(err, "add file to version "+versionID)
	}
	var f VersionFile
	err = r.db.GetContext(ctx, &f, `
		SELECT id, version_id, format, object_key, checksum, byte_size, compression, created_at
		FROM version_files WHERE id = $1`, id)
	return &f, translate(err, "reload version file "+id)
}

// ListFiles returns every stored artifact for a version.
func (r *VersionRepository) ListFiles(ctx context.Context, versionID string) ([]VersionFile, error) {
	var files []VersionFile
	err := r.db.SelectContext(ctx, &files, `
		SELECT id, version_id, format, object_key, checksum, byte_size, compression, created_at
		FROM version_files WHERE version_id = $1 ORDER BY format`, versionID)
	return files, translate(err, "list files for version "+versionID)
}

// AddDependency records that versionID depends on entryID at
// dependsOnVersion. A version has at most one dependency edge per
// entry, so re-adding an existing edge just rewrites its version
// string — the cascade's "copy then rewrite the triggering edge" step
// relies on this.
func (r *VersionRepository) AddDependency(ctx context.Context, versionID, dependsOnEntryID, dependsOnVersion, dependencyType string) error {
	id := newID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dependencies (id, version_id, depends_on_entry_id, depends_on_version, dependency_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (version_id, depends_on_entry_id)
		DO UPDATE SET depends_on_version = EXCLUDED.depends_on_version`,
		id, versionID, dependsOnEntryID, dependsOnVersion, dependencyType)
	return translate(err, "add dependency to version "+versionID)
}

// RecomputeDependencyCount resyncs a version's dependency_count mirror
// with its actual dependency rows.
func (r *VersionRepository) RecomputeDependencyCount(ctx context.Context, versionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE versions
		SET dependency_count = (SELECT count(*) FROM dependencies WHERE version_id = $1)
		WHERE id = $1`, versionID)
	return translate(err, "recompute dependency count for version "+versionID)
}

// ListDependencies returns every dependency recorded for a version.
func (r *VersionRepository) ListDependencies(ctx context.Context, versionID string) ([]Dependency, error) {
	var deps []Dependency
	err := r.db.SelectContext(ctx, &deps, `
		SELECT id, version_id, depends_on_entry_id, depends_on_version, dependency_type, created_at
		FROM dependencies WHERE version_id = $1 ORDER BY depends_on_entry_id`, versionID)
	return deps, translate(err, "list dependencies for version "+versionID)
}

// FindDependents returns every version whose dependency list points at
// entryID — the fan-out pkg/cascade walks on each propagation hop.
// Joining on the latest (is_current) version of the dependent entry
// only, since a superseded version can no longer be re-cascaded.
func (r *VersionRepository) FindDependents(ctx context.Context, entryID string) ([]Version, error) {
	var versions []Version
	err := r.db.SelectContext(ctx, &versions, `
		SELECT DISTINCT v.id, v.registry_entry_id, v.version_string, v.version_major, v.version_minor,
		       v.version_patch, v.external_version, v.release_date, v.size_bytes, v.download_count,
		       v.dependency_count, v.is_current, v.published_at, v.created_at
		FROM versions v
		JOIN dependencies d ON d.version_id = v.id
		WHERE d.depends_on_entry_id = $1 AND v.is_current = true`, entryID)
	return versions, translate(err, "find dependents of entry "+entryID)
}

// CopyDependencies copies every dependency of fromVersionID onto
// toVersionID, skipping the dependency that points at rewriteEntryID
// (the triggering parent, which the caller inserts separately with its
// own new version string). It returns the skipped edge's
// dependency_type so the caller can recreate that edge with its type
// carried over, or "" if the old version had no such edge.
func (r *VersionRepository) CopyDependencies(ctx context.Context, fromVersionID, toVersionID, rewriteEntryID string) (rewriteType string, err error) {
	deps, err := r.ListDependencies(ctx, fromVersionID)
	if err != nil {
		return "", err
	}
	for _, d := range deps {
		if d.DependsOnEntryID == rewriteEntryID {
			rewriteType = d.DependencyType
			continue
		}
		if err := r.AddDependency(ctx, toVersionID, d.DependsOnEntryID, d.DependsOnVersion, d.DependencyType); err != nil {
			return "", err
		}
	}
	return rewriteType, nil
}

// IncrementDownloadCount bumps a version's download counter, used when
// a consumer fetches a version's artifact through the object store.
func (r *VersionRepository) IncrementDownloadCount(ctx context.Context, versionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE versions SET download_count = download_count + 1 WHERE id = $1`, versionID)
	return translate(err, "increment download count for version "+versionID)
}
