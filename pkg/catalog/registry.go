// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package catalog

import (
	"context"

	"github.com/kraklabs/bdp-ingest/internal/ingesterr"
)

// RegistryRepository reads and writes registry_entries and the
// data_sources facet table.
type RegistryRepository struct {
	db *DB
}

// NewRegistryRepository constructs a RegistryRepository.
func NewRegistryRepository(db *DB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

// GetEntryBySlug looks up a registry entry by organization + slug,
// which is unique per organization.
func (r *RegistryRepository) GetEntryBySlug(ctx context.Context, orgID, slug string) (*RegistryEntry, error) {
	var e RegistryEntry
	err := r.db.GetContext(ctx, &e, `
		SELECT id, organization_id, slug, name, entry_type, created_at, updated_at
		FROM registry_entries WHERE organization_id = $1 AND slug = $2`, orgID, slug)
	if err != nil {
		return nil, translate(err, "registry entry "+slug)
	}
	return &e, nil
}

// GetEntry looks up a registry entry by ID.
func (r *RegistryRepository) GetEntry(ctx context.Context, id string) (*RegistryEntry, error) {
	var e RegistryEntry
	err := r.db.GetContext(ctx, &e, `
		SELECT id, organization_id, slug, name, entry_type, created_at, updated_at
		FROM registry_entries WHERE id = $1`, id)
	if err != nil {
		return nil, translate(err, "registry entry "+id)
	}
	return &e, nil
}

// CreateEntry inserts a new registry entry. Duplicate (org, slug)
// pairs surface as ingesterr.DuplicateSlug rather than a raw
// constraint-violation error.
func (r *RegistryRepository) CreateEntry(ctx context.Context, orgID, slug, name string, entryType EntryType) (*RegistryEntry, error) {
	if existing, err := r.GetEntryBySlug(ctx, orgID, slug); err == nil {
		return existing, ingesterr.DuplicateSlugf("registry entry %s already exists", slug)
	}

	id := newID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO registry_entries (id, organization_id, slug, name, entry_type)
		VALUES ($1, $2, $3, $4, $5)`, id, orgID, slug, name, entryType)
	if err != nil {
		return nil, translate(err, "create registry entry "+slug)
	}
	return r.GetEntry(ctx, id)
}

// GetDataSource returns the data_sources facet row for a registry
// entry.
func (r *RegistryRepository) GetDataSource(ctx context.Context, entryID string) (*DataSource, error) {
	var ds DataSource
	err := r.db.GetContext(ctx, &ds, `
		SELECT id, registry_entry_id, source_type, external_identifier, organism_id, created_at, updated_at
		FROM data_sources WHERE registry_entry_id = $1`, entryID)
	if err != nil {
		return nil, translate(err, "data source for entry "+entryID)
	}
	return &ds, nil
}

// CreateDataSource attaches a data_sources facet to an existing
// registry entry.
func (r *RegistryRepository) CreateDataSource(ctx context.Context, entryID string, sourceType SourceType, externalIdentifier, organismID *string) (*DataSource, error) {
	id := newID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO data_sources (id, registry_entry_id, source_type, external_identifier, organism_id)
		VALUES ($1, $2, $3, $4, $5)`, id, entryID, sourceType, externalIdentifier, organismID)
	if err != nil {
		return nil, translate(err, "create data source for entry "+entryID)
	}
	return r.GetDataSource(ctx, entryID)
}

// ListDataSourceEntries returns every registry entry of type
// data_source, for discovery/orchestrator fan-out across all
// registered sources.
func (r *RegistryRepository) ListDataSourceEntries(ctx context.Context) ([]RegistryEntry, error) {
	var entries []RegistryEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, organization_id, slug, name, entry_type, created_at, updated_at
		FROM registry_entries WHERE entry_type = $1 ORDER BY slug`, EntryTypeDataSource)
	if err != nil {
		return nil, translate(err, "list data source entries")
	}
	return entries, nil
}
