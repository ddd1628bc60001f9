// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package catalog

import (
	"context"

	"github.com/kraklabs/bdp-ingest/internal/ingesterr"
)

// OrganizationRepository reads and writes the organizations table.
type OrganizationRepository struct {
	db *DB
}

// NewOrganizationRepository constructs an OrganizationRepository.
func NewOrganizationRepository(db *DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// GetBySlug returns the organization with the given slug, or a
// NotFound ingesterr if none exists.
func (r *OrganizationRepository) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	var org Organization
	err := r.db.GetContext(ctx, &org, `
		SELECT id, slug, display_name, is_system, website, description, created_at, updated_at
		FROM organizations WHERE slug = $1`, slug)
	if err != nil {
		return nil, translate(err, "organization "+slug)
	}
	return &org, nil
}

// GetOrCreate returns the organization with the given slug, creating
// it with displayName if it does not already exist. Sources are
// expected to pre-register their publishing organization (uniprot,
// ncbi, ...) but ad hoc ingestion runs should never hard-fail just
// because bootstrap data is missing.
func (r *OrganizationRepository) GetOrCreate(ctx context.Context, slug, displayName string) (*Organization, error) {
	org, err := r.GetBySlug(ctx, slug)
	if err == nil {
		return org, nil
	}
	if !ingesterr.Is(err, ingesterr.NotFound) {
		return nil, err
	}

	id := newID()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, slug, display_name, is_system)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (slug) DO NOTHING`, id, slug, displayName)
	if err != nil {
		return nil, translate(err, "create organization "+slug)
	}
	return r.GetBySlug(ctx, slug)
}
