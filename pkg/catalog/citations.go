// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// CitationRepository reads and writes citation_policies,
// policy_required_citations, and citations.
type CitationRepository struct {
	db *DB
}

// NewCitationRepository constructs a CitationRepository.
func NewCitationRepository(db *DB) *CitationRepository {
	return &CitationRepository{db: db}
}

// GetPolicy returns the citation policy for an organization, or nil if
// none has been configured.
func (r *CitationRepository) GetPolicy(ctx context.Context, orgID string) (*CitationPolicy, error) {
	var p CitationPolicy
	err := r.db.GetContext(ctx, &p, `
		SELECT id, organization_id, policy_url, license_reference, requires_version_citation,
		       requires_accession_citation, instructions, created_at, updated_at
		FROM citation_policies WHERE organization_id = $1`, orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "citation policy for org "+orgID)
	}
	return &p, nil
}

// UpsertPolicy creates or updates an organization's citation policy.
// This is a transactional idempotent upsert: calling it twice with the
// same field values produces the same row, not a duplicate.
func (r *CitationRepository) UpsertPolicy(ctx context.Context, orgID string, policyURL, licenseReference, instructions *string, requiresVersion, requiresAccession bool) (*CitationPolicy, error) {
	var id string
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		existing, err := r.GetPolicy(ctx, orgID)
		if err != nil {
			return err
		}
		if existing == nil {
			id = newID()
			_, err := tx.ExecContext(ctx, `
				INSERT INTO citation_policies
				  (id, organization_id, policy_url, license_reference, requires_version_citation,
				   requires_accession_citation, instructions)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				id, orgID, policyURL, licenseReference, requiresVersion, requiresAccession, instructions)
			return err
		}
		id = existing.ID
		_, err = tx.ExecContext(ctx, `
			UPDATE citation_policies
			SET policy_url = $2, license_reference = $3, requires_version_citation = $4,
			    requires_accession_citation = $5, instructions = $6, updated_at = now()
			WHERE id = $1`, id, policyURL, licenseReference, requiresVersion, requiresAccession, instructions)
		return err
	})
	if err != nil {
		return nil, translate(err, "upsert citation policy for org "+orgID)
	}
	return r.getPolicyByID(ctx, id)
}

func (r *CitationRepository) getPolicyByID(ctx context.Context, id string) (*CitationPolicy, error) {
	var p CitationPolicy
	err := r.db.GetContext(ctx, &p, `
		SELECT id, organization_id, policy_url, license_reference, requires_version_citation,
		       requires_accession_citation, instructions, created_at, updated_at
		FROM citation_policies WHERE id = $1`, id)
	return &p, translate(err, "reload citation policy "+id)
}

// GetCitationByDOI looks up an existing citation by DOI, the key used
// to decide whether add_version_citation needs a fresh insert.
func (r *CitationRepository) GetCitationByDOI(ctx context.Context, versionID, doi string) (*Citation, error) {
	var c Citation
	err := r.db.GetContext(ctx, &c, `
		SELECT id, version_id, doi, pubmed_id, title, journal, date, volume, pages, authors, bibtex, created_at
		FROM citations WHERE version_id = $1 AND doi = $2`, versionID, doi)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &c, translate(err, "citation by doi "+doi)
}

// AddCitation inserts a citation for a version. Idempotent: if a
// citation with the same (version_id, doi) already exists and its
// content is unchanged, the existing row is returned without writing
// a duplicate.
func (r *CitationRepository) AddCitation(ctx context.Context, c Citation) (*Citation, error) {
	if c.DOI != nil {
		existing, err := r.GetCitationByDOI(ctx, c.VersionID, *c.DOI)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Title == c.Title {
			return existing, nil
		}
	}

	id := newID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO citations (id, version_id, doi, pubmed_id, title, journal, date, volume, pages, authors, bibtex)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, c.VersionID, c.DOI, c.PubMedID, c.Title, c.Journal, c.Date, c.Volume, c.Pages, c.Authors, c.BibTeX)
	if err != nil {
		return nil, translate(err, "add citation for version "+c.VersionID)
	}
	var out Citation
	err = r.db.GetContext(ctx, &out, `
		SELECT id, version_id, doi, pubmed_id, title, journal, date, volume, pages, authors, bibtex, created_at
		FROM citations WHERE id = $1`, id)
	return &out, translate(err, "reload citation "+id)
}

// ListCitations returns every citation attached to a version.
func (r *CitationRepository) ListCitations(ctx context.Context, versionID string) ([]Citation, error) {
	var out []Citation
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, version_id, doi, pubmed_id, title, journal, date, volume, pages, authors, bibtex, created_at
		FROM citations WHERE version_id = $1 ORDER BY created_at`, versionID)
	return out, translate(err, "list citations for version "+versionID)
}

// LinkRequired attaches a citation to a policy at displayOrder with
// the given requirement strength. A policy's required list is keyed by
// (policy, display_order): re-linking the same position replaces
// whatever citation previously sat there, so re-running a policy setup
// with a revised list converges instead of accumulating stale rows.
func (r *CitationRepository) LinkRequired(ctx context.Context, policyID, citationID string, displayOrder int, requirement RequirementType) error {
	id := newID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO policy_required_citations (id, policy_id, citation_id, display_order, requirement_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (policy_id, display_order) DO UPDATE
		  SET citation_id = EXCLUDED.citation_id, requirement_type = EXCLUDED.requirement_type`,
		id, policyID, citationID, displayOrder, requirement)
	return translate(err, "link required citation")
}

// ListRequired returns every citation required by a policy, ordered
// for display.
func (r *CitationRepository) ListRequired(ctx context.Context, policyID string) ([]RequiredCitation, error) {
	var out []RequiredCitation
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, policy_id, citation_id, display_order, requirement_type
		FROM policy_required_citations WHERE policy_id = $1 ORDER BY display_order`, policyID)
	return out, translate(err, "list required citations for policy "+policyID)
}
