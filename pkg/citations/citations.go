// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package citations manages the citation and license policy attached
// to each organization, and the citations attached to each version.
package citations

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/kraklabs/bdp-ingest/pkg/catalog"
)

// Service wires citation operations to the catalog.
type Service struct {
	repo *catalog.CitationRepository
}

// NewService constructs a Service.
func NewService(repo *catalog.CitationRepository) *Service {
	return &Service{repo: repo}
}

// PolicyInput is the data needed to set up an organization's citation
// policy, including its ordered required-citation list.
type PolicyInput struct {
	PolicyURL                 string
	LicenseReference          string
	Instructions              string
	RequiresVersionCitation   bool
	RequiresAccessionCitation bool
	Required                  []RequiredInput
}

// RequiredInput is one required/recommended/conditional citation in a
// policy's ordered list. VersionID anchors the citation row itself
// (citations are unique per (version, doi)).
type RequiredInput struct {
	VersionID   string
	Citation    CitationInput
	Requirement catalog.RequirementType
}

// SetupCitationPolicy creates or updates an organization's citation
// policy and its required-citation list. Every step is an idempotent
// upsert, so calling it twice with the same input converges on the
// same rows — a re-run only refreshes the policy's updated_at.
func (s *Service) SetupCitationPolicy(ctx context.Context, orgID string, in PolicyInput) (*catalog.CitationPolicy, error) {
	policy, err := s.repo.UpsertPolicy(ctx, orgID,
		optionalString(in.PolicyURL), optionalString(in.LicenseReference), optionalString(in.Instructions),
		in.RequiresVersionCitation, in.RequiresAccessionCitation)
	if err != nil {
		return nil, err
	}
	for order, req := range in.Required {
		c, err := s.AddVersionCitation(ctx, req.VersionID, req.Citation)
		if err != nil {
			return nil, err
		}
		requirement := req.Requirement
		if requirement == "" {
			requirement = catalog.RequirementRequired
		}
		if err := s.repo.LinkRequired(ctx, policy.ID, c.ID, order, requirement); err != nil {
			return nil, err
		}
	}
	return policy, nil
}

// CitationInput is the data needed to attach a citation to a version.
type CitationInput struct {
	DOI      string
	PubMedID string
	Title    string
	Journal  string
	Date     *time.Time
	Volume   string
	Pages    string
	Authors  []string
	BibTeX   string
}

// AddVersionCitation attaches a citation to a version. If a citation
// with the same DOI and title already exists on that version, the
// existing row is returned unchanged rather than duplicated.
func (s *Service) AddVersionCitation(ctx context.Context, versionID string, in CitationInput) (*catalog.Citation, error) {
	c := catalog.Citation{
		VersionID: versionID,
		DOI:       optionalString(in.DOI),
		PubMedID:  optionalString(in.PubMedID),
		Title:     in.Title,
		Journal:   optionalString(in.Journal),
		Date:      in.Date,
		Volume:    optionalString(in.Volume),
		Pages:     optionalString(in.Pages),
		Authors:   pq.StringArray(in.Authors),
		BibTeX:    optionalString(in.BibTeX),
	}
	return s.repo.AddCitation(ctx, c)
}

// RequireCitation links an already-added citation into a policy's
// required/recommended/conditional list at displayOrder.
func (s *Service) RequireCitation(ctx context.Context, policyID, citationID string, displayOrder int, requirement catalog.RequirementType) error {
	return s.repo.LinkRequired(ctx, policyID, citationID, displayOrder, requirement)
}

// ListForVersion returns every citation attached to a version.
func (s *Service) ListForVersion(ctx context.Context, versionID string) ([]catalog.Citation, error) {
	return s.repo.ListCitations(ctx, versionID)
}

// PolicyForOrg returns an organization's citation policy, or nil if
// none has been configured.
func (s *Service) PolicyForOrg(ctx context.Context, orgID string) (*catalog.CitationPolicy, error) {
	return s.repo.GetPolicy(ctx, orgID)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
