// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package citations

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/bdp-ingest/pkg/catalog"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := catalog.NewDB(sqlx.NewDb(rawDB, "sqlmock"))
	return NewService(catalog.NewCitationRepository(db)), mock
}

func policyColumns() []string {
	return []string{
		"id", "organization_id", "policy_url", "license_reference", "requires_version_citation",
		"requires_accession_citation", "instructions", "created_at", "updated_at",
	}
}

func citationColumns() []string {
	return []string{
		"id", "version_id", "doi", "pubmed_id", "title", "journal", "date", "volume", "pages",
		"authors", "bibtex", "created_at",
	}
}

// Full setup path: upsert the policy, upsert the required citation by
// (version, doi), and link it into the policy's list at its display
// position.
func TestSetupCitationPolicyLinksRequiredCitations(t *testing.T) {
	svc, mock := newMockService(t)

	// Policy upsert (none exists yet).
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM citation_policies WHERE organization_id = $1")).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows(policyColumns()))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO citation_policies")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta("FROM citation_policies WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(policyColumns()).
			AddRow("pol-1", "org-1", "https://www.uniprot.org/help/publications", nil, true, false, nil, nil, nil))

	// Required citation: no existing row for (version, doi), insert,
	// reload.
	mock.ExpectQuery(regexp.QuoteMeta("FROM citations WHERE version_id = $1 AND doi = $2")).
		WithArgs("ver-1", "10.1093/nar/gkae1010").
		WillReturnRows(sqlmock.NewRows(citationColumns()))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO citations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM citations WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(citationColumns()).
			AddRow("cit-1", "ver-1", "10.1093/nar/gkae1010", nil, "UniProt: the Universal Protein Knowledgebase in 2025",
				nil, nil, nil, nil, "{UniProt Consortium}", nil, nil))

	// Link at display position 0.
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (policy_id, display_order) DO UPDATE")).
		WithArgs(sqlmock.AnyArg(), "pol-1", "cit-1", 0, catalog.RequirementRequired).
		WillReturnResult(sqlmock.NewResult(0, 1))

	policy, err := svc.SetupCitationPolicy(context.Background(), "org-1", PolicyInput{
		PolicyURL:               "https://www.uniprot.org/help/publications",
		RequiresVersionCitation: true,
		Required: []RequiredInput{{
			VersionID: "ver-1",
			Citation: CitationInput{
				DOI:   "10.1093/nar/gkae1010",
				Title: "UniProt: the Universal Protein Knowledgebase in 2025",
			},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "pol-1", policy.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptionalStringEmptyIsNil(t *testing.T) {
	assert.Nil(t, optionalString(""))
	got := optionalString("10.1093/nar/example")
	if assert.NotNil(t, got) {
		assert.Equal(t, "10.1093/nar/example", *got)
	}
}
