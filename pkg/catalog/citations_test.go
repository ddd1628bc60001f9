// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package catalog

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func policyColumns() []string {
	return []string{
		"id", "organization_id", "policy_url", "license_reference", "requires_version_citation",
		"requires_accession_citation", "instructions", "created_at", "updated_at",
	}
}

func policyRow(id, orgID string) *sqlmock.Rows {
	return sqlmock.NewRows(policyColumns()).
		AddRow(id, orgID, "https://www.uniprot.org/help/publications", nil, true, false, nil, nil, nil)
}

func TestUpsertPolicyInsertsWhenMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCitationRepository(db)
	url := "https://www.uniprot.org/help/publications"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM citation_policies WHERE organization_id = $1")).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows(policyColumns()))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO citation_policies")).
		WithArgs(sqlmock.AnyArg(), "org-1", &url, nil, true, false, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta("FROM citation_policies WHERE id = $1")).
		WillReturnRows(policyRow("pol-1", "org-1"))

	p, err := repo.UpsertPolicy(context.Background(), "org-1", &url, nil, nil, true, false)
	require.NoError(t, err)
	assert.Equal(t, "pol-1", p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPolicyUpdatesInPlace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCitationRepository(db)
	url := "https://www.uniprot.org/help/publications"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM citation_policies WHERE organization_id = $1")).
		WithArgs("org-1").
		WillReturnRows(policyRow("pol-1", "org-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE citation_policies")).
		WithArgs("pol-1", &url, nil, true, false, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta("FROM citation_policies WHERE id = $1")).
		WillReturnRows(policyRow("pol-1", "org-1"))

	p, err := repo.UpsertPolicy(context.Background(), "org-1", &url, nil, nil, true, false)
	require.NoError(t, err)
	assert.Equal(t, "pol-1", p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A policy's required list is keyed by display position: re-linking
// position 0 replaces the citation sitting there rather than adding a
// second row.
func TestLinkRequiredUpsertsByPolicyAndDisplayOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCitationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(
		"ON CONFLICT (policy_id, display_order) DO UPDATE")).
		WithArgs(sqlmock.AnyArg(), "pol-1", "cit-1", 0, RequirementRequired).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(
		"ON CONFLICT (policy_id, display_order) DO UPDATE")).
		WithArgs(sqlmock.AnyArg(), "pol-1", "cit-2", 0, RequirementRecommended).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.LinkRequired(context.Background(), "pol-1", "cit-1", 0, RequirementRequired))
	require.NoError(t, repo.LinkRequired(context.Background(), "pol-1", "cit-2", 0, RequirementRecommended))
	assert.NoError(t, mock.ExpectationsWereMet())
}
