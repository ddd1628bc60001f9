// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package semver

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/bdp-ingest/pkg/catalog"
)

func newMockRepo(t *testing.T) (*catalog.VersionRepository, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := catalog.NewDB(sqlx.NewDb(rawDB, "sqlmock"))
	return catalog.NewVersionRepository(db), mock
}

func TestCreateVersionFirstReleaseIsOneZeroZero(t *testing.T) {
	repo, mock := newMockRepo(t)
	svc := NewService(repo)

	mock.ExpectQuery(regexp.QuoteMeta("is_current = true")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE versions SET is_current = false")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO versions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta("FROM versions WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "registry_entry_id", "version_string", "version_major", "version_minor", "version_patch",
			"external_version", "release_date", "size_bytes", "download_count", "dependency_count",
			"is_current", "published_at", "created_at",
		}).AddRow("v1", "entry-1", "1.0.0", 1, 0, 0, nil, nil, 0, 0, 0, true, nil, nil))

	v, err := svc.CreateVersion(context.Background(), "entry-1", Minor, "2026_01", nil)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.VersionString)
}
