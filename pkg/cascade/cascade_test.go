// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package cascade

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/bdp-ingest/pkg/catalog"
	"github.com/kraklabs/bdp-ingest/pkg/changelog"
	"github.com/kraklabs/bdp-ingest/pkg/semver"
)

func newMockCascader(t *testing.T) (*Cascader, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := catalog.NewDB(sqlx.NewDb(rawDB, "sqlmock"))
	versions := catalog.NewVersionRepository(db)
	changelogs := changelog.NewStore(catalog.NewChangelogRepository(db))
	return NewCascader(versions, semver.NewService(versions), changelogs, nil), mock
}

func versionColumns() []string {
	return []string{
		"id", "registry_entry_id", "version_string", "version_major", "version_minor", "version_patch",
		"external_version", "release_date", "size_bytes", "download_count", "dependency_count",
		"is_current", "published_at", "created_at",
	}
}

func versionRow(id, entryID, versionString string, major, minor, patch int) *sqlmock.Rows {
	return sqlmock.NewRows(versionColumns()).
		AddRow(id, entryID, versionString, major, minor, patch, nil, nil, 0, 0, 0, true, nil, nil)
}

func changelogRow(id, versionID string, bump catalog.BumpType, trigger catalog.TriggerReason) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "version_id", "bump_type", "triggered_by", "triggered_by_version_id", "entries",
		"summary", "summary_text", "created_at",
	}).AddRow(id, versionID, bump, trigger, "x-v2", []byte(`[]`), []byte(`{}`), "", nil)
}

// Entry X bumped to 2.0.0 with a breaking change. Dependent Y sits at
// 1.2.0 with a single dependency edge on X: Y must get a major bump to
// 2.0.0, its X edge rewritten to "2.0.0", its dependency_count
// recomputed, and an upstream_dependency changelog saved.
func TestCascadeBreakingBumpsDependentMajor(t *testing.T) {
	c, mock := newMockCascader(t)

	mock.ExpectQuery(regexp.QuoteMeta("d.depends_on_entry_id = $1 AND v.is_current = true")).
		WithArgs("entry-x").
		WillReturnRows(versionRow("y-v1", "entry-y", "1.2.0", 1, 2, 0))

	// semver.Service.CreateVersion: read current, demote, insert, reload.
	mock.ExpectQuery(regexp.QuoteMeta("WHERE registry_entry_id = $1 AND is_current = true")).
		WithArgs("entry-y").
		WillReturnRows(versionRow("y-v1", "entry-y", "1.2.0", 1, 2, 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET is_current = false")).
		WithArgs("entry-y").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO versions")).
		WithArgs(sqlmock.AnyArg(), "entry-y", "2.0.0", 2, 0, 0, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta("FROM versions WHERE id = $1")).
		WillReturnRows(versionRow("y-v2", "entry-y", "2.0.0", 2, 0, 0))

	// CopyDependencies: Y's only prior edge points at X, which is the
	// rewritten edge, so nothing is copied verbatim — but its
	// dependency_type must carry over onto the recreated edge.
	mock.ExpectQuery(regexp.QuoteMeta("FROM dependencies WHERE version_id = $1")).
		WithArgs("y-v1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "version_id", "depends_on_entry_id", "depends_on_version", "dependency_type", "created_at",
		}).AddRow("dep-1", "y-v1", "entry-x", "1.9.0", "build", nil))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dependencies")).
		WithArgs(sqlmock.AnyArg(), "y-v2", "entry-x", "2.0.0", "build").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET dependency_count = (SELECT count(*)")).
		WithArgs("y-v2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO version_changelogs")).
		WithArgs(sqlmock.AnyArg(), "y-v2", catalog.BumpMajor, catalog.TriggerUpstreamDependency,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM version_changelogs WHERE version_id = $1")).
		WithArgs("y-v2").
		WillReturnRows(changelogRow("cl-1", "y-v2", catalog.BumpMajor, catalog.TriggerUpstreamDependency))

	breaking := []changelog.Entry{changelog.Removed("proteins", 2, "obsolete accessions dropped", true)}
	results := c.Cascade(context.Background(), "entry-x", "x-v2", "2.0.0", breaking)

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "y-v2", results[0].DependentVersionID)
	assert.Equal(t, semver.Major, results[0].BumpType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCascadeNonBreakingIsMinor(t *testing.T) {
	c, mock := newMockCascader(t)

	// No dependents: bump type is still derived, nothing else runs.
	mock.ExpectQuery(regexp.QuoteMeta("d.depends_on_entry_id = $1 AND v.is_current = true")).
		WithArgs("entry-x").
		WillReturnRows(sqlmock.NewRows(versionColumns()))

	entries := []changelog.Entry{changelog.Added("proteins", 10, "new accessions")}
	results := c.Cascade(context.Background(), "entry-x", "x-v2", "1.3.0", entries)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCascadeSkipsFailedDependentAndContinues(t *testing.T) {
	c, mock := newMockCascader(t)

	rows := sqlmock.NewRows(versionColumns()).
		AddRow("y-v1", "entry-y", "1.0.0", 1, 0, 0, nil, nil, 0, 0, 0, true, nil, nil).
		AddRow("z-v1", "entry-z", "1.0.0", 1, 0, 0, nil, nil, 0, 0, 0, true, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("d.depends_on_entry_id = $1 AND v.is_current = true")).
		WithArgs("entry-x").
		WillReturnRows(rows)

	// First dependent: CreateVersion's current-version read blows up.
	mock.ExpectQuery(regexp.QuoteMeta("WHERE registry_entry_id = $1 AND is_current = true")).
		WithArgs("entry-y").
		WillReturnError(assert.AnError)

	// Second dependent proceeds normally.
	mock.ExpectQuery(regexp.QuoteMeta("WHERE registry_entry_id = $1 AND is_current = true")).
		WithArgs("entry-z").
		WillReturnRows(versionRow("z-v1", "entry-z", "1.0.0", 1, 0, 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET is_current = false")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO versions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta("FROM versions WHERE id = $1")).
		WillReturnRows(versionRow("z-v2", "entry-z", "1.1.0", 1, 1, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM dependencies WHERE version_id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "version_id", "depends_on_entry_id", "depends_on_version", "dependency_type", "created_at",
		}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dependencies")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET dependency_count = (SELECT count(*)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO version_changelogs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM version_changelogs WHERE version_id = $1")).
		WillReturnRows(changelogRow("cl-2", "z-v2", catalog.BumpMinor, catalog.TriggerUpstreamDependency))

	entries := []changelog.Entry{changelog.Added("proteins", 5, "new accessions")}
	results := c.Cascade(context.Background(), "entry-x", "x-v2", "1.3.0", entries)

	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	require.NoError(t, results[1].Err)
	assert.Equal(t, "z-v2", results[1].DependentVersionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCascadeRecursiveDepthZeroIsNoop(t *testing.T) {
	c, mock := newMockCascader(t)
	results := c.CascadeRecursive(context.Background(), "entry-x", "x-v2", "2.0.0", nil, 0)
	assert.Nil(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}
