// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package catalog

import (
	"context"
	"encoding/json"
)

// ChangelogRepository reads and writes version_changelogs.
type ChangelogRepository struct {
	db *DB
}

// NewChangelogRepository constructs a ChangelogRepository.
func NewChangelogRepository(db *DB) *ChangelogRepository {
	return &ChangelogRepository{db: db}
}

// Save persists a changelog for a version, replacing any existing one
// — a version has exactly one changelog, and a re-run of the same
// ingestion must converge on the same row rather than error.
// entries/summary are marshaled by the caller (pkg/changelog) so this
// repository never needs to know the ChangelogEntry shape beyond
// []byte.
func (r *ChangelogRepository) Save(ctx context.Context, versionID string, bump BumpType, triggeredBy TriggerReason, triggeredByVersionID *string, entries, summary json.RawMessage, summaryText string) (*VersionChangelog, error) {
	id := newID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO version_changelogs
		  (id, version_id, bump_type, triggered_by, triggered_by_version_id, entries, summary, summary_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (version_id) DO UPDATE
		SET bump_type = EXCLUDED.bump_type,
		    triggered_by = EXCLUDED.triggered_by,
		    triggered_by_version_id = EXCLUDED.triggered_by_version_id,
		    entries = EXCLUDED.entries,
		    summary = EXCLUDED.summary,
		    summary_text = EXCLUDED.summary_text`,
		id, versionID, bump, triggeredBy, triggeredByVersionID, entries, summary, summaryText)
	if err != nil {
		return nil, translate(err, "save changelog for version "+versionID)
	}
	return r.GetForVersion(ctx, versionID)
}

// Get returns a changelog by ID.
func (r *ChangelogRepository) Get(ctx context.Context, id string) (*VersionChangelog, error) {
	var c VersionChangelog
	err := r.db.GetContext(ctx, &c, `
		SELECT id, version_id, bump_type, triggered_by, triggered_by_version_id, entries, summary,
		       summary_text, created_at
		FROM version_changelogs WHERE id = $1`, id)
	if err != nil {
		return nil, translate(err, "changelog "+id)
	}
	return &c, nil
}

// GetForVersion returns the changelog attached to a version, if any.
func (r *ChangelogRepository) GetForVersion(ctx context.Context, versionID string) (*VersionChangelog, error) {
	var c VersionChangelog
	err := r.db.GetContext(ctx, &c, `
		SELECT id, version_id, bump_type, triggered_by, triggered_by_version_id, entries, summary,
		       summary_text, created_at
		FROM version_changelogs WHERE version_id = $1`, versionID)
	if err != nil {
		return nil, translate(err, "changelog for version "+versionID)
	}
	return &c, nil
}

// ListForEntry returns every changelog for a registry entry's
// versions, newest first.
func (r *ChangelogRepository) ListForEntry(ctx context.Context, entryID string) ([]VersionChangelog, error) {
	var out []VersionChangelog
	err := r.db.SelectContext(ctx, &out, `
		SELECT c.id, c.version_id, c.bump_type, c.triggered_by, c.triggered_by_version_id, c.entries,
		       c.summary, c.summary_text, c.created_at
		FROM version_changelogs c
		JOIN versions v ON v.id = c.version_id
		WHERE v.registry_entry_id = $1
		ORDER BY v.version_major DESC, v.version_minor DESC, v.version_patch DESC`, entryID)
	return out, translate(err, "list changelogs for entry "+entryID)
}

// FindCascaded returns every changelog whose triggered_by is
// upstream_dependency and whose triggered_by_version_id matches
// triggerVersionID — the rows a single upstream bump produced
// downstream, used to explain or audit one cascade run.
func (r *ChangelogRepository) FindCascaded(ctx context.Context, triggerVersionID string) ([]VersionChangelog, error) {
	var out []VersionChangelog
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, version_id, bump_type, triggered_by, triggered_by_version_id, entries, summary,
		       summary_text, created_at
		FROM version_changelogs
		WHERE triggered_by = $1 AND triggered_by_version_id = $2`, TriggerUpstreamDependency, triggerVersionID)
	return out, translate(err, "find cascaded changelogs for "+triggerVersionID)
}

// Delete removes a changelog by ID.
func (r *ChangelogRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM version_changelogs WHERE id = $1`, id)
	return translate(err, "delete changelog "+id)
}

// CountByTrigger returns how many changelogs exist for each trigger
// reason, for reporting.
func (r *ChangelogRepository) CountByTrigger(ctx context.Context) (map[TriggerReason]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT triggered_by, count(*) FROM version_changelogs GROUP BY triggered_by`)
	if err != nil {
		return nil, translate(err, "count changelogs by trigger")
	}
	defer rows.Close()

	counts := map[TriggerReason]int{}
	for rows.Next() {
		var trig TriggerReason
		var n int
		if err := rows.Scan(&trig, &n); err != nil {
			return nil, translate(err, "scan changelog trigger counts")
		}
		counts[trig] = n
	}
	return counts, translate(rows.Err(), "iterate changelog trigger counts")
}
