// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package catalog defines the registry's relational data model and
// the sqlx-backed repositories that read and write it. Every catalog
// table has a corresponding Go type and repository method here; no
// business logic (job lifecycle rules, cascade propagation, claim
// semantics) lives in this package — callers (pkg/coordinator,
// pkg/worker, pkg/cascade, ...) own that.
package catalog

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// EntryType distinguishes a RegistryEntry's kind.
type EntryType string

const (
	EntryTypeDataSource EntryType = "data_source"
	EntryTypeTool       EntryType = "tool"
)

// SourceType is the typed facet a DataSource adds to a RegistryEntry.
type SourceType string

const (
	SourceTypeProtein     SourceType = "protein"
	SourceTypeGenome      SourceType = "genome"
	SourceTypeAnnotation  SourceType = "annotation"
	SourceTypeStructure   SourceType = "structure"
	SourceTypeOrganism    SourceType = "organism"
	SourceTypeGOTerm      SourceType = "go_term"
	SourceTypeTaxonomy    SourceType = "taxonomy"
	SourceTypeOtherSource SourceType = "other"
)

// JobStatus is the lifecycle state of an IngestionJob.
type JobStatus string

const (
	JobPending          JobStatus = "pending"
	JobDownloading      JobStatus = "downloading"
	JobDownloadVerified JobStatus = "download_verified"
	JobParsing          JobStatus = "parsing"
	JobStoring          JobStatus = "storing"
	JobCompleted        JobStatus = "completed"
	JobFailed           JobStatus = "failed"
)

// WorkUnitStatus is the lifecycle state of an IngestionWorkUnit.
type WorkUnitStatus string

const (
	UnitPending    WorkUnitStatus = "pending"
	UnitClaimed    WorkUnitStatus = "claimed"
	UnitProcessing WorkUnitStatus = "processing"
	UnitCompleted  WorkUnitStatus = "completed"
	UnitFailed     WorkUnitStatus = "failed"
	UnitCancelled  WorkUnitStatus = "cancelled"
)

// RecordStatus is the lifecycle state of an IngestionStagedRecord.
type RecordStatus string

const (
	RecordStaged   RecordStatus = "staged"
	RecordPromoted RecordStatus = "promoted"
	RecordFailed   RecordStatus = "failed"
)

// BumpType mirrors pkg/semver.BumpType for storage in changelog rows
// without pkg/catalog depending on pkg/semver.
type BumpType string

const (
	BumpMajor BumpType = "major"
	BumpMinor BumpType = "minor"
)

// TriggerReason explains why a version/changelog was created.
type TriggerReason string

const (
	TriggerNewRelease         TriggerReason = "new_release"
	TriggerUpstreamDependency TriggerReason = "upstream_dependency"
	TriggerManual             TriggerReason = "manual"
)

// ChangeType categorizes one ChangelogEntry.
type ChangeType string

const (
	ChangeAdded      ChangeType = "added"
	ChangeRemoved    ChangeType = "removed"
	ChangeModified   ChangeType = "modified"
	ChangeDependency ChangeType = "dependency"
)

// RequirementType qualifies a RequiredCitation's strength.
type RequirementType string

const (
	RequirementRequired    RequirementType = "required"
	RequirementRecommended RequirementType = "recommended"
	RequirementConditional RequirementType = "conditional"
)

// Organization is an external data provider, e.g. "uniprot".
type Organization struct {
	ID          string    `db:"id"`
	Slug        string    `db:"slug"`
	DisplayName string    `db:"display_name"`
	IsSystem    bool      `db:"is_system"`
	Website     *string   `db:"website"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// RegistryEntry is a named catalog unit owned by an Organization.
type RegistryEntry struct {
	ID             string    `db:"id"`
	OrganizationID string    `db:"organization_id"`
	Slug           string    `db:"slug"`
	Name           string    `db:"name"`
	EntryType      EntryType `db:"entry_type"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// DataSource is the typed facet of a RegistryEntry.
type DataSource struct {
	ID                 string     `db:"id"`
	RegistryEntryID    string     `db:"registry_entry_id"`
	SourceType         SourceType `db:"source_type"`
	ExternalIdentifier *string    `db:"external_identifier"`
	OrganismID         *string    `db:"organism_id"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// Version is an ordered release of a data source.
type Version struct {
	ID              string     `db:"id"`
	RegistryEntryID string     `db:"registry_entry_id"`
	VersionString   string     `db:"version_string"`
	VersionMajor    int        `db:"version_major"`
	VersionMinor    int        `db:"version_minor"`
	VersionPatch    int        `db:"version_patch"`
	ExternalVersion *string    `db:"external_version"`
	ReleaseDate     *time.Time `db:"release_date"`
	SizeBytes       int64      `db:"size_bytes"`
	DownloadCount   int64      `db:"download_count"`
	DependencyCount int        `db:"dependency_count"`
	IsCurrent       bool       `db:"is_current"`
	PublishedAt     *time.Time `db:"published_at"`
	CreatedAt       time.Time  `db:"created_at"`
}

// VersionFile is a stored artifact under a Version.
type VersionFile struct {
	ID          string    `db:"id"`
	VersionID   string    `db:"version_id"`
	Format      string    `db:"format"`
	ObjectKey   string    `db:"object_key"`
	Checksum    string    `db:"checksum"`
	ByteSize    int64     `db:"byte_size"`
	Compression *string   `db:"compression"`
	CreatedAt   time.Time `db:"created_at"`
}

// Dependency is a directed edge from a Version (child) to an entry
// (parent).
type Dependency struct {
	ID               string    `db:"id"`
	VersionID        string    `db:"version_id"`
	DependsOnEntryID string    `db:"depends_on_entry_id"`
	DependsOnVersion string    `db:"depends_on_version"`
	DependencyType   string    `db:"dependency_type"`
	CreatedAt        time.Time `db:"created_at"`
}

// IngestionJob is one end-to-end ingestion attempt.
type IngestionJob struct {
	ID                string          `db:"id"`
	OrganizationID    string          `db:"organization_id"`
	JobType           string          `db:"job_type"`
	ExternalVersion   string          `db:"external_version"`
	InternalVersionID *string         `db:"internal_version_id"`
	SourceURL         string          `db:"source_url"`
	Metadata          json.RawMessage `db:"metadata"`
	Status            JobStatus       `db:"status"`
	TotalRecords      int64           `db:"total_records"`
	RecordsProcessed  int64           `db:"records_processed"`
	RecordsStored     int64           `db:"records_stored"`
	RecordsFailed     int64           `db:"records_failed"`
	RecordsSkipped    int64           `db:"records_skipped"`
	CreatedAt         time.Time       `db:"created_at"`
	StartedAt         *time.Time      `db:"started_at"`
	CompletedAt       *time.Time      `db:"completed_at"`
}

// IngestionRawFile is a downloaded artifact attached to a job.
type IngestionRawFile struct {
	ID          string    `db:"id"`
	JobID       string    `db:"job_id"`
	FileType    string    `db:"file_type"`
	Purpose     string    `db:"purpose"`
	ObjectKey   string    `db:"object_key"`
	ExpectedMD5 *string   `db:"expected_md5"`
	ComputedMD5 *string   `db:"computed_md5"`
	Verified    bool      `db:"verified"`
	ByteSize    int64     `db:"byte_size"`
	Compression *string   `db:"compression"`
	CreatedAt   time.Time `db:"created_at"`
}

// IngestionWorkUnit is a parse batch owned by a job.
type IngestionWorkUnit struct {
	ID                  string         `db:"id"`
	JobID               string         `db:"job_id"`
	UnitType            string         `db:"unit_type"`
	BatchNumber         int            `db:"batch_number"`
	StartOffset         int64          `db:"start_offset"`
	EndOffset           int64          `db:"end_offset"`
	RecordCount         int64          `db:"record_count"`
	WorkerID            *string        `db:"worker_id"`
	Host                *string        `db:"host"`
	ClaimedAt           *time.Time     `db:"claimed_at"`
	HeartbeatAt         *time.Time     `db:"heartbeat_at"`
	Status              WorkUnitStatus `db:"status"`
	RetryCount          int            `db:"retry_count"`
	MaxRetries          int            `db:"max_retries"`
	LastError           *string        `db:"last_error"`
	StartedProcessingAt *time.Time     `db:"started_processing_at"`
	CompletedAt         *time.Time     `db:"completed_at"`
}

// IngestionStagedRecord is a parsed record awaiting promotion.
type IngestionStagedRecord struct {
	ID               string          `db:"id"`
	JobID            string          `db:"job_id"`
	WorkUnitID       string          `db:"work_unit_id"`
	RecordType       string          `db:"record_type"`
	RecordIdentifier string          `db:"record_identifier"`
	RecordName       *string         `db:"record_name"`
	RecordData       json.RawMessage `db:"record_data"`
	ContentMD5       string          `db:"content_md5"`
	SequenceMD5      *string         `db:"sequence_md5"`
	SourceFile       *string         `db:"source_file"`
	SourceOffset     *int64          `db:"source_offset"`
	Status           RecordStatus    `db:"status"`
	CreatedAt        time.Time       `db:"created_at"`
}

// VersionChangelog is a per-version structured diff.
type VersionChangelog struct {
	ID                   string          `db:"id"`
	VersionID            string          `db:"version_id"`
	BumpType             BumpType        `db:"bump_type"`
	TriggeredBy          TriggerReason   `db:"triggered_by"`
	TriggeredByVersionID *string         `db:"triggered_by_version_id"`
	Entries              json.RawMessage `db:"entries"`
	Summary              json.RawMessage `db:"summary"`
	SummaryText          string          `db:"summary_text"`
	CreatedAt            time.Time       `db:"created_at"`
}

// ChangelogEntry is one structured diff entry within a changelog.
type ChangelogEntry struct {
	ChangeType  ChangeType `json:"change_type"`
	Category    string     `json:"category"`
	Count       int        `json:"count"`
	Description string     `json:"description"`
	IsBreaking  bool       `json:"is_breaking"`
}

// AddedEntry constructs a "added" ChangelogEntry.
func AddedEntry(category string, count int, description string) ChangelogEntry {
	return ChangelogEntry{ChangeType: ChangeAdded, Category: category, Count: count, Description: description}
}

// RemovedEntry constructs a "removed" ChangelogEntry.
func RemovedEntry(category string, count int, description string, isBreaking bool) ChangelogEntry {
	return ChangelogEntry{ChangeType: ChangeRemoved, Category: category, Count: count, Description: description, IsBreaking: isBreaking}
}

// ModifiedEntry constructs a "modified" ChangelogEntry.
func ModifiedEntry(category string, count int, description string, isBreaking bool) ChangelogEntry {
	return ChangelogEntry{ChangeType: ChangeModified, Category: category, Count: count, Description: description, IsBreaking: isBreaking}
}

// DependencyEntry constructs a "dependency" ChangelogEntry.
func DependencyEntry(category string, description string, isBreaking bool) ChangelogEntry {
	return ChangelogEntry{ChangeType: ChangeDependency, Category: category, Count: 1, Description: description, IsBreaking: isBreaking}
}

// HasBreakingChanges reports whether any entry is marked breaking.
func HasBreakingChanges(entries []ChangelogEntry) bool {
	for _, e := range entries {
		if e.IsBreaking {
			return true
		}
	}
	return false
}

// ChangelogSummary is the aggregate counts for a VersionChangelog.
type ChangelogSummary struct {
	TotalEntriesBefore int           `json:"total_entries_before"`
	TotalEntriesAfter  int           `json:"total_entries_after"`
	EntriesAdded       int           `json:"entries_added"`
	EntriesRemoved     int           `json:"entries_removed"`
	EntriesModified    int           `json:"entries_modified"`
	TriggeredBy        TriggerReason `json:"triggered_by"`
}

// CitationPolicy is a per-organization citation/license policy.
type CitationPolicy struct {
	ID                        string    `db:"id"`
	OrganizationID            string    `db:"organization_id"`
	PolicyURL                 *string   `db:"policy_url"`
	LicenseReference          *string   `db:"license_reference"`
	RequiresVersionCitation   bool      `db:"requires_version_citation"`
	RequiresAccessionCitation bool      `db:"requires_accession_citation"`
	Instructions              *string   `db:"instructions"`
	CreatedAt                 time.Time `db:"created_at"`
	UpdatedAt                 time.Time `db:"updated_at"`
}

// Citation is a DOI/PubMed-backed reference linked to a version.
type Citation struct {
	ID        string     `db:"id"`
	VersionID string     `db:"version_id"`
	DOI       *string    `db:"doi"`
	PubMedID  *string    `db:"pubmed_id"`
	Title     string     `db:"title"`
	Journal   *string    `db:"journal"`
	Date      *time.Time `db:"date"`
	Volume    *string    `db:"volume"`
	Pages     *string    `db:"pages"`
	// Authors is a Postgres TEXT[] column, scanned/bound via
	// pq.StringArray rather than a join-on-comma string so a citation
	// with an unusual author name (one containing a comma) round-trips
	// exactly.
	Authors   pq.StringArray `db:"authors"`
	BibTeX    *string        `db:"bibtex"`
	CreatedAt time.Time      `db:"created_at"`
}

// RequiredCitation links a Citation into a CitationPolicy at a
// display position with a requirement strength.
type RequiredCitation struct {
	ID              string          `db:"id"`
	PolicyID        string          `db:"policy_id"`
	CitationID      string          `db:"citation_id"`
	DisplayOrder    int             `db:"display_order"`
	RequirementType RequirementType `db:"requirement_type"`
}

// JobProgress is the aggregated view over a job's work units plus the
// job row itself, returned by GetJobProgress.
type JobProgress struct {
	Job             IngestionJob
	UnitsTotal      int
	UnitsPending    int
	UnitsClaimed    int
	UnitsProcessing int
	UnitsCompleted  int
	UnitsFailed     int
	UnitsCancelled  int
}
