// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package objectstore

import "fmt"

// DataSourceKey builds the object key for a published version
// artifact: data-sources/{org}/{name}/{version}/{filename}.
func DataSourceKey(org, name, version, filename string) string {
	return fmt.Sprintf("data-sources/%s/%s/%s/%s", org, name, version, filename)
}

// ToolKey builds the object key for a published tool artifact.
func ToolKey(org, name, version, filename string) string {
	return fmt.Sprintf("tools/%s/%s/%s/%s", org, name, version, filename)
}

// IngestKey builds the object key for an in-flight ingestion artifact
// (raw downloads, staged intermediates) not yet promoted to the
// public data-sources/ prefix.
func IngestKey(source, externalVersion, filename string) string {
	return fmt.Sprintf("ingest/%s/%s/%s", source, externalVersion, filename)
}
