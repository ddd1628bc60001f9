// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataSourceKey(t *testing.T) {
	got := DataSourceKey("uniprot", "swissprot", "2.15.0", "swissprot.dat.gz")
	assert.Equal(t, "data-sources/uniprot/swissprot/2.15.0/swissprot.dat.gz", got)
}

func TestIngestKey(t *testing.T) {
	got := IngestKey("uniprot", "2026_01", "uniprot_sprot.dat.gz")
	assert.Equal(t, "ingest/uniprot/2026_01/uniprot_sprot.dat.gz", got)
}

func TestToolKey(t *testing.T) {
	got := ToolKey("kraklabs", "blast", "1.2.0", "blast.tar.gz")
	assert.Equal(t, "tools/kraklabs/blast/1.2.0/blast.tar.gz", got)
}
