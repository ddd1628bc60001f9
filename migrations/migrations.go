// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package migrations embeds the catalog's goose migration set so the
// daemon binary carries its own schema and never depends on a
// migrations directory being present on disk at deploy time.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
