// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
ingest:
  enabled: true
  worker_threads: 8
batch:
  parse_batch_size: 2000
database:
  dsn: "postgres://localhost/bdp"
sources:
  - name: uniprot
    ftp_host: ftp.uniprot.org
    mode: historical
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Ingest.Enabled)
	assert.Equal(t, 8, cfg.Ingest.WorkerThreads)
	assert.Equal(t, 3, cfg.Ingest.MaxRetries, "default max_retries should be applied")
	assert.Equal(t, 2000, cfg.Batch.ParseBatchSize)
	assert.Equal(t, 50, cfg.Batch.StoreBatchSize, "default store_batch_size should be applied")
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, ModeHistorical, cfg.Sources[0].Mode)
	assert.Equal(t, 1, cfg.Sources[0].Concurrency)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	changed := make(chan *Config, 1)
	w.OnChange = func(c *Config) { changed <- c }

	updated := sampleYAML + "  parse_limit: 99\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case cfg := <-changed:
		assert.Equal(t, 99, cfg.Sources[0].ParseLimit)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
