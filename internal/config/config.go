// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package config loads the ingestion daemon's YAML configuration and
// keeps it current: callers get a Watcher that re-parses the file on
// every write and hands the new snapshot to a callback, the same
// fsnotify-driven pattern the rest of this codebase uses for
// filesystem change detection.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Mode selects the orchestrator's traversal policy over a source's
// release history.
type Mode string

const (
	ModeLatest     Mode = "latest"
	ModeHistorical Mode = "historical"
	ModeStartFrom  Mode = "start_from"
)

// Ingest holds the top-level gate and pool-sizing settings.
type Ingest struct {
	Enabled        bool `yaml:"enabled"`
	WorkerThreads  int  `yaml:"worker_threads"`
	MaxRetries     int  `yaml:"max_retries"`
	JobTimeoutSecs int  `yaml:"job_timeout_secs"`
}

// Batch holds the work-unit sizing and worker-liveness settings.
type Batch struct {
	ParseBatchSize        int `yaml:"parse_batch_size"`
	StoreBatchSize        int `yaml:"store_batch_size"`
	HeartbeatIntervalSecs int `yaml:"heartbeat_interval_secs"`
	WorkerTimeoutSecs     int `yaml:"worker_timeout_secs"`
}

// Source is one data source's transport, parse, and orchestrator
// wiring.
type Source struct {
	Name           string `yaml:"name"`
	FTPHost        string `yaml:"ftp_host"`
	FTPPath        string `yaml:"ftp_path"`
	HTTPBaseURL    string `yaml:"http_base_url"`
	ParseLimit     int    `yaml:"parse_limit"`
	ReleaseVersion string `yaml:"release_version"`
	CacheDir       string `yaml:"cache_dir"`

	Mode          Mode   `yaml:"mode"`
	StartDate     string `yaml:"start_date"`
	EndDate       string `yaml:"end_date"`
	SkipExisting  bool   `yaml:"skip_existing"`
	BatchSize     int    `yaml:"batch_size"`
	StartFromDate string `yaml:"start_from_date"`
	Concurrency   int    `yaml:"concurrency"`

	// OrgSlug/EntrySlug/SourceType locate (or create) this source's
	// registry row. Format selects the release-directory naming rule
	// (uniprot, numeric, date) and the parser registered for it.
	OrgSlug       string `yaml:"org_slug"`
	EntrySlug     string `yaml:"entry_slug"`
	DisplayName   string `yaml:"display_name"`
	SourceType    string `yaml:"source_type"`
	ReleaseFormat string `yaml:"release_format"`
	ParserFormat  string `yaml:"parser_format"`
	FileName      string `yaml:"file_name"`
	IdentifierTag string `yaml:"identifier_tag"`
	NameTag       string `yaml:"name_tag"`
	RecordType    string `yaml:"record_type"`
	CascadeDepth  int    `yaml:"cascade_depth"`

	Citation SourceCitation `yaml:"citation"`
}

// SourceCitation configures the citation policy upserted for a
// source's organization and the release citation attached to each
// published version.
type SourceCitation struct {
	PolicyURL               string   `yaml:"policy_url"`
	License                 string   `yaml:"license"`
	Instructions            string   `yaml:"instructions"`
	RequiresVersionCitation bool     `yaml:"requires_version_citation"`
	DOI                     string   `yaml:"doi"`
	Title                   string   `yaml:"title"`
	Journal                 string   `yaml:"journal"`
	Authors                 []string `yaml:"authors"`
}

// Database holds the Postgres connection string and pool sizing.
type Database struct {
	DSN            string `yaml:"dsn"`
	MaxConns       int32  `yaml:"max_conns"`
	MinConns       int32  `yaml:"min_conns"`
	MigrationsPath string `yaml:"migrations_path"`
}

// ObjectStore holds the S3-compatible store's connection settings.
type ObjectStore struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Config is the full daemon configuration, as loaded from YAML.
type Config struct {
	Ingest      Ingest      `yaml:"ingest"`
	Batch       Batch       `yaml:"batch"`
	Database    Database    `yaml:"database"`
	ObjectStore ObjectStore `yaml:"object_store"`
	Sources     []Source    `yaml:"sources"`
}

// applyDefaults fills in zero-valued fields with sane defaults, so a
// minimal config file is still runnable.
func (c *Config) applyDefaults() {
	if c.Ingest.WorkerThreads == 0 {
		c.Ingest.WorkerThreads = 4
	}
	if c.Ingest.MaxRetries == 0 {
		c.Ingest.MaxRetries = 3
	}
	if c.Ingest.JobTimeoutSecs == 0 {
		c.Ingest.JobTimeoutSecs = 3600
	}
	if c.Batch.ParseBatchSize == 0 {
		c.Batch.ParseBatchSize = 5000
	}
	if c.Batch.StoreBatchSize == 0 {
		c.Batch.StoreBatchSize = 50
	}
	if c.Batch.HeartbeatIntervalSecs == 0 {
		c.Batch.HeartbeatIntervalSecs = 30
	}
	if c.Batch.WorkerTimeoutSecs == 0 {
		c.Batch.WorkerTimeoutSecs = 300
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	for i := range c.Sources {
		if c.Sources[i].Mode == "" {
			c.Sources[i].Mode = ModeLatest
		}
		if c.Sources[i].BatchSize == 0 {
			c.Sources[i].BatchSize = 4
		}
		if c.Sources[i].Concurrency == 0 {
			c.Sources[i].Concurrency = 1
		}
		if c.Sources[i].CascadeDepth == 0 {
			c.Sources[i].CascadeDepth = 5
		}
	}
}

// applyEnvOverrides lets deployment secrets come from the process
// environment instead of the config file, so the YAML checked into a
// deploy repo never has to carry credentials.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BDP_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("BDP_OBJECT_STORE_ENDPOINT"); v != "" {
		c.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("BDP_OBJECT_STORE_ACCESS_KEY"); v != "" {
		c.ObjectStore.AccessKey = v
	}
	if v := os.Getenv("BDP_OBJECT_STORE_SECRET_KEY"); v != "" {
		c.ObjectStore.SecretKey = v
	}
}

// Load reads and parses a YAML config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return &cfg, nil
}

// reloadDebounce absorbs the burst of write events a single editor
// save can generate (truncate + write + chmod all fire fsnotify
// events within a few milliseconds of each other).
const reloadDebounce = 200 * time.Millisecond

// Watcher re-loads a Config file on every write and hands the new
// snapshot to OnChange.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	current  *Config
	OnChange func(*Config)
	OnError  func(error)
}

// NewWatcher loads path once and starts watching its containing
// directory (not the file itself — editors often replace a file by
// rename rather than in-place write, which would silently stop a
// watch on the old inode).
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	w := &Watcher{path: path, watcher: fw, current: cfg}
	go w.run()
	return w, nil
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Close stops the underlying fsnotify watch.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) run() {
	var pending *time.Timer
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDebounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.OnError != nil {
				w.OnError(err)
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		if w.OnError != nil {
			w.OnError(err)
		}
		return
	}
	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	if w.OnChange != nil {
		w.OnChange(cfg)
	}
}
