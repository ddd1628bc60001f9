// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package transport

import (
	"context"
	"io"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/kraklabs/bdp-ingest/internal/ingesterr"
)

// FTPEntry is a directory listing entry, tolerant of the "drwxr-xr-x"
// and "-rw-r--r--" LIST output variants an upstream server may emit.
type FTPEntry struct {
	Name  string
	IsDir bool
	Size  uint64
	MTime time.Time
}

// FTPClient connects to an anonymous (by default) FTP server over
// extended passive mode and downloads release artifacts.
type FTPClient struct {
	host     string
	user     string
	pass     string
	retry    RetryPolicy
	dialOpts []ftp.DialOption
}

// FTPOption configures an FTPClient.
type FTPOption func(*FTPClient)

// WithFTPCredentials overrides the default anonymous/anonymous login.
func WithFTPCredentials(user, pass string) FTPOption {
	return func(c *FTPClient) { c.user, c.pass = user, pass }
}

// WithFTPRetryPolicy overrides DefaultRetryPolicy.
func WithFTPRetryPolicy(p RetryPolicy) FTPOption {
	return func(c *FTPClient) { c.retry = p }
}

// NewFTPClient builds a client for host ("ftp.uniprot.org:21" or
// bare "ftp.uniprot.org", in which case :21 is assumed).
func NewFTPClient(host string, opts ...FTPOption) *FTPClient {
	c := &FTPClient{
		host:  ensurePort(host),
		user:  "anonymous",
		pass:  "anonymous@",
		retry: DefaultRetryPolicy,
		dialOpts: []ftp.DialOption{
			ftp.DialWithTimeout(30 * time.Second),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func ensurePort(host string) string {
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host
		}
		if host[i] == '/' {
			break
		}
	}
	return host + ":21"
}

func (c *FTPClient) connect(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(c.host, c.dialOpts...)
	if err != nil {
		return nil, ingesterr.Transportf(err, "ftp dial %s", c.host)
	}
	if err := conn.Login(c.user, c.pass); err != nil {
		conn.Quit()
		return nil, ingesterr.Transportf(err, "ftp login %s", c.host)
	}
	return conn, nil
}

// DownloadFile retrieves path in binary mode and returns its full
// contents.
func (c *FTPClient) DownloadFile(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := c.retry.Do(ctx, func() error {
		conn, err := c.connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Quit()

		resp, err := conn.Retr(path)
		if err != nil {
			return ingesterr.Transportf(err, "ftp retr %s", path)
		}
		defer resp.Close()

		data, err = io.ReadAll(resp)
		if err != nil {
			return ingesterr.Transportf(err, "ftp read %s", path)
		}
		return nil
	})
	return data, err
}

// DownloadResult is the outcome of DownloadWithMtime.
type DownloadResult struct {
	Data  []byte
	MTime *time.Time
}

// DownloadWithMtime retrieves path and also reports its server-side
// modification time, when the server's MDTM/LIST data makes one
// available.
func (c *FTPClient) DownloadWithMtime(ctx context.Context, path string) (*DownloadResult, error) {
	var result DownloadResult
	err := c.retry.Do(ctx, func() error {
		conn, err := c.connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Quit()

		if mtime, err := conn.GetTime(path); err == nil {
			result.MTime = &mtime
		}

		resp, err := conn.Retr(path)
		if err != nil {
			return ingesterr.Transportf(err, "ftp retr %s", path)
		}
		defer resp.Close()

		data, err := io.ReadAll(resp)
		if err != nil {
			return ingesterr.Transportf(err, "ftp read %s", path)
		}
		result.Data = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// List returns every entry under path.
func (c *FTPClient) List(ctx context.Context, path string) ([]FTPEntry, error) {
	var entries []FTPEntry
	err := c.retry.Do(ctx, func() error {
		conn, err := c.connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Quit()

		raw, err := conn.List(path)
		if err != nil {
			return ingesterr.Transportf(err, "ftp list %s", path)
		}
		entries = make([]FTPEntry, 0, len(raw))
		for _, e := range raw {
			entries = append(entries, FTPEntry{
				Name:  e.Name,
				IsDir: e.Type == ftp.EntryTypeFolder,
				Size:  e.Size,
				MTime: e.Time,
			})
		}
		return nil
	})
	return entries, err
}

// ListDirs is List filtered to directory entries.
func (c *FTPClient) ListDirs(ctx context.Context, path string) ([]FTPEntry, error) {
	all, err := c.List(ctx, path)
	if err != nil {
		return nil, err
	}
	return filterEntries(all, true), nil
}

// ListFiles is List filtered to non-directory entries.
func (c *FTPClient) ListFiles(ctx context.Context, path string) ([]FTPEntry, error) {
	all, err := c.List(ctx, path)
	if err != nil {
		return nil, err
	}
	return filterEntries(all, false), nil
}

func filterEntries(entries []FTPEntry, dirs bool) []FTPEntry {
	out := make([]FTPEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir == dirs {
			out = append(out, e)
		}
	}
	return out
}
