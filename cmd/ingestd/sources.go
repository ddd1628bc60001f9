// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kraklabs/bdp-ingest/internal/config"
	"github.com/kraklabs/bdp-ingest/pkg/discovery"
	"github.com/kraklabs/bdp-ingest/pkg/parser"
	"github.com/kraklabs/bdp-ingest/pkg/transport"
)

// sourceWiring is everything a single config.Source needs to run a
// pipeline: a Discoverer over its release directory, a registered
// Parser for its record format, and the transport used to fetch an
// individual release's raw file once discovered.
type sourceWiring struct {
	cfg        config.Source
	discoverer discovery.Discoverer
	format     discovery.FormatParser
	parser     *parser.FlatFileParser
	download   func(ctx context.Context, url string) ([]byte, error)
}

// buildSourceWiring wires one config.Source's transport, discoverer,
// and parser from its YAML fields. Exactly one of FTPHost/HTTPBaseURL
// selects the transport; ReleaseFormat selects the release-directory
// naming rule.
func buildSourceWiring(src config.Source) (*sourceWiring, error) {
	var lister discovery.DirLister
	var download func(ctx context.Context, url string) ([]byte, error)

	switch {
	case src.FTPHost != "":
		client := transport.NewFTPClient(src.FTPHost)
		lister = transport.FTPDirLister{Client: client, Path: src.FTPPath, OnlyDirs: true}
		download = client.DownloadFile
	case src.HTTPBaseURL != "":
		client := transport.NewHTTPClient(2 * time.Minute)
		lister = transport.HTTPDirLister{Client: client, URL: src.HTTPBaseURL}
		download = client.Download
	default:
		return nil, fmt.Errorf("source %s: neither ftp_host nor http_base_url set", src.Name)
	}

	baseURL := src.HTTPBaseURL
	if baseURL == "" {
		baseURL = src.FTPPath
	}

	var format discovery.FormatParser
	switch src.ReleaseFormat {
	case "uniprot":
		format = discovery.UniProtFormat(baseURL)
	case "numeric":
		format = discovery.NumericReleaseFormat(baseURL)
	case "date":
		format = discovery.DateReleaseFormat(baseURL)
	default:
		return nil, fmt.Errorf("source %s: unknown release_format %q", src.Name, src.ReleaseFormat)
	}

	return &sourceWiring{
		cfg:        src,
		discoverer: discovery.NewDirectoryDiscoverer(lister, format),
		format:     format,
		parser: &parser.FlatFileParser{
			RecordType:    src.RecordType,
			IdentifierTag: src.IdentifierTag,
			NameTag:       src.NameTag,
		},
		download: download,
	}, nil
}
