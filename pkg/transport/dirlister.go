// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package transport

import "context"

// FTPDirLister adapts FTPClient.ListFiles and ListDirs to
// pkg/discovery's DirLister contract, so a DirectoryDiscoverer can
// list an FTP release directory without this package importing
// pkg/discovery.
type FTPDirLister struct {
	Client   *FTPClient
	Path     string
	OnlyDirs bool
}

// Names implements pkg/discovery.DirLister.
func (l FTPDirLister) Names(ctx context.Context) ([]string, error) {
	var entries []FTPEntry
	var err error
	if l.OnlyDirs {
		entries, err = l.Client.ListDirs(ctx, l.Path)
	} else {
		entries, err = l.Client.ListFiles(ctx, l.Path)
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

// HTTPDirLister adapts HTTPClient.ListDirectoryIndex to
// pkg/discovery's DirLister contract.
type HTTPDirLister struct {
	Client *HTTPClient
	URL    string
}

// Names implements pkg/discovery.DirLister.
func (l HTTPDirLister) Names(ctx context.Context) ([]string, error) {
	entries, err := l.Client.ListDirectoryIndex(ctx, l.URL)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}
