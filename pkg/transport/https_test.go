// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexPage = `<html><body>
<a href="../">Parent Directory</a>
<a href="uniprot_sprot-2026_01.dat.gz">uniprot_sprot-2026_01.dat.gz</a>
<a href="uniprot_sprot-2026_02.dat.gz">uniprot_sprot-2026_02.dat.gz</a>
</body></html>`

func TestListDirectoryIndexSkipsParentLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(indexPage))
	}))
	defer srv.Close()

	c := NewHTTPClient(5 * time.Second)
	entries, err := c.ListDirectoryIndex(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "uniprot_sprot-2026_01.dat.gz", entries[0].Name)
	assert.Equal(t, "uniprot_sprot-2026_02.dat.gz", entries[1].Name)
}

func TestDownloadReturns404AsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(5 * time.Second)
	c.retry = RetryPolicy{MaxAttempts: 1}
	_, err := c.Download(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestDownloadSetsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewHTTPClient(5 * time.Second)
	data, err := c.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, userAgent, gotUA)
}
