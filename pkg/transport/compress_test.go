// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecompressPlainPassthrough(t *testing.T) {
	r, err := Decompress(bytes.NewReader([]byte("ID   TEST\n//\n")))
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "ID   TEST\n//\n", string(data))
}

func TestDecompressGzipStream(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("ID   TEST\n//\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	r, err := Decompress(&buf)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "ID   TEST\n//\n", string(data))
}
