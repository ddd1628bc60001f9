// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package hashutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMD5Bytes(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", MD5Bytes(nil))
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", MD5Bytes([]byte("abc")))
}

func TestSHA256Bytes(t *testing.T) {
	got := SHA256Bytes([]byte("abc"))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
}

func TestFileHashesStreamCorrectly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	payload := strings.Repeat("x", 3*chunkSize+17)
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	md5Got, err := MD5File(path)
	require.NoError(t, err)
	assert.Equal(t, MD5Bytes([]byte(payload)), md5Got)

	sha256Got, err := SHA256File(path)
	require.NoError(t, err)
	assert.Equal(t, SHA256Bytes([]byte(payload)), sha256Got)
}

func TestSHA256Reader(t *testing.T) {
	payload := []byte("streamed content")
	got, err := SHA256Reader(strings.NewReader(string(payload)))
	require.NoError(t, err)
	assert.Equal(t, SHA256Bytes(payload), got)
}

func TestVerifyCaseInsensitive(t *testing.T) {
	assert.Equal(t, VerifyOK, Verify("AABBCC", "aabbcc"))
	assert.Equal(t, VerifyMismatch, Verify("aabbcc", "ddeeff"))
}
