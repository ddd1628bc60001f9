// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ingesterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Transportf(cause, "fetch %s", "ftp.example.org/file.dat")

	assert.Equal(t, Transport, err.Kind)
	assert.Contains(t, err.Error(), "fetch ftp.example.org/file.dat")
	assert.Contains(t, err.Error(), "timeout")
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Parsef(cause, "range [0,10]")

	assert.ErrorIs(t, err, cause)
}

func TestIs(t *testing.T) {
	err := ChecksumMismatchf("expected %s got %s", "aaaa", "bbbb")

	assert.True(t, Is(err, ChecksumMismatch))
	assert.False(t, Is(err, Transport))

	wrapped := errors.New("wrapped: " + err.Error())
	assert.False(t, Is(wrapped, ChecksumMismatch))
}

func TestNotFoundHasNoCause(t *testing.T) {
	err := NotFoundf("version %s not found", "2025_01")
	require.Nil(t, err.Cause)
	assert.Equal(t, NotFound, err.Kind)
}
