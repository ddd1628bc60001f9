// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package transport

import (
	"bufio"
	"io"

	"github.com/klauspost/compress/gzip"
)

// gzipMagic is the two-byte header every gzip stream starts with.
var gzipMagic = [2]byte{0x1f, 0x8b}

// Decompress wraps r in a gzip reader if its first two bytes carry the
// gzip magic number, otherwise returns r unchanged wrapped for a
// uniform io.ReadCloser return type. Upstream sources publish some
// files plain and others gzip-compressed (often without a ".gz"
// extension change on mirrors), so sniffing the stream itself is more
// reliable than trusting the filename.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	peek, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(peek) == 2 && peek[0] == gzipMagic[0] && peek[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return gz, nil
	}
	return io.NopCloser(br), nil
}
