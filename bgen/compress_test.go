// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility: " +
		"the quick brown fox jumps over the lazy dog")
	for _, kind := range []Compression{CompressionNone, CompressionZlib, CompressionZstd} {
		compressed, err := Compress(kind, data, 6)
		require.NoError(t, err, kind)
		decompressed, err := Decompress(kind, compressed, len(data))
		require.NoError(t, err, kind)
		require.Equal(t, data, decompressed, kind)
	}
}

func TestDecompressLengthMismatch(t *testing.T) {
	data := []byte("some payload bytes")
	compressed, err := Compress(CompressionZlib, data, 6)
	require.NoError(t, err)
	_, err = Decompress(CompressionZlib, compressed, len(data)+1)
	require.Error(t, err)
	require.True(t, Is(KindCompressionMismatch, err))
}

func TestCompressUnsupportedKind(t *testing.T) {
	_, err := Compress(Compression(99), []byte("x"), 0)
	require.Error(t, err)
	require.True(t, Is(KindUnsupportedCompression, err))
}
