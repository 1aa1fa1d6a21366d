// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies the compression codec applied to each variant's
// probability payload (spec §3, §6 flags bits 0-1).
type Compression int

const (
	// CompressionNone stores probability blocks uncompressed.
	CompressionNone Compression = 0
	// CompressionZlib compresses probability blocks with zlib.
	CompressionZlib Compression = 1
	// CompressionZstd compresses probability blocks with zstd.
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZlib:
		return "zlib"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

var zstdEncoder *zstd.Encoder
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	if zstdEncoder, err = zstd.NewWriter(nil); err != nil {
		panic(err)
	}
	if zstdDecoder, err = zstd.NewReader(nil); err != nil {
		panic(err)
	}
}

// Compress compresses data using the given codec at the given level (spec
// §4.2: "compress(bytes, level) -> bytes"). level is ignored for zstd,
// which klauspost/compress tunes via encoder options rather than a
// flate-style integer.
func Compress(kind Compression, data []byte, level int) ([]byte, error) {
	return compressBytes(kind, data, level)
}

// Decompress decompresses data using the given codec and verifies the
// decoded length matches expectedSize (spec §4.2: "decompress(bytes,
// expected_size) -> bytes").
func Decompress(kind Compression, data []byte, expectedSize int) ([]byte, error) {
	return decompressBytes(kind, data, expectedSize)
}

// compressBytes compresses data using the given codec at the given level
// (ignored for zstd, which klauspost/compress tunes via encoder options
// rather than a flate-style integer).
func compressBytes(kind Compression, data []byte, level int) ([]byte, error) {
	switch kind {
	case CompressionNone:
		return data, nil
	case CompressionZlib:
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, Errorf(KindUnsupportedCompression, "zlib level %d: %v", level, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	default:
		return nil, Errorf(KindUnsupportedCompression, "unsupported compression kind %d", kind)
	}
}

// decompressBytes decompresses data using the given codec, and verifies the
// decompressed length matches expectedSize exactly (spec §4.2:
// "implementations must verify the decoded length matches and fail with
// CompressionMismatch otherwise").
func decompressBytes(kind Compression, data []byte, expectedSize int) ([]byte, error) {
	var out []byte
	switch kind {
	case CompressionNone:
		out = data
	case CompressionZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, Errorf(KindCompressionMismatch, "zlib header: %v", err)
		}
		defer r.Close()
		out, err = io.ReadAll(r)
		if err != nil {
			return nil, Errorf(KindCompressionMismatch, "zlib payload: %v", err)
		}
	case CompressionZstd:
		var err error
		out, err = zstdDecoder.DecodeAll(data, make([]byte, 0, expectedSize))
		if err != nil {
			return nil, Errorf(KindCompressionMismatch, "zstd payload: %v", err)
		}
	default:
		return nil, Errorf(KindUnsupportedCompression, "unsupported compression kind %d", kind)
	}
	if len(out) != expectedSize {
		return nil, Errorf(KindCompressionMismatch, "decompressed %d bytes, expected %d", len(out), expectedSize)
	}
	return out, nil
}
