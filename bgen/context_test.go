// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlagsRoundTrip(t *testing.T) {
	cases := []struct {
		compression Compression
		layout      Layout
		hasIDs      bool
	}{
		{CompressionNone, Layout1, false},
		{CompressionZlib, Layout2, true},
		{CompressionZstd, Layout2, false},
	}
	for _, c := range cases {
		flags := EncodeFlags(c.compression, c.layout, c.hasIDs)
		gotCompression, gotLayout, gotHasIDs := flags.Decode()
		require.Equal(t, c.compression, gotCompression)
		require.Equal(t, c.layout, gotLayout)
		require.Equal(t, c.hasIDs, gotHasIDs)
	}
}

func TestHeaderBlockRoundTrip(t *testing.T) {
	ctx := &Context{
		Layout:               Layout2,
		Compression:          CompressionZlib,
		HasSampleIdentifiers: true,
		NumberOfSamples:      10,
		NumberOfVariants:     3,
		FreeData:             []byte("extra"),
	}
	var buf bytes.Buffer
	n, err := WriteHeaderBlock(&buf, ctx)
	require.NoError(t, err)
	require.EqualValues(t, ctx.HeaderSize(), n)

	got, consumed, err := ReadHeaderBlock(&buf)
	require.NoError(t, err)
	require.EqualValues(t, ctx.HeaderSize(), consumed)
	require.Equal(t, ctx.Layout, got.Layout)
	require.Equal(t, ctx.Compression, got.Compression)
	require.Equal(t, ctx.HasSampleIdentifiers, got.HasSampleIdentifiers)
	require.Equal(t, ctx.NumberOfSamples, got.NumberOfSamples)
	require.Equal(t, ctx.NumberOfVariants, got.NumberOfVariants)
	require.Equal(t, ctx.FreeData, got.FreeData)
}

func TestReadHeaderBlockRejectsUnknownLayout(t *testing.T) {
	ctx := &Context{Layout: Layout1, Compression: CompressionNone}
	var buf bytes.Buffer
	_, err := WriteHeaderBlock(&buf, ctx)
	require.NoError(t, err)
	raw := buf.Bytes()
	// flags word is the last 4 bytes; corrupt the layout bits to value 7.
	raw[len(raw)-4] = (raw[len(raw)-4] &^ 0x3c) | (7 << 2)
	_, _, err = ReadHeaderBlock(bytes.NewReader(raw))
	require.Error(t, err)
	require.True(t, Is(KindUnsupportedLayout, err))
}

func TestFileMetadataMatches(t *testing.T) {
	a := FileMetadata{Size: 100, First1000: []byte("abc")}
	b := FileMetadata{Size: 100, First1000: []byte("abc"), LastWriteTime: 999}
	require.True(t, a.Matches(b))

	c := FileMetadata{Size: 101, First1000: []byte("abc")}
	require.False(t, a.Matches(c))
}
