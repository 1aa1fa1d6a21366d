// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryReaderWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := newBinaryWriter(&buf)
	require.NoError(t, w.writeU8(7))
	require.NoError(t, w.writeU16(300))
	require.NoError(t, w.writeU32(70000))
	require.NoError(t, w.writeU64(1<<40))
	require.NoError(t, w.writeI32(-5))
	require.NoError(t, w.writeString("hello"))
	require.NoError(t, w.writeBytesU32([]byte("world")))
	require.EqualValues(t, 1+2+4+8+4+(2+5)+(4+5), w.n)

	r := newBinaryReader(&buf)
	u8, err := r.readU8()
	require.NoError(t, err)
	require.EqualValues(t, 7, u8)
	u16, err := r.readU16()
	require.NoError(t, err)
	require.EqualValues(t, 300, u16)
	u32, err := r.readU32()
	require.NoError(t, err)
	require.EqualValues(t, 70000, u32)
	u64, err := r.readU64()
	require.NoError(t, err)
	require.EqualValues(t, 1<<40, u64)
	i32, err := r.readI32()
	require.NoError(t, err)
	require.EqualValues(t, -5, i32)
	s, err := r.readString()
	require.NoError(t, err)
	require.Equal(t, "hello", s)
	b, err := r.readBytesU32()
	require.NoError(t, err)
	require.Equal(t, "world", string(b))
}

func TestBinaryReaderTruncated(t *testing.T) {
	r := newBinaryReader(bytes.NewReader([]byte{1, 2}))
	_, err := r.readU32()
	require.Error(t, err)
	require.True(t, Is(KindTruncatedInput, err))
}
