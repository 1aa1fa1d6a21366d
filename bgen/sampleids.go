// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import "io"

// ReadSampleIdentifierBlock decodes a standalone sample-identifier block
// from r: a u32 block_byte_length, a u32 number_of_samples, then that many
// u16-length-prefixed names (spec §4.3, §4.10). It returns the names as a
// []string, rather than delivering them one at a time the way a View's
// GetSampleIds callback does, together with the block's size in bytes.
func ReadSampleIdentifierBlock(r io.Reader) ([]string, int64, error) {
	br := newBinaryReader(r)
	blockLen, err := br.readU32()
	if err != nil {
		return nil, 0, err
	}
	n, err := br.readU32()
	if err != nil {
		return nil, 0, err
	}
	ids := make([]string, n)
	for i := range ids {
		s, err := br.readString()
		if err != nil {
			return nil, 0, err
		}
		ids[i] = s
	}
	return ids, 4 + int64(blockLen), nil
}

// WriteSampleIdentifierBlock writes ids as a sample-identifier block,
// returning the number of bytes written (including the leading
// block_byte_length field).
func WriteSampleIdentifierBlock(w io.Writer, ids []string) (int64, error) {
	bw := newBinaryWriter(w)
	blockLen := 4 // number_of_samples field
	for _, s := range ids {
		blockLen += 2 + len(s)
	}
	if err := bw.writeU32(uint32(blockLen)); err != nil {
		return bw.n, err
	}
	if err := bw.writeU32(uint32(len(ids))); err != nil {
		return bw.n, err
	}
	for _, s := range ids {
		if err := bw.writeString(s); err != nil {
			return bw.n, err
		}
	}
	return bw.n, nil
}

// SampleIdentifierBlockSize returns the on-disk size of ids's
// sample-identifier block, as WriteSampleIdentifierBlock would produce it.
func SampleIdentifierBlockSize(ids []string) uint32 {
	size := uint32(8) // block_byte_length + number_of_samples
	for _, s := range ids {
		size += 2 + uint32(len(s))
	}
	return size
}
