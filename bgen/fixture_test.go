// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"bytes"
	"encoding/binary"
)

// packBits packs values (each `bits` wide) into a byte slice using the same
// LSB-first bit-packing readBits expects: earlier values occupy the
// lower-order bits of the stream, and a value may straddle a byte boundary.
func packBits(values []uint64, bits int) []byte {
	var out []byte
	var acc uint64
	var n uint
	mask := uint64(1)<<uint(bits) - 1
	for _, v := range values {
		acc |= (v & mask) << n
		n += uint(bits)
		for n >= 8 {
			out = append(out, byte(acc))
			acc >>= 8
			n -= 8
		}
	}
	if n > 0 {
		out = append(out, byte(acc))
	}
	return out
}

// buildLayout2Payload assembles an uncompressed layout-2 probability payload
// (spec §4.5) for numSamples diploid, biallelic, unphased samples: header
// fields followed by 2 packed `bits`-wide entries per sample (missing
// samples included: their entries still occupy the bitstream), exactly as
// readProbabilityHeader/ReadAndUnpackV12GenotypeDataBlock expect.
func buildLayout2Payload(numSamples int, bits int, entries [][2]uint64, missing []bool) []byte {
	var buf bytes.Buffer
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(numSamples))
	buf.Write(u32[:])
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], 2) // number_of_alleles
	buf.Write(u16[:])
	buf.WriteByte(2) // min_ploidy
	buf.WriteByte(2) // max_ploidy
	for i := 0; i < numSamples; i++ {
		p := byte(2)
		if missing[i] {
			p |= 0x80
		}
		buf.WriteByte(p)
	}
	buf.WriteByte(0) // phased = false
	buf.WriteByte(byte(bits))

	var values []uint64
	for i := 0; i < numSamples; i++ {
		values = append(values, entries[i][0], entries[i][1])
	}
	buf.Write(packBits(values, bits))
	return buf.Bytes()
}

// fixtureVariant bundles a Variant with its already-built, uncompressed
// probability payload for buildBGENBytes.
type fixtureVariant struct {
	variant *Variant
	payload []byte
}

// buildBGENBytes serializes a complete, uncompressed (CompressionNone),
// layout-2 BGEN file in memory: offset, header, optional sample-identifier
// block, then each variant's identifying data followed by its u32
// compressed_size / u32 uncompressed_size / raw payload (spec §4.3-§4.6).
// Building fixtures this way -- rather than shipping binary testdata files
// -- keeps every test's input self-describing in Go.
func buildBGENBytes(sampleIDs []string, variants []fixtureVariant) []byte {
	return buildBGENBytesWithFreeData(sampleIDs, variants, nil)
}

// buildBGENBytesWithFreeData is buildBGENBytes with an explicit free_data
// block, for tests exercising EditFreeData's exact-length overwrite.
func buildBGENBytesWithFreeData(sampleIDs []string, variants []fixtureVariant, freeData []byte) []byte {
	ctx := &Context{
		Layout:               Layout2,
		Compression:          CompressionNone,
		HasSampleIdentifiers: len(sampleIDs) > 0,
		NumberOfSamples:      uint32(len(sampleIDs)),
		NumberOfVariants:     uint32(len(variants)),
		FreeData:             freeData,
	}

	var body bytes.Buffer
	if ctx.HasSampleIdentifiers {
		WriteSampleIdentifierBlock(&body, sampleIDs)
	}
	for _, fv := range variants {
		WriteVariant(&body, ctx, fv.variant)
		var sizes [8]byte
		binary.LittleEndian.PutUint32(sizes[0:4], uint32(len(fv.payload)+4))
		binary.LittleEndian.PutUint32(sizes[4:8], uint32(len(fv.payload)))
		body.Write(sizes[:])
		body.Write(fv.payload)
	}

	var out bytes.Buffer
	offset := ctx.HeaderSize()
	if ctx.HasSampleIdentifiers {
		offset += SampleIdentifierBlockSize(sampleIDs)
	}
	WriteOffset(&out, offset)
	WriteHeaderBlock(&out, ctx)
	out.Write(body.Bytes())
	return out.Bytes()
}
