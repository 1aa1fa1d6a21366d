// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"encoding/binary"
	"math"
	"sync"
)

// l1TableSize is the 65536 (x, y) pairs a diploid biallelic unphased 8-bit
// layout-2 sample can encode (spec §4.9 "fast L2 -> L1").
const l1TableSize = 256 * 256

var (
	l1Table     [l1TableSize][3]uint16
	l1TableOnce sync.Once
)

func buildL1Table() {
	for x := 0; x < 256; x++ {
		for y := 0; y < 256; y++ {
			l1Table[x<<8|y] = computeL1Triple(uint32(x), uint32(y))
		}
	}
}

// computeL1Triple implements spec §4.9 exactly: a = round(x*32768/255), b =
// round(y*32768/255), c = round((255-x-y)*32768/255). Each component is
// rounded independently, so a+b+c is only guaranteed to land within 1 of
// 32768 (spec §8's rounding-slack property), not exactly equal to it.
func computeL1Triple(x, y uint32) [3]uint16 {
	const total = 32768.0
	const denom = 255.0
	z := float64(255) - float64(x) - float64(y)
	a := math.Round(float64(x) * total / denom)
	b := math.Round(float64(y) * total / denom)
	c := math.Round(z * total / denom)
	if c < 0 {
		c = 0
	}
	return [3]uint16{uint16(a), uint16(b), uint16(c)}
}

// TranscodeToLayout1Payload converts a diploid/biallelic/unphased, 8-bit
// layout-2 block into the uncompressed layout-1 probability payload: 3
// little-endian uint16 values per sample (spec §4.9). The caller
// zlib-compresses the result and writes it with its length prefix (layout 1
// blocks are always zlib, regardless of the destination file's declared
// compression). Fails with UnsupportedTranscode if block.Bits != 8.
func TranscodeToLayout1Payload(block *GenotypeDataBlock) ([]byte, error) {
	if block.Bits != 8 {
		return nil, Errorf(KindUnsupportedTranscode, "-v11 requires 8-bit encoding, got %d-bit", block.Bits)
	}
	l1TableOnce.Do(buildL1Table)
	buf := make([]byte, 6*block.NumSamples)
	for i := 0; i < block.NumSamples; i++ {
		var triple [3]uint16
		if block.Missing[i] {
			triple = [3]uint16{0, 0, 0}
		} else {
			x, y := block.SampleEntry(i)
			triple = l1Table[x<<8|y]
		}
		off := i * 6
		binary.LittleEndian.PutUint16(buf[off:], triple[0])
		binary.LittleEndian.PutUint16(buf[off+2:], triple[1])
		binary.LittleEndian.PutUint16(buf[off+4:], triple[2])
	}
	return buf, nil
}
