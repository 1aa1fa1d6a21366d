// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranscodeToLayout1Payload(t *testing.T) {
	block := &GenotypeDataBlock{
		NumSamples: 2,
		Bits:       8,
		Missing:    []bool{false, true},
		Packed:     packBits([]uint64{255, 0, 0, 0}, 8),
	}
	payload, err := TranscodeToLayout1Payload(block)
	require.NoError(t, err)
	require.Len(t, payload, 12)

	aa := binary.LittleEndian.Uint16(payload[0:2])
	ab := binary.LittleEndian.Uint16(payload[2:4])
	bb := binary.LittleEndian.Uint16(payload[4:6])
	require.EqualValues(t, 32768, aa)
	require.EqualValues(t, 0, ab)
	require.EqualValues(t, 0, bb)

	// Missing sample renders as the all-zero triple.
	require.EqualValues(t, 0, binary.LittleEndian.Uint16(payload[6:8]))
	require.EqualValues(t, 0, binary.LittleEndian.Uint16(payload[8:10]))
	require.EqualValues(t, 0, binary.LittleEndian.Uint16(payload[10:12]))
}

func TestTranscodeToLayout1Payload_RejectsNon8Bit(t *testing.T) {
	block := &GenotypeDataBlock{NumSamples: 1, Bits: 4, Missing: []bool{false}, Packed: packBits([]uint64{1, 2}, 4)}
	_, err := TranscodeToLayout1Payload(block)
	require.Error(t, err)
	require.True(t, Is(KindUnsupportedTranscode, err))
}

func TestComputeL1Triple_SumsCloseToFullScale(t *testing.T) {
	for x := 0; x < 256; x += 17 {
		for y := 0; y < 256-x; y += 23 {
			triple := computeL1Triple(uint32(x), uint32(y))
			sum := int(triple[0]) + int(triple[1]) + int(triple[2])
			require.True(t, math.Abs(float64(sum-32768)) <= 1,
				"x=%d y=%d sum=%d", x, y, sum)
		}
	}
}
