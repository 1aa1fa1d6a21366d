// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadAndUnpackV12GenotypeDataBlock_FastPath(t *testing.T) {
	ctx := &Context{NumberOfSamples: 3}
	payload := buildLayout2Payload(3, 8, [][2]uint64{{255, 0}, {0, 0}, {100, 50}}, []bool{false, true, false})

	block, err := ReadAndUnpackV12GenotypeDataBlock(payload, ctx)
	require.NoError(t, err)
	require.Equal(t, 3, block.NumSamples)
	require.Equal(t, 8, block.Bits)
	require.Equal(t, []bool{false, true, false}, block.Missing)

	x, y := block.SampleEntry(0)
	require.EqualValues(t, 255, x)
	require.EqualValues(t, 0, y)
	x, y = block.SampleEntry(2)
	require.EqualValues(t, 100, x)
	require.EqualValues(t, 50, y)
}

func TestReadAndUnpackV12GenotypeDataBlock_RejectsPhased(t *testing.T) {
	ctx := &Context{NumberOfSamples: 1}
	payload := buildLayout2Payload(1, 8, [][2]uint64{{1, 2}}, []bool{false})
	// Flip the phased byte: consumed prefix is 4+2+1+1+numSamples bytes
	// before it (spec §4.5 field order).
	payload[4+2+1+1+1] = 1

	_, err := ReadAndUnpackV12GenotypeDataBlock(payload, ctx)
	require.Error(t, err)
	require.True(t, Is(KindUnsupportedTranscode, err))
}

func TestReadAndUnpackV12GenotypeDataBlock_RejectsWideBits(t *testing.T) {
	ctx := &Context{NumberOfSamples: 1}
	payload := buildLayout2Payload(1, 16, [][2]uint64{{1, 2}}, []bool{false})
	_, err := ReadAndUnpackV12GenotypeDataBlock(payload, ctx)
	require.Error(t, err)
	require.True(t, Is(KindUnsupportedTranscode, err))
}

// recordingSink captures every call ParseProbabilityData makes, for
// asserting the generic decode path against hand-computed expectations.
type recordingSink struct {
	numSamples, numAlleles int
	samples                []sampleRecord
}

type sampleRecord struct {
	ploidy  int
	order   Order
	missing bool
	values  []float64
}

func (s *recordingSink) Initialise(numSamples, numAlleles int) {
	s.numSamples, s.numAlleles = numSamples, numAlleles
}
func (s *recordingSink) SetMinMaxPloidy(min, max uint8) {}
func (s *recordingSink) SetSample(i int) bool {
	s.samples = append(s.samples, sampleRecord{})
	return true
}
func (s *recordingSink) SetNumberOfEntries(ploidy, numAlleles int, order Order, valueType ValueType) {
	cur := &s.samples[len(s.samples)-1]
	cur.ploidy = ploidy
	cur.order = order
	cur.missing = valueType == ValueTypeMissing
	cur.values = make([]float64, numProbabilityEntries(ploidy, numAlleles, order == OrderPhased))
}
func (s *recordingSink) SetValue(entry int, value float64) {
	s.samples[len(s.samples)-1].values[entry] = value
}
func (s *recordingSink) SetMissing(entry int) {}
func (s *recordingSink) Finalise()             {}

func TestParseProbabilityData_Unphased(t *testing.T) {
	ctx := &Context{NumberOfSamples: 2}
	// 8-bit diploid biallelic: 2 stored entries per sample, denom 255.
	payload := buildLayout2Payload(2, 8, [][2]uint64{{255, 0}, {0, 0}}, []bool{false, true})

	var sink recordingSink
	require.NoError(t, ParseProbabilityData(payload, ctx, &sink))
	require.Equal(t, 2, sink.numSamples)
	require.Equal(t, 2, sink.numAlleles)
	require.Len(t, sink.samples, 2)

	require.False(t, sink.samples[0].missing)
	require.InDelta(t, 1.0, sink.samples[0].values[0], 1e-9)
	require.InDelta(t, 0.0, sink.samples[0].values[1], 1e-9)

	require.True(t, sink.samples[1].missing)
}
