// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import "bytes"

// Order distinguishes phased from unphased probability layouts (spec §3,
// §4.5).
type Order int

const (
	// OrderUnphased means probabilities are per-genotype-multiset.
	OrderUnphased Order = iota
	// OrderPhased means probabilities are per-haplotype, per-allele.
	OrderPhased
)

// ValueType distinguishes an ordinary probability entry from a missing one.
// It exists so a ProbabilitySink can be told the shape of a sample's
// entries once, up front, via SetNumberOfEntries, rather than inferring it
// from the sequence of SetValue/SetMissing calls.
type ValueType int

const (
	// ValueTypeProbability means entries are floating-point probabilities.
	ValueTypeProbability ValueType = iota
	// ValueTypeMissing means the sample carries no data; entries are absent.
	ValueTypeMissing
)

// ProbabilitySink is driven by ParseProbabilityData. Implementations
// receive one initialise/finalise pair per variant and one SetSample /
// SetNumberOfEntries / SetValue-or-SetMissing sequence per sample (spec
// §4.5, §9 "pluggable probability sinks").
type ProbabilitySink interface {
	Initialise(numSamples int, numAlleles int)
	SetMinMaxPloidy(min, max uint8)
	// SetSample announces the start of sample i's entries. A false return
	// tells the decoder to skip emitting SetValue/SetMissing calls for this
	// sample (the bitstream is still consumed, since every sample occupies
	// the same number of bits).
	SetSample(i int) bool
	SetNumberOfEntries(ploidy int, numAlleles int, order Order, valueType ValueType)
	SetValue(entry int, value float64)
	SetMissing(entry int)
	Finalise()
}

// probabilityHeader holds the fields common to every layout-2 probability
// payload, decoded once up front (spec §4.5).
type probabilityHeader struct {
	numSamples int
	numAlleles uint16
	minPloidy  uint8
	maxPloidy  uint8
	ploidy     []uint8 // low 6 bits: ploidy; high bit: missing
	phased     bool
	bits       int
	packed     []byte // remaining bytes after the fixed header, byte-aligned
}

func readProbabilityHeader(payload []byte, c *Context) (*probabilityHeader, error) {
	r := newBinaryReader(bytes.NewReader(payload))
	numSamples, err := r.readU32()
	if err != nil {
		return nil, err
	}
	if numSamples != c.NumberOfSamples {
		return nil, Errorf(KindInvalidVariantRecord, "probability block sample count %d does not match header %d", numSamples, c.NumberOfSamples)
	}
	numAlleles, err := r.readU16()
	if err != nil {
		return nil, err
	}
	minPloidy, err := r.readU8()
	if err != nil {
		return nil, err
	}
	maxPloidy, err := r.readU8()
	if err != nil {
		return nil, err
	}
	ploidy := make([]uint8, numSamples)
	for i := range ploidy {
		if ploidy[i], err = r.readU8(); err != nil {
			return nil, err
		}
	}
	phasedByte, err := r.readU8()
	if err != nil {
		return nil, err
	}
	if phasedByte > 1 {
		return nil, Errorf(KindInvalidVariantRecord, "phased byte must be 0 or 1, got %d", phasedByte)
	}
	bits, err := r.readU8()
	if err != nil {
		return nil, err
	}
	if bits < 1 || bits > 32 {
		return nil, Errorf(KindInvalidVariantRecord, "bits must be in 1..32, got %d", bits)
	}
	consumed := 4 + 2 + 1 + 1 + int(numSamples) + 1 + 1
	return &probabilityHeader{
		numSamples: int(numSamples),
		numAlleles: numAlleles,
		minPloidy:  minPloidy,
		maxPloidy:  maxPloidy,
		ploidy:     ploidy,
		phased:     phasedByte == 1,
		bits:       int(bits),
		packed:     payload[consumed:],
	}, nil
}

// numProbabilityEntries computes the number of explicit (stored) entries
// per sample for the given ploidy, allele count, and phasing (spec §3).
func numProbabilityEntries(ploidy int, numAlleles int, phased bool) int {
	if phased {
		return ploidy * (numAlleles - 1)
	}
	return int(binomial(ploidy+numAlleles-1, numAlleles-1)) - 1
}

func binomial(n, k int) int64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	result := int64(1)
	for i := 0; i < k; i++ {
		result = result * int64(n-i) / int64(i+1)
	}
	return result
}

// readBits reads a `bits`-wide unsigned integer starting at bitOffset within
// packed, per spec §4.5: "reading a 32-bit word straddling the current bit
// offset, masking (1<<bits)-1". A 64-bit window is used here instead of a
// 32-bit one so that bits==32 combined with a nonzero bit-in-byte offset
// never truncates.
func readBits(packed []byte, bitOffset int, bits int) uint64 {
	byteOffset := bitOffset / 8
	bitInByte := uint(bitOffset % 8)
	var word uint64
	for i := 0; i < 8; i++ {
		idx := byteOffset + i
		if idx < len(packed) {
			word |= uint64(packed[idx]) << uint(8*i)
		}
	}
	word >>= bitInByte
	mask := uint64(1)<<uint(bits) - 1
	return word & mask
}

// ParseProbabilityData drives sink through the decoded contents of a
// layout-2 probability payload (already decompressed). It is the generic,
// sink-polymorphic decoder described in spec §4.5 and §9; the fast path for
// common diploid/biallelic/unphased/low-bit-width blocks is
// ReadAndUnpackV12GenotypeDataBlock instead, and bypasses this function and
// the sink entirely.
func ParseProbabilityData(payload []byte, c *Context, sink ProbabilitySink) error {
	h, err := readProbabilityHeader(payload, c)
	if err != nil {
		return err
	}
	sink.Initialise(h.numSamples, int(h.numAlleles))
	sink.SetMinMaxPloidy(h.minPloidy, h.maxPloidy)

	order := OrderUnphased
	if h.phased {
		order = OrderPhased
	}
	denom := float64(uint64(1)<<uint(h.bits) - 1)
	bitOffset := 0
	for i := 0; i < h.numSamples; i++ {
		ploidy := int(h.ploidy[i] & 0x3f)
		missing := h.ploidy[i]&0x80 != 0
		numEntries := numProbabilityEntries(ploidy, int(h.numAlleles), h.phased)

		keep := sink.SetSample(i)
		if missing {
			if keep {
				sink.SetNumberOfEntries(ploidy, int(h.numAlleles), order, ValueTypeMissing)
				for e := 0; e < numEntries; e++ {
					sink.SetMissing(e)
				}
			}
		} else if keep {
			sink.SetNumberOfEntries(ploidy, int(h.numAlleles), order, ValueTypeProbability)
		}
		for e := 0; e < numEntries; e++ {
			raw := readBits(h.packed, bitOffset, h.bits)
			bitOffset += h.bits
			if keep && !missing {
				sink.SetValue(e, float64(raw)/denom)
			}
		}
	}
	sink.Finalise()
	return nil
}

// GenotypeDataBlock is the raw, still-bit-packed view of a layout-2
// diploid/biallelic/unphased probability block with bits in {1,2,4,8},
// returned by the fast path described in spec §4.5 and consumed by the
// fast transcoders in transcode_l1.go and transcode_vcf.go without paying
// per-sample floating-point decode cost.
type GenotypeDataBlock struct {
	NumSamples int
	Bits       int
	Missing    []bool
	// Packed holds, for each non-missing sample i, 2*Bits bits starting at
	// bit offset 2*i*Bits, exactly as laid out on disk (spec §4.9). Missing
	// samples still occupy their 2*Bits slot in the bitstream but its
	// content is unspecified.
	Packed []byte
}

// ReadAndUnpackV12GenotypeDataBlock parses an already-decompressed
// probability payload and returns its raw packed view, iff it is diploid, biallelic,
// unphased, and bits in {1,2,4,8}. Otherwise it returns
// UnsupportedTranscode so the caller can fall back to ParseProbabilityData.
func ReadAndUnpackV12GenotypeDataBlock(payload []byte, c *Context) (*GenotypeDataBlock, error) {
	h, err := readProbabilityHeader(payload, c)
	if err != nil {
		return nil, err
	}
	if h.phased {
		return nil, Errorf(KindUnsupportedTranscode, "fast path requires unphased data")
	}
	if h.numAlleles != 2 {
		return nil, Errorf(KindUnsupportedTranscode, "fast path requires biallelic variants, got %d alleles", h.numAlleles)
	}
	if h.minPloidy != 2 || h.maxPloidy != 2 {
		return nil, Errorf(KindUnsupportedTranscode, "fast path requires diploid variants")
	}
	switch h.bits {
	case 1, 2, 4, 8:
	default:
		return nil, Errorf(KindUnsupportedTranscode, "fast path requires bits in {1,2,4,8}, got %d", h.bits)
	}
	missing := make([]bool, h.numSamples)
	for i, p := range h.ploidy {
		if p&0x3f != 2 {
			return nil, Errorf(KindUnsupportedTranscode, "fast path requires every sample to have ploidy 2")
		}
		missing[i] = p&0x80 != 0
	}
	return &GenotypeDataBlock{
		NumSamples: h.numSamples,
		Bits:       h.bits,
		Missing:    missing,
		Packed:     h.packed,
	}, nil
}

// SampleEntry returns the two bits-wide raw probability components (x, y)
// for non-missing sample i, as packed on disk (spec §4.9).
func (b *GenotypeDataBlock) SampleEntry(i int) (x, y uint32) {
	bitOffset := 2 * i * b.Bits
	x = uint32(readBits(b.Packed, bitOffset, b.Bits))
	y = uint32(readBits(b.Packed, bitOffset+b.Bits, b.Bits))
	return
}
