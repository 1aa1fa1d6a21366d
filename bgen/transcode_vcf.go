// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// gtCallThreshold is the minimum probability a genotype (or, for phased
// data, a single haplotype's allele) must exceed to be called in the VCF GT
// field (spec §4.9 "GT derived by a 0.9 threshold", §4.9 generic writer
// "find the first probability exceeding 0.9"). At or below threshold the
// call is emitted as missing ("./." or ".").
const gtCallThreshold = 0.9

// decimalDigitsForBits picks how many decimal places to print GP/HP values
// with. For the four fast-path bit widths this is spec §4.9's literal
// table; wider bit widths only arise on the generic path, where the same
// progression is extended so a 16- or 32-bit encoding isn't truncated to
// 8-bit precision.
func decimalDigitsForBits(bits int) int {
	switch bits {
	case 1:
		return 0
	case 2:
		return 2
	case 4:
		return 3
	case 8:
		return 4
	}
	switch {
	case bits < 1:
		return 0
	case bits < 8:
		return 3
	case bits <= 16:
		return 6
	default:
		return 9
	}
}

var (
	vcfTableMu    sync.Mutex
	vcfTableCache = map[int][][]byte{}
)

// getVCFTable returns the lazily-built lookup table for diploid, biallelic,
// unphased samples at the given bit width: table[x<<bits|y] is the
// precomputed "GT:GP" tail for that (x, y) pair.
func getVCFTable(bits int) [][]byte {
	vcfTableMu.Lock()
	defer vcfTableMu.Unlock()
	if t, ok := vcfTableCache[bits]; ok {
		return t
	}
	n := 1 << uint(bits)
	denom := float64(n - 1)
	digits := decimalDigitsForBits(bits)
	table := make([][]byte, n*n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			table[x<<uint(bits)|y] = formatDiploidBiallelicVCF(float64(x)/denom, float64(y)/denom, digits)
		}
	}
	vcfTableCache[bits] = table
	return table
}

func formatDiploidBiallelicVCF(pAA, pAB float64, digits int) []byte {
	pBB := 1 - pAA - pAB
	if pBB < 0 {
		pBB = 0
	}
	gt := "./."
	switch {
	case pAA > gtCallThreshold:
		gt = "0/0"
	case pAB > gtCallThreshold:
		gt = "0/1"
	case pBB > gtCallThreshold:
		gt = "1/1"
	}
	return []byte(fmt.Sprintf("%s:%.*f,%.*f,%.*f", gt, digits, pAA, digits, pAB, digits, pBB))
}

// WriteVCFGenotypesFast writes one tab-prefixed sample field per sample in
// block directly to w, using the precomputed table for block.Bits (spec
// §4.10 fast VCF path).
func WriteVCFGenotypesFast(w *bufio.Writer, block *GenotypeDataBlock) error {
	table := getVCFTable(block.Bits)
	for i := 0; i < block.NumSamples; i++ {
		if err := w.WriteByte('\t'); err != nil {
			return err
		}
		if block.Missing[i] {
			if _, err := w.WriteString("./."); err != nil {
				return err
			}
			continue
		}
		x, y := block.SampleEntry(i)
		if _, err := w.Write(table[int(x)<<uint(block.Bits)|int(y)]); err != nil {
			return err
		}
	}
	return nil
}

// WriteVCFGenotypesLayout1 writes one tab-prefixed sample field per sample
// from an already-decompressed layout-1 probability payload: three
// little-endian u16 probabilities per sample scaled by 32768 (spec §4.5).
// A (0,0,0) triple is the layout-1 convention for a missing sample.
func WriteVCFGenotypesLayout1(w *bufio.Writer, payload []byte, numSamples int) error {
	const denom = 32768.0
	for i := 0; i < numSamples; i++ {
		if err := w.WriteByte('\t'); err != nil {
			return err
		}
		off := i * 6
		aa := binary.LittleEndian.Uint16(payload[off:])
		ab := binary.LittleEndian.Uint16(payload[off+2:])
		bb := binary.LittleEndian.Uint16(payload[off+4:])
		if aa == 0 && ab == 0 && bb == 0 {
			if _, err := w.WriteString("./."); err != nil {
				return err
			}
			continue
		}
		pAA, pAB, pBB := float64(aa)/denom, float64(ab)/denom, float64(bb)/denom
		gt := "./."
		switch {
		case pAA > gtCallThreshold:
			gt = "0/0"
		case pAB > gtCallThreshold:
			gt = "0/1"
		case pBB > gtCallThreshold:
			gt = "1/1"
		}
		if _, err := fmt.Fprintf(w, "%s:%.4f,%.4f,%.4f", gt, pAA, pAB, pBB); err != nil {
			return err
		}
	}
	return nil
}

// enumerateGenotypes lists every way to distribute ploidy copies across
// numAlleles alleles, as a vector of per-allele counts, in colex order: the
// order induced by comparing tuples from their highest-indexed coordinate
// down to their lowest (spec Glossary "colex order", §4.5, §9). This is the
// order ParseProbabilityData's entry indices assume. The last tuple in colex
// order -- all weight on the final allele -- is the implicit, unstored
// entry; every genotype before it corresponds to one stored probability.
func enumerateGenotypes(ploidy, numAlleles int) [][]int {
	var result [][]int
	current := make([]int, numAlleles)
	var rec func(remaining, alleleIdx int)
	rec = func(remaining, alleleIdx int) {
		if alleleIdx == numAlleles-1 {
			current[alleleIdx] = remaining
			result = append(result, append([]int{}, current...))
			return
		}
		for c := 0; c <= remaining; c++ {
			current[alleleIdx] = c
			rec(remaining-c, alleleIdx+1)
		}
	}
	rec(ploidy, 0)
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		for k := numAlleles - 1; k >= 0; k-- {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
	return result
}

// expandGenotype turns a per-allele count vector (e.g. allele 0 once,
// allele 2 once: [1,0,1]) into the sorted list of allele indices VCF's GT
// field expects ("0/2").
func expandGenotype(counts []int) []int {
	var out []int
	for allele, c := range counts {
		for k := 0; k < c; k++ {
			out = append(out, allele)
		}
	}
	return out
}

// vcfSink is a ProbabilitySink that streams VCF sample fields directly to
// an underlying writer, for the arbitrary-ploidy/allele-count/phasing case
// the fast path does not cover (spec §4.10 generic VCF path). It relies on
// SetSample(i+1) only being called once sample i's entries are fully
// delivered, so it flushes the previous sample lazily from there and
// flushes the final sample from Finalise.
type vcfSink struct {
	w          *bufio.Writer
	digits     int
	numAlleles int
	ploidy     int
	order      Order
	missing    bool
	entries    []float64
	haveSample bool
	err        error
}

func newVCFSink(w *bufio.Writer, bits int) *vcfSink {
	return &vcfSink{w: w, digits: decimalDigitsForBits(bits)}
}

func (s *vcfSink) Initialise(numSamples, numAlleles int) { s.numAlleles = numAlleles }
func (s *vcfSink) SetMinMaxPloidy(min, max uint8)        {}

func (s *vcfSink) SetSample(i int) bool {
	if s.haveSample {
		s.flush()
	}
	s.haveSample = true
	s.missing = false
	s.entries = nil
	return true
}

func (s *vcfSink) SetNumberOfEntries(ploidy, numAlleles int, order Order, valueType ValueType) {
	s.ploidy = ploidy
	s.order = order
	s.missing = valueType == ValueTypeMissing
	s.entries = make([]float64, numProbabilityEntries(ploidy, numAlleles, order == OrderPhased))
}

func (s *vcfSink) SetValue(entry int, value float64) { s.entries[entry] = value }
func (s *vcfSink) SetMissing(entry int)               {}
func (s *vcfSink) Finalise()                          { s.flush() }

func (s *vcfSink) flush() {
	if s.err != nil {
		return
	}
	if _, err := s.w.WriteString("\t"); err != nil {
		s.err = err
		return
	}
	if s.missing || s.entries == nil {
		_, s.err = s.w.WriteString("./.")
		return
	}
	if s.order == OrderPhased {
		s.flushPhased()
	} else {
		s.flushUnphased()
	}
}

func (s *vcfSink) flushUnphased() {
	combos := enumerateGenotypes(s.ploidy, s.numAlleles)
	probs := make([]float64, len(combos))
	sum := 0.0
	for i, v := range s.entries {
		probs[i] = v
		sum += v
	}
	probs[len(combos)-1] = clampProb(1 - sum)

	best := -1
	for i, p := range probs {
		if p > gtCallThreshold {
			best = i
			break
		}
	}
	gt := "./."
	if best >= 0 {
		alleles := expandGenotype(combos[best])
		parts := make([]string, len(alleles))
		for i, a := range alleles {
			parts[i] = strconv.Itoa(a)
		}
		gt = strings.Join(parts, "/")
	}
	if _, err := s.w.WriteString(gt); err != nil {
		s.err = err
		return
	}
	if err := s.w.WriteByte(':'); err != nil {
		s.err = err
		return
	}
	for i, p := range probs {
		if i > 0 {
			if err := s.w.WriteByte(','); err != nil {
				s.err = err
				return
			}
		}
		if _, err := fmt.Fprintf(s.w, "%.*f", s.digits, p); err != nil {
			s.err = err
			return
		}
	}
}

func (s *vcfSink) flushPhased() {
	numPerHap := s.numAlleles - 1
	gtParts := make([]string, s.ploidy)
	var gpParts []string
	for j := 0; j < s.ploidy; j++ {
		probs := make([]float64, s.numAlleles)
		sum := 0.0
		for k := 0; k < numPerHap; k++ {
			v := s.entries[j*numPerHap+k]
			probs[k] = v
			sum += v
		}
		probs[s.numAlleles-1] = clampProb(1 - sum)

		best := -1
		for a, p := range probs {
			if p > gtCallThreshold {
				best = a
				break
			}
		}
		if best >= 0 {
			gtParts[j] = strconv.Itoa(best)
		} else {
			gtParts[j] = "."
		}
		for _, p := range probs {
			gpParts = append(gpParts, fmt.Sprintf("%.*f", s.digits, p))
		}
	}
	if _, err := s.w.WriteString(strings.Join(gtParts, "|")); err != nil {
		s.err = err
		return
	}
	if err := s.w.WriteByte(':'); err != nil {
		s.err = err
		return
	}
	_, s.err = s.w.WriteString(strings.Join(gpParts, ","))
}

func clampProb(p float64) float64 {
	if p < 0 {
		return 0
	}
	return p
}

// WriteVCFGenotypesGeneric decodes payload (already decompressed) through
// ParseProbabilityData into a vcfSink, streaming tab-prefixed sample fields
// to w. Unlike the fast path it supports arbitrary ploidy, allele count,
// and phasing. It peeks the block's bit width up front purely to choose a
// decimal precision for GP/HP output; ParseProbabilityData re-derives it
// from the same payload.
func WriteVCFGenotypesGeneric(w *bufio.Writer, payload []byte, c *Context) error {
	h, err := readProbabilityHeader(payload, c)
	if err != nil {
		return err
	}
	sink := newVCFSink(w, h.bits)
	if err := ParseProbabilityData(payload, c, sink); err != nil {
		return err
	}
	return sink.err
}
