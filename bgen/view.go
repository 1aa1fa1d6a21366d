// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"context"
	"io"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
)

// PlanEntry is one (file_start, length) pair directing a raw byte-range
// read into the data file (spec §3 "Plan entry").
type PlanEntry struct {
	FileStart int64
	Length    int64
}

// Plan is satisfied by index.Plan. It is declared here, rather than
// imported from the index package, so that bgen does not depend on
// bgen/index (the dependency runs the other way: bgen/index depends on
// bgen for Context and FileMetadata).
type Plan interface {
	NumberOfVariants() int
	LocateVariant(i int) PlanEntry
}

type viewState int

const (
	stateNeedHeader viewState = iota
	stateHeaderDone
	stateAtVariantID
	stateAtProbBlock
	stateEOF
)

// View is a stateful reader over a BGEN file: it decodes the header once,
// then exposes a cursor that advances through variants, in file order or in
// the order of an attached Plan (spec §4.6).
type View struct {
	ctx         context.Context
	handle      file.File
	f           io.ReadSeeker
	header      *Context
	fingerprint FileMetadata
	headerSize  int64 // bytes consumed by ReadHeaderBlock
	dataStart   int64 // absolute offset of the first variant's identifying block

	state         viewState
	actualPos     int64
	started       bool
	query         Plan
	queryIdx      int
	sampleIDsRead bool
}

// Open opens path (a local path or any URI grailbio/base/file has a
// registered implementation for), decodes its header, and captures a
// FileMetadata fingerprint, returning a View positioned before the first
// variant.
func Open(path string) (v *View, err error) {
	ctx := vcontext.Background()
	handle, err := file.Open(ctx, path)
	if err != nil {
		return nil, Errorf(KindTruncatedInput, "open %s: %v", path, err)
	}
	defer func() {
		if err != nil {
			file.CloseAndReport(ctx, handle, &err)
		}
	}()
	v, err = newViewFromHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	fp, err := CaptureFileMetadata(path)
	if err != nil {
		return nil, err
	}
	v.fingerprint = fp
	return v, nil
}

func newViewFromHandle(ctx context.Context, handle file.File) (*View, error) {
	r := handle.Reader(ctx)
	offset, err := ReadOffset(r)
	if err != nil {
		return nil, err
	}
	hdr, consumed, err := ReadHeaderBlock(r)
	if err != nil {
		return nil, err
	}
	return &View{
		ctx:        ctx,
		handle:     handle,
		f:          r,
		header:     hdr,
		headerSize: consumed,
		dataStart:  4 + int64(offset),
		state:      stateHeaderDone,
		actualPos:  4 + consumed,
	}, nil
}

// Close releases the underlying file handle.
func (v *View) Close() error {
	return v.handle.Close(v.ctx)
}

// Context returns the file's decoded header. It is safe to call at any
// point in the View's lifecycle.
func (v *View) Context() *Context {
	return v.header
}

// FileMetadata returns the fingerprint captured when the View was opened
// via Open. A View built by newViewFromHandle without going through Open
// has a zero-value fingerprint.
func (v *View) FileMetadata() FileMetadata {
	return v.fingerprint
}

func (v *View) seekTo(off int64) error {
	if v.actualPos == off {
		return nil
	}
	if _, err := v.f.Seek(off, io.SeekStart); err != nil {
		return Errorf(KindTruncatedInput, "seek to %d: %v", off, err)
	}
	v.actualPos = off
	return nil
}

func (v *View) advance(n int64) {
	v.actualPos += n
}

// Offset returns the View's current absolute position in the file. Index
// builders call this immediately before ReadVariant (to record a variant's
// starting offset) and again after consuming its probability block (to
// compute its total length).
func (v *View) Offset() int64 {
	if !v.started {
		return v.dataStart
	}
	return v.actualPos
}

// SetQuery attaches a materialized Plan. Subsequent ReadVariant calls seek
// to each plan entry's FileStart in turn and return variants in plan order
// instead of file order (spec §4.6).
func (v *View) SetQuery(plan Plan) {
	v.query = plan
	v.queryIdx = 0
}

// GetSampleIds decodes the sample-identifier block, if present, and invokes
// cb once per name in file order (spec §4.6). It is a no-op if the header's
// has_sample_identifiers bit is clear.
func (v *View) GetSampleIds(cb func(string)) error {
	if !v.header.HasSampleIdentifiers {
		return nil
	}
	if err := v.seekTo(4 + v.headerSize); err != nil {
		return err
	}
	br := newBinaryReader(v.f)
	blockLen, err := br.readU32()
	if err != nil {
		return err
	}
	_ = blockLen
	v.advance(4)
	n, err := br.readU32()
	if err != nil {
		return err
	}
	v.advance(4)
	for i := uint32(0); i < n; i++ {
		name, err := br.readString()
		if err != nil {
			return err
		}
		v.advance(2 + int64(len(name)))
		cb(name)
	}
	v.sampleIDsRead = true
	return nil
}

// ensureStarted positions the cursor at the first variant the first time
// ReadVariant is called, skipping any unread sample-identifier block.
func (v *View) ensureStarted() error {
	if v.started {
		return nil
	}
	v.started = true
	return v.seekTo(v.dataStart)
}

// ReadVariant advances the cursor past the next variant's identifying
// block, filling out the fields of the returned Variant, and leaves the
// cursor at the start of its probability block. It returns false at EOF
// (spec §4.6).
func (v *View) ReadVariant() (*Variant, bool, error) {
	if v.state == stateAtProbBlock {
		return nil, false, Errorf(KindStateViolation, "ReadVariant called before the previous probability block was consumed")
	}
	if v.state == stateEOF {
		return nil, false, nil
	}
	if err := v.ensureStarted(); err != nil {
		return nil, false, err
	}
	if v.query != nil {
		if v.queryIdx >= v.query.NumberOfVariants() {
			v.state = stateEOF
			return nil, false, nil
		}
		entry := v.query.LocateVariant(v.queryIdx)
		v.queryIdx++
		if err := v.seekTo(entry.FileStart); err != nil {
			return nil, false, err
		}
	}

	start := v.actualPos
	br := newBinaryReader(v.f)
	variant, err := readSnpIdentifyingData(br, v.header)
	if err == io.EOF {
		v.state = stateEOF
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v.advance(consumedVariantHeaderBytes(v.header, variant) - 0)
	_ = start
	v.state = stateAtProbBlock
	return variant, true, nil
}

// consumedVariantHeaderBytes computes the number of bytes
// readSnpIdentifyingData consumed for v, so callers can keep actualPos in
// sync without re-seeking (a seek-based resync would defeat sequential
// reading's main advantage: no redundant syscalls).
func consumedVariantHeaderBytes(c *Context, v *Variant) int64 {
	var n int64
	if c.Layout == Layout1 {
		n += 4 // repeated sample count
	}
	n += 2 + int64(len(v.SNPID))
	n += 2 + int64(len(v.Rsid))
	n += 2 + int64(len(v.Chromosome))
	n += 4 // position
	if c.Layout == Layout2 {
		n += 2 // number_of_alleles
	}
	for _, a := range v.Alleles {
		n += 4 + int64(len(a))
	}
	return n
}

// probabilityBlockSizes reads the length prefix of the current probability
// block (a single u32 compressed_size for layout 1, or a u32
// compressed_size followed by a u32 uncompressed_size for layout 2) and
// returns the length of the compressed payload that follows it and the
// expected decompressed length.
func (v *View) probabilityBlockSizes() (compressedPayloadLen int64, uncompressedLen int64, err error) {
	br := newBinaryReader(v.f)
	compSize, err := br.readU32()
	if err != nil {
		return 0, 0, err
	}
	if v.header.Layout == Layout1 {
		v.advance(4)
		return int64(compSize), 6 * int64(v.header.NumberOfSamples), nil
	}
	uncompSize, err := br.readU32()
	if err != nil {
		return 0, 0, err
	}
	v.advance(8)
	return int64(compSize) - 4, int64(uncompSize), nil
}

// IgnoreGenotypeDataBlock skips the probability block using its length
// prefix, without decompressing it (spec §4.6).
func (v *View) IgnoreGenotypeDataBlock() error {
	if v.state != stateAtProbBlock {
		return Errorf(KindStateViolation, "IgnoreGenotypeDataBlock called outside a probability block")
	}
	compressedLen, _, err := v.probabilityBlockSizes()
	if err != nil {
		return err
	}
	if _, err := v.f.Seek(compressedLen, io.SeekCurrent); err != nil {
		return Errorf(KindTruncatedInput, "skip %d bytes: %v", compressedLen, err)
	}
	v.advance(compressedLen)
	v.state = stateAtVariantID
	return nil
}

// readRawProbabilityPayload reads and decompresses the current probability
// block, validating the decompressed length against the recorded
// uncompressed size (layout 2) or the fixed 6*numSamples size (layout 1).
func (v *View) readRawProbabilityPayload() ([]byte, error) {
	compressedLen, uncompressedLen, err := v.probabilityBlockSizes()
	if err != nil {
		return nil, err
	}
	compressed := make([]byte, compressedLen)
	if compressedLen > 0 {
		if _, err := io.ReadFull(v.f, compressed); err != nil {
			return nil, Errorf(KindTruncatedInput, "reading %d-byte probability block: %v", compressedLen, err)
		}
	}
	v.advance(compressedLen)

	compression := v.header.Compression
	if v.header.Layout == Layout1 {
		compression = CompressionZlib
	}
	return decompressBytes(compression, compressed, int(uncompressedLen))
}

// ReadGenotypeDataBlock decompresses and fully decodes the current
// probability block, driving sink through its contents (spec §4.6).
func (v *View) ReadGenotypeDataBlock(sink ProbabilitySink) error {
	if v.state != stateAtProbBlock {
		return Errorf(KindStateViolation, "ReadGenotypeDataBlock called outside a probability block")
	}
	if v.header.Layout != Layout2 {
		return Errorf(KindUnsupportedLayout, "ReadGenotypeDataBlock requires layout 2, got %v", v.header.Layout)
	}
	payload, err := v.readRawProbabilityPayload()
	if err != nil {
		return err
	}
	if err := ParseProbabilityData(payload, v.header, sink); err != nil {
		return err
	}
	v.state = stateAtVariantID
	return nil
}

// ReadProbabilityPayload decompresses the current probability block and
// returns its raw decoded bytes, without interpreting them: for layout 2,
// the bit-packed payload ParseProbabilityData and
// ReadAndUnpackV12GenotypeDataBlock both parse; for layout 1, 6 bytes
// (three little-endian u16 probabilities) per sample. It is used by
// callers that need to try the bit-packed fast path and fall back to the
// generic sink using the same already-decompressed bytes (e.g. VCF output
// for multiallelic or phased variants), or that handle layout 1 directly.
func (v *View) ReadProbabilityPayload() ([]byte, error) {
	if v.state != stateAtProbBlock {
		return nil, Errorf(KindStateViolation, "ReadProbabilityPayload called outside a probability block")
	}
	payload, err := v.readRawProbabilityPayload()
	if err != nil {
		return nil, err
	}
	v.state = stateAtVariantID
	return payload, nil
}

// ReadAndUnpackV12GenotypeDataBlock decompresses the current probability
// block into its still-bit-packed GenotypeDataBlock view (spec §4.6), for
// use by the fast transcoders. It fails with UnsupportedTranscode if the
// block is not diploid/biallelic/unphased with bits in {1,2,4,8}.
func (v *View) ReadAndUnpackV12GenotypeDataBlock() (*GenotypeDataBlock, error) {
	if v.state != stateAtProbBlock {
		return nil, Errorf(KindStateViolation, "ReadAndUnpackV12GenotypeDataBlock called outside a probability block")
	}
	payload, err := v.readRawProbabilityPayload()
	if err != nil {
		return nil, err
	}
	// The compressed bytes are already consumed from the file at this point
	// regardless of whether the fast path applies, so the cursor advances to
	// the next variant's identifying block either way. The payload is not
	// returned on failure, so a caller that wants a generic fallback on
	// UnsupportedTranscode reads the block with ReadProbabilityPayload instead
	// and passes those bytes to the package-level
	// ReadAndUnpackV12GenotypeDataBlock and, failing that, to
	// ParseProbabilityData.
	v.state = stateAtVariantID
	block, err := ReadAndUnpackV12GenotypeDataBlock(payload, v.header)
	if err != nil {
		return nil, err
	}
	return block, nil
}
