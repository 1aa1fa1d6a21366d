// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"io"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
)

// Layout identifies the on-disk variant/probability dialect (spec §3).
type Layout int

const (
	// LayoutUnknown is the zero value, never produced by a successful read.
	LayoutUnknown Layout = 0
	// Layout1 is the simpler, 16-bit-probability, biallelic-diploid dialect.
	Layout1 Layout = 1
	// Layout2 is the bit-packed, arbitrary-ploidy, arbitrary-allele dialect.
	Layout2 Layout = 2
)

func (l Layout) String() string {
	switch l {
	case Layout1:
		return "layout1"
	case Layout2:
		return "layout2"
	default:
		return "unknown"
	}
}

const magic = "bgen"

// headerFixedSize is the size in bytes of the fixed portion of the header,
// before free_data (spec §4.3: "u32 header_size + ... = 20 + |free_data|").
const headerFixedSize = 20

// Flags is the 32-bit word at the end of the header encoding compression,
// layout, and sample-identifier presence (spec §6).
type Flags uint32

const (
	flagsCompressionMask = 0x3
	flagsLayoutShift      = 2
	flagsLayoutMask       = 0xf << flagsLayoutShift
	flagsSampleIDBit      = uint32(1) << 31
)

// Decode splits the flags word into its constituent fields.
func (f Flags) Decode() (compression Compression, layout Layout, hasSampleIDs bool) {
	v := uint32(f)
	compression = Compression(v & flagsCompressionMask)
	layout = Layout((v & flagsLayoutMask) >> flagsLayoutShift)
	hasSampleIDs = v&flagsSampleIDBit != 0
	return
}

// EncodeFlags packs compression, layout, and the sample-identifier bit into
// a single flags word.
func EncodeFlags(compression Compression, layout Layout, hasSampleIDs bool) Flags {
	v := uint32(compression) & flagsCompressionMask
	v |= (uint32(layout) << flagsLayoutShift) & flagsLayoutMask
	if hasSampleIDs {
		v |= flagsSampleIDBit
	}
	return Flags(v)
}

// Context is the immutable, once-decoded descriptor of a BGEN file's
// container header (spec §3). It never changes after ReadHeaderBlock
// returns it.
type Context struct {
	Layout              Layout
	Compression         Compression
	HasSampleIdentifiers bool
	NumberOfSamples     uint32
	NumberOfVariants    uint32
	FreeData            []byte
}

// HeaderSize returns 20 + len(FreeData), the value stored on disk in the
// header_size field.
func (c *Context) HeaderSize() uint32 {
	return headerFixedSize + uint32(len(c.FreeData))
}

// ReadHeaderBlock decodes the BGEN container header from r (the 20
// fixed-bytes-plus-free-data block described in spec §4.3; it does NOT
// consume the preceding u32 offset field, which the caller reads first via
// ReadOffset). It returns the Context and the number of bytes consumed from
// r.
func ReadHeaderBlock(r io.Reader) (*Context, int64, error) {
	br := newBinaryReader(r)

	headerSize, err := br.readU32()
	if err != nil {
		return nil, 0, err
	}
	if headerSize < headerFixedSize {
		return nil, 0, Errorf(KindInvalidVariantRecord, "header_size %d smaller than fixed header", headerSize)
	}
	numVariants, err := br.readU32()
	if err != nil {
		return nil, 0, err
	}
	numSamples, err := br.readU32()
	if err != nil {
		return nil, 0, err
	}
	magicBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, magicBuf); err != nil {
		return nil, 0, Errorf(KindTruncatedInput, "reading magic: %v", err)
	}
	if string(magicBuf) != magic && string(magicBuf) != "\x00\x00\x00\x00" {
		return nil, 0, Errorf(KindInvalidVariantRecord, "unrecognized magic %q", magicBuf)
	}

	freeData := make([]byte, headerSize-headerFixedSize)
	if len(freeData) > 0 {
		if _, err := io.ReadFull(r, freeData); err != nil {
			return nil, 0, Errorf(KindTruncatedInput, "reading free_data: %v", err)
		}
	}

	flagsWord, err := br.readU32()
	if err != nil {
		return nil, 0, err
	}
	compression, layout, hasSampleIDs := Flags(flagsWord).Decode()
	if layout != Layout1 && layout != Layout2 {
		return nil, 0, Errorf(KindUnsupportedLayout, "unsupported layout value %d", layout)
	}
	if compression != CompressionNone && compression != CompressionZlib && compression != CompressionZstd {
		return nil, 0, Errorf(KindUnsupportedCompression, "unsupported compression value %d", compression)
	}

	return &Context{
		Layout:               layout,
		Compression:          compression,
		HasSampleIdentifiers: hasSampleIDs,
		NumberOfSamples:      numSamples,
		NumberOfVariants:     numVariants,
		FreeData:             freeData,
	}, int64(headerSize), nil
}

// WriteHeaderBlock writes c's header (not the preceding u32 offset) to w,
// and returns the number of bytes written.
func WriteHeaderBlock(w io.Writer, c *Context) (int64, error) {
	bw := newBinaryWriter(w)
	if err := bw.writeU32(c.HeaderSize()); err != nil {
		return bw.n, err
	}
	if err := bw.writeU32(c.NumberOfVariants); err != nil {
		return bw.n, err
	}
	if err := bw.writeU32(c.NumberOfSamples); err != nil {
		return bw.n, err
	}
	if err := bw.write([]byte(magic)); err != nil {
		return bw.n, err
	}
	if len(c.FreeData) > 0 {
		if err := bw.write(c.FreeData); err != nil {
			return bw.n, err
		}
	}
	flags := EncodeFlags(c.Compression, c.Layout, c.HasSampleIdentifiers)
	if err := bw.writeU32(uint32(flags)); err != nil {
		return bw.n, err
	}
	return bw.n, nil
}

// ReadOffset reads the leading u32 offset field that precedes the header in
// a BGEN file (spec §6). offset equals header_size plus the length of the
// sample-identifier block, if any.
func ReadOffset(r io.Reader) (uint32, error) {
	return newBinaryReader(r).readU32()
}

// WriteOffset writes the leading u32 offset field.
func WriteOffset(w io.Writer, offset uint32) error {
	return newBinaryWriter(w).writeU32(offset)
}

// fingerprintSampleSize is the number of leading bytes captured in a
// FileMetadata fingerprint (spec §3: "first_1000_bytes").
const fingerprintSampleSize = 1000

// FileMetadata is the file-identity fingerprint bound to an index at build
// time and re-verified at query time (spec §3, §4.7).
type FileMetadata struct {
	Filename      string
	Size          int64
	LastWriteTime int64
	First1000     []byte
}

// CaptureFileMetadata stats and reads the first 1000 bytes of the file at
// path, producing its fingerprint.
func CaptureFileMetadata(path string) (fp FileMetadata, err error) {
	ctx := vcontext.Background()
	handle, err := file.Open(ctx, path)
	if err != nil {
		return FileMetadata{}, Errorf(KindIndexCorrupt, "stat %s: %v", path, err)
	}
	defer file.CloseAndReport(ctx, handle, &err)
	info, err := handle.Stat(ctx)
	if err != nil {
		return FileMetadata{}, err
	}
	sample := make([]byte, fingerprintSampleSize)
	n, err := io.ReadFull(handle.Reader(ctx), sample)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileMetadata{}, err
	}
	err = nil
	return FileMetadata{
		Filename:      path,
		Size:          info.Size(),
		LastWriteTime: info.ModTime().Unix(),
		First1000:     sample[:n],
	}, nil
}

// Matches reports whether fp and other identify the same file per spec
// §4.8: size and first_1000_bytes are authoritative, last_write_time is
// advisory only.
func (fp FileMetadata) Matches(other FileMetadata) bool {
	if fp.Size != other.Size {
		return false
	}
	if len(fp.First1000) != len(other.First1000) {
		return false
	}
	for i := range fp.First1000 {
		if fp.First1000[i] != other.First1000[i] {
			return false
		}
	}
	return true
}
