// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"encoding/binary"
	"io"
)

// binaryReader reads fixed-width little-endian integers and length-prefixed
// strings from an io.Reader. All multi-byte integers in a BGEN file are
// little-endian regardless of host byte order (spec §4.1).
type binaryReader struct {
	r   io.Reader
	buf [8]byte
}

func newBinaryReader(r io.Reader) *binaryReader {
	return &binaryReader{r: r}
}

// readFull reads exactly n bytes. A clean io.EOF (no bytes read at all, the
// true end of the variant stream) is returned unwrapped so callers like
// readSnpIdentifyingData/ReadVariant can detect true end-of-file; a short
// read partway through a field is a genuine truncation and is wrapped as
// KindTruncatedInput.
func (r *binaryReader) readFull(n int) ([]byte, error) {
	if _, err := io.ReadFull(r.r, r.buf[:n]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, Errorf(KindTruncatedInput, "truncated read of %d bytes: %v", n, err)
	}
	return r.buf[:n], nil
}

func (r *binaryReader) readU8() (uint8, error) {
	b, err := r.readFull(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *binaryReader) readU16() (uint16, error) {
	b, err := r.readFull(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *binaryReader) readU32() (uint32, error) {
	b, err := r.readFull(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *binaryReader) readU64() (uint64, error) {
	b, err := r.readFull(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *binaryReader) readI32() (int32, error) {
	v, err := r.readU32()
	return int32(v), err
}

func (r *binaryReader) readI64() (int64, error) {
	v, err := r.readU64()
	return int64(v), err
}

// readString reads a u16 byte-count prefix followed by that many raw bytes.
func (r *binaryReader) readString() (string, error) {
	n, err := r.readU16()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", Errorf(KindTruncatedInput, "truncated %d-byte string: %v", n, err)
	}
	return string(buf), nil
}

// readBytesU32 reads a u32 byte-count prefix followed by that many raw
// bytes, the u32-prefixed counterpart of readString.
func (r *binaryReader) readBytesU32() ([]byte, error) {
	n, err := r.readU32()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r.r, buf); err != nil {
			return nil, Errorf(KindTruncatedInput, "truncated %d-byte block: %v", n, err)
		}
	}
	return buf, nil
}

// binaryWriter writes fixed-width little-endian integers and length-prefixed
// strings to an io.Writer, tracking the number of bytes written. Mirrors
// encoding/bam/marshal.go's binaryWriter in the teacher tree.
type binaryWriter struct {
	w io.Writer
	n int64
	buf [8]byte
}

func newBinaryWriter(w io.Writer) *binaryWriter {
	return &binaryWriter{w: w}
}

func (w *binaryWriter) write(b []byte) error {
	n, err := w.w.Write(b)
	w.n += int64(n)
	if err != nil {
		return Errorf(KindWriteFailed, "short write: %v", err)
	}
	if n != len(b) {
		return Errorf(KindWriteFailed, "wrote %d of %d bytes", n, len(b))
	}
	return nil
}

func (w *binaryWriter) writeU8(v uint8) error {
	w.buf[0] = v
	return w.write(w.buf[:1])
}

func (w *binaryWriter) writeU16(v uint16) error {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	return w.write(w.buf[:2])
}

func (w *binaryWriter) writeU32(v uint32) error {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	return w.write(w.buf[:4])
}

func (w *binaryWriter) writeU64(v uint64) error {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	return w.write(w.buf[:8])
}

func (w *binaryWriter) writeI32(v int32) error {
	return w.writeU32(uint32(v))
}

func (w *binaryWriter) writeI64(v int64) error {
	return w.writeU64(uint64(v))
}

// writeString writes a u16 byte-count prefix followed by s's bytes. s must
// be at most 65535 bytes.
func (w *binaryWriter) writeString(s string) error {
	if len(s) > 0xffff {
		return Errorf(KindInvalidVariantRecord, "string of %d bytes exceeds u16 length prefix", len(s))
	}
	if err := w.writeU16(uint16(len(s))); err != nil {
		return err
	}
	return w.write([]byte(s))
}

func (w *binaryWriter) writeBytesU32(b []byte) error {
	if err := w.writeU32(uint32(len(b))); err != nil {
		return err
	}
	return w.write(b)
}
