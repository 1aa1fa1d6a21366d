// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import "io"

// Variant is the per-variant identifying tuple (spec §3, §4.4).
type Variant struct {
	SNPID       string
	Rsid        string
	Chromosome  string
	Position    uint32
	Alleles     []string
}

// DisplaySNPID returns v.SNPID, substituting "." for an empty value (spec §3).
func (v *Variant) DisplaySNPID() string {
	if v.SNPID == "" {
		return "."
	}
	return v.SNPID
}

// DisplayRsid returns v.Rsid, substituting "." for an empty value (spec §3).
func (v *Variant) DisplayRsid() string {
	if v.Rsid == "" {
		return "."
	}
	return v.Rsid
}

// readSnpIdentifyingData reads one variant's identifying prefix (spec §4.4).
// For Layout1, it first reads and validates the per-variant repeated sample
// count.
func readSnpIdentifyingData(r *binaryReader, c *Context) (*Variant, error) {
	v := &Variant{}
	if c.Layout == Layout1 {
		n, err := r.readU32()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}
		if n != c.NumberOfSamples {
			return nil, Errorf(KindInvalidVariantRecord, "variant sample count %d does not match header %d", n, c.NumberOfSamples)
		}
	}
	var err error
	if v.SNPID, err = r.readString(); err != nil {
		if c.Layout == Layout2 && err == io.EOF {
			return nil, io.EOF
		}
		return nil, err
	}
	if v.Rsid, err = r.readString(); err != nil {
		return nil, err
	}
	if v.Chromosome, err = r.readString(); err != nil {
		return nil, err
	}
	pos, err := r.readU32()
	if err != nil {
		return nil, err
	}
	v.Position = pos

	numAlleles := uint16(2)
	if c.Layout == Layout2 {
		if numAlleles, err = r.readU16(); err != nil {
			return nil, err
		}
	}
	if numAlleles < 2 {
		return nil, Errorf(KindInvalidVariantRecord, "variant has %d alleles, need at least 2", numAlleles)
	}
	v.Alleles = make([]string, numAlleles)
	for i := range v.Alleles {
		allele, err := readAlleleString(r)
		if err != nil {
			return nil, err
		}
		v.Alleles[i] = allele
	}
	return v, nil
}

// readAlleleString reads one allele, which is length-prefixed with a u32
// count (unlike SNPID/rsid/chromosome, which use u16 prefixes).
func readAlleleString(r *binaryReader) (string, error) {
	n, err := r.readU32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", Errorf(KindTruncatedInput, "truncated %d-byte allele: %v", n, err)
	}
	return string(buf), nil
}

func writeAlleleString(w *binaryWriter, s string) error {
	if err := w.writeU32(uint32(len(s))); err != nil {
		return err
	}
	return w.write([]byte(s))
}

// writeSnpIdentifyingData writes a variant's identifying prefix in the
// dialect of c.Layout. numAlleles and alleleAt let the caller stream
// alleles without materializing a []string (spec §4.4: "takes a callback
// yielding the i-th allele so the caller need not materialize a
// collection").
func writeSnpIdentifyingData(w *binaryWriter, c *Context, snpID, rsid, chromosome string, position uint32, numAlleles int, alleleAt func(i int) string) error {
	if numAlleles < 2 {
		return Errorf(KindInvalidVariantRecord, "cannot write variant with %d alleles", numAlleles)
	}
	if c.Layout == Layout1 {
		if err := w.writeU32(c.NumberOfSamples); err != nil {
			return err
		}
		if numAlleles != 2 {
			return Errorf(KindUnsupportedTranscode, "layout 1 requires exactly 2 alleles, got %d", numAlleles)
		}
	}
	if err := w.writeString(snpID); err != nil {
		return err
	}
	if err := w.writeString(rsid); err != nil {
		return err
	}
	if err := w.writeString(chromosome); err != nil {
		return err
	}
	if err := w.writeU32(position); err != nil {
		return err
	}
	if c.Layout == Layout2 {
		if err := w.writeU16(uint16(numAlleles)); err != nil {
			return err
		}
	}
	for i := 0; i < numAlleles; i++ {
		if err := writeAlleleString(w, alleleAt(i)); err != nil {
			return err
		}
	}
	return nil
}

// WriteVariant writes v's identifying data in the dialect of c.Layout.
func WriteVariant(w io.Writer, c *Context, v *Variant) error {
	bw := newBinaryWriter(w)
	return writeSnpIdentifyingData(bw, c, v.SNPID, v.Rsid, v.Chromosome, v.Position, len(v.Alleles), func(i int) string {
		return v.Alleles[i]
	})
}
