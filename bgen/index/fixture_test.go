// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package index

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/bgen/bgen"
	"github.com/stretchr/testify/require"
)

// fixtureVariant names one row to build into a fixture file.
type fixtureVariant struct {
	chrom, rsid string
	pos         uint32
	alleles     []string
}

// buildIndexFixture writes a minimal, uncompressed layout-2 BGEN file with
// one variant per entry in variants, each carrying a trivial 1-sample
// 8-bit probability block, and returns its path.
func buildIndexFixture(t *testing.T, variants []fixtureVariant) string {
	t.Helper()
	ctx := &bgen.Context{
		Layout:           bgen.Layout2,
		Compression:      bgen.CompressionNone,
		NumberOfSamples:  1,
		NumberOfVariants: uint32(len(variants)),
	}

	var body bytes.Buffer
	payload := buildTrivialPayload()
	for _, fv := range variants {
		v := &bgen.Variant{Rsid: fv.rsid, Chromosome: fv.chrom, Position: fv.pos, Alleles: fv.alleles}
		require.NoError(t, bgen.WriteVariant(&body, ctx, v))
		var sizes [8]byte
		binary.LittleEndian.PutUint32(sizes[0:4], uint32(len(payload)+4))
		binary.LittleEndian.PutUint32(sizes[4:8], uint32(len(payload)))
		body.Write(sizes[:])
		body.Write(payload)
	}

	var out bytes.Buffer
	require.NoError(t, bgen.WriteOffset(&out, ctx.HeaderSize()))
	_, err := bgen.WriteHeaderBlock(&out, ctx)
	require.NoError(t, err)
	out.Write(body.Bytes())

	path := filepath.Join(t.TempDir(), "fixture.bgen")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
	return path
}

// buildTrivialPayload assembles a 1-sample, 8-bit, diploid, biallelic,
// unphased probability payload by hand (spec §4.5 field order), matching
// the layout bgen.ReadAndUnpackV12GenotypeDataBlock expects.
func buildTrivialPayload() []byte {
	var buf bytes.Buffer
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], 1)
	buf.Write(u32[:])
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], 2)
	buf.Write(u16[:])
	buf.WriteByte(2)
	buf.WriteByte(2)
	buf.WriteByte(2) // sample 0 ploidy, not missing
	buf.WriteByte(0) // unphased
	buf.WriteByte(8) // bits
	buf.WriteByte(255)
	buf.WriteByte(0)
	return buf.Bytes()
}
