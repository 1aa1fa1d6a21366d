// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"encoding/binary"

	"github.com/grailbio/bgen/bgen"
	"github.com/grailbio/bgen/bgen/index"
	"v.io/x/lib/cmdline"
)

// writeV11 transcodes the matching variants to a layout-1 BGEN file on
// env.Stdout (spec §4.9 "fast L2 -> L1"). Only layout-2,
// diploid/biallelic/unphased/8-bit variants qualify; anything else fails
// with UnsupportedTranscode and aborts the whole run, matching -v11's
// all-or-nothing contract (spec §6, §8 "alleles.size() != 2 ...raises
// UnsupportedTranscode").
func writeV11(env *cmdline.Env, v *bgen.View, plan *index.Plan, level int) error {
	ctx := v.Context()
	if ctx.Layout != bgen.Layout2 {
		return bgen.Errorf(bgen.KindUnsupportedTranscode, "-v11 requires a layout 2 input file, got %v", ctx.Layout)
	}

	var sampleIDs []string
	if ctx.HasSampleIdentifiers {
		if err := v.GetSampleIds(func(s string) { sampleIDs = append(sampleIDs, s) }); err != nil {
			return err
		}
	}

	numVariants := ctx.NumberOfVariants
	if plan != nil {
		numVariants = uint32(plan.NumberOfVariants())
	}
	outCtx := &bgen.Context{
		Layout:               bgen.Layout1,
		Compression:          bgen.CompressionZlib,
		HasSampleIdentifiers: ctx.HasSampleIdentifiers,
		NumberOfSamples:      ctx.NumberOfSamples,
		NumberOfVariants:     numVariants,
		FreeData:             ctx.FreeData,
	}

	w := bufio.NewWriter(env.Stdout)
	defer w.Flush()

	offset := outCtx.HeaderSize()
	if outCtx.HasSampleIdentifiers {
		offset += bgen.SampleIdentifierBlockSize(sampleIDs)
	}
	if err := bgen.WriteOffset(w, offset); err != nil {
		return err
	}
	if _, err := bgen.WriteHeaderBlock(w, outCtx); err != nil {
		return err
	}
	if outCtx.HasSampleIdentifiers {
		if _, err := bgen.WriteSampleIdentifierBlock(w, sampleIDs); err != nil {
			return err
		}
	}

	n := numberOfEntries(plan)
	for i := 0; n < 0 || i < n; i++ {
		variant, ok, err := v.ReadVariant()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		block, err := v.ReadAndUnpackV12GenotypeDataBlock()
		if err != nil {
			return err
		}
		payload, err := bgen.TranscodeToLayout1Payload(block)
		if err != nil {
			return err
		}
		compressed, err := bgen.Compress(bgen.CompressionZlib, payload, level)
		if err != nil {
			return err
		}
		if err := bgen.WriteVariant(w, outCtx, variant); err != nil {
			return err
		}
		var sizeBuf [4]byte
		binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(compressed)))
		if _, err := w.Write(sizeBuf[:]); err != nil {
			return bgen.Errorf(bgen.KindWriteFailed, "writing compressed_size: %v", err)
		}
		if _, err := w.Write(compressed); err != nil {
			return bgen.Errorf(bgen.KindWriteFailed, "writing compressed payload: %v", err)
		}
	}
	return nil
}
