// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
)

// Concatenate appends the variant streams of paths, in order, into a single
// new file at outPath (spec §4.10 "cat-bgen"). Every input must agree on
// layout, compression, and sample count; the output reuses the first
// input's free_data and sample-identifier block verbatim. Overrides are a
// second pass over the written file (see cmd/cat-bgen, whose
// -set-free-data and -omit-sample-identifier-block flags apply
// EditFreeData and RemoveSampleIdentifiers to outPath afterwards).
func Concatenate(paths []string, outPath string) error {
	if len(paths) == 0 {
		return Errorf(KindInvalidVariantRecord, "cat-bgen requires at least one input file")
	}
	views := make([]*View, 0, len(paths))
	defer func() {
		for _, v := range views {
			v.Close()
		}
	}()
	for _, p := range paths {
		v, err := Open(p)
		if err != nil {
			return err
		}
		views = append(views, v)
	}

	first := views[0].Context()
	var sampleIDs []string
	if first.HasSampleIdentifiers {
		if err := views[0].GetSampleIds(func(s string) { sampleIDs = append(sampleIDs, s) }); err != nil {
			return err
		}
	}
	totalVariants := uint32(0)
	for i, v := range views {
		c := v.Context()
		if c.Layout != first.Layout || c.Compression != first.Compression || c.NumberOfSamples != first.NumberOfSamples || c.HasSampleIdentifiers != first.HasSampleIdentifiers {
			return Errorf(KindInvalidVariantRecord, "%s: layout/compression/sample-count/sample-identifier flags do not match %s", paths[i], paths[0])
		}
		totalVariants += c.NumberOfVariants
	}

	outCtx := &Context{
		Layout:               first.Layout,
		Compression:          first.Compression,
		HasSampleIdentifiers: first.HasSampleIdentifiers,
		NumberOfSamples:      first.NumberOfSamples,
		NumberOfVariants:     totalVariants,
		FreeData:             first.FreeData,
	}
	return writeConcatenatedFile(outPath, outCtx, sampleIDs, views)
}

func writeConcatenatedFile(outPath string, outCtx *Context, sampleIDs []string, views []*View) (err error) {
	ctx := vcontext.Background()
	handle, err := file.Create(ctx, outPath)
	if err != nil {
		return Errorf(KindWriteFailed, "creating %s: %v", outPath, err)
	}
	defer file.CloseAndReport(ctx, handle, &err)
	f := handle.Writer(ctx)

	offset := outCtx.HeaderSize()
	if outCtx.HasSampleIdentifiers {
		offset += SampleIdentifierBlockSize(sampleIDs)
	}
	if err = WriteOffset(f, offset); err != nil {
		return err
	}
	if _, err = WriteHeaderBlock(f, outCtx); err != nil {
		return err
	}
	if outCtx.HasSampleIdentifiers {
		if _, err = WriteSampleIdentifierBlock(f, sampleIDs); err != nil {
			return err
		}
	}
	for _, v := range views {
		if _, err = CopyRemainingVariants(f, v); err != nil {
			return err
		}
	}
	return nil
}
