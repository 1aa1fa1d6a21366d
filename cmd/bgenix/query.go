// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/grailbio/bgen/bgen"
	"github.com/grailbio/bgen/bgen/index"
	"v.io/x/lib/cmdline"
)

// numberOfEntries returns how many variants fn should loop over: the
// plan's size if a query is attached, or -1 (loop until EOF) for the
// unfiltered, sequential case.
func numberOfEntries(plan *index.Plan) int {
	if plan == nil {
		return -1
	}
	return plan.NumberOfVariants()
}

func writeList(env *cmdline.Env, v *bgen.View, plan *index.Plan) error {
	w := bufio.NewWriter(env.Stdout)
	defer w.Flush()

	if _, err := w.WriteString("alternate_ids\trsid\tchromosome\tposition\tnumber_of_alleles\tallele1\tallele2\tfile_start_position\tsize_in_bytes\n"); err != nil {
		return bgen.Errorf(bgen.KindWriteFailed, "writing -list header: %v", err)
	}

	n := numberOfEntries(plan)
	for i := 0; n < 0 || i < n; i++ {
		start := v.Offset()
		variant, ok, err := v.ReadVariant()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if plan != nil {
			start = plan.LocateVariant(i).FileStart
		}
		if err := v.IgnoreGenotypeDataBlock(); err != nil {
			return err
		}
		end := v.Offset()

		allele1, allele2 := "", ""
		if len(variant.Alleles) > 0 {
			allele1 = variant.Alleles[0]
		}
		if len(variant.Alleles) > 1 {
			allele2 = variant.Alleles[1]
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%d\t%d\n",
			variant.DisplaySNPID(), variant.DisplayRsid(), variant.Chromosome, variant.Position,
			len(variant.Alleles), allele1, allele2, start, end-start); err != nil {
			return bgen.Errorf(bgen.KindWriteFailed, "writing -list row: %v", err)
		}
	}
	return nil
}

func writeVCF(env *cmdline.Env, v *bgen.View, plan *index.Plan) error {
	w := bufio.NewWriter(env.Stdout)
	defer w.Flush()
	ctx := v.Context()

	var sampleIDs []string
	if ctx.HasSampleIdentifiers {
		if err := v.GetSampleIds(func(s string) { sampleIDs = append(sampleIDs, s) }); err != nil {
			return err
		}
	}
	if err := writeVCFHeader(w, sampleIDs, int(ctx.NumberOfSamples)); err != nil {
		return err
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
		ref := ""
		alt := ""
		if len(variant.Alleles) > 0 {
			ref = variant.Alleles[0]
		}
		if len(variant.Alleles) > 1 {
			alt = strings.Join(variant.Alleles[1:], ",")
		}
		if _, err := fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t.\t.\t.\tGT:GP",
			variant.Chromosome, variant.Position, variant.DisplayRsid(), ref, alt); err != nil {
			return bgen.Errorf(bgen.KindWriteFailed, "writing VCF row: %v", err)
		}

		if err := writeVCFGenotypes(w, v, ctx); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return bgen.Errorf(bgen.KindWriteFailed, "writing VCF row: %v", err)
		}
	}
	return nil
}

// writeVCFGenotypes decodes the current probability block and appends one
// tab-prefixed sample field per sample, dispatching on layout and
// attempting the bit-packed fast path before falling back to the generic
// sink -- both operating on the same already-decompressed payload (spec
// §4.9).
func writeVCFGenotypes(w *bufio.Writer, v *bgen.View, ctx *bgen.Context) error {
	payload, err := v.ReadProbabilityPayload()
	if err != nil {
		return err
	}
	if ctx.Layout == bgen.Layout1 {
		return bgen.WriteVCFGenotypesLayout1(w, payload, int(ctx.NumberOfSamples))
	}
	if block, ferr := bgen.ReadAndUnpackV12GenotypeDataBlock(payload, ctx); ferr == nil {
		return bgen.WriteVCFGenotypesFast(w, block)
	} else if !bgen.Is(bgen.KindUnsupportedTranscode, ferr) {
		return ferr
	}
	return bgen.WriteVCFGenotypesGeneric(w, payload, ctx)
}

func writeVCFHeader(w *bufio.Writer, sampleIDs []string, numSamples int) error {
	lines := []string{
		"##fileformat=VCFv4.2",
		`##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`,
		`##FORMAT=<ID=GP,Number=G,Type=Float,Description="Genotype probabilities">`,
	}
	for _, l := range lines {
		if _, err := w.WriteString(l + "\n"); err != nil {
			return bgen.Errorf(bgen.KindWriteFailed, "writing VCF header: %v", err)
		}
	}
	if _, err := w.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT"); err != nil {
		return bgen.Errorf(bgen.KindWriteFailed, "writing VCF column header: %v", err)
	}
	if len(sampleIDs) == 0 {
		for i := 0; i < numSamples; i++ {
			if _, err := fmt.Fprintf(w, "\tsample_%d", i+1); err != nil {
				return bgen.Errorf(bgen.KindWriteFailed, "writing VCF column header: %v", err)
			}
		}
	} else {
		for _, id := range sampleIDs {
			if _, err := w.WriteString("\t" + id); err != nil {
				return bgen.Errorf(bgen.KindWriteFailed, "writing VCF column header: %v", err)
			}
		}
	}
	_, err := w.WriteString("\n")
	return err
}
