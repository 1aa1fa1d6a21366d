// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"github.com/cheggaaa/pb/v3"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bgen/bgen"
	"github.com/grailbio/bgen/bgen/index"
	"v.io/x/lib/cmdline"
)

func indexPathFor(f *flags) string {
	if *f.indexPath != "" {
		return *f.indexPath
	}
	return *f.bgenPath + ".bgi"
}

func run(env *cmdline.Env, f *flags) error {
	if *f.bgenPath == "" {
		return optionErrorf("-g is required")
	}
	outputModes := 0
	for _, b := range []bool{*f.list, *f.vcf, *f.v11} {
		if b {
			outputModes++
		}
	}
	if outputModes > 1 {
		return optionErrorf("-list, -vcf, and -v11 are mutually exclusive")
	}

	idxPath := indexPathFor(f)
	if *f.buildIndex {
		if err := buildIndex(f, idxPath); err != nil {
			return err
		}
	}

	switch {
	case *f.list:
		return withPlan(f, idxPath, func(v *bgen.View, plan *index.Plan) error {
			return writeList(env, v, plan)
		})
	case *f.vcf:
		return withPlan(f, idxPath, func(v *bgen.View, plan *index.Plan) error {
			return writeVCF(env, v, plan)
		})
	case *f.v11:
		return withPlan(f, idxPath, func(v *bgen.View, plan *index.Plan) error {
			return writeV11(env, v, plan, *f.compressionLevel)
		})
	}
	return nil
}

// buildIndex drives index.Build with a progress bar sized by the header's
// variant count, advancing once per variant as spec §5 describes.
func buildIndex(f *flags, idxPath string) error {
	total := int64(0)
	if v, err := bgen.Open(*f.bgenPath); err == nil {
		total = int64(v.Context().NumberOfVariants)
		v.Close()
	}
	bar := pb.Full.Start64(total)
	defer bar.Finish()

	opts := index.BuildOptions{
		TableName: *f.tableName,
		WithRowID: *f.withRowID,
		Progress:  func() { bar.Increment() },
	}
	log.Debug.Printf("building index %s for %s", idxPath, *f.bgenPath)
	if err := index.Build(*f.bgenPath, idxPath, *f.clobber, opts); err != nil {
		return err
	}
	log.Debug.Printf("index %s built", idxPath)
	return nil
}

// hasPredicates reports whether any include/exclude predicate flag was
// given, which determines whether a query needs the index at all (spec
// §4.8: with no predicates, "the base is all variants" -- no index lookup
// is necessary to materialize that).
func hasPredicates(f *flags) bool {
	return len(f.inclRange) > 0 || len(f.exclRange) > 0 || len(f.inclRsids) > 0 || len(f.exclRsids) > 0
}

// withPlan opens the data file, and -- iff predicates were given -- opens
// the index, checks its freshness, and materializes a Plan attached to the
// View before invoking fn. With no predicates, fn runs against a sequential
// (unfiltered) View and a nil plan.
func withPlan(f *flags, idxPath string, fn func(v *bgen.View, plan *index.Plan) error) (err error) {
	v, err := bgen.Open(*f.bgenPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := v.Close(); err == nil {
			err = cerr
		}
	}()

	if !hasPredicates(f) {
		return fn(v, nil)
	}

	store, err := index.Open(idxPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.CheckFresh(v.FileMetadata()); err != nil {
		return err
	}

	planner := index.NewPlanner(store, *f.tableName)
	for _, tok := range expandFileTokens(f.inclRange) {
		chrom, p1, p2, err := index.ParseRangeToken(tok)
		if err != nil {
			return err
		}
		planner.IncludeRange(chrom, p1, p2)
	}
	for _, tok := range expandFileTokens(f.exclRange) {
		chrom, p1, p2, err := index.ParseRangeToken(tok)
		if err != nil {
			return err
		}
		planner.ExcludeRange(chrom, p1, p2)
	}
	planner.IncludeRsids(expandFileTokens(f.inclRsids))
	planner.ExcludeRsids(expandFileTokens(f.exclRsids))

	plan, err := planner.Initialise()
	if err != nil {
		return err
	}
	log.Debug.Printf("plan materialized: %d variant(s)", plan.NumberOfVariants())
	v.SetQuery(plan)
	return fn(v, plan)
}
