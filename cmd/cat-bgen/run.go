// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/cheggaaa/pb/v3"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bgen/bgen"
	"v.io/x/lib/cmdline"
)

func run(env *cmdline.Env, f *flags) error {
	if len(f.inPaths) == 0 {
		return optionErrorf("-g is required")
	}
	if *f.outPath == "" {
		return optionErrorf("-og is required")
	}
	if !*f.clobber {
		if _, err := os.Stat(*f.outPath); err == nil {
			return bgen.Errorf(bgen.KindWriteFailed, "%s already exists; pass -clobber to overwrite", *f.outPath)
		}
	}

	bar := concatenationProgress(f.inPaths)
	bar.Set(pb.Bytes, true)
	defer bar.Finish()
	log.Debug.Printf("concatenating %d file(s) into %s", len(f.inPaths), *f.outPath)
	if err := bgen.Concatenate([]string(f.inPaths), *f.outPath); err != nil {
		return err
	}

	if *f.setFreeData != "" {
		if err := bgen.EditFreeData(*f.outPath, []byte(*f.setFreeData)); err != nil {
			return err
		}
	}
	if *f.omitSampleBlock {
		if err := bgen.RemoveSampleIdentifiers(*f.outPath); err != nil {
			return err
		}
	}
	return nil
}

// concatenationProgress starts a byte-count progress bar sized by the sum
// of the input files' sizes. Concatenate reports no progress back, so the
// bar is not advanced while it runs, neither per variant nor per file; it
// only completes when run calls Finish.
func concatenationProgress(paths []string) *pb.ProgressBar {
	var total int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return pb.Full.Start64(total)
}
