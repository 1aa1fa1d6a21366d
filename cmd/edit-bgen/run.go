// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/bgen/bgen"
	"v.io/x/lib/cmdline"
)

func run(env *cmdline.Env, f *flags) error {
	if len(f.paths) == 0 {
		return optionErrorf("-g is required")
	}
	if *f.setFreeData == "" && !*f.removeSampleIDs {
		return optionErrorf("one of -set-free-data or -remove-sample-identifiers is required")
	}

	if !*f.really {
		for _, p := range f.paths {
			log.Printf("dry run: %s unchanged (pass -really to apply)", p)
		}
		return nil
	}

	for _, p := range f.paths {
		if *f.setFreeData != "" {
			if err := bgen.EditFreeData(p, []byte(*f.setFreeData)); err != nil {
				return err
			}
			log.Debug.Printf("%s: free_data overwritten", p)
		}
		if *f.removeSampleIDs {
			if err := bgen.RemoveSampleIdentifiers(p); err != nil {
				return err
			}
			log.Debug.Printf("%s: sample identifiers removed", p)
		}
	}
	return nil
}
