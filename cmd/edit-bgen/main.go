// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command edit-bgen edits a BGEN file's header fields in place:
// overwriting free_data, or clearing the sample-identifier block. Without
// -really it reports what it would do without touching the file (spec
// §4.10, §6).
package main

import (
	"fmt"
	stdlog "log"
	"os"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"v.io/x/lib/cmdline"
)

func optionErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func fail(err error) {
	log.Error.Printf("%s", err)
	fmt.Fprintf(os.Stderr, "!! %s\n", err)
	os.Exit(255)
}

type stringsFlag []string

func (s *stringsFlag) String() string {
	if s == nil {
		return ""
	}
	return fmt.Sprint([]string(*s))
}

func (s *stringsFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type flags struct {
	paths           stringsFlag
	setFreeData     *string
	removeSampleIDs *bool
	really          *bool
}

func newCmdEditBgen() (*cmdline.Command, *flags) {
	cmd := &cmdline.Command{
		Name:  "edit-bgen",
		Short: "Edit a BGEN file's header fields in place",
	}
	f := &flags{
		setFreeData:     cmd.Flags.String("set-free-data", "", "Overwrite free_data with this exact-length string"),
		removeSampleIDs: cmd.Flags.Bool("remove-sample-identifiers", false, "Clear the sample-identifier flag and zero the block"),
		really:          cmd.Flags.Bool("really", false, "Actually perform the edit (without this, edit-bgen does a dry run)"),
	}
	cmd.Flags.Var(&f.paths, "g", "BGEN file to edit (repeatable)")
	return cmd, f
}

func main() {
	stdlog.SetFlags(stdlog.Ldate | stdlog.Ltime | stdlog.Lmicroseconds | stdlog.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmd, f := newCmdEditBgen()
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			fail(optionErrorf("edit-bgen takes no positional arguments, got %v", argv))
		}
		if err := run(env, f); err != nil {
			fail(err)
		}
		return nil
	})
	cmdline.Main(cmd)
}
