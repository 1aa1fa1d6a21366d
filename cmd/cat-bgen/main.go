// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command cat-bgen concatenates the variant streams of several BGEN files,
// that otherwise agree on layout, compression, and sample count, into one
// output file (spec §4.10, §6).
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

// stringsFlag accumulates one value per occurrence of a repeatable flag
// (spec §6's "-g FILES…").
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
	inPaths         stringsFlag
	outPath         *string
	clobber         *bool
	setFreeData     *string
	omitSampleBlock *bool
}

func newCmdCatBgen() (*cmdline.Command, *flags) {
	cmd := &cmdline.Command{
		Name:  "cat-bgen",
		Short: "Concatenate BGEN files",
	}
	f := &flags{
		outPath:         cmd.Flags.String("og", "", "Output BGEN file (required)"),
		clobber:         cmd.Flags.Bool("clobber", false, "Overwrite an existing output file"),
		setFreeData:     cmd.Flags.String("set-free-data", "", "Override the output file's free_data with this exact-length string"),
		omitSampleBlock: cmd.Flags.Bool("omit-sample-identifier-block", false, "Clear the sample-identifier flag and zero the block in the output file"),
	}
	cmd.Flags.Var(&f.inPaths, "g", "Input BGEN file (repeatable)")
	return cmd, f
}

func main() {
	stdlog.SetFlags(stdlog.Ldate | stdlog.Ltime | stdlog.Lmicroseconds | stdlog.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmd, f := newCmdCatBgen()
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			fail(optionErrorf("cat-bgen takes no positional arguments, got %v", argv))
		}
		if err := run(env, f); err != nil {
			fail(err)
		}
		return nil
	})
	cmdline.Main(cmd)
}
