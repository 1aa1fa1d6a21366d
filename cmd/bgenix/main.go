// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command bgenix indexes a BGEN file, then queries it by position range or
// rsid and emits the result as a filtered BGEN, VCF text, or a tab-
// separated listing (spec §6).
package main

import (
	"fmt"
	stdlog "log"
	"os"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"v.io/x/lib/cmdline"
)

// optionErrorf reports a CLI surface error (spec §7 "OptionError: CLI
// surface error; exit -1 with usage hint").
func optionErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// fail prints the top-level diagnostic format spec §6/§7 require ("!!
// <message>") and halts the process with code -1, rather than letting
// cmdline.Main print its own "ERROR: ..." banner and exit code.
func fail(err error) {
	log.Error.Printf("%s", err)
	fmt.Fprintf(os.Stderr, "!! %s\n", err)
	os.Exit(255)
}

// stringsFlag implements flag.Value, accumulating one value per occurrence
// of a repeatable flag (spec §6's "-incl-range R…" accepts more than one
// R), the way klauspost-style multi-flags are modeled elsewhere in the
// pack's CLI tools.
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
	bgenPath         *string
	indexPath        *string
	tableName        *string
	buildIndex       *bool
	clobber          *bool
	withRowID        *bool
	inclRange        stringsFlag
	exclRange        stringsFlag
	inclRsids        stringsFlag
	exclRsids        stringsFlag
	list             *bool
	vcf              *bool
	v11              *bool
	compressionLevel *int
}

func newCmdBgenix() (*cmdline.Command, *flags) {
	cmd := &cmdline.Command{
		Name:  "bgenix",
		Short: "Index, query, and transcode BGEN files",
	}
	f := &flags{
		bgenPath:         cmd.Flags.String("g", "", "Input BGEN file (required)"),
		indexPath:        cmd.Flags.String("i", "", "Index sidecar path (default: <bgen file>.bgi)"),
		tableName:        cmd.Flags.String("table", "", "Variant table name to build or query (default: Variant)"),
		buildIndex:       cmd.Flags.Bool("index", false, "Build the index sidecar"),
		clobber:          cmd.Flags.Bool("clobber", false, "Overwrite an existing index"),
		withRowID:        cmd.Flags.Bool("with-rowid", false, "Build the Variant table with an ordinary rowid instead of WITHOUT ROWID"),
		list:             cmd.Flags.Bool("list", false, "List matching variants as tab-separated text"),
		vcf:              cmd.Flags.Bool("vcf", false, "Emit matching variants as VCF text"),
		v11:              cmd.Flags.Bool("v11", false, "Transcode matching variants to layout 1 BGEN"),
		compressionLevel: cmd.Flags.Int("compression-level", -1, "zlib compression level for -v11 output (-1: default)"),
	}
	cmd.Flags.Var(&f.inclRange, "incl-range", "Include variants in <chr>:<pos1>-<pos2> (repeatable; a readable file's whitespace-separated tokens replace it)")
	cmd.Flags.Var(&f.exclRange, "excl-range", "Exclude variants in <chr>:<pos1>-<pos2> (repeatable)")
	cmd.Flags.Var(&f.inclRsids, "incl-rsids", "Include variants with this rsid (repeatable)")
	cmd.Flags.Var(&f.exclRsids, "excl-rsids", "Exclude variants with this rsid (repeatable)")
	return cmd, f
}

func main() {
	stdlog.SetFlags(stdlog.Ldate | stdlog.Ltime | stdlog.Lmicroseconds | stdlog.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmd, f := newCmdBgenix()
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			fail(optionErrorf("bgenix takes no positional arguments, got %v", argv))
		}
		if err := run(env, f); err != nil {
			fail(err)
		}
		return nil
	})
	cmdline.Main(cmd)
}
