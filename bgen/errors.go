// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Error kinds surfaced by this package and by bgen/index, following the
// taxonomy in the format specification. Callers should use errors.Is /
// errors.E inspection (github.com/grailbio/base/errors) rather than string
// matching.
const (
	// KindTruncatedInput means a read hit EOF before a field was fully
	// consumed.
	KindTruncatedInput = errors.IO
	// KindWriteFailed means a write consumed fewer bytes than requested.
	KindWriteFailed = errors.IO
	// KindUnsupportedLayout means the flags word encoded a layout value
	// outside {1, 2}.
	KindUnsupportedLayout = errors.Invalid
	// KindUnsupportedCompression means the flags word encoded a compression
	// value outside {0, 1, 2}.
	KindUnsupportedCompression = errors.Invalid
	// KindUnsupportedTranscode means a variant does not meet the
	// preconditions of a fast-path transcoder.
	KindUnsupportedTranscode = errors.Precondition
	// KindInvalidVariantRecord means a variant identifying block failed a
	// count or consistency check.
	KindInvalidVariantRecord = errors.Invalid
	// KindCompressionMismatch means a decompressed payload's length did not
	// match the length recorded alongside it.
	KindCompressionMismatch = errors.Integrity
	// KindStateViolation means a View method was called while the cursor was
	// not in the required state.
	KindStateViolation = errors.Precondition
	// KindIndexExists means an index build was requested without -clobber
	// while the temp sidecar file (<index>.tmp) already exists.
	KindIndexExists = errors.Exists
	// KindIndexStale means an index's file fingerprint no longer matches its
	// data file.
	KindIndexStale = errors.Precondition
	// KindIndexCorrupt means the sidecar file failed to open or query as a
	// well-formed database.
	KindIndexCorrupt = errors.NotExist
)

// Is reports whether err (or any error it wraps) carries kind, letting
// callers branch on the error taxonomy (spec §7) instead of matching
// strings -- e.g. falling back from a fast-path transcoder to the generic
// path on KindUnsupportedTranscode.
func Is(kind errors.Kind, err error) bool {
	return errors.Is(kind, err)
}

// Errorf is a thin wrapper around errors.E that attaches a Kind and a
// formatted message, matching the idiom used throughout
// encoding/pam/pamutil and encoding/pam/fieldio in the teacher tree.
func Errorf(kind errors.Kind, format string, args ...interface{}) error {
	return errors.E(kind, fmt.Sprintf(format, args...))
}
