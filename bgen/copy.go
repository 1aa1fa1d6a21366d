// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import "io"

// CopyVariantRange copies one (identifying block + probability block) byte
// range verbatim from src to dst, without decoding it, per spec §4.7's
// "no-transcode fast path": most bgenix queries and cat-bgen concatenation
// never need to look inside a variant, only relocate its bytes.
func CopyVariantRange(dst io.Writer, src io.ReadSeeker, entry PlanEntry) error {
	if _, err := src.Seek(entry.FileStart, io.SeekStart); err != nil {
		return Errorf(KindTruncatedInput, "seek to %d: %v", entry.FileStart, err)
	}
	n, err := io.CopyN(dst, src, entry.Length)
	if err != nil {
		return Errorf(KindTruncatedInput, "copying %d bytes at offset %d: %v (copied %d)", entry.Length, entry.FileStart, err, n)
	}
	return nil
}

// CopyPlan copies every entry of plan, in order, from src to dst.
func CopyPlan(dst io.Writer, src io.ReadSeeker, plan Plan) error {
	for i := 0; i < plan.NumberOfVariants(); i++ {
		if err := CopyVariantRange(dst, src, plan.LocateVariant(i)); err != nil {
			return err
		}
	}
	return nil
}

// CopyRemainingVariants streams every byte from src's current variant-
// stream cursor to EOF into dst, untouched. This is the fast path for a
// whole-file copy (e.g. cat-bgen with a single input and no edits): no
// plan, no per-variant bookkeeping, one io.Copy.
func CopyRemainingVariants(dst io.Writer, v *View) (int64, error) {
	if v.state == stateAtProbBlock {
		return 0, Errorf(KindStateViolation, "CopyRemainingVariants called mid-probability-block")
	}
	if err := v.ensureStarted(); err != nil {
		return 0, err
	}
	if err := v.seekTo(v.actualPos); err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, v.f)
	if err != nil {
		return n, Errorf(KindTruncatedInput, "streaming variant data: %v", err)
	}
	v.advance(n)
	v.state = stateEOF
	return n, nil
}
