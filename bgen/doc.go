// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bgen implements a reader and writer for the BGEN genetic data file
// format: a binary, chunked, optionally compressed container of per-variant
// genotype probability blocks.
//
// A Context describes the on-disk dialect of a BGEN file (its layout,
// compression, and sample count); it is produced once by ReadHeaderBlock and
// is read-only thereafter. A View owns a file handle and a Context and
// exposes a cursor that advances through the variant stream, optionally
// filtered and reordered by an index/Plan (see the sibling index package).
//
// Package bgen/index builds and queries a sidecar index over a BGEN file.
package bgen
