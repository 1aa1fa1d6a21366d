// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/bgen/bgen"
	"github.com/stretchr/testify/require"
)

func threeVariantFixture(t *testing.T) string {
	return buildIndexFixture(t, []fixtureVariant{
		{chrom: "1", rsid: "rs1", pos: 100, alleles: []string{"A", "G"}},
		{chrom: "1", rsid: "rs2", pos: 200, alleles: []string{"C", "T"}},
		{chrom: "2", rsid: "rs3", pos: 50, alleles: []string{"A", "T"}},
	})
}

func TestBuildAndOpen(t *testing.T) {
	bgenPath := threeVariantFixture(t)
	indexPath := filepath.Join(t.TempDir(), "fixture.bgen.bgi")

	var progressCalls int
	err := Build(bgenPath, indexPath, false, BuildOptions{Progress: func() { progressCalls++ }})
	require.NoError(t, err)
	require.Equal(t, 3, progressCalls)

	// The temp file must not survive a successful build.
	_, statErr := os.Stat(indexPath + ".tmp")
	require.True(t, os.IsNotExist(statErr))

	s, err := Open(indexPath)
	require.NoError(t, err)
	defer s.Close()

	meta, err := s.Metadata()
	require.NoError(t, err)
	require.Contains(t, meta.Filename, "fixture.bgen")

	v, err := bgen.Open(bgenPath)
	require.NoError(t, err)
	defer v.Close()
	require.NoError(t, s.CheckFresh(v.FileMetadata()))
}

func TestBuild_RejectsExistingTempWithoutClobber(t *testing.T) {
	bgenPath := threeVariantFixture(t)
	indexPath := filepath.Join(t.TempDir(), "fixture.bgen.bgi")
	require.NoError(t, os.WriteFile(indexPath+".tmp", []byte("stale"), 0o644))

	err := Build(bgenPath, indexPath, false, BuildOptions{})
	require.Error(t, err)
	require.True(t, bgen.Is(bgen.KindIndexExists, err))
}

func TestBuild_ClobberOverwritesStaleTemp(t *testing.T) {
	bgenPath := threeVariantFixture(t)
	indexPath := filepath.Join(t.TempDir(), "fixture.bgen.bgi")
	require.NoError(t, os.WriteFile(indexPath+".tmp", []byte("stale"), 0o644))

	err := Build(bgenPath, indexPath, true, BuildOptions{})
	require.NoError(t, err)

	s, err := Open(indexPath)
	require.NoError(t, err)
	defer s.Close()
}

func TestCheckFresh_DetectsStaleIndex(t *testing.T) {
	bgenPath := threeVariantFixture(t)
	indexPath := filepath.Join(t.TempDir(), "fixture.bgen.bgi")
	require.NoError(t, Build(bgenPath, indexPath, false, BuildOptions{}))

	s, err := Open(indexPath)
	require.NoError(t, err)
	defer s.Close()

	// Append bytes so the data file's size and first_1000_bytes no longer
	// match what was fingerprinted at build time.
	f, err := os.OpenFile(bgenPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("trailing garbage"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	v, err := bgen.Open(bgenPath)
	require.NoError(t, err)
	defer v.Close()

	err = s.CheckFresh(v.FileMetadata())
	require.Error(t, err)
	require.True(t, bgen.Is(bgen.KindIndexStale, err))
}

func TestBuild_WithRowIDOption(t *testing.T) {
	bgenPath := threeVariantFixture(t)
	indexPath := filepath.Join(t.TempDir(), "fixture.bgen.bgi")
	require.NoError(t, Build(bgenPath, indexPath, false, BuildOptions{WithRowID: true}))

	s, err := Open(indexPath)
	require.NoError(t, err)
	defer s.Close()

	p := NewPlanner(s, "")
	plan, err := p.Initialise()
	require.NoError(t, err)
	require.Equal(t, 3, plan.NumberOfVariants())
}

func TestBuild_CustomTableName(t *testing.T) {
	bgenPath := threeVariantFixture(t)
	indexPath := filepath.Join(t.TempDir(), "fixture.bgen.bgi")
	require.NoError(t, Build(bgenPath, indexPath, false, BuildOptions{TableName: "Custom"}))

	s, err := Open(indexPath)
	require.NoError(t, err)
	defer s.Close()

	p := NewPlanner(s, "Custom")
	plan, err := p.Initialise()
	require.NoError(t, err)
	require.Equal(t, 3, plan.NumberOfVariants())
}

func TestOpen_RejectsMissingMetadataTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notanindex.bgi")
	require.NoError(t, os.WriteFile(path, []byte("not a sqlite file"), 0o644))
	_, err := Open(path)
	require.Error(t, err)
	require.True(t, bgen.Is(bgen.KindIndexCorrupt, err))
}
