// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package index

import (
	"path/filepath"
	"testing"

	"github.com/grailbio/bgen/bgen"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 { return &v }

func TestParseRangeToken(t *testing.T) {
	chrom, p1, p2, err := ParseRangeToken("1:100-200")
	require.NoError(t, err)
	require.Equal(t, "1", chrom)
	require.Equal(t, int64(100), *p1)
	require.Equal(t, int64(200), *p2)

	chrom, p1, p2, err = ParseRangeToken("1:-200")
	require.NoError(t, err)
	require.Equal(t, "1", chrom)
	require.Nil(t, p1)
	require.Equal(t, int64(200), *p2)

	chrom, p1, p2, err = ParseRangeToken("1:100-")
	require.NoError(t, err)
	require.Equal(t, "1", chrom)
	require.Equal(t, int64(100), *p1)
	require.Nil(t, p2)
}

func TestParseRangeToken_RejectsMalformed(t *testing.T) {
	_, _, _, err := ParseRangeToken("noColon")
	require.Error(t, err)
	require.True(t, bgen.Is(bgen.KindInvalidVariantRecord, err))

	_, _, _, err = ParseRangeToken("1:nodash")
	require.Error(t, err)
	require.True(t, bgen.Is(bgen.KindInvalidVariantRecord, err))

	_, _, _, err = ParseRangeToken("1:abc-200")
	require.Error(t, err)
	require.True(t, bgen.Is(bgen.KindInvalidVariantRecord, err))
}

func buildPlanFixtureStore(t *testing.T) *Store {
	bgenPath := buildIndexFixture(t, []fixtureVariant{
		{chrom: "1", rsid: "rs1", pos: 100, alleles: []string{"A", "G"}},
		{chrom: "1", rsid: "rs2", pos: 200, alleles: []string{"C", "T"}},
		{chrom: "1", rsid: "rs3", pos: 300, alleles: []string{"A", "C"}},
		{chrom: "2", rsid: "rs4", pos: 50, alleles: []string{"A", "T"}},
	})
	indexPath := filepath.Join(t.TempDir(), "plan.bgi")
	require.NoError(t, Build(bgenPath, indexPath, false, BuildOptions{}))
	s, err := Open(indexPath)
	require.NoError(t, err)
	return s
}

func TestPlanner_NoPredicatesMatchesEverything(t *testing.T) {
	s := buildPlanFixtureStore(t)
	defer s.Close()

	p := NewPlanner(s, "")
	plan, err := p.Initialise()
	require.NoError(t, err)
	require.Equal(t, 4, plan.NumberOfVariants())
}

func TestPlanner_IncludeRange(t *testing.T) {
	s := buildPlanFixtureStore(t)
	defer s.Close()

	p := NewPlanner(s, "")
	p.IncludeRange("1", i64(150), i64(250))
	plan, err := p.Initialise()
	require.NoError(t, err)
	require.Equal(t, 1, plan.NumberOfVariants())
}

func TestPlanner_IncludeRsids(t *testing.T) {
	s := buildPlanFixtureStore(t)
	defer s.Close()

	p := NewPlanner(s, "")
	p.IncludeRsids([]string{"rs1", "rs4"})
	plan, err := p.Initialise()
	require.NoError(t, err)
	require.Equal(t, 2, plan.NumberOfVariants())
}

func TestPlanner_IncludeUnionsRangeAndRsid(t *testing.T) {
	s := buildPlanFixtureStore(t)
	defer s.Close()

	p := NewPlanner(s, "")
	p.IncludeRange("1", i64(90), i64(110))
	p.IncludeRsids([]string{"rs4"})
	plan, err := p.Initialise()
	require.NoError(t, err)
	require.Equal(t, 2, plan.NumberOfVariants())
}

func TestPlanner_ExcludeSubtractsFromIncludedSet(t *testing.T) {
	s := buildPlanFixtureStore(t)
	defer s.Close()

	p := NewPlanner(s, "")
	p.IncludeRange("1", nil, nil)
	p.ExcludeRsids([]string{"rs2"})
	plan, err := p.Initialise()
	require.NoError(t, err)
	require.Equal(t, 2, plan.NumberOfVariants())
}

func TestPlanner_ExcludeWithoutIncludeAppliesToEverything(t *testing.T) {
	s := buildPlanFixtureStore(t)
	defer s.Close()

	p := NewPlanner(s, "")
	p.ExcludeRange("2", nil, nil)
	plan, err := p.Initialise()
	require.NoError(t, err)
	require.Equal(t, 3, plan.NumberOfVariants())
}

func TestPlanner_PlanSortedByFileStart(t *testing.T) {
	s := buildPlanFixtureStore(t)
	defer s.Close()

	p := NewPlanner(s, "")
	plan, err := p.Initialise()
	require.NoError(t, err)

	for i := 1; i < plan.NumberOfVariants(); i++ {
		require.LessOrEqual(t, plan.LocateVariant(i-1).FileStart, plan.LocateVariant(i).FileStart)
	}
}
