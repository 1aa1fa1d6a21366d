// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package index

import (
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/bgen/bgen"
)

// rangePredicate is a closed position interval on one chromosome. Either
// bound may be absent, matching the "<chr>:-<pos>" / "<chr>:<pos>-"
// boundary forms.
type rangePredicate struct {
	chromosome string
	from, to   *int64
}

func (r rangePredicate) matches(chromosome string, position int64) bool {
	if r.chromosome != chromosome {
		return false
	}
	if r.from != nil && position < *r.from {
		return false
	}
	if r.to != nil && position > *r.to {
		return false
	}
	return true
}

// Planner accumulates include/exclude predicates and freezes them into a
// Plan on Initialise. A Planner from NewPlanner with no predicates
// added matches every variant in the index once initialised.
type Planner struct {
	store         *Store
	table         string
	includeRanges []rangePredicate
	excludeRanges []rangePredicate
	includeRsids  map[string]bool
	excludeRsids  map[string]bool
}

// NewPlanner returns a Planner that will query table (default "Variant")
// in store.
func NewPlanner(store *Store, table string) *Planner {
	if table == "" {
		table = "Variant"
	}
	return &Planner{store: store, table: table}
}

// IncludeRange adds an inclusive [p1, p2] predicate on chromosome; either
// bound may be nil. May be called repeatedly; the base set is the union of
// all include predicates.
func (p *Planner) IncludeRange(chromosome string, p1, p2 *int64) {
	p.includeRanges = append(p.includeRanges, rangePredicate{chromosome, p1, p2})
}

// ExcludeRange adds a range predicate whose matches are subtracted from the
// base set.
func (p *Planner) ExcludeRange(chromosome string, p1, p2 *int64) {
	p.excludeRanges = append(p.excludeRanges, rangePredicate{chromosome, p1, p2})
}

// IncludeRsids adds a set of exact rsid matches to the include predicates.
func (p *Planner) IncludeRsids(ids []string) {
	if p.includeRsids == nil {
		p.includeRsids = map[string]bool{}
	}
	for _, id := range ids {
		p.includeRsids[id] = true
	}
}

// ExcludeRsids adds a set of exact rsid matches to the exclude predicates.
func (p *Planner) ExcludeRsids(ids []string) {
	if p.excludeRsids == nil {
		p.excludeRsids = map[string]bool{}
	}
	for _, id := range ids {
		p.excludeRsids[id] = true
	}
}

// hasIncludePredicates reports whether any include-range or include-rsid
// predicate has been registered; if none has, the base set is every
// variant.
func (p *Planner) hasIncludePredicates() bool {
	return len(p.includeRanges) > 0 || len(p.includeRsids) > 0
}

// row is one Variant table record, as needed to evaluate predicates and to
// produce the final plan entry.
type row struct {
	chromosome string
	position   int64
	rsid       string
	fileStart  int64
	length     int64
}

// Initialise queries the store for every Variant row, applies the include
// and exclude predicates, sorts by file_start_position ascending, and
// deduplicates identical (file_start, length) pairs. It does
// not itself check index freshness; callers should call Store.CheckFresh
// first.
func (p *Planner) Initialise() (*Plan, error) {
	rows, err := p.fetchRows()
	if err != nil {
		return nil, err
	}

	var kept []row
	for _, r := range rows {
		if p.hasIncludePredicates() && !p.matchesInclude(r) {
			continue
		}
		if p.matchesExclude(r) {
			continue
		}
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].fileStart < kept[j].fileStart
	})

	entries := make([]bgen.PlanEntry, 0, len(kept))
	seen := make(map[[2]int64]bool, len(kept))
	for _, r := range kept {
		key := [2]int64{r.fileStart, r.length}
		if seen[key] {
			continue
		}
		seen[key] = true
		entries = append(entries, bgen.PlanEntry{FileStart: r.fileStart, Length: r.length})
	}

	return &Plan{entries: entries}, nil
}

func (p *Planner) matchesInclude(r row) bool {
	for _, rp := range p.includeRanges {
		if rp.matches(r.chromosome, r.position) {
			return true
		}
	}
	if p.includeRsids[r.rsid] {
		return true
	}
	return false
}

func (p *Planner) matchesExclude(r row) bool {
	for _, rp := range p.excludeRanges {
		if rp.matches(r.chromosome, r.position) {
			return true
		}
	}
	if p.excludeRsids[r.rsid] {
		return true
	}
	return false
}

func (p *Planner) fetchRows() ([]row, error) {
	query := `SELECT chromosome, position, rsid, file_start_position, size_in_bytes FROM ` + p.table
	rs, err := p.store.db.Query(query)
	if err != nil {
		return nil, bgen.Errorf(bgen.KindIndexCorrupt, "querying %s: %v", p.table, err)
	}
	defer rs.Close()

	var out []row
	for rs.Next() {
		var r row
		if err := rs.Scan(&r.chromosome, &r.position, &r.rsid, &r.fileStart, &r.length); err != nil {
			return nil, bgen.Errorf(bgen.KindIndexCorrupt, "scanning %s row: %v", p.table, err)
		}
		out = append(out, r)
	}
	if err := rs.Err(); err != nil {
		return nil, bgen.Errorf(bgen.KindIndexCorrupt, "reading %s: %v", p.table, err)
	}
	return out, nil
}

// Plan is a materialized, sorted, deduplicated sequence of byte ranges to
// read from the data file. It implements bgen.Plan.
type Plan struct {
	entries []bgen.PlanEntry
}

// NumberOfVariants returns the number of entries in the plan.
func (pl *Plan) NumberOfVariants() int {
	return len(pl.entries)
}

// LocateVariant returns the i-th entry's (file_start, length) pair.
func (pl *Plan) LocateVariant(i int) bgen.PlanEntry {
	return pl.entries[i]
}

// ParseRangeToken parses a "<chr>:<pos1>-<pos2>" token, where
// either position may be omitted ("chr:-200" or "chr:100-"). It returns the
// chromosome and the two optional bounds.
func ParseRangeToken(token string) (chromosome string, p1, p2 *int64, err error) {
	chrom, rest, ok := strings.Cut(token, ":")
	if !ok {
		return "", nil, nil, bgen.Errorf(bgen.KindInvalidVariantRecord, "range %q missing ':'", token)
	}
	lo, hi, ok := strings.Cut(rest, "-")
	if !ok {
		return "", nil, nil, bgen.Errorf(bgen.KindInvalidVariantRecord, "range %q missing '-'", token)
	}
	p1, err = parseOptionalInt64(lo)
	if err != nil {
		return "", nil, nil, err
	}
	p2, err = parseOptionalInt64(hi)
	if err != nil {
		return "", nil, nil, err
	}
	return chrom, p1, p2, nil
}

func parseOptionalInt64(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, bgen.Errorf(bgen.KindInvalidVariantRecord, "invalid position %q: %v", s, err)
	}
	return &v, nil
}
