// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package index implements the relational sidecar store and query planner
// for a BGEN file: a SQLite-backed Metadata/Variant schema built once by
// streaming a bgen.View, and later opened read-only to materialize Plans
// for bgenix's range/rsid predicates.
package index

import (
	"database/sql"
	"os"
	"time"

	"github.com/grailbio/bgen/bgen"

	_ "modernc.org/sqlite"
)

const buildChunkSize = 10

// driverName is the database/sql driver registered by modernc.org/sqlite,
// a pure-Go SQLite implementation -- no cgo, matching the rest of this
// module's self-contained build.
const driverName = "sqlite"

// Store is a handle to an index sidecar, either freshly built or opened
// for querying.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens an existing sidecar file read-only for querying. It fails
// with bgen.KindIndexCorrupt if the file cannot be opened or has no
// queryable Metadata table; the Variant table is not checked here.
func Open(path string) (*Store, error) {
	db, err := sql.Open(driverName, "file:"+path+"?mode=ro")
	if err != nil {
		return nil, bgen.Errorf(bgen.KindIndexCorrupt, "opening index %s: %v", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, bgen.Errorf(bgen.KindIndexCorrupt, "opening index %s: %v", path, err)
	}
	if _, err := db.Exec("SELECT 1 FROM Metadata LIMIT 1"); err != nil {
		db.Close()
		return nil, bgen.Errorf(bgen.KindIndexCorrupt, "index %s missing Metadata table: %v", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Metadata returns the fingerprint row recorded when the index was built.
func (s *Store) Metadata() (bgen.FileMetadata, error) {
	var fp bgen.FileMetadata
	row := s.db.QueryRow(`SELECT filename, file_size, last_write_time, first_1000_bytes FROM Metadata LIMIT 1`)
	if err := row.Scan(&fp.Filename, &fp.Size, &fp.LastWriteTime, &fp.First1000); err != nil {
		return bgen.FileMetadata{}, bgen.Errorf(bgen.KindIndexCorrupt, "reading Metadata row from %s: %v", s.path, err)
	}
	return fp, nil
}

// CheckFresh compares the sidecar's recorded fingerprint against current,
// the data file's fingerprint as captured right now.
// It returns bgen.KindIndexStale if size or first_1000_bytes disagree.
func (s *Store) CheckFresh(current bgen.FileMetadata) error {
	fp, err := s.Metadata()
	if err != nil {
		return err
	}
	if !fp.Matches(current) {
		return bgen.Errorf(bgen.KindIndexStale, "index %s is stale for %s: rebuild with -index -clobber", s.path, current.Filename)
	}
	return nil
}

// BuildOptions configures Build.
type BuildOptions struct {
	// TableName overrides the default "Variant" table name (bgenix -table).
	TableName string
	// WithRowID requests an ordinary rowid table instead of WITHOUT ROWID
	// (bgenix -with-rowid trades a little space for rowid-based access
	// patterns some downstream tools expect).
	WithRowID bool
	// Progress, if non-nil, is invoked once after each variant is streamed
	// and inserted (spec §5: "Progress callbacks are invoked after each
	// variant so a host loop may observe cancellation and raise").
	Progress func()
}

func (o BuildOptions) tableName() string {
	if o.TableName == "" {
		return "Variant"
	}
	return o.TableName
}

// Build streams bgenPath through a bgen.View and writes a fresh sidecar at
// indexPath, following the temp-then-rename protocol:
//  1. create indexPath+".tmp", failing with IndexExists if it's already
//     there and clobber is false;
//  2. insert one Metadata row fingerprinting bgenPath;
//  3. stream every variant, inserting one Variant row each, committing
//     every buildChunkSize (10) rows;
//  4. rename the temp file over indexPath on success; on any failure,
//     delete the temp file.
func Build(bgenPath, indexPath string, clobber bool, opts BuildOptions) (err error) {
	tmpPath := indexPath + ".tmp"
	if !clobber {
		if _, statErr := os.Stat(tmpPath); statErr == nil {
			return bgen.Errorf(bgen.KindIndexExists, "temp index %s already exists", tmpPath)
		}
	} else {
		os.Remove(tmpPath)
	}

	v, err := bgen.Open(bgenPath)
	if err != nil {
		return err
	}
	defer v.Close()
	fp := v.FileMetadata()

	db, err := sql.Open(driverName, "file:"+tmpPath)
	if err != nil {
		return bgen.Errorf(bgen.KindWriteFailed, "creating index %s: %v", tmpPath, err)
	}
	closed := false
	defer func() {
		if !closed {
			db.Close()
		}
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	for _, pragma := range []string{
		"PRAGMA locking_mode=EXCLUSIVE",
		"PRAGMA journal_mode=MEMORY",
		"PRAGMA synchronous=OFF",
	} {
		if _, err = db.Exec(pragma); err != nil {
			return bgen.Errorf(bgen.KindWriteFailed, "%s: %v", pragma, err)
		}
	}

	if err = createSchema(db, opts); err != nil {
		return err
	}
	if err = insertMetadata(db, fp); err != nil {
		return err
	}
	if err = streamVariants(db, v, opts.tableName(), opts.Progress); err != nil {
		return err
	}

	closed = true
	if err = db.Close(); err != nil {
		return bgen.Errorf(bgen.KindWriteFailed, "closing index %s: %v", tmpPath, err)
	}
	if err = os.Rename(tmpPath, indexPath); err != nil {
		return bgen.Errorf(bgen.KindWriteFailed, "renaming %s to %s: %v", tmpPath, indexPath, err)
	}
	return nil
}

func createSchema(db *sql.DB, opts BuildOptions) error {
	const metadataDDL = `
CREATE TABLE Metadata (
  filename TEXT,
  file_size INTEGER, last_write_time INTEGER,
  first_1000_bytes BLOB,
  index_creation_time TEXT
)`
	if _, err := db.Exec(metadataDDL); err != nil {
		return bgen.Errorf(bgen.KindWriteFailed, "creating Metadata table: %v", err)
	}

	withoutRowID := " WITHOUT ROWID"
	if opts.WithRowID {
		withoutRowID = ""
	}
	variantDDL := `
CREATE TABLE ` + opts.tableName() + ` (
  chromosome TEXT, position INTEGER, rsid TEXT,
  number_of_alleles INTEGER, allele1 TEXT, allele2 TEXT,
  file_start_position INTEGER, size_in_bytes INTEGER,
  PRIMARY KEY (chromosome, position, rsid, allele1, allele2, file_start_position)
)` + withoutRowID
	if _, err := db.Exec(variantDDL); err != nil {
		return bgen.Errorf(bgen.KindWriteFailed, "creating %s table: %v", opts.tableName(), err)
	}
	return nil
}

func insertMetadata(db *sql.DB, fp bgen.FileMetadata) error {
	_, err := db.Exec(
		`INSERT INTO Metadata (filename, file_size, last_write_time, first_1000_bytes, index_creation_time) VALUES (?, ?, ?, ?, ?)`,
		fp.Filename, fp.Size, fp.LastWriteTime, fp.First1000, nowRFC3339(),
	)
	if err != nil {
		return bgen.Errorf(bgen.KindWriteFailed, "inserting Metadata row: %v", err)
	}
	return nil
}

// streamVariants reads every variant from v in file order, inserting one
// row per variant with its pre-probability byte offset and total length
// (identifying block plus probability block), committing every
// buildChunkSize rows.
func streamVariants(db *sql.DB, v *bgen.View, table string, progress func()) error {
	insertSQL := `INSERT OR IGNORE INTO ` + table + ` (chromosome, position, rsid, number_of_alleles, allele1, allele2, file_start_position, size_in_bytes) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	tx, err := db.Begin()
	if err != nil {
		return bgen.Errorf(bgen.KindWriteFailed, "starting transaction: %v", err)
	}
	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		tx.Rollback()
		return bgen.Errorf(bgen.KindWriteFailed, "preparing insert: %v", err)
	}

	count := 0
	var lastVariant *bgen.Variant
	var lastOffset int64
	for {
		start := v.Offset()
		variant, ok, err := v.ReadVariant()
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return describeIndexBuildError(err, lastVariant, lastOffset)
		}
		if !ok {
			break
		}
		if err := v.IgnoreGenotypeDataBlock(); err != nil {
			stmt.Close()
			tx.Rollback()
			return describeIndexBuildError(err, variant, start)
		}
		end := v.Offset()

		allele1, allele2 := "", ""
		if len(variant.Alleles) > 0 {
			allele1 = variant.Alleles[0]
		}
		if len(variant.Alleles) > 1 {
			allele2 = variant.Alleles[1]
		}
		if _, err := stmt.Exec(
			variant.Chromosome, variant.Position, variant.Rsid,
			len(variant.Alleles), allele1, allele2,
			start, end-start,
		); err != nil {
			stmt.Close()
			tx.Rollback()
			return describeIndexBuildError(err, variant, start)
		}
		lastVariant, lastOffset = variant, start
		if progress != nil {
			progress()
		}

		count++
		if count%buildChunkSize == 0 {
			stmt.Close()
			if err := tx.Commit(); err != nil {
				return bgen.Errorf(bgen.KindWriteFailed, "committing chunk: %v", err)
			}
			tx, err = db.Begin()
			if err != nil {
				return bgen.Errorf(bgen.KindWriteFailed, "starting transaction: %v", err)
			}
			stmt, err = tx.Prepare(insertSQL)
			if err != nil {
				tx.Rollback()
				return bgen.Errorf(bgen.KindWriteFailed, "preparing insert: %v", err)
			}
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return bgen.Errorf(bgen.KindWriteFailed, "committing final chunk: %v", err)
	}
	return nil
}

// describeIndexBuildError annotates err with the last observed variant
// identity and byte offset.
func describeIndexBuildError(err error, v *bgen.Variant, offset int64) error {
	if v == nil {
		return err
	}
	return bgen.Errorf(bgen.KindWriteFailed, "at variant %s:%d (offset %d): %v", v.Chromosome, v.Position, offset, err)
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
