package query

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
)

// sqliteInsertBatch is the number of rows per multi-row INSERT
const sqliteInsertBatch = 200

// sqliteLoadTable records which dataset a sqlite database holds. Its row
// is written in the same transaction as the variant tables.
const sqliteLoadTable = "varquery_load"

// NewSQLiteVariants loads the dataset tables into a sqlite database at path
// and queries them. A database loaded from the same dataset is reused, any
// other content is replaced. An empty path loads into a temporary file
// removed on Close.
func NewSQLiteVariants(ctx context.Context, ds *dataset.Dataset, path string, opts RunnerOptions) (*SQLVariants, error) {
	var cleanup func() error
	if path == "" {
		dir, err := os.MkdirTemp("", "varquery-sqlite-")
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		path = filepath.Join(dir, "variants.db")
		cleanup = func() error { return os.RemoveAll(dir) }
	}
	fail := func(err error) (*SQLVariants, error) {
		if cleanup != nil {
			cleanup()
		}
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return fail(fmt.Errorf("failed to open sqlite database %s: %w", path, err))
	}
	tables := DefaultTables()
	loaded, err := sqliteLoaded(ctx, db, ds)
	if err == nil && !loaded {
		err = loadSQLite(ctx, db, ds, tables)
	}
	if err != nil {
		db.Close()
		return fail(err)
	}
	builder := &SQLBuilder{Dialect: SQLiteDialect, Tables: tables}
	return NewSQLVariants(ds, db, builder, opts, cleanup), nil
}

// sqliteLoad is the row of the load table
type sqliteLoad struct {
	Root    string `db:"root"`
	Created string `db:"created"`
}

func datasetLoad(ds *dataset.Dataset) sqliteLoad {
	return sqliteLoad{Root: ds.Storage().Root(), Created: ds.Meta().Created.UTC().Format(time.RFC3339Nano)}
}

// sqliteLoaded reports whether the database holds a complete load of ds
func sqliteLoaded(ctx context.Context, db *sqlx.DB, ds *dataset.Dataset) (bool, error) {
	var n int
	if err := db.GetContext(ctx, &n, "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", sqliteLoadTable); err != nil {
		return false, fmt.Errorf("failed to inspect sqlite database: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	var got []sqliteLoad
	if err := db.SelectContext(ctx, &got, "SELECT root, created FROM "+sqliteLoadTable); err != nil {
		return false, fmt.Errorf("failed to read sqlite load record: %w", err)
	}
	want := datasetLoad(ds)
	if len(got) == 1 && got[0] == want {
		return true, nil
	}
	log.WithFields(log.Fields{"root": want.Root, "loads": len(got)}).Info("sqlite database holds another dataset, reloading")
	return false, nil
}

// loadSQLite replaces the database content with the dataset tables in one
// transaction
func loadSQLite(ctx context.Context, db *sqlx.DB, ds *dataset.Dataset, tables Tables) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin sqlite transaction: %w", err)
	}
	if err := loadTables(ctx, tx, ds, tables); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sqlite load: %w", err)
	}
	return nil
}

func loadTables(ctx context.Context, tx *sqlx.Tx, ds *dataset.Dataset, tables Tables) error {
	ddl := []string{
		"DROP TABLE IF EXISTS " + sqliteLoadTable,
		"DROP TABLE IF EXISTS " + tables.Summary,
		"DROP TABLE IF EXISTS " + tables.Family,
		"DROP TABLE IF EXISTS " + tables.FamilyIndex,
		createTable(tables.Summary, dataset.SummaryRow{}),
		createTable(tables.Family, dataset.FamilyRow{}),
		createTable(tables.FamilyIndex, dataset.FamilyIndexRow{}),
		"CREATE TABLE " + sqliteLoadTable + " (root VARCHAR, created VARCHAR)",
	}
	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare sqlite tables: %w", err)
		}
	}

	summary, err := ds.SummaryFiles(ctx, nil)
	if err != nil {
		return err
	}
	if err := loadTable(ctx, tx, tables.Summary, summary, ds.ReadSummaryRows); err != nil {
		return err
	}
	family, err := ds.FamilyFiles(ctx, nil)
	if err != nil {
		return err
	}
	if err := loadTable(ctx, tx, tables.Family, family, ds.ReadFamilyRows); err != nil {
		return err
	}
	index, err := ds.FamilyIndexFiles(ctx, nil)
	if err != nil {
		return err
	}
	if err := loadTable(ctx, tx, tables.FamilyIndex, index, ds.ReadFamilyIndexRows); err != nil {
		return err
	}

	if _, err := tx.NamedExecContext(ctx, insertInto(sqliteLoadTable, sqliteLoad{}), datasetLoad(ds)); err != nil {
		return fmt.Errorf("failed to record sqlite load: %w", err)
	}
	return nil
}

// loadTable copies the rows of every file into table
func loadTable[R any](ctx context.Context, tx *sqlx.Tx, table string, files []string,
	read func(context.Context, string) ([]R, error)) error {
	var model R
	insert := insertInto(table, model)
	total := 0
	for _, rel := range files {
		rows, err := read(ctx, rel)
		if err != nil {
			return err
		}
		for start := 0; start < len(rows); start += sqliteInsertBatch {
			batch := rows[start:min(start+sqliteInsertBatch, len(rows))]
			if _, err := tx.NamedExecContext(ctx, insert, batch); err != nil {
				return fmt.Errorf("failed to load %s into %s: %w", rel, table, err)
			}
		}
		total += len(rows)
	}
	log.WithFields(log.Fields{"table": table, "files": len(files), "rows": total}).Debug("sqlite table loaded")
	return nil
}
