//go:build duckdb

package query

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
)

func registerDuckDB(r Registry) {
	r["duckdb"] = func(ctx context.Context, ds *dataset.Dataset, opts BackendOptions) (Backend, error) {
		return NewDuckDBVariants(ctx, ds, opts.DuckDBPath, opts.Runner)
	}
}

// NewDuckDBVariants queries the partition files in place through
// read_parquet views. The dataset must be on local storage.
func NewDuckDBVariants(ctx context.Context, ds *dataset.Dataset, path string, opts RunnerOptions) (*SQLVariants, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sqlx.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb %s: %w", path, err)
	}
	tables := DefaultTables()
	if err := createDuckDBViews(ctx, db, ds, tables); err != nil {
		db.Close()
		return nil, err
	}
	builder := &SQLBuilder{Dialect: DuckDBDialect, Tables: tables}
	return NewSQLVariants(ds, db, builder, opts, nil), nil
}

func createDuckDBViews(ctx context.Context, db *sqlx.DB, ds *dataset.Dataset, tables Tables) error {
	views := []struct {
		name  string
		files func(context.Context, dataset.BinFilter) ([]string, error)
		model any
	}{
		{tables.Summary, ds.SummaryFiles, dataset.SummaryRow{}},
		{tables.Family, ds.FamilyFiles, dataset.FamilyRow{}},
		{tables.FamilyIndex, ds.FamilyIndexFiles, dataset.FamilyIndexRow{}},
	}
	for _, v := range views {
		files, err := v.files(ctx, nil)
		if err != nil {
			return err
		}
		ddl := createTable(v.name, v.model)
		if len(files) > 0 {
			paths := make([]string, len(files))
			for i, rel := range files {
				p, ok := ds.Storage().LocalPath(rel)
				if !ok {
					return fmt.Errorf("duckdb backend needs a local dataset, got %s", ds.Storage().Root())
				}
				paths[i] = p
			}
			ddl = fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet([%s], hive_partitioning = false)",
				v.name, quoteAll(paths))
		}
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create duckdb view %s: %w", v.name, err)
		}
	}
	return nil
}
