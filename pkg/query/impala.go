//go:build impala

package query

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	impala "github.com/bippio/go-impala"
	"github.com/jmoiron/sqlx"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
)

func registerImpala(r Registry) {
	r["impala"] = func(ctx context.Context, ds *dataset.Dataset, opts BackendOptions) (Backend, error) {
		return NewImpalaVariants(ctx, ds, opts.Impala, opts.Runner)
	}
}

// ImpalaTables names the tables an import into Impala creates
func ImpalaTables(database, prefix string) Tables {
	return Tables{
		Summary:     fmt.Sprintf("%s.%s_summary", database, prefix),
		Family:      fmt.Sprintf("%s.%s_family", database, prefix),
		FamilyIndex: fmt.Sprintf("%s.%s_family_index", database, prefix),
	}
}

// NewImpalaVariants queries dataset tables already loaded into Impala.
// Variants are decoded with the pedigree and codec of ds.
func NewImpalaVariants(ctx context.Context, ds *dataset.Dataset, opts ImpalaOptions, runner RunnerOptions) (*SQLVariants, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("impala host is not set")
	}
	if opts.TablePrefix == "" {
		return nil, fmt.Errorf("impala table prefix is not set")
	}
	io := impala.DefaultOptions
	io.Host = opts.Host
	io.Port = strconv.Itoa(opts.Port)
	db := sqlx.NewDb(sql.OpenDB(impala.NewConnector(&io)), "impala")
	if opts.PoolSize > 0 {
		db.SetMaxOpenConns(opts.PoolSize)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to impala at %s:%d: %w", opts.Host, opts.Port, err)
	}
	builder := &SQLBuilder{Dialect: ImpalaDialect, Tables: ImpalaTables(opts.Database, opts.TablePrefix)}
	return NewSQLVariants(ds, db, builder, runner, nil), nil
}
