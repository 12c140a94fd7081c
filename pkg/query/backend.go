package query

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// Plan is a compiled query with the bins it may touch
type Plan struct {
	Filter     *Filter
	Heuristics Heuristics
	// Batches split the query into independent backend calls
	Batches []Heuristics
}

// Statement is one backend call. Execute may be called again to rerun it.
type Statement[T any] struct {
	Text string
	exec func(ctx context.Context) iter.Seq2[T, error]
}

// Execute issues the call. Resources are released when the sequence ends
// or the caller stops early.
func (s Statement[T]) Execute(ctx context.Context) iter.Seq2[T, error] { return s.exec(ctx) }

// Backend turns query plans into statements over one dataset
type Backend interface {
	Name() string
	SummaryStatements(plan *Plan) ([]Statement[*variants.SummaryVariant], error)
	FamilyStatements(plan *Plan) ([]Statement[*variants.FamilyVariant], error)
	Close() error
}

// ImpalaOptions locate the Impala tables of a dataset
type ImpalaOptions struct {
	Host        string
	Port        int
	Database    string
	TablePrefix string
	PoolSize    int
}

// BackendOptions configure the backends a registry builds
type BackendOptions struct {
	Runner RunnerOptions
	// SQLitePath of "" keeps the sqlite database in a temporary file
	SQLitePath string
	DuckDBPath string
	Impala     ImpalaOptions
}

// BackendFactory opens a backend over ds
type BackendFactory func(ctx context.Context, ds *dataset.Dataset, opts BackendOptions) (Backend, error)

// Registry maps backend names to their factories
type Registry map[string]BackendFactory

// DefaultRegistry holds every backend compiled into the binary
func DefaultRegistry() Registry {
	r := Registry{
		"parquet": func(_ context.Context, ds *dataset.Dataset, _ BackendOptions) (Backend, error) {
			return NewParquetVariants(ds), nil
		},
		"sqlite": func(ctx context.Context, ds *dataset.Dataset, opts BackendOptions) (Backend, error) {
			return NewSQLiteVariants(ctx, ds, opts.SQLitePath, opts.Runner)
		},
	}
	registerDuckDB(r)
	registerImpala(r)
	return r
}

// Names lists the registered backends in sorted order
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open builds the named backend
func (r Registry) Open(ctx context.Context, name string, ds *dataset.Dataset, opts BackendOptions) (Backend, error) {
	factory, ok := r[name]
	if !ok {
		return nil, queryErrorf("unknown backend %q, available: %s", name, strings.Join(r.Names(), ", "))
	}
	b, err := factory(ctx, ds, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", name, err)
	}
	return b, nil
}
