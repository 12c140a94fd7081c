package query

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// SQLVariants runs the statements of an SQLBuilder on a database holding
// the dataset tables. Each statement runs on its own connection in a
// Runner.
type SQLVariants struct {
	name    string
	ds      *dataset.Dataset
	db      *sqlx.DB
	builder *SQLBuilder
	opts    RunnerOptions
	cleanup func() error
}

// NewSQLVariants wraps an open database. cleanup, if set, runs after the
// database is closed.
func NewSQLVariants(ds *dataset.Dataset, db *sqlx.DB, builder *SQLBuilder, opts RunnerOptions, cleanup func() error) *SQLVariants {
	return &SQLVariants{name: builder.Dialect.Name, ds: ds, db: db, builder: builder, opts: opts, cleanup: cleanup}
}

func (b *SQLVariants) Name() string   { return b.name }
func (b *SQLVariants) DB() *sqlx.DB   { return b.db }
func (b *SQLVariants) Tables() Tables { return b.builder.Tables }

func (b *SQLVariants) Close() error {
	err := b.db.Close()
	if b.cleanup != nil {
		if cerr := b.cleanup(); err == nil {
			err = cerr
		}
	}
	return err
}

func (b *SQLVariants) SummaryStatements(plan *Plan) ([]Statement[*variants.SummaryVariant], error) {
	var out []Statement[*variants.SummaryVariant]
	for _, text := range b.builder.SummaryQueries(plan) {
		out = append(out, Statement[*variants.SummaryVariant]{
			Text: text,
			exec: func(ctx context.Context) iter.Seq2[*variants.SummaryVariant, error] {
				return runStatement(ctx, b, text, b.produceSummary)
			},
		})
	}
	return out, nil
}

func (b *SQLVariants) FamilyStatements(plan *Plan) ([]Statement[*variants.FamilyVariant], error) {
	var out []Statement[*variants.FamilyVariant]
	for _, text := range b.builder.FamilyQueries(plan) {
		out = append(out, Statement[*variants.FamilyVariant]{
			Text: text,
			exec: func(ctx context.Context) iter.Seq2[*variants.FamilyVariant, error] {
				return runStatement(ctx, b, text, b.produceFamily)
			},
		})
	}
	return out, nil
}

type producer[T any] func(ctx context.Context, conn *sqlx.Conn, text string, put func(T) error) error

func runStatement[T any](ctx context.Context, b *SQLVariants, text string, produce producer[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		r := NewRunner[T](b.opts)
		r.Start(ctx, func(ctx context.Context, put func(T) error) error {
			conn, err := b.db.Connx(ctx)
			if err != nil {
				return fmt.Errorf("failed to get %s connection: %w", b.name, err)
			}
			defer conn.Close()
			log.WithFields(log.Fields{"runner": r.ID, "backend": b.name}).Debug(text)
			return produce(ctx, conn, text, put)
		})
		for v, err := range r.Results() {
			if !yield(v, err) {
				return
			}
		}
	}
}

func (b *SQLVariants) produceSummary(ctx context.Context, conn *sqlx.Conn, text string, put func(*variants.SummaryVariant) error) error {
	rows, err := conn.QueryxContext(ctx, text)
	if err != nil {
		return fmt.Errorf("%s query failed: %w", b.name, err)
	}
	defer rows.Close()

	var last dataset.SummaryKey
	seen := false
	for rows.Next() {
		var r dataset.SummaryRow
		if err := rows.StructScan(&r); err != nil {
			return fmt.Errorf("failed to scan summary row: %w", err)
		}
		if seen && r.Key() == last {
			continue
		}
		last, seen = r.Key(), true
		sv, err := b.ds.DecodeSummary(b.builder.Tables.Summary, &r)
		if err != nil {
			return err
		}
		if err := put(sv); err != nil {
			return err
		}
	}
	return rows.Err()
}

// produceFamily merges consecutive rows of one family variant into its
// matched alleles
func (b *SQLVariants) produceFamily(ctx context.Context, conn *sqlx.Conn, text string, put func(*variants.FamilyVariant) error) error {
	rows, err := conn.QueryxContext(ctx, text)
	if err != nil {
		return fmt.Errorf("%s query failed: %w", b.name, err)
	}
	defer rows.Close()

	var pending *variants.FamilyVariant
	var pendingKey dataset.FamilyKey
	for rows.Next() {
		var r dataset.FamilyRow
		if err := rows.StructScan(&r); err != nil {
			return fmt.Errorf("failed to scan family row: %w", err)
		}
		if pending != nil && r.Key() == pendingKey {
			pending.MatchedAlleles = append(pending.MatchedAlleles, int(r.AlleleIndex))
			continue
		}
		if pending != nil {
			if err := put(pending); err != nil {
				return err
			}
		}
		fv, err := b.ds.DecodeFamily(b.builder.Tables.Family, &r)
		if err != nil {
			return err
		}
		fv.MatchedAlleles = []int{int(r.AlleleIndex)}
		pending, pendingKey = fv, r.Key()
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if pending != nil {
		return put(pending)
	}
	return nil
}

// column is one db tagged field of a row struct
type column struct {
	Name string
	Type string
}

// sqlTypes maps row field types to SQL column types
var sqlTypes = map[reflect.Type]string{
	reflect.TypeOf(int32(0)):        "INTEGER",
	reflect.TypeOf(""):              "VARCHAR",
	reflect.TypeOf(false):           "BOOLEAN",
	reflect.TypeOf((*int64)(nil)):   "BIGINT",
	reflect.TypeOf((*float64)(nil)): "DOUBLE",
	reflect.TypeOf([]byte(nil)):     "BLOB",
}

// columnsOf lists the db tagged fields of a row struct
func columnsOf(model any) []column {
	t := reflect.TypeOf(model)
	var out []column
	for i := range t.NumField() {
		f := t.Field(i)
		name := f.Tag.Get("db")
		if name == "" || name == "-" {
			continue
		}
		out = append(out, column{Name: name, Type: sqlTypes[f.Type]})
	}
	return out
}

// createTable renders a CREATE TABLE for a row struct
func createTable(table string, model any) string {
	cols := columnsOf(model)
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c.Name + " " + c.Type
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
}

// insertInto renders a named INSERT for a row struct
func insertInto(table string, model any) string {
	cols := columnsOf(model)
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		params[i] = ":" + c.Name
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), strings.Join(params, ", "))
}
