package query

import (
	"context"
	"fmt"
	"iter"

	log "github.com/sirupsen/logrus"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// ParquetVariants scans the partition files of a dataset directly. Files
// are pruned by the plan heuristics and scanned one at a time.
type ParquetVariants struct {
	ds *dataset.Dataset
}

func NewParquetVariants(ds *dataset.Dataset) *ParquetVariants {
	return &ParquetVariants{ds: ds}
}

func (b *ParquetVariants) Name() string { return "parquet" }

func (b *ParquetVariants) Close() error { return nil }

func (b *ParquetVariants) SummaryStatements(plan *Plan) ([]Statement[*variants.SummaryVariant], error) {
	filter := plan.Heuristics.SummaryFilter()
	stmt := Statement[*variants.SummaryVariant]{
		Text: fmt.Sprintf("scan %s %v", dataset.SummaryDir, filter),
		exec: func(ctx context.Context) iter.Seq2[*variants.SummaryVariant, error] {
			return b.scanSummary(ctx, filter, plan.Filter)
		},
	}
	return []Statement[*variants.SummaryVariant]{stmt}, nil
}

func (b *ParquetVariants) FamilyStatements(plan *Plan) ([]Statement[*variants.FamilyVariant], error) {
	filter := plan.Heuristics.FamilyFilter()
	stmt := Statement[*variants.FamilyVariant]{
		Text: fmt.Sprintf("scan %s %v", dataset.FamilyDir, filter),
		exec: func(ctx context.Context) iter.Seq2[*variants.FamilyVariant, error] {
			return b.scanFamily(ctx, filter, plan.Filter)
		},
	}
	return []Statement[*variants.FamilyVariant]{stmt}, nil
}

func (b *ParquetVariants) scanSummary(ctx context.Context, bins dataset.BinFilter, f *Filter) iter.Seq2[*variants.SummaryVariant, error] {
	return func(yield func(*variants.SummaryVariant, error) bool) {
		files, err := b.ds.SummaryFiles(ctx, bins)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, rel := range files {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			rows, err := b.ds.ReadSummaryRows(ctx, rel)
			if err != nil {
				yield(nil, err)
				return
			}
			log.WithFields(log.Fields{"file": rel, "rows": len(rows)}).Debug("scanning summary file")
			var last dataset.SummaryKey
			seen := false
			for i := range rows {
				r := &rows[i]
				if !f.MatchSummaryRow(r) {
					continue
				}
				if seen && r.Key() == last {
					continue
				}
				last, seen = r.Key(), true
				sv, err := b.ds.DecodeSummary(rel, r)
				if !yield(sv, err) || err != nil {
					return
				}
			}
		}
	}
}

func (b *ParquetVariants) scanFamily(ctx context.Context, bins dataset.BinFilter, f *Filter) iter.Seq2[*variants.FamilyVariant, error] {
	return func(yield func(*variants.FamilyVariant, error) bool) {
		files, err := b.ds.FamilyFiles(ctx, bins)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, rel := range files {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			rows, err := b.ds.ReadFamilyRows(ctx, rel)
			if err != nil {
				yield(nil, err)
				return
			}
			log.WithFields(log.Fields{"file": rel, "rows": len(rows)}).Debug("scanning family file")
			var pending *variants.FamilyVariant
			var pendingKey dataset.FamilyKey
			for i := range rows {
				r := &rows[i]
				if !f.MatchFamilyRow(r) {
					continue
				}
				if pending != nil && r.Key() == pendingKey {
					pending.MatchedAlleles = append(pending.MatchedAlleles, int(r.AlleleIndex))
					continue
				}
				if pending != nil && !yield(pending, nil) {
					return
				}
				fv, err := b.ds.DecodeFamily(rel, r)
				if err != nil {
					yield(nil, err)
					return
				}
				fv.MatchedAlleles = []int{int(r.AlleleIndex)}
				pending, pendingKey = fv, r.Key()
			}
			if pending != nil && !yield(pending, nil) {
				return
			}
		}
	}
}
