package query

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/scttfrdmn/varquery-go/pkg/attrquery"
	"github.com/scttfrdmn/varquery-go/pkg/dataset"
)

// Dialect is what differs between the SQL engines
type Dialect struct {
	Name   string
	BitAnd attrquery.BitAndFunc
}

var (
	SQLiteDialect = Dialect{Name: "sqlite", BitAnd: attrquery.InfixBitAnd}
	DuckDBDialect = Dialect{Name: "duckdb", BitAnd: attrquery.InfixBitAnd}
	ImpalaDialect = Dialect{Name: "impala", BitAnd: attrquery.FunctionBitAnd}
)

// Tables name the tables of one dataset
type Tables struct {
	Summary     string
	Family      string
	FamilyIndex string
}

// DefaultTables are the names the local backends create
func DefaultTables() Tables {
	return Tables{Summary: "summary", Family: "family", FamilyIndex: "family_index"}
}

// LimitFactor scales the row limit of a statement over the result limit.
// Rows are alleles and many are dropped by the in-memory filter.
const LimitFactor = 10

// SQLBuilder renders query plans as SELECT statements, one per batch
type SQLBuilder struct {
	Dialect Dialect
	Tables  Tables
}

const (
	summaryColumns = "bucket_index, summary_index, allele_index, summary_data"
	familyColumns  = "bucket_index, summary_index, allele_index, family_id, inheritance_in_members, family_data"
)

// SummaryQueries renders the summary statements of plan
func (b *SQLBuilder) SummaryQueries(plan *Plan) []string {
	var out []string
	for _, batch := range batches(plan) {
		w := b.alleleWhere(plan.Filter)
		w.bins(batch, false)
		out = append(out, b.selectFrom(summaryColumns, b.Tables.Summary, w, plan.Filter.Params.Limit))
	}
	return out
}

// FamilyQueries renders the family statements of plan
func (b *SQLBuilder) FamilyQueries(plan *Plan) []string {
	var out []string
	for _, batch := range batches(plan) {
		w := b.alleleWhere(plan.Filter)
		b.memberWhere(w, plan.Filter)
		w.bins(batch, true)
		out = append(out, b.selectFrom(familyColumns, b.Tables.Family, w, plan.Filter.Params.Limit))
	}
	return out
}

func batches(plan *Plan) []Heuristics {
	if len(plan.Batches) == 0 {
		return []Heuristics{plan.Heuristics}
	}
	return plan.Batches
}

func (b *SQLBuilder) selectFrom(columns, table string, w *where, limit int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", columns, table)
	if len(w.conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(w.conds, " AND "))
	}
	if limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit*LimitFactor)
	}
	return sb.String()
}

type where struct {
	conds []string
}

func (w *where) add(format string, args ...any) {
	w.conds = append(w.conds, fmt.Sprintf(format, args...))
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quote(v)
	}
	return strings.Join(quoted, ", ")
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// or joins conditions, rendering an empty set as false
func or(conds []string) string {
	switch len(conds) {
	case 0:
		return "1 = 0"
	case 1:
		return conds[0]
	}
	return "(" + strings.Join(conds, " OR ") + ")"
}

func listMembers(column string, set map[string]bool) string {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	slices.Sort(values)
	conds := make([]string, len(values))
	for i, v := range values {
		conds[i] = fmt.Sprintf("instr(%s, %s) > 0", column, quote("|"+v+"|"))
	}
	return or(conds)
}

func regionCondition(chrom string, start, stop int) string {
	cond := "chromosome = " + quote(chrom)
	if start > 0 {
		cond += fmt.Sprintf(" AND end_position >= %d", start)
	}
	if stop > 0 {
		cond += fmt.Sprintf(" AND position <= %d", stop)
	}
	return "(" + cond + ")"
}

// attrColumn maps an attribute to its column. Other attributes are only
// checked in memory.
func attrColumn(attr string) (string, bool) {
	switch attr {
	case dataset.AttrAlleleFreq, dataset.AttrAlleleCount:
		return attr, true
	}
	return "", false
}

func attrCondition(flt AttrFilter, frequency bool) string {
	col, ok := attrColumn(flt.Attr)
	if !ok {
		return ""
	}
	var bounds []string
	if flt.Range.Min != nil {
		bounds = append(bounds, fmt.Sprintf("%s >= %s", col, formatFloat(*flt.Range.Min)))
	}
	if flt.Range.Max != nil {
		bounds = append(bounds, fmt.Sprintf("%s <= %s", col, formatFloat(*flt.Range.Max)))
	}
	if !frequency {
		return strings.Join(append([]string{col + " IS NOT NULL"}, bounds...), " AND ")
	}
	if len(bounds) == 0 {
		return ""
	}
	cond := strings.Join(bounds, " AND ")
	if flt.Range.Min == nil {
		cond = fmt.Sprintf("(%s OR %s IS NULL)", cond, col)
	}
	return cond
}

// alleleWhere renders the allele level filters. Summary and family tables
// share these columns.
func (b *SQLBuilder) alleleWhere(f *Filter) *where {
	p := f.Params
	w := &where{}
	if !p.ReturnReference {
		w.add("allele_index > 0")
	}
	if len(p.Regions) > 0 {
		conds := make([]string, len(p.Regions))
		for i, r := range p.Regions {
			conds[i] = regionCondition(r.Chrom, r.Start, r.Stop)
		}
		w.add("%s", or(conds))
	}
	if f.genes != nil {
		w.add("%s", listMembers("effect_genes", f.genes))
	}
	if f.effectTypes != nil {
		w.add("%s", listMembers("effect_types", f.effectTypes))
	}
	if f.variantType != nil {
		w.add("(%s)", f.variantType.SQL("variant_type", b.Dialect.BitAnd))
	}
	for _, flt := range p.RealAttrFilter {
		if c := attrCondition(flt, false); c != "" {
			w.add("%s", c)
		}
	}
	for _, flt := range p.FrequencyFilter {
		if c := attrCondition(flt, true); c != "" {
			w.add("%s", c)
		}
	}
	if p.UltraRare {
		w.add("(%s <= 1 OR %s IS NULL)", dataset.AttrAlleleCount, dataset.AttrAlleleCount)
	}
	return w
}

// memberWhere renders the family and member level filters
func (b *SQLBuilder) memberWhere(w *where, f *Filter) {
	if fids := f.FamilyIDs(); fids != nil {
		if len(fids) == 0 {
			w.add("1 = 0")
		} else {
			slices.Sort(fids)
			w.add("family_id IN (%s)", quoteAll(fids))
		}
	}
	if f.personIDs != nil {
		w.add("%s", listMembers("variant_in_members", f.personIDs))
	}
	matchers := []struct {
		column string
		m      *attrquery.Matcher
	}{
		{"variant_in_roles", f.roles},
		{"variant_in_sexes", f.sexes},
		{"variant_in_statuses", f.statuses},
	}
	for _, mc := range matchers {
		if mc.m != nil {
			w.add("(%s)", mc.m.SQL(mc.column, b.Dialect.BitAnd))
		}
	}
	for _, m := range f.inheritance {
		w.add("(%s)", m.SQL("inheritance_in_members", b.Dialect.BitAnd))
	}
}

// bins restricts a statement to the bins of one batch. Integer bins are
// stored as integers.
func (w *where) bins(h Heuristics, family bool) {
	if len(h.RegionBins) > 0 {
		w.add("region_bin IN (%s)", quoteAll(h.RegionBins))
	}
	intBins := []struct {
		column string
		values []string
	}{
		{"coding_bin", h.CodingBins},
		{"frequency_bin", h.FrequencyBins},
	}
	if family {
		intBins = append(intBins, struct {
			column string
			values []string
		}{"family_bin", h.FamilyBins})
	}
	for _, ib := range intBins {
		if len(ib.values) == 0 {
			continue
		}
		values := make([]string, len(ib.values))
		for i, v := range ib.values {
			if _, err := strconv.Atoi(v); err != nil {
				values[i] = quote(v)
			} else {
				values[i] = v
			}
		}
		w.add("%s IN (%s)", ib.column, strings.Join(values, ", "))
	}
}
