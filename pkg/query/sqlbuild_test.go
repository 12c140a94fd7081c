package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

func plan(t *testing.T, p *Params) *Plan {
	t.Helper()
	pl := fixturePlanner(t)
	f := compile(t, pl, p)
	h := pl.Plan(f)
	return &Plan{Filter: f, Heuristics: h, Batches: pl.Batches(h)}
}

func sqliteBuilder() *SQLBuilder {
	return &SQLBuilder{Dialect: SQLiteDialect, Tables: DefaultTables()}
}

func TestSQLBuilderBatches(t *testing.T) {
	queries := sqliteBuilder().SummaryQueries(plan(t, &Params{}))
	require.Len(t, queries, 8)
	assert.Equal(t,
		"SELECT bucket_index, summary_index, allele_index, summary_data FROM summary WHERE allele_index > 0 AND region_bin IN ('foo_0')",
		queries[0])

	queries = sqliteBuilder().FamilyQueries(plan(t, &Params{ReturnReference: true, Regions: []variants.Region{{Chrom: "bar", Start: 150, Stop: 160}}}))
	require.Len(t, queries, 1)
	assert.Equal(t,
		"SELECT bucket_index, summary_index, allele_index, family_id, inheritance_in_members, family_data FROM family"+
			" WHERE (chromosome = 'bar' AND end_position >= 150 AND position <= 160) AND region_bin IN ('bar_1')",
		queries[0])
}

func TestSQLBuilderConditions(t *testing.T) {
	tests := []struct {
		name     string
		params   Params
		contains []string
		excludes []string
	}{
		{
			name:   "regions",
			params: Params{Regions: []variants.Region{{Chrom: "foo", Start: 1, Stop: 100}, {Chrom: "bar"}}},
			contains: []string{
				"((chromosome = 'foo' AND end_position >= 1 AND position <= 100) OR (chromosome = 'bar'))",
				"region_bin IN ('foo_0', 'foo_1', 'bar_0', 'bar_1', 'bar_2', 'bar_3')",
			},
		},
		{
			name:     "genes",
			params:   Params{Genes: []string{"G2", "G1"}},
			contains: []string{"(instr(effect_genes, '|G1|') > 0 OR instr(effect_genes, '|G2|') > 0)"},
		},
		{
			name:     "no genes",
			params:   Params{Genes: []string{}},
			contains: []string{"1 = 0"},
		},
		{
			name:     "coding effect types",
			params:   Params{EffectTypes: []string{"missense"}},
			contains: []string{"instr(effect_types, '|missense|') > 0", "coding_bin IN (1)"},
		},
		{
			name:     "frequency",
			params:   Params{FrequencyFilter: []AttrFilter{{Attr: "af_allele_freq", Range: Between(nil, Float(15))}}},
			contains: []string{"(af_allele_freq <= 15 OR af_allele_freq IS NULL)", "frequency_bin IN (0, 1, 2)"},
		},
		{
			name: "real attributes",
			params: Params{RealAttrFilter: []AttrFilter{
				{Attr: "af_allele_count", Range: Between(Float(3), Float(4))},
				{Attr: "score", Range: Between(Float(1), nil)},
			}},
			contains: []string{"af_allele_count IS NOT NULL AND af_allele_count >= 3 AND af_allele_count <= 4"},
			excludes: []string{"score"},
		},
		{
			name:     "ultra rare",
			params:   Params{UltraRare: true},
			contains: []string{"(af_allele_count <= 1 OR af_allele_count IS NULL)", "frequency_bin IN (0, 1)"},
		},
		{
			name:     "variant type",
			params:   Params{VariantType: "sub"},
			contains: []string{"((variant_type & 1) != 0)"},
		},
		{
			name:     "limit",
			params:   Params{Limit: 5, Regions: []variants.Region{{Chrom: "foo"}}},
			contains: []string{" LIMIT 50"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, q := range sqliteBuilder().SummaryQueries(plan(t, &tt.params)) {
				for _, c := range tt.contains {
					assert.Contains(t, q, c)
				}
				for _, c := range tt.excludes {
					assert.NotContains(t, q, c)
				}
			}
		})
	}
}

func TestSQLBuilderFamilyConditions(t *testing.T) {
	tests := []struct {
		name     string
		params   Params
		contains []string
	}{
		{"families", Params{FamilyIDs: []string{"f2", "o'brien"}}, []string{"family_id IN ('f2', 'o''brien')"}},
		{"no families", Params{FamilyIDs: []string{}}, []string{"1 = 0"}},
		{"persons", Params{PersonIDs: []string{"f1.p1"}}, []string{"family_id IN ('f1')", "instr(variant_in_members, '|f1.p1|') > 0"}},
		{"roles", Params{Roles: "prb"}, []string{"((variant_in_roles & 128) != 0)"}},
		{"sexes", Params{Sexes: "F"}, []string{"((variant_in_sexes & 2) != 0)"}},
		{"statuses", Params{Statuses: "affected"}, []string{"((variant_in_statuses & 2) != 0)"}},
		{"inheritance", Params{Inheritance: []string{"denovo"}}, []string{"((inheritance_in_members & 4) != 0)", "frequency_bin IN (0)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queries := sqliteBuilder().FamilyQueries(plan(t, &tt.params))
			require.NotEmpty(t, queries)
			for _, c := range tt.contains {
				assert.Contains(t, queries[0], c)
			}
		})
	}
}

func TestSQLBuilderSummaryIgnoresMembers(t *testing.T) {
	p := plan(t, &Params{Roles: "prb", FamilyIDs: []string{"f1"}, Regions: []variants.Region{{Chrom: "foo"}}})
	q := sqliteBuilder().SummaryQueries(p)
	require.Len(t, q, 1)
	assert.NotContains(t, q[0], "variant_in_roles")
	assert.NotContains(t, q[0], "family_id")
}

func TestSQLBuilderImpala(t *testing.T) {
	b := &SQLBuilder{Dialect: ImpalaDialect, Tables: Tables{Summary: "db.t_summary", Family: "db.t_family"}}
	q := b.FamilyQueries(plan(t, &Params{Roles: "prb and not sib", Regions: []variants.Region{{Chrom: "foo"}}}))
	require.Len(t, q, 1)
	assert.True(t, strings.Contains(q[0], "FROM db.t_family"))
	assert.Contains(t, q[0], "bitand(variant_in_roles, 128) != 0")
	assert.NotContains(t, q[0], "&")
}

func TestColumnsOf(t *testing.T) {
	ddl := createTable("summary", struct {
		A int32    `db:"a"`
		B *float64 `db:"b"`
		C []byte   `db:"c"`
		D string
	}{})
	assert.Equal(t, "CREATE TABLE summary (a INTEGER, b DOUBLE, c BLOB)", ddl)
	assert.Equal(t, "INSERT INTO t (a) VALUES (:a)", insertInto("t", struct {
		A int32 `db:"a"`
	}{}))
}
