package query

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/varquery-go/pkg/dataset/datasettest"
	"github.com/scttfrdmn/varquery-go/pkg/partition"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

func fixturePlanner(t *testing.T) *Planner {
	t.Helper()
	return &Planner{
		Desc:         datasettest.Descriptor(),
		ChromLengths: datasettest.ChromLengths(),
		Families:     datasettest.Families(t),
	}
}

func compile(t *testing.T, pl *Planner, p *Params) *Filter {
	t.Helper()
	f, err := Compile(p, pl.Families)
	require.NoError(t, err)
	return f
}

func TestRegionBins(t *testing.T) {
	tests := []struct {
		name     string
		regions  []string
		span     int
		expected []string
	}{
		{"no regions", nil, 0, nil},
		{"whole chromosome", []string{"bar"}, 0, []string{"bar_0", "bar_1", "bar_2", "bar_3"}},
		{"inside one bin", []string{"foo:150-160"}, 0, []string{"foo_1"}},
		{"variant span", []string{"foo:120-160"}, 50, []string{"foo_0", "foo_1"}},
		{"two regions", []string{"foo:10-20", "bar:210-220", "foo:15"}, 0, []string{"foo_0", "bar_2"}},
		{"unknown length", []string{"baz"}, 0, nil},
		{"other chromosome", []string{"baz:10-20"}, 0, []string{"other_0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := fixturePlanner(t)
			pl.MaxVariantSpan = tt.span
			regions, err := ParseRegions(tt.regions)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, pl.RegionBins(regions))
		})
	}
}

func TestRegionBinsCutoff(t *testing.T) {
	pl := &Planner{
		Desc:         &partition.Descriptor{Chromosomes: []string{"foo"}, RegionLength: 10},
		ChromLengths: map[string]int{"foo": 300},
	}
	assert.Nil(t, pl.RegionBins([]variants.Region{{Chrom: "foo"}}))
	assert.Len(t, pl.RegionBins([]variants.Region{{Chrom: "foo", Start: 1, Stop: 100}}), 11)
}

func TestCodingBins(t *testing.T) {
	pl := fixturePlanner(t)
	assert.Nil(t, pl.CodingBins(nil))
	assert.Equal(t, []string{"1"}, pl.CodingBins([]string{"missense", "synonymous"}))
	assert.Nil(t, pl.CodingBins([]string{"missense", "intron"}))
}

func TestFrequencyBins(t *testing.T) {
	freq := func(hi float64) []AttrFilter {
		return []AttrFilter{{Attr: "af_allele_freq", Range: Between(nil, Float(hi))}}
	}
	tests := []struct {
		name     string
		params   Params
		expected []string
	}{
		{"none", Params{}, nil},
		{"below boundary", Params{FrequencyFilter: freq(15)}, []string{"0", "1", "2"}},
		{"at boundary", Params{FrequencyFilter: freq(25)}, []string{"0", "1", "2"}},
		{"above boundary", Params{FrequencyFilter: freq(25.1)}, nil},
		{"no upper bound", Params{FrequencyFilter: []AttrFilter{{Attr: "af_allele_freq", Range: Between(Float(1), nil)}}}, nil},
		{"other attribute", Params{FrequencyFilter: []AttrFilter{{Attr: "af_allele_count", Range: Between(nil, Float(1))}}}, nil},
		{"ultra rare", Params{UltraRare: true}, []string{"0", "1"}},
		{"ultra rare and rare", Params{UltraRare: true, FrequencyFilter: freq(10)}, []string{"0", "1", "2"}},
		{"denovo", Params{Inheritance: []string{"denovo"}}, []string{"0"}},
		{"denovo and not mendelian", Params{Inheritance: []string{"denovo and not mendelian"}}, []string{"0"}},
		{"denovo or omission", Params{Inheritance: []string{"denovo or omission"}}, nil},
		{"not denovo", Params{Inheritance: []string{"not denovo"}, FrequencyFilter: freq(25.1)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := fixturePlanner(t)
			assert.Equal(t, tt.expected, pl.FrequencyBins(compile(t, pl, &tt.params)))
		})
	}
}

func TestFamilyBins(t *testing.T) {
	pl := fixturePlanner(t)
	assert.Nil(t, pl.FamilyBins(compile(t, pl, &Params{FamilyIDs: []string{"f1"}})), "two bins are never pruned")

	pl.Desc = &partition.Descriptor{FamilyBinSize: 10}
	assert.Nil(t, pl.FamilyBins(compile(t, pl, &Params{})))
	assert.Equal(t, []string{strconv.Itoa(pl.Desc.MakeFamilyBin("f1"))},
		pl.FamilyBins(compile(t, pl, &Params{FamilyIDs: []string{"f1"}})))
	assert.Equal(t, []string{strconv.Itoa(pl.Desc.MakeFamilyBin("f2"))},
		pl.FamilyBins(compile(t, pl, &Params{PersonIDs: []string{"f2.p1"}})))
}

func TestBatches(t *testing.T) {
	tests := []struct {
		name     string
		h        Heuristics
		expected int
	}{
		{"unrestricted", Heuristics{}, 8},
		{"regions", Heuristics{RegionBins: []string{"foo_0"}}, 1},
		{"rare", Heuristics{FrequencyBins: []string{"0", "1", "2"}}, 1},
		{"coding", Heuristics{CodingBins: []string{"1"}}, 1},
		{"ultra rare", Heuristics{FrequencyBins: []string{"0", "1"}}, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := fixturePlanner(t)
			batches := pl.Batches(tt.h)
			require.Len(t, batches, tt.expected)
			if tt.expected > 1 {
				assert.Equal(t, []string{"foo_0"}, batches[0].RegionBins)
				assert.Equal(t, []string{"bar_3"}, batches[len(batches)-1].RegionBins)
				assert.Equal(t, tt.h.FrequencyBins, batches[0].FrequencyBins)
			}
		})
	}

	pl := fixturePlanner(t)
	pl.ChromLengths = nil
	assert.Len(t, pl.Batches(Heuristics{}), 1)
}

func TestHeuristicsFilters(t *testing.T) {
	h := Heuristics{RegionBins: []string{"foo_0"}, FamilyBins: []string{"1"}}
	assert.False(t, h.IsEmpty())
	assert.NotContains(t, h.SummaryFilter(), partition.FamilyBin)
	assert.Equal(t, []string{"1"}, h.FamilyFilter()[partition.FamilyBin])
	assert.True(t, Heuristics{}.IsEmpty())
}
