package partition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

func testDescriptor() *Descriptor {
	return &Descriptor{
		Chromosomes:       []string{"foo", "bar"},
		RegionLength:      100,
		FamilyBinSize:     2,
		CodingEffectTypes: []string{"frame-shift", "missense", "nonsense", "splice-site"},
		RareBoundary:      25,
	}
}

func TestMakeRegionBin(t *testing.T) {
	d := testDescriptor()
	tests := []struct {
		chrom    string
		pos      int
		expected string
	}{
		{"foo", 1, "foo_0"},
		{"foo", 99, "foo_0"},
		{"foo", 100, "foo_1"},
		{"bar", 250, "bar_2"},
		{"baz", 5, "other_0"},
		{"chr1", 1234, "other_12"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, d.MakeRegionBin(tt.chrom, tt.pos), "%s:%d", tt.chrom, tt.pos)
		assert.Equal(t, d.MakeRegionBin(tt.chrom, tt.pos), d.MakeRegionBin(tt.chrom, tt.pos))
	}
}

func TestMakeFamilyBin(t *testing.T) {
	d := testDescriptor()
	assert.Equal(t, 1, d.MakeFamilyBin("f1"))
	assert.Equal(t, 0, d.MakeFamilyBin("f2"))

	d.FamilyBinSize = 10
	assert.Equal(t, 9, d.MakeFamilyBin("f1"))
	assert.Equal(t, 8, d.MakeFamilyBin("SF0001"))
}

func TestMakeFrequencyBin(t *testing.T) {
	d := testDescriptor()
	assert.Equal(t, FrequencyDenovo, d.MakeFrequencyBin(100, 50, true, true))
	assert.Equal(t, FrequencyDenovo, d.MakeFrequencyBin(0, 0, false, false))
	assert.Equal(t, FrequencyUltraRare, d.MakeFrequencyBin(1, 8.3, true, false))
	assert.Equal(t, FrequencyRare, d.MakeFrequencyBin(2, 25, true, false))
	assert.Equal(t, FrequencyCommon, d.MakeFrequencyBin(3, 25.1, true, false))
}

func TestMakeCodingBin(t *testing.T) {
	d := testDescriptor()
	assert.Equal(t, 1, d.MakeCodingBin([]string{"synonymous", "missense"}))
	assert.Equal(t, 0, d.MakeCodingBin([]string{"synonymous", "intron"}))
	assert.Equal(t, 0, d.MakeCodingBin(nil))
}

func TestAllelePartitions(t *testing.T) {
	d := testDescriptor()
	ref := &variants.SummaryAllele{Chrom: "foo", Position: 120, Reference: "A"}
	alt := &variants.SummaryAllele{
		Chrom: "foo", Position: 120, Reference: "A", Alternative: "T", AlleleIndex: 1,
		Effects: []variants.Effect{{Gene: "G1", Type: "missense"}},
	}
	require.NoError(t, alt.UpdateAttributes(map[string]any{"af_allele_count": 2, "af_allele_freq": 12.5}))
	require.NoError(t, ref.UpdateAttributes(map[string]any{"af_allele_count": 10, "af_allele_freq": 87.5}))
	sv, err := variants.NewSummaryVariant([]*variants.SummaryAllele{ref, alt})
	require.NoError(t, err)

	p := d.SummaryPartition(sv.Alleles[1], false)
	assert.Equal(t, Partition{{RegionBin, "foo_1"}, {CodingBin, "1"}, {FrequencyBin, "2"}}, p)

	p = d.SummaryPartition(sv.Alleles[0], false)
	assert.Equal(t, Partition{{RegionBin, "foo_1"}, {CodingBin, "0"}, {FrequencyBin, "3"}}, p)

	p = d.SummaryPartition(sv.Alleles[1], true)
	v, _ := p.Get(FrequencyBin)
	assert.Equal(t, "0", v)

	members := []*variants.Person{
		{FamilyID: "f1", PersonID: "m", Sex: variants.SexFemale},
		{FamilyID: "f1", PersonID: "d", Sex: variants.SexMale},
		{FamilyID: "f1", PersonID: "c", MomID: "m", DadID: "d", Sex: variants.SexMale},
	}
	f, err := variants.NewFamily("f1", members)
	require.NoError(t, err)
	bs := [][]int{{2, 1, 1}, {0, 1, 1}}
	fv, err := variants.NewFamilyVariantFromBestState(sv, f, bs, variants.Options{})
	require.NoError(t, err)

	fp := d.FamilyPartition(fv.Alleles[1], false)
	assert.Equal(t, Partition{{RegionBin, "foo_1"}, {FamilyBin, "1"}, {CodingBin, "1"}, {FrequencyBin, "2"}}, fp)
	assert.Equal(t, "region_bin=foo_1/family_bin=1/coding_bin=1/frequency_bin=2", fp.Directory())
	assert.Equal(t,
		"family_region_bin_foo_1_family_bin_1_coding_bin_1_frequency_bin_2_bucket_index_000003.parquet",
		fp.Filename("family", 3))
}

func TestPathToPartition(t *testing.T) {
	p := Partition{{RegionBin, "bar_0"}, {FamilyBin, "0"}, {CodingBin, "0"}, {FrequencyBin, "1"}}
	back, err := PathToPartition(p.Path("summary", 12))
	require.NoError(t, err)
	assert.True(t, p.Equal(back))

	back, err = PathToPartition("frequency_bin=1/region_bin=bar_0")
	require.NoError(t, err)
	assert.Equal(t, Partition{{RegionBin, "bar_0"}, {FrequencyBin, "1"}}, back)

	_, err = PathToPartition("data/region_bin=bar_0/x.parquet")
	assert.Error(t, err)

	empty, err := PathToPartition("summary_bucket_index_000001.parquet")
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, "summary_bucket_index_000001.parquet", Partition(nil).Path("summary", 1))
}

func TestRegionToBins(t *testing.T) {
	d := testDescriptor()
	lens := map[string]int{"foo": 350, "bar": 250, "baz": 120}

	assert.Equal(t, []string{"bar_0", "bar_1", "bar_2"}, d.RegionToBins(variants.Region{Chrom: "bar"}, lens))
	assert.Equal(t, []string{"foo_1", "foo_2"}, d.RegionToBins(variants.Region{Chrom: "foo", Start: 150, Stop: 220}, lens))
	assert.Equal(t, []string{"foo_3"}, d.RegionToBins(variants.Region{Chrom: "foo", Start: 320, Stop: 9000}, lens))
	assert.Equal(t, []string{"other_0", "other_1"}, d.RegionToBins(variants.Region{Chrom: "baz"}, lens))
	assert.Nil(t, d.RegionToBins(variants.Region{Chrom: "nope"}, lens))
	assert.Nil(t, d.RegionToBins(variants.Region{Chrom: "foo", Start: 400, Stop: 500}, lens))

	all, err := d.AllRegionBins(lens)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo_0", "foo_1", "foo_2", "foo_3", "bar_0", "bar_1", "bar_2", "other_0", "other_1"}, all)

	_, err = d.AllRegionBins(map[string]int{"foo": 10})
	assert.Error(t, err)
}

func TestPartitionsEnumeration(t *testing.T) {
	d := testDescriptor()
	summary, family, err := d.Partitions(map[string]int{"foo": 199, "bar": 99})
	require.NoError(t, err)
	assert.Len(t, summary, 3*2*4)
	assert.Len(t, family, 3*2*4*2)
	assert.Equal(t, "region_bin=foo_0/family_bin=0/coding_bin=0/frequency_bin=0", family[0].Directory())

	none := &Descriptor{}
	summary, family, err = none.Partitions(nil)
	require.NoError(t, err)
	assert.Equal(t, []Partition{nil}, summary)
	assert.Equal(t, []Partition{nil}, family)
	assert.False(t, none.HasPartitions())
}

func TestParseConf(t *testing.T) {
	content := `
[region_bin]
chromosomes = foo, bar
region_length = 100

[frequency_bin]
rare_boundary = 25

[coding_bin]
coding_effect_types = LGDs, missense

[family_bin]
family_bin_size = 2
`
	d, err := ParseString(content, FormatConf)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "bar"}, d.Chromosomes)
	assert.Equal(t, 100, d.RegionLength)
	assert.Equal(t, 25.0, d.RareBoundary)
	assert.Equal(t, 2, d.FamilyBinSize)
	assert.Equal(t, []string{"frame-shift", "missense", "no-frame-shift-newStop", "nonsense", "splice-site"}, d.CodingEffectTypes)

	for _, format := range []string{FormatConf, FormatYAML} {
		s, err := d.Serialize(format)
		require.NoError(t, err)
		back, err := ParseString(s, format)
		require.NoError(t, err, s)
		assert.True(t, d.Equal(back), "%s:\n%s", format, s)
	}
}

func TestEqualUnsortedEffectTypes(t *testing.T) {
	d := &Descriptor{
		Chromosomes:       []string{"foo", "bar"},
		RegionLength:      100,
		CodingEffectTypes: []string{"missense", "frame-shift", "synonymous"},
		RareBoundary:      5,
	}
	for _, format := range []string{FormatConf, FormatYAML} {
		s, err := d.Serialize(format)
		require.NoError(t, err)
		back, err := ParseString(s, format)
		require.NoError(t, err, s)
		assert.True(t, d.Equal(back), "%s:\n%s", format, s)
		assert.True(t, back.Equal(d))
	}

	swapped := *d
	swapped.Chromosomes = []string{"bar", "foo"}
	assert.False(t, d.Equal(&swapped))

	other := *d
	other.CodingEffectTypes = []string{"missense", "frame-shift"}
	assert.False(t, d.Equal(&other))
}

func TestParseYAML(t *testing.T) {
	content := `
region_bin:
  chromosomes: [chr1, chr2]
  region_length: 1000000
frequency_bin:
  rare_boundary: 5.0
`
	d, err := ParseString(content, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1", "chr2"}, d.Chromosomes)
	assert.Equal(t, 5.0, d.RareBoundary)
	assert.False(t, d.HasFamilyBins())
	assert.False(t, d.HasCodingBins())

	s, err := d.Serialize(FormatYAML)
	require.NoError(t, err)
	assert.NotContains(t, s, "family_bin")
	assert.NotContains(t, s, "coding_bin")

	single, err := ParseString("region_bin:\n  chromosomes: 1\n  region_length: 10\n", FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, single.Chromosomes)
}

func TestParseEmptyAndErrors(t *testing.T) {
	d, err := ParseString("  \n", FormatConf)
	require.NoError(t, err)
	assert.False(t, d.HasPartitions())
	s, err := d.Serialize(FormatConf)
	require.NoError(t, err)
	assert.Empty(t, s)

	bad := []string{
		"[region_bin]\nregion_length = 10\n",
		"[family_bin]\nfamily_bin_size = zero\n",
		"[frequency_bin]\nrare_boundary = -1\n",
	}
	for _, content := range bad {
		_, err := ParseString(content, FormatConf)
		assert.Error(t, err, content)
	}
	_, err = ParseString("x", "toml")
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "partition.conf")
	require.NoError(t, os.WriteFile(conf, []byte("[family_bin]\nfamily_bin_size = 4\n"), 0644))
	d, err := ParseFile(conf)
	require.NoError(t, err)
	assert.Equal(t, 4, d.FamilyBinSize)

	_, err = ParseFile(filepath.Join(dir, "partition.json"))
	assert.Error(t, err)
}
