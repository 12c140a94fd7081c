package variants

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/varquery-go/pkg/genotype"
)

func trioFamily(t *testing.T, id string, childSex Sex) *Family {
	t.Helper()
	members := []*Person{
		{FamilyID: id, PersonID: id + ".mom", Sex: SexFemale, Status: StatusUnaffected},
		{FamilyID: id, PersonID: id + ".dad", Sex: SexMale, Status: StatusUnaffected},
		{FamilyID: id, PersonID: id + ".p1", MomID: id + ".mom", DadID: id + ".dad", Sex: childSex, Status: StatusAffected},
	}
	f, err := NewFamily(id, members)
	require.NoError(t, err)
	return f
}

func snv(t *testing.T, chrom string, pos int, alts ...string) *SummaryVariant {
	t.Helper()
	alleles := []*SummaryAllele{{Chrom: chrom, Position: pos, Reference: "A"}}
	for i, alt := range alts {
		alleles = append(alleles, &SummaryAllele{
			Chrom: chrom, Position: pos, Reference: "A", Alternative: alt,
			AlleleIndex: i + 1, VariantType: VariantSubstitution,
		})
	}
	sv, err := NewSummaryVariant(alleles)
	require.NoError(t, err)
	return sv
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		input    string
		expected Region
		str      string
	}{
		{"chr1:100-200", Region{"chr1", 100, 200}, "chr1:100-200"},
		{"bar", Region{"bar", 0, 0}, "bar"},
		{"1:1,000-2,000", Region{"1", 1000, 2000}, "1:1000-2000"},
		{"X:500", Region{"X", 500, 500}, "X:500-500"},
		{"X:500-", Region{"X", 500, 0}, "X:500-"},
		{"X:-500", Region{"X", 0, 500}, "X:-500"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r, err := ParseRegion(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, r)
			assert.Equal(t, tt.str, r.String())

			again, err := ParseRegion(r.String())
			require.NoError(t, err)
			assert.Equal(t, r, again)
		})
	}

	for _, bad := range []string{"", "chr1:", "chr1:a-b", "chr1:200-100", ":1-2"} {
		_, err := ParseRegion(bad)
		assert.Error(t, err, bad)
	}
}

func TestRegionIntersection(t *testing.T) {
	r := Region{"1", 100, 200}
	assert.True(t, r.Contains("1", 100))
	assert.True(t, r.Contains("1", 200))
	assert.False(t, r.Contains("1", 201))
	assert.False(t, r.Contains("2", 150))
	assert.True(t, r.IntersectsRange("1", 50, 100))
	assert.False(t, r.IntersectsRange("1", 50, 99))

	whole := Region{Chrom: "1"}
	assert.True(t, whole.Intersects(r))
	assert.True(t, r.Intersects(Region{"1", 200, 300}))
	assert.False(t, r.Intersects(Region{"1", 201, 300}))

	in, ok := r.Intersection(Region{"1", 150, 0})
	assert.True(t, ok)
	assert.Equal(t, Region{"1", 150, 200}, in)
}

func TestEnums(t *testing.T) {
	role, err := ParseRole("proband")
	require.NoError(t, err)
	assert.Equal(t, RoleProband, role)
	assert.Equal(t, "prb", role.String())
	assert.Equal(t, "mom|prb", (RoleMom | RoleProband).String())
	assert.Equal(t, []Role{RoleMom, RoleProband}, (RoleMom | RoleProband).Roles())

	sex, err := ParseSex("2")
	require.NoError(t, err)
	assert.Equal(t, SexFemale, sex)

	status, err := ParseStatus("affected")
	require.NoError(t, err)
	assert.Equal(t, StatusAffected, status)

	_, err = ParseInheritance("sideways")
	assert.Error(t, err)

	vt, err := ParseVariantType("CNV+")
	require.NoError(t, err)
	assert.True(t, vt.IsCNV())

	assert.Equal(t, uint64(InheritanceDenovo), InheritanceVocabulary()["denovo"])
	assert.Equal(t, InheritanceDenovo, (InheritanceDenovo | InheritanceOmission).Primary())
}

func TestFamilyRoles(t *testing.T) {
	f := trioFamily(t, "f1", SexMale)
	assert.Equal(t, RoleMom, f.Members[0].Role)
	assert.Equal(t, RoleDad, f.Members[1].Role)
	assert.Equal(t, RoleProband, f.Members[2].Role)
	assert.True(t, f.IsFounder(0))
	assert.False(t, f.IsFounder(2))
	assert.Equal(t, map[int][2]int{2: {0, 1}}, f.Trios())

	_, err := NewFamily("f1", []*Person{
		{FamilyID: "f1", PersonID: "a"},
		{FamilyID: "f1", PersonID: "a"},
	})
	assert.Error(t, err)
}

func TestFamilies(t *testing.T) {
	persons := []*Person{
		{FamilyID: "f2", PersonID: "x"},
		{FamilyID: "f1", PersonID: "y"},
		{FamilyID: "f2", PersonID: "z"},
	}
	fs, err := NewFamilies(persons)
	require.NoError(t, err)
	assert.Equal(t, []string{"f2", "f1"}, fs.IDs())
	f2, ok := fs.Get("f2")
	require.True(t, ok)
	assert.Equal(t, 2, f2.Size())
	assert.Equal(t, 1, f2.Members[1].Index)
	assert.Equal(t, []string{"f2"}, fs.FamiliesOfPersons([]string{"z", "x", "nobody"}))

	var count int
	for range fs.Persons() {
		count++
	}
	assert.Equal(t, 3, count)
}

func TestNewSummaryVariantChecks(t *testing.T) {
	_, err := NewSummaryVariant(nil)
	var ce *ConsistencyError
	assert.True(t, errors.As(err, &ce))

	_, err = NewSummaryVariant([]*SummaryAllele{{Chrom: "1", Position: 5, Reference: "A", Alternative: "T"}})
	assert.True(t, errors.As(err, &ce))

	_, err = NewSummaryVariant([]*SummaryAllele{
		{Chrom: "1", Position: 5, Reference: "A"},
		{Chrom: "1", Position: 5, Reference: "A", Alternative: "T", AlleleIndex: 2},
	})
	assert.True(t, errors.As(err, &ce))

	sv := snv(t, "1", 5, "T", "G")
	assert.Equal(t, "1:5.A.T,G", sv.SVUID())
	assert.Equal(t, "1:5.A.G", sv.Alleles[2].SVUID())
	assert.Len(t, sv.AltAlleles(), 2)
}

func TestAttributes(t *testing.T) {
	sv := snv(t, "1", 5, "T")
	alt := sv.Alleles[1]
	update := map[string]any{"af_allele_count": 3, "af_allele_freq": 1.0, "gene": "CHD8", "flag": true}
	require.NoError(t, alt.UpdateAttributes(update))
	first := alt.Attributes.Clone()
	require.NoError(t, alt.UpdateAttributes(update))
	assert.True(t, first.Equal(&alt.Attributes))

	n, ok := alt.Attributes.Int("af_allele_count")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)
	f, ok := alt.Attributes.Float("af_allele_count")
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)
	_, ok = alt.Attribute("missing")
	assert.False(t, ok)
	assert.Equal(t, "none", alt.AttributeOr("missing", "none"))

	data, err := json.Marshal(alt.Attributes)
	require.NoError(t, err)
	var back Attributes
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(&alt.Attributes))
	freq, _ := back.Get("af_allele_freq")
	assert.IsType(t, float64(0), freq)

	assert.Error(t, alt.UpdateAttributes(map[string]any{"bad": []int{1}}))
}

func TestFamilyVariantInheritance(t *testing.T) {
	f := trioFamily(t, "f1", SexFemale)
	sv := snv(t, "1", 100, "T", "G")

	// mom 0/1, dad 0/0, child 1/2: allele 1 mendelian, allele 2 denovo
	gt := genotype.Matrix{{0, 0, 1}, {1, 0, 2}}
	fv, err := NewFamilyVariant(sv, f, gt, Options{})
	require.NoError(t, err)

	assert.Equal(t, genotype.Autosomal, fv.Model)
	assert.Equal(t, "f1.1:100.A.T,G", fv.FVUID())
	require.Len(t, fv.Alleles, 3)

	a1, ok := fv.Allele(1)
	require.True(t, ok)
	assert.Equal(t, []Inheritance{0, 0, InheritanceMendelian}, a1.InheritanceInMembers)
	assert.Equal(t, []string{"f1.mom", "f1.p1"}, a1.VariantInMembers)
	assert.Equal(t, RoleMom|RoleProband, a1.VariantInRoles)
	assert.Equal(t, SexFemale, a1.VariantInSexes)
	assert.Equal(t, StatusUnaffected|StatusAffected, a1.VariantInStatuses)

	a2, _ := fv.Allele(2)
	assert.Equal(t, InheritanceDenovo, a2.InheritanceMask())
	inh, ok := a2.Inheritance("f1.p1")
	assert.True(t, ok)
	assert.Equal(t, InheritanceDenovo, inh)

	var allele Allele = a2
	assert.Same(t, sv.Alleles[2], allele.Summary())
}

func TestFamilyVariantHomozygousDenovo(t *testing.T) {
	f := trioFamily(t, "f1", SexFemale)
	sv := snv(t, "1", 100, "T")
	bs, err := genotype.ParseBestState("220/002")
	require.NoError(t, err)

	fv, err := NewFamilyVariantFromBestState(sv, f, bs, Options{})
	require.NoError(t, err)
	inh := fv.Alleles[1].InheritanceMask()
	assert.True(t, inh.Has(InheritanceDenovo))
	assert.True(t, inh.Has(InheritanceOmission))
}

func TestFamilyVariantMaleX(t *testing.T) {
	pars := genotype.PseudoAutosomalRegions["hg19"]
	f := trioFamily(t, "f1", SexMale)
	sv := snv(t, "X", 5000000, "T")
	bs, err := genotype.ParseBestState("120/102")
	require.NoError(t, err)

	fv, err := NewFamilyVariantFromBestState(sv, f, bs, Options{PARs: pars})
	require.NoError(t, err)
	assert.Equal(t, "110/101", genotype.FormatBestState(fv.BestState))
	assert.Equal(t, genotype.X, fv.Model)
	assert.Equal(t, InheritanceMendelian, fv.Alleles[1].InheritanceInMembers[2])
}

func TestFamilyVariantConsistency(t *testing.T) {
	f := trioFamily(t, "f1", SexFemale)
	sv := snv(t, "1", 100, "T")
	var ce *ConsistencyError

	_, err := NewFamilyVariant(sv, f, genotype.Matrix{{0, 0}, {0, 0}}, Options{})
	assert.True(t, errors.As(err, &ce))

	_, err = NewFamilyVariant(sv, f, genotype.Matrix{{0, 0, 0}, {0, 0, 3}}, Options{})
	assert.True(t, errors.As(err, &ce))
}

func TestAttributesNonFinite(t *testing.T) {
	tests := []struct {
		cell  string
		check func(float64) bool
	}{
		{"nan", math.IsNaN},
		{"NaN", math.IsNaN},
		{"inf", func(f float64) bool { return math.IsInf(f, 1) }},
		{"+Infinity", func(f float64) bool { return math.IsInf(f, 1) }},
		{"-inf", func(f float64) bool { return math.IsInf(f, -1) }},
	}
	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			rec := Record{File: "in.tsv", Line: 2, Fields: map[string]string{
				"chrom": "1", "pos": "100", "ref": "A", "alt": "T", "score": tt.cell,
			}}
			sv, err := ParseSummaryVariant(rec)
			require.NoError(t, err)
			attrs := sv.Alleles[1].Attributes
			score, ok := attrs.Float("score")
			require.True(t, ok)
			assert.True(t, tt.check(score))

			data, err := json.Marshal(attrs)
			require.NoError(t, err)
			var back Attributes
			require.NoError(t, json.Unmarshal(data, &back))
			assert.True(t, back.Equal(&attrs))
			score, ok = back.Float("score")
			require.True(t, ok)
			assert.True(t, tt.check(score))
		})
	}

	var bad Attributes
	assert.Error(t, json.Unmarshal([]byte(`{"x":{"t":"f","v":"big"}}`), &bad))
}

func TestParseSummaryVariant(t *testing.T) {
	rec := Record{File: "in.tsv", Line: 2, Fields: map[string]string{
		"chrom": "1", "pos": "100", "ref": "A", "alt": "T,AC",
		"effects":   "missense:CHD8|synonymous:CHD8,frame-shift:SCN2A",
		"score":     "0.5,2",
		"source":    "lab",
		"family_id": "f1",
	}}
	sv, err := ParseSummaryVariant(rec)
	require.NoError(t, err)
	require.Equal(t, 3, sv.NumAlleles())
	assert.Equal(t, VariantSubstitution, sv.Alleles[1].VariantType)
	assert.Equal(t, VariantInsertion, sv.Alleles[2].VariantType)
	assert.Equal(t, []string{"missense", "synonymous"}, sv.Alleles[1].EffectTypes())
	assert.Equal(t, []string{"CHD8"}, sv.Alleles[1].EffectGenes())
	assert.Equal(t, []string{"SCN2A"}, sv.Alleles[2].EffectGenes())

	score, _ := sv.Alleles[1].Attributes.Float("score")
	assert.Equal(t, 0.5, score)
	n, _ := sv.Alleles[2].Attributes.Int("score")
	assert.Equal(t, int64(2), n)
	src, _ := sv.Alleles[2].Attributes.Str("source")
	assert.Equal(t, "lab", src)
	assert.False(t, sv.Alleles[1].Attributes.Has("family_id"))
}

func TestParseSummaryVariantLayouts(t *testing.T) {
	cshl, err := ParseSummaryVariant(Record{Fields: map[string]string{"location": "2:300", "variant": "del(3)"}})
	require.NoError(t, err)
	assert.Equal(t, VariantDeletion, cshl.Alleles[1].VariantType)
	assert.Equal(t, 302, cshl.End())

	ins, err := ParseSummaryVariant(Record{Fields: map[string]string{"location": "2:300", "variant": "ins(AAC)"}})
	require.NoError(t, err)
	assert.Equal(t, "AAC", ins.Alleles[1].Alternative)

	cnv, err := ParseSummaryVariant(Record{Fields: map[string]string{
		"chrom": "3", "pos_begin": "1000", "pos_end": "50000", "cnv_type": "del",
	}})
	require.NoError(t, err)
	assert.Equal(t, VariantCNVMinus, cnv.Alleles[1].VariantType)
	assert.Equal(t, 50000, cnv.End())
}

func TestParseMalformed(t *testing.T) {
	bad := []map[string]string{
		{"chrom": "1", "pos": "x", "ref": "A", "alt": "T"},
		{"chrom": "1", "pos": "10", "ref": "A"},
		{"location": "2:300", "variant": "inv(3)"},
		{"chrom": "3", "pos_begin": "10", "pos_end": "5", "cnv_type": "dup"},
		{"chrom": "1", "pos": "10", "ref": "A", "alt": "T,G", "score": "1,2,3"},
	}
	for _, fields := range bad {
		_, err := ParseSummaryVariant(Record{File: "in.tsv", Line: 7, Fields: fields})
		var me *MalformedRecordError
		require.True(t, errors.As(err, &me), "%v", fields)
		assert.Equal(t, 7, me.Line)
	}

	errs := MalformedRecordErrors{{File: "a", Line: 1, Msg: "x"}, {File: "a", Line: 2, Msg: "y"}}
	var me *MalformedRecordError
	assert.True(t, errors.As(error(errs), &me))
	assert.Contains(t, errs.Error(), "2 malformed records")
}

func TestParseFamilyVariant(t *testing.T) {
	fs, err := NewFamilies([]*Person{
		{FamilyID: "f1", PersonID: "m", Sex: SexFemale},
		{FamilyID: "f1", PersonID: "d", Sex: SexMale},
		{FamilyID: "f1", PersonID: "c", MomID: "m", DadID: "d", Sex: SexMale},
	})
	require.NoError(t, err)

	fields := map[string]string{"chrom": "1", "pos": "10", "ref": "A", "alt": "T", "family_id": "f1", "best_state": "212/010"}
	rec := Record{Fields: fields}
	sv, err := ParseSummaryVariant(rec)
	require.NoError(t, err)
	fv, err := ParseFamilyVariant(rec, sv, fs, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, fv.VariantInMembers())
	assert.Equal(t, InheritanceMissing, fv.Alleles[1].InheritanceInMembers[2])

	fields["genotype"] = "0/0,0/1,0/1"
	delete(fields, "best_state")
	fv, err = ParseFamilyVariant(Record{Fields: fields}, sv, fs, Options{})
	require.NoError(t, err)
	assert.Equal(t, InheritanceMendelian, fv.Alleles[1].InheritanceInMembers[2])

	fields["family_id"] = "nope"
	_, err = ParseFamilyVariant(Record{Fields: fields}, sv, fs, Options{})
	var me *MalformedRecordError
	assert.True(t, errors.As(err, &me))
}
