package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

func trios(t *testing.T, ids ...string) *variants.Families {
	t.Helper()
	var persons []*variants.Person
	for _, id := range ids {
		persons = append(persons,
			&variants.Person{FamilyID: id, PersonID: id + ".mom", Sex: variants.SexFemale, Role: variants.RoleMom},
			&variants.Person{FamilyID: id, PersonID: id + ".dad", Sex: variants.SexMale, Role: variants.RoleDad},
			&variants.Person{FamilyID: id, PersonID: id + ".p1", MomID: id + ".mom", DadID: id + ".dad",
				Sex: variants.SexFemale, Status: variants.StatusAffected, Role: variants.RoleProband},
		)
	}
	families, err := variants.NewFamilies(persons)
	require.NoError(t, err)
	return families
}

func locusRecords(fields map[string]string, states map[string]string) []variants.Record {
	var out []variants.Record
	for _, fid := range []string{"f1", "f2"} {
		rec := variants.Record{File: "test", Fields: map[string]string{"family_id": fid, "best_state": states[fid]}}
		for k, v := range fields {
			rec.Fields[k] = v
		}
		out = append(out, rec)
	}
	return out
}

func TestAlleleStats(t *testing.T) {
	families := trios(t, "f1", "f2")
	records := locusRecords(
		map[string]string{"chrom": "1", "pos": "100", "ref": "A", "alt": "G"},
		map[string]string{"f1": "121/101", "f2": "221/001"},
	)
	sv, err := variants.ParseSummaryVariant(records[0])
	require.NoError(t, err)
	var fvs []*variants.FamilyVariant
	for _, rec := range records {
		fv, err := variants.ParseFamilyVariant(rec, sv, families, variants.Options{})
		require.NoError(t, err)
		fvs = append(fvs, fv)
	}
	require.NoError(t, alleleStats(sv, fvs, countParents(families)))

	alt := sv.Alleles[1]
	count, ok := alt.Attributes.Int(AttrAlleleCount)
	require.True(t, ok)
	assert.Equal(t, int64(1), count)
	freq, ok := alt.Attributes.Float(AttrAlleleFreq)
	require.True(t, ok)
	assert.InDelta(t, 12.5, freq, 1e-9)

	denovo, _ := alt.Attributes.Bool(AttrSeenAsDenovo)
	assert.True(t, denovo)
	fc, _ := alt.Attributes.Int(AttrFamilyVariantsCount)
	assert.Equal(t, int64(2), fc)
	pct, _ := alt.Attributes.Float(AttrParentsCalledPercent)
	assert.InDelta(t, 100.0, pct, 1e-9)

	ref := sv.Alleles[0]
	refCount, _ := ref.Attributes.Int(AttrAlleleCount)
	assert.Equal(t, int64(7), refCount)
}

func TestAlleleStatsKeepsInput(t *testing.T) {
	families := trios(t, "f1", "f2")
	records := locusRecords(
		map[string]string{"chrom": "1", "pos": "100", "ref": "A", "alt": "G", "af_allele_freq": "0.5"},
		map[string]string{"f1": "121/101", "f2": "122/100"},
	)
	sv, err := variants.ParseSummaryVariant(records[0])
	require.NoError(t, err)
	var fvs []*variants.FamilyVariant
	for _, rec := range records {
		fv, err := variants.ParseFamilyVariant(rec, sv, families, variants.Options{})
		require.NoError(t, err)
		fvs = append(fvs, fv)
	}
	require.NoError(t, alleleStats(sv, fvs, countParents(families)))

	freq, _ := sv.Alleles[1].Attributes.Float(AttrAlleleFreq)
	assert.InDelta(t, 0.5, freq, 1e-9)
	count, _ := sv.Alleles[1].Attributes.Int(AttrAlleleCount)
	assert.Equal(t, int64(2), count)
}
