package dataset

import (
	"github.com/scttfrdmn/varquery-go/pkg/genotype"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// Summary allele statistics computed at import
const (
	AttrAlleleCount          = "af_allele_count"
	AttrAlleleFreq           = "af_allele_freq"
	AttrParentsCalledCount   = "af_parents_called_count"
	AttrParentsCalledPercent = "af_parents_called_percent"
	AttrSeenAsDenovo         = "seen_as_denovo"
	AttrSeenInStatus         = "seen_in_status"
	AttrFamilyVariantsCount  = "family_variants_count"
)

// alleleStats computes the statistics of every allele of sv from the
// family variants observed at the locus. Frequencies count the called
// chromosomes of parents only. totalParents is the number of parents in
// the pedigree. Attributes already present on an allele are kept.
func alleleStats(sv *variants.SummaryVariant, fvs []*variants.FamilyVariant, totalParents int) error {
	n := sv.NumAlleles()
	counts := make([]int64, n)
	denovo := make([]bool, n)
	statuses := make([]variants.Status, n)
	familyCounts := make([]int64, n)
	var parentsCalled, chromosomes int64

	for _, fv := range fvs {
		ploidy := genotype.Ploidy(fv.BestState)
		for i, p := range fv.Family.Members {
			if p.Role&(variants.RoleMom|variants.RoleDad) == 0 || ploidy[i] < 0 {
				continue
			}
			parentsCalled++
			chromosomes += int64(ploidy[i])
			for a := 0; a < n; a++ {
				counts[a] += int64(fv.BestState[a][i])
			}
		}
		for _, fa := range fv.Alleles {
			idx := fa.AlleleIndex
			if fa.InheritanceMask()&variants.InheritanceDenovo != 0 {
				denovo[idx] = true
			}
			statuses[idx] |= fa.VariantInStatuses
			if len(fa.VariantInMembers) > 0 {
				familyCounts[idx]++
			}
		}
	}

	for a, sa := range sv.Alleles {
		stats := map[string]any{
			AttrParentsCalledCount:  parentsCalled,
			AttrSeenAsDenovo:        denovo[a],
			AttrSeenInStatus:        int64(statuses[a]),
			AttrFamilyVariantsCount: familyCounts[a],
		}
		if totalParents > 0 {
			stats[AttrParentsCalledPercent] = 100 * float64(parentsCalled) / float64(totalParents)
		}
		if chromosomes > 0 {
			stats[AttrAlleleCount] = counts[a]
			stats[AttrAlleleFreq] = 100 * float64(counts[a]) / float64(chromosomes)
		}
		for name := range stats {
			if sa.Attributes.Has(name) {
				delete(stats, name)
			}
		}
		if err := sa.UpdateAttributes(stats); err != nil {
			return err
		}
	}
	return nil
}

// countParents counts pedigree members with the mom or dad role
func countParents(families *variants.Families) int {
	n := 0
	for p := range families.Persons() {
		if p.Role&(variants.RoleMom|variants.RoleDad) != 0 {
			n++
		}
	}
	return n
}
