package variants

import (
	"fmt"

	"github.com/scttfrdmn/varquery-go/pkg/genotype"
)

// Options carries the reference data needed to interpret family genotypes
type Options struct {
	// PARs are the pseudo-autosomal regions of the genome in use
	PARs []genotype.PAR
}

// FamilyAllele is a summary allele as seen in one family
type FamilyAllele struct {
	*SummaryAllele

	Family    *Family
	GT        genotype.Matrix
	BestState genotype.Matrix
	Model     genotype.Model

	// InheritanceInMembers holds per member, in pedigree order, the
	// inheritance flags of this allele. Founders hold 0.
	InheritanceInMembers []Inheritance

	// VariantInMembers lists the persons carrying at least one copy
	VariantInMembers []string

	VariantInRoles    Role
	VariantInSexes    Sex
	VariantInStatuses Status
}

// FamilyID returns the id of the family
func (fa *FamilyAllele) FamilyID() string { return fa.Family.ID }

// InheritanceMask ORs the inheritance flags of all members
func (fa *FamilyAllele) InheritanceMask() Inheritance {
	var mask Inheritance
	for _, inh := range fa.InheritanceInMembers {
		mask |= inh
	}
	return mask
}

// Inheritance returns the flags of one member
func (fa *FamilyAllele) Inheritance(personID string) (Inheritance, bool) {
	i, ok := fa.Family.MemberIndex(personID)
	if !ok {
		return 0, false
	}
	return fa.InheritanceInMembers[i], true
}

// FVUID identifies the allele in its family as "family_id.svuid"
func (fa *FamilyAllele) FVUID() string { return fa.Family.ID + "." + fa.SVUID() }

// FamilyVariant is a summary variant interpreted through one family's
// genotypes
type FamilyVariant struct {
	Summary   *SummaryVariant
	Family    *Family
	GT        genotype.Matrix
	BestState genotype.Matrix
	Model     genotype.Model

	// Alleles holds the reference allele followed by the alternative
	// alleles called in the family, by ascending allele index
	Alleles []*FamilyAllele

	// MatchedAlleles is set by queries to the allele indices that
	// satisfied the filters
	MatchedAlleles []int
}

// NewFamilyVariant builds a family variant from a 2 x members genotype
func NewFamilyVariant(sv *SummaryVariant, f *Family, gt genotype.Matrix, opts Options) (*FamilyVariant, error) {
	if gt.Cols() != f.Size() {
		return nil, consistencyf("family %s has %d members, genotype has %d columns", f.ID, f.Size(), gt.Cols())
	}
	bs, err := genotype.BestStateFromGenotype(gt, sv.NumAlleles())
	if err != nil {
		return nil, &ConsistencyError{Msg: fmt.Sprintf("family %s at %s: %v", f.ID, sv.SVUID(), err)}
	}
	return newFamilyVariant(sv, f, bs, opts)
}

// NewFamilyVariantFromBestState builds a family variant from an
// alleles x members best state
func NewFamilyVariantFromBestState(sv *SummaryVariant, f *Family, bs genotype.Matrix, opts Options) (*FamilyVariant, error) {
	if bs.Cols() != f.Size() {
		return nil, consistencyf("family %s has %d members, best state has %d columns", f.ID, f.Size(), bs.Cols())
	}
	if bs.Rows() != sv.NumAlleles() {
		return nil, consistencyf("best state of family %s has %d rows, %s has %d alleles", f.ID, bs.Rows(), sv.SVUID(), sv.NumAlleles())
	}
	return newFamilyVariant(sv, f, bs, opts)
}

func newFamilyVariant(sv *SummaryVariant, f *Family, bs genotype.Matrix, opts Options) (*FamilyVariant, error) {
	chrom, pos := sv.Chrom(), sv.Position()
	male := f.MaleMask()

	bs = genotype.CorrectMaleX(bs, chrom, pos, opts.PARs, male)
	gt, broken := genotype.GenotypeFromBestState(bs)
	model := genotype.SelectModel(chrom, pos, opts.PARs, genotype.Ploidy(bs), male)
	if broken {
		switch model {
		case genotype.Autosomal:
			model = genotype.AutosomalBroken
		case genotype.X, genotype.PseudoAutosomal:
			model = genotype.XBroken
		}
	}

	fv := &FamilyVariant{
		Summary:   sv,
		Family:    f,
		GT:        gt,
		BestState: bs,
		Model:     model,
	}

	xRules := genotype.IsChromX(chrom) && !genotype.InPAR(opts.PARs, chrom, pos)
	indices := append([]int{0}, genotype.AltAlleles(gt)...)
	for _, idx := range indices {
		sa, ok := sv.Allele(idx)
		if !ok {
			return nil, consistencyf("family %s genotype references allele %d of %s", f.ID, idx, sv.SVUID())
		}
		fv.Alleles = append(fv.Alleles, newFamilyAllele(sa, fv, xRules))
	}
	return fv, nil
}

func newFamilyAllele(sa *SummaryAllele, fv *FamilyVariant, xRules bool) *FamilyAllele {
	f := fv.Family
	fa := &FamilyAllele{
		SummaryAllele:        sa,
		Family:               f,
		GT:                   fv.GT,
		BestState:            fv.BestState,
		Model:                fv.Model,
		InheritanceInMembers: make([]Inheritance, f.Size()),
	}

	counts := genotype.AlleleCounts(fv.GT, sa.AlleleIndex)
	for i, p := range f.Members {
		if counts[i] > 0 {
			fa.VariantInMembers = append(fa.VariantInMembers, p.PersonID)
			fa.VariantInRoles |= p.Role
			fa.VariantInSexes |= p.Sex
			fa.VariantInStatuses |= p.Status
		}

		mom, dad, ok := f.Parents(i)
		switch {
		case ok:
			rule := genotype.RuleAutosomal
			if xRules && p.IsMale() {
				rule = genotype.RuleXMaleChild
			} else if xRules {
				rule = genotype.RuleXFemaleChild
			}
			fa.InheritanceInMembers[i] = fromClass(genotype.ClassifyTrio(counts[mom], counts[dad], counts[i], rule))
		case !f.IsFounder(i):
			fa.InheritanceInMembers[i] = InheritanceUnknown
		}
	}
	return fa
}

func fromClass(c genotype.Class) Inheritance {
	var out Inheritance
	for _, m := range []struct {
		c   genotype.Class
		inh Inheritance
	}{
		{genotype.Mendelian, InheritanceMendelian},
		{genotype.Denovo, InheritanceDenovo},
		{genotype.Omission, InheritanceOmission},
		{genotype.Missing, InheritanceMissing},
		{genotype.Unknown, InheritanceUnknown},
		{genotype.PossibleDenovo, InheritancePossibleDenovo},
		{genotype.PossibleOmission, InheritancePossibleOmission},
	} {
		if c.Has(m.c) {
			out |= m.inh
		}
	}
	return out
}

func (fv *FamilyVariant) FamilyID() string  { return fv.Family.ID }
func (fv *FamilyVariant) Chrom() string     { return fv.Summary.Chrom() }
func (fv *FamilyVariant) Position() int     { return fv.Summary.Position() }
func (fv *FamilyVariant) SummaryIndex() int { return fv.Summary.SummaryIndex() }
func (fv *FamilyVariant) BucketIndex() int  { return fv.Summary.BucketIndex() }

// Ref returns the reference family allele
func (fv *FamilyVariant) Ref() *FamilyAllele { return fv.Alleles[0] }

// AltAlleles returns the alternative alleles called in the family
func (fv *FamilyVariant) AltAlleles() []*FamilyAllele { return fv.Alleles[1:] }

// Allele returns the family allele with the given allele index
func (fv *FamilyVariant) Allele(index int) (*FamilyAllele, bool) {
	for _, a := range fv.Alleles {
		if a.AlleleIndex == index {
			return a, true
		}
	}
	return nil, false
}

// IsReference reports whether all known calls are reference
func (fv *FamilyVariant) IsReference() bool { return genotype.IsReference(fv.GT) }

// IsUnknown reports whether any member has a missing call
func (fv *FamilyVariant) IsUnknown() bool { return genotype.IsUnknown(fv.GT) }

// FVUID identifies the variant as "family_id.svuid"
func (fv *FamilyVariant) FVUID() string { return fv.Family.ID + "." + fv.Summary.SVUID() }

// VariantInMembers lists members carrying any alternative allele
func (fv *FamilyVariant) VariantInMembers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range fv.AltAlleles() {
		for _, pid := range a.VariantInMembers {
			if !seen[pid] {
				seen[pid] = true
				out = append(out, pid)
			}
		}
	}
	return out
}

func (fv *FamilyVariant) String() string {
	return fmt.Sprintf("%s %s %s", fv.FVUID(), genotype.FormatBestState(fv.BestState), fv.Model)
}
