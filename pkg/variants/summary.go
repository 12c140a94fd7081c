package variants

import (
	"fmt"
	"sort"
	"strings"
)

// Effect is one predicted effect of an allele on a gene
type Effect struct {
	Gene string `json:"gene"`
	Type string `json:"type"`
}

// Allele is implemented by *SummaryAllele and *FamilyAllele only
type Allele interface {
	Summary() *SummaryAllele
	isAllele()
}

// SummaryAllele is one allele of a locus, independent of any family.
// AlleleIndex 0 is the reference allele, which has no alternative.
type SummaryAllele struct {
	Chrom            string
	Position         int
	EndPosition      int
	Reference        string
	Alternative      string
	SummaryIndex     int
	AlleleIndex      int
	BucketIndex      int
	VariantType      VariantType
	TransmissionType TransmissionType
	Effects          []Effect
	Attributes       Attributes
}

func (a *SummaryAllele) Summary() *SummaryAllele { return a }
func (a *SummaryAllele) isAllele()               {}

// IsReference reports whether this is the reference allele
func (a *SummaryAllele) IsReference() bool { return a.AlleleIndex == 0 }

// End returns the last covered position
func (a *SummaryAllele) End() int {
	if a.EndPosition >= a.Position {
		return a.EndPosition
	}
	if n := len(a.Reference); n > 1 {
		return a.Position + n - 1
	}
	return a.Position
}

// EffectTypes returns the distinct effect types in order of appearance
func (a *SummaryAllele) EffectTypes() []string {
	return distinct(a.Effects, func(e Effect) string { return e.Type })
}

// EffectGenes returns the distinct gene symbols in order of appearance
func (a *SummaryAllele) EffectGenes() []string {
	return distinct(a.Effects, func(e Effect) string { return e.Gene })
}

func distinct(effects []Effect, key func(Effect) string) []string {
	seen := make(map[string]bool, len(effects))
	var out []string
	for _, e := range effects {
		k := key(e)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// Attribute returns the named attribute
func (a *SummaryAllele) Attribute(name string) (any, bool) { return a.Attributes.Get(name) }

// AttributeOr returns the named attribute or def
func (a *SummaryAllele) AttributeOr(name string, def any) any { return a.Attributes.Or(name, def) }

// UpdateAttributes merges m into the attributes
func (a *SummaryAllele) UpdateAttributes(m map[string]any) error { return a.Attributes.Update(m) }

// SVUID identifies the allele as "chrom:pos.ref.alt"
func (a *SummaryAllele) SVUID() string {
	return fmt.Sprintf("%s:%d.%s.%s", a.Chrom, a.Position, a.Reference, a.Alternative)
}

// Equal compares all fields including attributes
func (a *SummaryAllele) Equal(o *SummaryAllele) bool {
	if a.Chrom != o.Chrom || a.Position != o.Position || a.EndPosition != o.EndPosition ||
		a.Reference != o.Reference || a.Alternative != o.Alternative ||
		a.SummaryIndex != o.SummaryIndex || a.AlleleIndex != o.AlleleIndex ||
		a.BucketIndex != o.BucketIndex || a.VariantType != o.VariantType ||
		a.TransmissionType != o.TransmissionType || len(a.Effects) != len(o.Effects) {
		return false
	}
	for i := range a.Effects {
		if a.Effects[i] != o.Effects[i] {
			return false
		}
	}
	return a.Attributes.Equal(&o.Attributes)
}

// SummaryVariant is a locus with its reference and alternative alleles
type SummaryVariant struct {
	Alleles []*SummaryAllele
}

// NewSummaryVariant orders alleles by index and checks that they describe one
// locus with the reference allele first
func NewSummaryVariant(alleles []*SummaryAllele) (*SummaryVariant, error) {
	if len(alleles) == 0 {
		return nil, consistencyf("summary variant without alleles")
	}
	sorted := append([]*SummaryAllele(nil), alleles...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AlleleIndex < sorted[j].AlleleIndex })

	ref := sorted[0]
	if ref.AlleleIndex != 0 {
		return nil, consistencyf("summary variant %s:%d has no reference allele", ref.Chrom, ref.Position)
	}
	if ref.Alternative != "" {
		return nil, consistencyf("reference allele of %s:%d carries alternative %q", ref.Chrom, ref.Position, ref.Alternative)
	}
	for i, a := range sorted {
		if a.AlleleIndex != i {
			return nil, consistencyf("summary variant %s:%d: allele index %d at position %d", ref.Chrom, ref.Position, a.AlleleIndex, i)
		}
		if a.Chrom != ref.Chrom || a.Position != ref.Position ||
			a.SummaryIndex != ref.SummaryIndex || a.BucketIndex != ref.BucketIndex {
			return nil, consistencyf("allele %d does not belong to summary variant %s:%d", a.AlleleIndex, ref.Chrom, ref.Position)
		}
	}
	return &SummaryVariant{Alleles: sorted}, nil
}

// Ref returns the reference allele
func (sv *SummaryVariant) Ref() *SummaryAllele { return sv.Alleles[0] }

// AltAlleles returns the alternative alleles
func (sv *SummaryVariant) AltAlleles() []*SummaryAllele { return sv.Alleles[1:] }

// Allele returns the allele with the given index
func (sv *SummaryVariant) Allele(index int) (*SummaryAllele, bool) {
	if index < 0 || index >= len(sv.Alleles) {
		return nil, false
	}
	return sv.Alleles[index], true
}

// NumAlleles counts alleles including the reference
func (sv *SummaryVariant) NumAlleles() int { return len(sv.Alleles) }

func (sv *SummaryVariant) Chrom() string     { return sv.Ref().Chrom }
func (sv *SummaryVariant) Position() int     { return sv.Ref().Position }
func (sv *SummaryVariant) SummaryIndex() int { return sv.Ref().SummaryIndex }
func (sv *SummaryVariant) BucketIndex() int  { return sv.Ref().BucketIndex }

// End returns the largest end position over all alleles
func (sv *SummaryVariant) End() int {
	end := sv.Position()
	for _, a := range sv.Alleles {
		end = max(end, a.End())
	}
	return end
}

// Reference returns the reference sequence
func (sv *SummaryVariant) Reference() string { return sv.Ref().Reference }

// SVUID joins the alternatives as "chrom:pos.ref.alt1,alt2"
func (sv *SummaryVariant) SVUID() string {
	alts := make([]string, 0, len(sv.Alleles)-1)
	for _, a := range sv.AltAlleles() {
		alts = append(alts, a.Alternative)
	}
	return fmt.Sprintf("%s:%d.%s.%s", sv.Chrom(), sv.Position(), sv.Reference(), strings.Join(alts, ","))
}

// SetIndex assigns bucket and summary index to every allele
func (sv *SummaryVariant) SetIndex(bucketIndex, summaryIndex int) {
	for _, a := range sv.Alleles {
		a.BucketIndex = bucketIndex
		a.SummaryIndex = summaryIndex
	}
}

// UpdateAttributes applies per-allele attribute maps, keyed by allele index
func (sv *SummaryVariant) UpdateAttributes(byAllele map[int]map[string]any) error {
	for idx, m := range byAllele {
		a, ok := sv.Allele(idx)
		if !ok {
			return consistencyf("attributes for missing allele %d of %s", idx, sv.SVUID())
		}
		if err := a.UpdateAttributes(m); err != nil {
			return err
		}
	}
	return nil
}

func (sv *SummaryVariant) String() string { return sv.SVUID() }
