package query

import (
	"github.com/scttfrdmn/varquery-go/pkg/attrquery"
	"github.com/scttfrdmn/varquery-go/pkg/dataset"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// Filter is a validated Params with every expression compiled. It
// evaluates the query on decoded variants and on stored rows.
type Filter struct {
	Params *Params

	effectTypes map[string]bool
	genes       map[string]bool

	// familyIDs is nil when any family may match
	familyIDs map[string]bool
	personIDs map[string]bool

	inheritance []*attrquery.Matcher
	roles       *attrquery.Matcher
	sexes       *attrquery.Matcher
	statuses    *attrquery.Matcher
	variantType *attrquery.Matcher
}

func compileOptional(expr string, vocab attrquery.Vocabulary) (*attrquery.Matcher, error) {
	if expr == "" {
		return nil, nil
	}
	return attrquery.Compile(expr, vocab)
}

func toSet(values []string) map[string]bool {
	if values == nil {
		return nil
	}
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

// Compile validates p and compiles its expressions. Grammar errors are
// returned as *attrquery.QueryGrammarError before any data is touched.
func Compile(p *Params, families *variants.Families) (*Filter, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f := &Filter{Params: p, genes: toSet(p.Genes), personIDs: toSet(p.PersonIDs)}
	if p.EffectTypes != nil {
		f.effectTypes = toSet(variants.ExpandEffectTypes(p.EffectTypes))
	}

	if p.FamilyIDs != nil || p.PersonIDs != nil {
		f.familyIDs = make(map[string]bool)
		for _, fid := range p.FamilyIDs {
			f.familyIDs[fid] = true
		}
		if p.PersonIDs != nil {
			ofPersons := toSet(families.FamiliesOfPersons(p.PersonIDs))
			if p.FamilyIDs == nil {
				f.familyIDs = ofPersons
			} else {
				for fid := range f.familyIDs {
					if !ofPersons[fid] {
						delete(f.familyIDs, fid)
					}
				}
			}
		}
	}

	for _, expr := range p.Inheritance {
		m, err := attrquery.Compile(expr, variants.InheritanceVocabulary())
		if err != nil {
			return nil, err
		}
		f.inheritance = append(f.inheritance, m)
	}
	var err error
	if f.roles, err = compileOptional(p.Roles, variants.RoleVocabulary()); err != nil {
		return nil, err
	}
	if f.sexes, err = compileOptional(p.Sexes, variants.SexVocabulary()); err != nil {
		return nil, err
	}
	if f.statuses, err = compileOptional(p.Statuses, variants.StatusVocabulary()); err != nil {
		return nil, err
	}
	if f.variantType, err = compileOptional(p.VariantType, variants.VariantTypeVocabulary()); err != nil {
		return nil, err
	}
	return f, nil
}

// FamilyIDs returns the families a query is restricted to, or nil
func (f *Filter) FamilyIDs() []string {
	if f.familyIDs == nil {
		return nil
	}
	out := make([]string, 0, len(f.familyIDs))
	for fid := range f.familyIDs {
		out = append(out, fid)
	}
	return out
}

func (f *Filter) matchRegion(chrom string, start, end int) bool {
	if len(f.Params.Regions) == 0 {
		return true
	}
	for _, r := range f.Params.Regions {
		if r.IntersectsRange(chrom, start, end) {
			return true
		}
	}
	return false
}

// matchEffects requires one effect to satisfy both the gene and the effect
// type restriction
func (f *Filter) matchEffects(a *variants.SummaryAllele) bool {
	if f.genes == nil && f.effectTypes == nil {
		return true
	}
	for _, e := range a.Effects {
		if f.genes != nil && !f.genes[e.Gene] {
			continue
		}
		if f.effectTypes != nil && !f.effectTypes[e.Type] {
			continue
		}
		return true
	}
	return false
}

// matchAttr tests one attribute filter. A missing attribute counts as
// null: frequency filters without a lower bound accept it, real attribute
// filters never do.
func matchAttr(attrs *variants.Attributes, flt AttrFilter, frequency bool) bool {
	v, ok := attrs.Float(flt.Attr)
	if !ok {
		return frequency && flt.Range.Min == nil
	}
	return flt.Range.Contains(v)
}

// MatchSummaryAllele evaluates the allele level filters
func (f *Filter) MatchSummaryAllele(a *variants.SummaryAllele) bool {
	p := f.Params
	if a.IsReference() && !p.ReturnReference {
		return false
	}
	if !f.matchRegion(a.Chrom, a.Position, a.End()) {
		return false
	}
	if !f.matchEffects(a) {
		return false
	}
	if f.variantType != nil && !f.variantType.Match(uint64(a.VariantType)) {
		return false
	}
	for _, flt := range p.RealAttrFilter {
		if !matchAttr(&a.Attributes, flt, false) {
			return false
		}
	}
	for _, flt := range p.FrequencyFilter {
		if !matchAttr(&a.Attributes, flt, true) {
			return false
		}
	}
	if p.UltraRare {
		ultraRare := AttrFilter{Attr: dataset.AttrAlleleCount, Range: Between(nil, Float(1))}
		if !matchAttr(&a.Attributes, ultraRare, true) {
			return false
		}
	}
	return true
}

// MatchSummary reports whether any allele of sv matches
func (f *Filter) MatchSummary(sv *variants.SummaryVariant) bool {
	for _, a := range sv.Alleles {
		if f.MatchSummaryAllele(a) {
			return true
		}
	}
	return false
}

func (f *Filter) matchMembers(inheritance variants.Inheritance, members []string, roles variants.Role,
	sexes variants.Sex, statuses variants.Status) bool {
	if f.personIDs != nil {
		found := false
		for _, pid := range members {
			if f.personIDs[pid] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.roles != nil && !f.roles.Match(uint64(roles)) {
		return false
	}
	if f.sexes != nil && !f.sexes.Match(uint64(sexes)) {
		return false
	}
	if f.statuses != nil && !f.statuses.Match(uint64(statuses)) {
		return false
	}
	for _, m := range f.inheritance {
		if !m.Match(uint64(inheritance)) {
			return false
		}
	}
	return true
}

// MatchFamilyAllele evaluates the allele level and member level filters
func (f *Filter) MatchFamilyAllele(fa *variants.FamilyAllele) bool {
	if !f.MatchSummaryAllele(fa.SummaryAllele) {
		return false
	}
	return f.matchMembers(fa.InheritanceMask(), fa.VariantInMembers,
		fa.VariantInRoles, fa.VariantInSexes, fa.VariantInStatuses)
}

// MatchFamily filters a family variant and records the matching allele
// indices in fv.MatchedAlleles
func (f *Filter) MatchFamily(fv *variants.FamilyVariant) bool {
	if f.familyIDs != nil && !f.familyIDs[fv.FamilyID()] {
		return false
	}
	if fv.IsUnknown() && !f.Params.ReturnUnknown {
		return false
	}
	var matched []int
	for _, fa := range fv.Alleles {
		if f.MatchFamilyAllele(fa) {
			matched = append(matched, fa.AlleleIndex)
		}
	}
	fv.MatchedAlleles = matched
	return len(matched) > 0
}

// MatchFamilyIndexRow evaluates the filters a family index row carries
// enough columns for: region, family and member level filters
func (f *Filter) MatchFamilyIndexRow(r *dataset.FamilyIndexRow) bool {
	if r.AlleleIndex == 0 && !f.Params.ReturnReference {
		return false
	}
	if f.familyIDs != nil && !f.familyIDs[r.FamilyID] {
		return false
	}
	if !f.matchRegion(r.Chromosome, int(r.Position), int(r.EndPosition)) {
		return false
	}
	return f.matchMembers(variants.Inheritance(r.InheritanceInMembers), dataset.SplitList(r.VariantInMembers),
		variants.Role(r.VariantInRoles), variants.Sex(r.VariantInSexes), variants.Status(r.VariantInStatuses))
}
