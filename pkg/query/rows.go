package query

import (
	"strings"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// alleleColumns are the stored columns shared by summary and family rows
type alleleColumns struct {
	alleleIndex   int32
	chrom         string
	position      int32
	endPosition   int32
	variantType   int32
	effectTypes   string
	effectGenes   string
	afAlleleCount *int64
	afAlleleFreq  *float64
}

func hasListMember(list string, set map[string]bool) bool {
	for v := range set {
		if strings.Contains(list, "|"+v+"|") {
			return true
		}
	}
	return false
}

// columnValue returns an allele attribute stored as a column. ok is false
// when the attribute has no column.
func (c *alleleColumns) columnValue(attr string) (v *float64, ok bool) {
	switch attr {
	case dataset.AttrAlleleFreq:
		return c.afAlleleFreq, true
	case dataset.AttrAlleleCount:
		if c.afAlleleCount == nil {
			return nil, true
		}
		x := float64(*c.afAlleleCount)
		return &x, true
	}
	return nil, false
}

func (c *alleleColumns) matchAttr(flt AttrFilter, frequency bool) bool {
	v, ok := c.columnValue(flt.Attr)
	if !ok {
		return true
	}
	if v == nil {
		return frequency && flt.Range.Min == nil
	}
	return flt.Range.Contains(*v)
}

// matchColumns evaluates the allele filters on stored columns. Gene and
// effect type are tested independently here, so decoded alleles must still
// be checked with MatchSummaryAllele.
func (f *Filter) matchColumns(c *alleleColumns) bool {
	p := f.Params
	if c.alleleIndex == 0 && !p.ReturnReference {
		return false
	}
	if !f.matchRegion(c.chrom, int(c.position), int(c.endPosition)) {
		return false
	}
	if f.genes != nil && !hasListMember(c.effectGenes, f.genes) {
		return false
	}
	if f.effectTypes != nil && !hasListMember(c.effectTypes, f.effectTypes) {
		return false
	}
	if f.variantType != nil && !f.variantType.Match(uint64(c.variantType)) {
		return false
	}
	for _, flt := range p.RealAttrFilter {
		if !c.matchAttr(flt, false) {
			return false
		}
	}
	for _, flt := range p.FrequencyFilter {
		if !c.matchAttr(flt, true) {
			return false
		}
	}
	if p.UltraRare && !c.matchAttr(AttrFilter{Attr: dataset.AttrAlleleCount, Range: Between(nil, Float(1))}, true) {
		return false
	}
	return true
}

// MatchSummaryRow prefilters a stored summary allele
func (f *Filter) MatchSummaryRow(r *dataset.SummaryRow) bool {
	return f.matchColumns(&alleleColumns{
		alleleIndex:   r.AlleleIndex,
		chrom:         r.Chromosome,
		position:      r.Position,
		endPosition:   r.EndPosition,
		variantType:   r.VariantType,
		effectTypes:   r.EffectTypes,
		effectGenes:   r.EffectGenes,
		afAlleleCount: r.AfAlleleCount,
		afAlleleFreq:  r.AfAlleleFreq,
	})
}

// MatchFamilyRow prefilters a stored family allele
func (f *Filter) MatchFamilyRow(r *dataset.FamilyRow) bool {
	if f.familyIDs != nil && !f.familyIDs[r.FamilyID] {
		return false
	}
	ok := f.matchColumns(&alleleColumns{
		alleleIndex:   r.AlleleIndex,
		chrom:         r.Chromosome,
		position:      r.Position,
		endPosition:   r.EndPosition,
		variantType:   r.VariantType,
		effectTypes:   r.EffectTypes,
		effectGenes:   r.EffectGenes,
		afAlleleCount: r.AfAlleleCount,
		afAlleleFreq:  r.AfAlleleFreq,
	})
	if !ok {
		return false
	}
	return f.matchMembers(variants.Inheritance(r.InheritanceInMembers), dataset.SplitList(r.VariantInMembers),
		variants.Role(r.VariantInRoles), variants.Sex(r.VariantInSexes), variants.Status(r.VariantInStatuses))
}
