package query

import (
	"slices"
	"strconv"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
	"github.com/scttfrdmn/varquery-go/pkg/partition"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// RegionBinsCutoff is the number of region bins above which a query scans
// all region bins
const RegionBinsCutoff = 20

// Heuristics are the bins a query can be restricted to. An empty list
// leaves that bin unrestricted.
type Heuristics struct {
	RegionBins    []string
	CodingBins    []string
	FrequencyBins []string
	FamilyBins    []string
}

// IsEmpty reports whether no bin is restricted
func (h Heuristics) IsEmpty() bool {
	return len(h.RegionBins) == 0 && len(h.CodingBins) == 0 &&
		len(h.FrequencyBins) == 0 && len(h.FamilyBins) == 0
}

// SummaryFilter selects summary files. Summary files have no family bin.
func (h Heuristics) SummaryFilter() dataset.BinFilter {
	out := dataset.BinFilter{}
	if len(h.RegionBins) > 0 {
		out[partition.RegionBin] = h.RegionBins
	}
	if len(h.CodingBins) > 0 {
		out[partition.CodingBin] = h.CodingBins
	}
	if len(h.FrequencyBins) > 0 {
		out[partition.FrequencyBin] = h.FrequencyBins
	}
	return out
}

// FamilyFilter selects family and family index files
func (h Heuristics) FamilyFilter() dataset.BinFilter {
	out := h.SummaryFilter()
	if len(h.FamilyBins) > 0 {
		out[partition.FamilyBin] = h.FamilyBins
	}
	return out
}

// Planner computes heuristics from the partition descriptor of a dataset
type Planner struct {
	Desc           *partition.Descriptor
	ChromLengths   map[string]int
	MaxVariantSpan int
	Families       *variants.Families
}

// NewPlanner plans queries against ds
func NewPlanner(ds *dataset.Dataset) *Planner {
	return &Planner{
		Desc:           ds.Descriptor(),
		ChromLengths:   ds.ChromLengths(),
		MaxVariantSpan: ds.Meta().MaxVariantSpan,
		Families:       ds.Families(),
	}
}

// RegionBins lists the region bins the regions touch. Region starts are
// moved left by the longest stored variant so that variants starting in an
// earlier bin are kept.
func (pl *Planner) RegionBins(regions []variants.Region) []string {
	d := pl.Desc
	if len(regions) == 0 || !d.HasRegionBins() {
		return nil
	}
	seen := make(map[string]bool)
	var bins []string
	for _, r := range regions {
		stop := r.Stop
		if stop <= 0 {
			length, ok := pl.ChromLengths[r.Chrom]
			if !ok {
				return nil
			}
			stop = length
		}
		start := max(r.Start, 1)
		start = max(start-pl.MaxVariantSpan, 0)
		chrom := d.RegionBinChrom(r.Chrom)
		for i := start / d.RegionLength; i <= stop/d.RegionLength; i++ {
			bin := chrom + "_" + strconv.Itoa(i)
			if !seen[bin] {
				seen[bin] = true
				bins = append(bins, bin)
			}
		}
	}
	if len(bins) > RegionBinsCutoff {
		return nil
	}
	return bins
}

// CodingBins restricts to coding bin 1 when every queried effect type is
// a coding effect type
func (pl *Planner) CodingBins(effectTypes []string) []string {
	if effectTypes == nil || !pl.Desc.HasCodingBins() {
		return nil
	}
	for _, et := range variants.ExpandEffectTypes(effectTypes) {
		if !slices.Contains(pl.Desc.CodingEffectTypes, et) {
			return nil
		}
	}
	return []string{"1"}
}

// FrequencyBins derives frequency bins from the inheritance expressions,
// the ultra rare flag and the upper bounds of af_allele_freq filters
func (pl *Planner) FrequencyBins(f *Filter) []string {
	if !pl.Desc.HasFrequencyBins() {
		return nil
	}
	if len(f.inheritance) > 0 {
		denovoOnly := false
		for _, m := range f.inheritance {
			if m.Implies(uint64(variants.InheritanceDenovo)) {
				denovoOnly = true
				break
			}
		}
		if denovoOnly {
			return []string{strconv.Itoa(partition.FrequencyDenovo)}
		}
	}
	p := f.Params
	restricted := p.UltraRare
	top := partition.FrequencyDenovo
	if p.UltraRare {
		top = partition.FrequencyUltraRare
	}
	for _, flt := range p.FrequencyFilter {
		if flt.Attr != dataset.AttrAlleleFreq {
			continue
		}
		if flt.Range.Max == nil || *flt.Range.Max > pl.Desc.RareBoundary {
			return nil
		}
		restricted = true
		top = max(top, partition.FrequencyRare)
	}
	if !restricted {
		return nil
	}
	bins := make([]string, 0, top+1)
	for i := 0; i <= top; i++ {
		bins = append(bins, strconv.Itoa(i))
	}
	return bins
}

// FamilyBins lists the family bins of the queried families. Queries
// touching half the bins or more scan all of them.
func (pl *Planner) FamilyBins(f *Filter) []string {
	if !pl.Desc.HasFamilyBins() || f.familyIDs == nil {
		return nil
	}
	seen := make(map[string]bool)
	var bins []string
	for fid := range f.familyIDs {
		bin := strconv.Itoa(pl.Desc.MakeFamilyBin(fid))
		if !seen[bin] {
			seen[bin] = true
			bins = append(bins, bin)
		}
	}
	if len(bins) >= pl.Desc.FamilyBinSize/2 {
		return nil
	}
	slices.Sort(bins)
	return bins
}

// Plan computes the heuristics of a compiled query
func (pl *Planner) Plan(f *Filter) Heuristics {
	return Heuristics{
		RegionBins:    pl.RegionBins(f.Params.Regions),
		CodingBins:    pl.CodingBins(f.Params.EffectTypes),
		FrequencyBins: pl.FrequencyBins(f),
		FamilyBins:    pl.FamilyBins(f),
	}
}

// Batches splits a query without region restriction into one batch per
// region bin, unless the other bins already make it selective
func (pl *Planner) Batches(h Heuristics) []Heuristics {
	if len(h.RegionBins) > 0 {
		return []Heuristics{h}
	}
	if slices.Contains(h.FrequencyBins, "2") || slices.Contains(h.FrequencyBins, "3") {
		return []Heuristics{h}
	}
	if len(h.CodingBins) > 0 && !slices.Contains(h.CodingBins, "0") && !slices.Contains(h.FrequencyBins, "3") {
		return []Heuristics{h}
	}
	all, err := pl.Desc.AllRegionBins(pl.ChromLengths)
	if err != nil || len(all) == 0 {
		return []Heuristics{h}
	}
	out := make([]Heuristics, len(all))
	for i, rb := range all {
		b := h
		b.RegionBins = []string{rb}
		out[i] = b
	}
	return out
}
