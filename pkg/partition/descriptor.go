// Package partition maps variants to the bins that shard a dataset on disk.
//
// Every bin function is a pure function of the descriptor and its input, so
// the bins computed at query time match those computed at import time.
package partition

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"slices"
	"strconv"

	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// Bin names, in canonical path order
const (
	RegionBin    = "region_bin"
	FamilyBin    = "family_bin"
	CodingBin    = "coding_bin"
	FrequencyBin = "frequency_bin"
)

// OtherChrom is the region bin prefix shared by all chromosomes not listed
// in the descriptor
const OtherChrom = "other"

// Frequency bins
const (
	FrequencyDenovo    = 0
	FrequencyUltraRare = 1
	FrequencyRare      = 2
	FrequencyCommon    = 3
)

// Descriptor configures which bins a dataset is partitioned by. A zero
// Descriptor describes an unpartitioned dataset.
type Descriptor struct {
	Chromosomes       []string
	RegionLength      int
	FamilyBinSize     int
	CodingEffectTypes []string
	// RareBoundary is an allele frequency in percent
	RareBoundary float64
}

func (d *Descriptor) HasRegionBins() bool    { return len(d.Chromosomes) > 0 && d.RegionLength > 0 }
func (d *Descriptor) HasFamilyBins() bool    { return d.FamilyBinSize > 0 }
func (d *Descriptor) HasCodingBins() bool    { return len(d.CodingEffectTypes) > 0 }
func (d *Descriptor) HasFrequencyBins() bool { return d.RareBoundary > 0 }

// HasSummaryPartitions reports whether summary alleles are partitioned
func (d *Descriptor) HasSummaryPartitions() bool {
	return d.HasRegionBins() || d.HasCodingBins() || d.HasFrequencyBins()
}

// HasPartitions reports whether family alleles are partitioned
func (d *Descriptor) HasPartitions() bool {
	return d.HasSummaryPartitions() || d.HasFamilyBins()
}

// RegionBinChrom returns the chromosome part of a region bin
func (d *Descriptor) RegionBinChrom(chrom string) string {
	if slices.Contains(d.Chromosomes, chrom) {
		return chrom
	}
	return OtherChrom
}

// MakeRegionBin returns "{chrom}_{pos / region_length}", with chrom replaced
// by "other" when it is not one of the configured chromosomes
func (d *Descriptor) MakeRegionBin(chrom string, pos int) string {
	if d.RegionLength <= 0 {
		return d.RegionBinChrom(chrom) + "_0"
	}
	return d.RegionBinChrom(chrom) + "_" + strconv.Itoa(pos/d.RegionLength)
}

// MakeFamilyBin hashes the family id with SHA-256 and reduces the digest,
// read as a big-endian integer, modulo the family bin size
func (d *Descriptor) MakeFamilyBin(familyID string) int {
	if d.FamilyBinSize <= 0 {
		return 0
	}
	sum := sha256.Sum256([]byte(familyID))
	digest := new(big.Int).SetBytes(sum[:])
	return int(new(big.Int).Mod(digest, big.NewInt(int64(d.FamilyBinSize))).Int64())
}

// MakeCodingBin returns 1 when any effect type is a coding effect type
func (d *Descriptor) MakeCodingBin(effectTypes []string) int {
	for _, et := range effectTypes {
		if slices.Contains(d.CodingEffectTypes, et) {
			return 1
		}
	}
	return 0
}

// MakeFrequencyBin returns 0 for alleles seen as de novo or without
// frequency data, 1 for ultra rare (at most one copy), 2 for frequency at
// or below the rare boundary and 3 otherwise
func (d *Descriptor) MakeFrequencyBin(alleleCount int64, alleleFreq float64, hasData, isDenovo bool) int {
	switch {
	case isDenovo || !hasData:
		return FrequencyDenovo
	case alleleCount <= 1:
		return FrequencyUltraRare
	case alleleFreq <= d.RareBoundary:
		return FrequencyRare
	}
	return FrequencyCommon
}

// SummaryPartition returns the region, coding and frequency bins of an
// allele. Reference alleles are always in coding bin 0.
func (d *Descriptor) SummaryPartition(a *variants.SummaryAllele, seenAsDenovo bool) Partition {
	var p Partition
	if d.HasRegionBins() {
		p = append(p, Bin{RegionBin, d.MakeRegionBin(a.Chrom, a.Position)})
	}
	if d.HasCodingBins() {
		coding := 0
		if !a.IsReference() {
			coding = d.MakeCodingBin(a.EffectTypes())
		}
		p = append(p, Bin{CodingBin, strconv.Itoa(coding)})
	}
	if d.HasFrequencyBins() {
		count, hasCount := a.Attributes.Int("af_allele_count")
		freq, _ := a.Attributes.Float("af_allele_freq")
		p = append(p, Bin{FrequencyBin, strconv.Itoa(d.MakeFrequencyBin(count, freq, hasCount, seenAsDenovo))})
	}
	return p
}

// FamilyPartition adds the family bin to the summary partition of the allele
func (d *Descriptor) FamilyPartition(fa *variants.FamilyAllele, seenAsDenovo bool) Partition {
	p := d.SummaryPartition(fa.SummaryAllele, seenAsDenovo)
	if d.HasFamilyBins() {
		p = p.With(Bin{FamilyBin, strconv.Itoa(d.MakeFamilyBin(fa.FamilyID()))})
	}
	return p
}

// RegionToBins lists the region bins a region touches. Positions past the
// chromosome length are clamped. A chromosome missing from chromLens has no
// bins.
func (d *Descriptor) RegionToBins(region variants.Region, chromLens map[string]int) []string {
	length, ok := chromLens[region.Chrom]
	if !ok || !d.HasRegionBins() {
		return nil
	}
	start := max(region.Start, 0)
	stop := length
	if region.Stop > 0 {
		stop = min(region.Stop, length)
	}
	if start > stop {
		return nil
	}
	chrom := d.RegionBinChrom(region.Chrom)
	var bins []string
	for i := start / d.RegionLength; i <= stop/d.RegionLength; i++ {
		bins = append(bins, chrom+"_"+strconv.Itoa(i))
	}
	return bins
}

// AllRegionBins lists every region bin the chromosome lengths produce
func (d *Descriptor) AllRegionBins(chromLens map[string]int) ([]string, error) {
	if !d.HasRegionBins() {
		return nil, nil
	}
	var bins []string
	for _, chrom := range d.Chromosomes {
		length, ok := chromLens[chrom]
		if !ok {
			return nil, fmt.Errorf("chromosome %s not found in chromosome lengths", chrom)
		}
		for i := 0; i <= length/d.RegionLength; i++ {
			bins = append(bins, chrom+"_"+strconv.Itoa(i))
		}
	}
	otherMax := -1
	for chrom, length := range chromLens {
		if !slices.Contains(d.Chromosomes, chrom) {
			otherMax = max(otherMax, length)
		}
	}
	for i := 0; otherMax >= 0 && i <= otherMax/d.RegionLength; i++ {
		bins = append(bins, OtherChrom+"_"+strconv.Itoa(i))
	}
	return bins, nil
}

// Partitions enumerates every summary and family partition of a dataset
func (d *Descriptor) Partitions(chromLens map[string]int) (summary, family []Partition, err error) {
	parts := []Partition{nil}
	if d.HasRegionBins() {
		bins, err := d.AllRegionBins(chromLens)
		if err != nil {
			return nil, nil, err
		}
		parts = product(parts, RegionBin, bins)
	}
	if d.HasCodingBins() {
		parts = product(parts, CodingBin, []string{"0", "1"})
	}
	if d.HasFrequencyBins() {
		parts = product(parts, FrequencyBin, []string{"0", "1", "2", "3"})
	}
	summary = parts
	family = parts
	if d.HasFamilyBins() {
		values := make([]string, d.FamilyBinSize)
		for i := range values {
			values[i] = strconv.Itoa(i)
		}
		family = product(parts, FamilyBin, values)
	}
	return summary, family, nil
}

func product(parts []Partition, name string, values []string) []Partition {
	out := make([]Partition, 0, len(parts)*len(values))
	for _, p := range parts {
		for _, v := range values {
			out = append(out, p.With(Bin{name, v}))
		}
	}
	return out
}

// Equal compares two descriptors field by field. Chromosome order is
// significant, coding effect types compare as a set.
func (d *Descriptor) Equal(o *Descriptor) bool {
	return slices.Equal(d.Chromosomes, o.Chromosomes) &&
		d.RegionLength == o.RegionLength &&
		d.FamilyBinSize == o.FamilyBinSize &&
		sameSet(d.CodingEffectTypes, o.CodingEffectTypes) &&
		d.RareBoundary == o.RareBoundary
}

func sameSet(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}
