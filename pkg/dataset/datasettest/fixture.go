// Package datasettest builds small partitioned datasets for tests.
//
// The fixture has two trio families, f1 and f2, and six summary variants,
// three on chromosome foo and three on bar. Every summary variant is seen
// in both families: in one family the mother transmits the allele to the
// proband (mendelian), in the other she keeps it (missing). Allele
// frequencies are given as input attributes.
package datasettest

import (
	"context"
	"iter"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
	"github.com/scttfrdmn/varquery-go/pkg/partition"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// Fixture totals
const (
	SummaryVariants = 6
	FamilyVariants  = 12
)

// Variant is one fixture summary variant
type Variant struct {
	Chrom       string
	Pos         int
	Ref, Alt    string
	Effects     string
	AlleleCount int
	AlleleFreq  string
	// Mendelian is the family in which the proband inherits the allele
	Mendelian string
}

// Variants lists the fixture variants in import order
var Variants = []Variant{
	{"foo", 10, "A", "T", "missense:G1", 2, "12.5", "f1"},
	{"foo", 110, "C", "G", "synonymous:G2", 2, "25", "f2"},
	{"foo", 210, "G", "A", "missense:G3|intron:G3", 3, "37.5", "f1"},
	{"bar", 20, "T", "C", "missense:G4", 2, "20", "f2"},
	{"bar", 120, "A", "G", "intergenic:", 4, "50", "f1"},
	{"bar", 220, "C", "T", "frame-shift:G1", 2, "25", "f2"},
}

// ChromLengths of the fixture genome
func ChromLengths() map[string]int {
	return map[string]int{"foo": 300, "bar": 300}
}

// Descriptor partitions by region (length 100), frequency (rare boundary
// 25), coding and family (2 bins)
func Descriptor() *partition.Descriptor {
	return &partition.Descriptor{
		Chromosomes:       []string{"foo", "bar"},
		RegionLength:      100,
		FamilyBinSize:     2,
		CodingEffectTypes: []string{"missense", "frame-shift", "synonymous"},
		RareBoundary:      25,
	}
}

// Persons returns the pedigree: two trios with an affected proband
func Persons() []*variants.Person {
	var out []*variants.Person
	for _, fid := range []string{"f1", "f2"} {
		out = append(out,
			&variants.Person{FamilyID: fid, PersonID: fid + ".mom", Sex: variants.SexFemale, Status: variants.StatusUnaffected, Role: variants.RoleMom},
			&variants.Person{FamilyID: fid, PersonID: fid + ".dad", Sex: variants.SexMale, Status: variants.StatusUnaffected, Role: variants.RoleDad},
			&variants.Person{FamilyID: fid, PersonID: fid + ".p1", MomID: fid + ".mom", DadID: fid + ".dad",
				Sex: variants.SexMale, Status: variants.StatusAffected, Role: variants.RoleProband},
		)
	}
	return out
}

// Families builds the pedigree
func Families(t testing.TB) *variants.Families {
	t.Helper()
	families, err := variants.NewFamilies(Persons())
	require.NoError(t, err)
	return families
}

// Records returns the input rows of one chromosome, two rows per variant
func Records(chrom string) []variants.Record {
	var out []variants.Record
	line := 1
	for _, v := range Variants {
		if v.Chrom != chrom {
			continue
		}
		for _, fid := range []string{"f1", "f2"} {
			bs := "122/100"
			if fid == v.Mendelian {
				bs = "121/101"
			}
			out = append(out, variants.Record{
				File: chrom + ".tsv",
				Line: line,
				Fields: map[string]string{
					"chrom":           v.Chrom,
					"pos":             strconv.Itoa(v.Pos),
					"ref":             v.Ref,
					"alt":             v.Alt,
					"effects":         v.Effects,
					"family_id":       fid,
					"best_state":      bs,
					"af_allele_count": strconv.Itoa(v.AlleleCount),
					"af_allele_freq":  v.AlleleFreq,
				},
			})
			line++
		}
	}
	return out
}

// Seq turns records into a bucket record stream
func Seq(records []variants.Record) iter.Seq2[variants.Record, error] {
	return func(yield func(variants.Record, error) bool) {
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Buckets returns one bucket per chromosome
func Buckets() []dataset.Bucket {
	return []dataset.Bucket{
		{Index: 0, Name: "foo", Records: Seq(Records("foo"))},
		{Index: 1, Name: "bar", Records: Seq(Records("bar"))},
	}
}

// Import writes the fixture under dir with desc and returns the opened
// dataset. A nil desc imports an unpartitioned dataset.
func Import(t testing.TB, dir string, desc *partition.Descriptor) *dataset.Dataset {
	t.Helper()
	return ImportBuckets(t, dir, desc, Buckets())
}

// ImportBuckets is Import with other input buckets
func ImportBuckets(t testing.TB, dir string, desc *partition.Descriptor, buckets []dataset.Bucket) *dataset.Dataset {
	t.Helper()
	ctx := context.Background()
	store := dataset.NewLocalStorage(dir)
	im, err := dataset.NewImporter(store, desc, Families(t), dataset.ImportOptions{
		Workers:      2,
		RowGroupSize: 3,
		Genome:       "hg38",
		ChromLengths: ChromLengths(),
		CreatedBy:    "datasettest",
	})
	require.NoError(t, err)
	_, err = im.Import(ctx, buckets)
	require.NoError(t, err)

	ds, err := dataset.Open(ctx, store)
	require.NoError(t, err)
	t.Cleanup(ds.Close)
	return ds
}
