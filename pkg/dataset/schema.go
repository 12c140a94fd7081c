package dataset

import (
	"fmt"
	"slices"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// File prefixes and fixed file names of the dataset layout
const (
	SummaryPrefix     = "summary"
	FamilyPrefix      = "family"
	FamilyIndexPrefix = "family_index"

	SummaryDir     = "summary"
	FamilyDir      = "family"
	FamilyIndexDir = "family_index"

	PedigreeFile = "pedigree.parquet"
	MetaFile     = "meta.parquet"
)

// SummaryRow is one summary allele. SummaryData holds the whole summary
// variant so any allele row can rebuild it.
type SummaryRow struct {
	BucketIndex         int32    `parquet:"bucket_index" db:"bucket_index"`
	SummaryIndex        int32    `parquet:"summary_index" db:"summary_index"`
	AlleleIndex         int32    `parquet:"allele_index" db:"allele_index"`
	Chromosome          string   `parquet:"chromosome" db:"chromosome"`
	Position            int32    `parquet:"position" db:"position"`
	EndPosition         int32    `parquet:"end_position" db:"end_position"`
	VariantType         int32    `parquet:"variant_type" db:"variant_type"`
	TransmissionType    int32    `parquet:"transmission_type" db:"transmission_type"`
	EffectTypes         string   `parquet:"effect_types" db:"effect_types"`
	EffectGenes         string   `parquet:"effect_genes" db:"effect_genes"`
	AfAlleleCount       *int64   `parquet:"af_allele_count,optional" db:"af_allele_count"`
	AfAlleleFreq        *float64 `parquet:"af_allele_freq,optional" db:"af_allele_freq"`
	SeenAsDenovo        bool     `parquet:"seen_as_denovo" db:"seen_as_denovo"`
	FamilyVariantsCount int32    `parquet:"family_variants_count" db:"family_variants_count"`
	RegionBin           string   `parquet:"region_bin" db:"region_bin"`
	CodingBin           int32    `parquet:"coding_bin" db:"coding_bin"`
	FrequencyBin        int32    `parquet:"frequency_bin" db:"frequency_bin"`
	SummaryData         []byte   `parquet:"summary_data" db:"summary_data"`
}

// FamilyIndexRow records which family carries a summary allele, with the
// member sets needed to count family variants without decoding blobs
type FamilyIndexRow struct {
	BucketIndex          int32  `parquet:"bucket_index" db:"bucket_index"`
	SummaryIndex         int32  `parquet:"summary_index" db:"summary_index"`
	AlleleIndex          int32  `parquet:"allele_index" db:"allele_index"`
	FamilyID             string `parquet:"family_id" db:"family_id"`
	Chromosome           string `parquet:"chromosome" db:"chromosome"`
	Position             int32  `parquet:"position" db:"position"`
	EndPosition          int32  `parquet:"end_position" db:"end_position"`
	InheritanceInMembers int32  `parquet:"inheritance_in_members" db:"inheritance_in_members"`
	VariantInMembers     string `parquet:"variant_in_members" db:"variant_in_members"`
	VariantInRoles       int32  `parquet:"variant_in_roles" db:"variant_in_roles"`
	VariantInSexes       int32  `parquet:"variant_in_sexes" db:"variant_in_sexes"`
	VariantInStatuses    int32  `parquet:"variant_in_statuses" db:"variant_in_statuses"`
	RegionBin            string `parquet:"region_bin" db:"region_bin"`
	FamilyBin            int32  `parquet:"family_bin" db:"family_bin"`
	CodingBin            int32  `parquet:"coding_bin" db:"coding_bin"`
	FrequencyBin         int32  `parquet:"frequency_bin" db:"frequency_bin"`
}

// FamilyRow is one family allele: the index columns plus the allele
// columns queries filter on and the serialized family variant
type FamilyRow struct {
	BucketIndex          int32    `parquet:"bucket_index" db:"bucket_index"`
	SummaryIndex         int32    `parquet:"summary_index" db:"summary_index"`
	AlleleIndex          int32    `parquet:"allele_index" db:"allele_index"`
	FamilyID             string   `parquet:"family_id" db:"family_id"`
	Chromosome           string   `parquet:"chromosome" db:"chromosome"`
	Position             int32    `parquet:"position" db:"position"`
	EndPosition          int32    `parquet:"end_position" db:"end_position"`
	VariantType          int32    `parquet:"variant_type" db:"variant_type"`
	EffectTypes          string   `parquet:"effect_types" db:"effect_types"`
	EffectGenes          string   `parquet:"effect_genes" db:"effect_genes"`
	AfAlleleCount        *int64   `parquet:"af_allele_count,optional" db:"af_allele_count"`
	AfAlleleFreq         *float64 `parquet:"af_allele_freq,optional" db:"af_allele_freq"`
	InheritanceInMembers int32    `parquet:"inheritance_in_members" db:"inheritance_in_members"`
	VariantInMembers     string   `parquet:"variant_in_members" db:"variant_in_members"`
	VariantInRoles       int32    `parquet:"variant_in_roles" db:"variant_in_roles"`
	VariantInSexes       int32    `parquet:"variant_in_sexes" db:"variant_in_sexes"`
	VariantInStatuses    int32    `parquet:"variant_in_statuses" db:"variant_in_statuses"`
	RegionBin            string   `parquet:"region_bin" db:"region_bin"`
	FamilyBin            int32    `parquet:"family_bin" db:"family_bin"`
	CodingBin            int32    `parquet:"coding_bin" db:"coding_bin"`
	FrequencyBin         int32    `parquet:"frequency_bin" db:"frequency_bin"`
	FamilyData           []byte   `parquet:"family_data" db:"family_data"`
}

// Key identifies the family variant the row belongs to
func (r *FamilyRow) Key() FamilyKey {
	return FamilyKey{FamilyID: r.FamilyID, BucketIndex: r.BucketIndex, SummaryIndex: r.SummaryIndex}
}

// Key identifies the summary variant the row belongs to
func (r *SummaryRow) Key() SummaryKey {
	return SummaryKey{BucketIndex: r.BucketIndex, SummaryIndex: r.SummaryIndex}
}

// SummaryKey identifies a summary variant within a dataset
type SummaryKey struct {
	BucketIndex  int32
	SummaryIndex int32
}

// FamilyKey identifies a family variant within a dataset
type FamilyKey struct {
	FamilyID     string
	BucketIndex  int32
	SummaryIndex int32
}

// PedigreeRow is one person. Enumerations are stored by integer code.
type PedigreeRow struct {
	FamilyID    string `parquet:"family_id"`
	PersonID    string `parquet:"person_id"`
	MomID       string `parquet:"mom_id"`
	DadID       string `parquet:"dad_id"`
	Sex         int32  `parquet:"sex"`
	Status      int32  `parquet:"status"`
	Role        int32  `parquet:"role"`
	MemberIndex int32  `parquet:"member_index"`
	FamilyBin   int32  `parquet:"family_bin"`
}

// MetaRow is one key/value pair of dataset metadata
type MetaRow struct {
	Key   string `parquet:"key"`
	Value string `parquet:"value"`
}

// JoinList renders values as "|a|b|", the form list columns are stored in
// so that membership is a substring test for "|a|"
func JoinList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return "|" + strings.Join(values, "|") + "|"
}

// SplitList reverses JoinList
func SplitList(s string) []string {
	s = strings.Trim(s, "|")
	if s == "" {
		return nil
	}
	return strings.Split(s, "|")
}

// columnPaths lists the leaf columns of a schema as dotted paths
func columnPaths(schema *parquet.Schema) []string {
	var out []string
	for _, col := range schema.Columns() {
		out = append(out, strings.Join(col, "."))
	}
	slices.Sort(out)
	return out
}

// SchemaDescription renders the columns of a row type as "name:type" pairs
// for the dataset metadata
func SchemaDescription(model any) string {
	schema := parquet.SchemaOf(model)
	var parts []string
	for _, field := range schema.Fields() {
		parts = append(parts, fmt.Sprintf("%s:%s", field.Name(), field.Type()))
	}
	return strings.Join(parts, ",")
}

// checkSchema compares the columns of a file with those of the row type
func checkSchema(file *parquet.File, model any) error {
	want := columnPaths(parquet.SchemaOf(model))
	got := columnPaths(file.Schema())
	if !slices.Equal(want, got) {
		return fmt.Errorf("schema mismatch: columns %v, expected %v", got, want)
	}
	return nil
}
