package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/scttfrdmn/varquery-go/pkg/genotype"
	"github.com/scttfrdmn/varquery-go/pkg/partition"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// Metadata keys
const (
	MetaPartitionDescription = "partition_description"
	MetaPartitioned          = "partitioned"
	MetaAnnotationPipeline   = "annotation_pipeline"
	MetaSummarySchema        = "summary_schema"
	MetaFamilySchema         = "family_schema"
	MetaChromosomeLengths    = "chromosome_lengths"
	MetaMaxVariantSpan       = "max_variant_span"
	MetaGenome               = "genome"
	MetaCreated              = "created"
	MetaCreatedBy            = "created_by"
)

// Meta is the decoded content of the metadata file
type Meta struct {
	Descriptor         *partition.Descriptor
	Partitioned        bool
	AnnotationPipeline string
	SummarySchema      string
	FamilySchema       string
	ChromLengths       map[string]int
	MaxVariantSpan     int
	Genome             string
	Created            time.Time
	CreatedBy          string
}

// VariantOptions returns the genotype interpretation options of the
// dataset genome
func (m *Meta) VariantOptions() variants.Options {
	return variants.Options{PARs: genotype.PseudoAutosomalRegions[m.Genome]}
}

func (m *Meta) rows() ([]MetaRow, error) {
	desc, err := m.Descriptor.Serialize(partition.FormatConf)
	if err != nil {
		return nil, err
	}
	lengths, err := json.Marshal(m.ChromLengths)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chromosome lengths: %w", err)
	}
	return []MetaRow{
		{MetaPartitionDescription, desc},
		{MetaPartitioned, strconv.FormatBool(m.Partitioned)},
		{MetaAnnotationPipeline, m.AnnotationPipeline},
		{MetaSummarySchema, m.SummarySchema},
		{MetaFamilySchema, m.FamilySchema},
		{MetaChromosomeLengths, string(lengths)},
		{MetaMaxVariantSpan, strconv.Itoa(m.MaxVariantSpan)},
		{MetaGenome, m.Genome},
		{MetaCreated, m.Created.UTC().Format(time.RFC3339)},
		{MetaCreatedBy, m.CreatedBy},
	}, nil
}

// WriteMeta stores the metadata file
func WriteMeta(ctx context.Context, store Storage, m *Meta) error {
	rows, err := m.rows()
	if err != nil {
		return err
	}
	return writeRows(ctx, store, MetaFile, rows)
}

// ReadMeta loads and decodes the metadata file. A missing partition
// description is corruption; an empty one is an unpartitioned dataset
// only when the partitioned flag says so.
func ReadMeta(ctx context.Context, store Storage) (*Meta, error) {
	rows, err := readRows[MetaRow](ctx, store, MetaFile)
	if err != nil {
		return nil, err
	}
	kv := make(map[string]string, len(rows))
	for _, r := range rows {
		kv[r.Key] = r.Value
	}

	raw, ok := kv[MetaPartitionDescription]
	if !ok {
		return nil, corrupted(MetaFile, "missing %s", MetaPartitionDescription)
	}
	desc, err := partition.ParseString(raw, partition.FormatConf)
	if err != nil {
		return nil, &DatasetCorruptionError{Path: MetaFile, Err: err}
	}
	m := &Meta{
		Descriptor:         desc,
		AnnotationPipeline: kv[MetaAnnotationPipeline],
		SummarySchema:      kv[MetaSummarySchema],
		FamilySchema:       kv[MetaFamilySchema],
		Genome:             kv[MetaGenome],
		CreatedBy:          kv[MetaCreatedBy],
		ChromLengths:       map[string]int{},
	}

	partitioned, err := strconv.ParseBool(kv[MetaPartitioned])
	if err != nil {
		return nil, corrupted(MetaFile, "bad %s value %q", MetaPartitioned, kv[MetaPartitioned])
	}
	if partitioned != desc.HasPartitions() {
		return nil, corrupted(MetaFile, "%s=%t does not match partition description %q", MetaPartitioned, partitioned, raw)
	}
	m.Partitioned = partitioned

	if s := kv[MetaChromosomeLengths]; s != "" {
		if err := json.Unmarshal([]byte(s), &m.ChromLengths); err != nil {
			return nil, corrupted(MetaFile, "bad %s: %w", MetaChromosomeLengths, err)
		}
	}
	if s := kv[MetaMaxVariantSpan]; s != "" {
		if m.MaxVariantSpan, err = strconv.Atoi(s); err != nil {
			return nil, corrupted(MetaFile, "bad %s: %w", MetaMaxVariantSpan, err)
		}
	}
	if s := kv[MetaCreated]; s != "" {
		if m.Created, err = time.Parse(time.RFC3339, s); err != nil {
			return nil, corrupted(MetaFile, "bad %s: %w", MetaCreated, err)
		}
	}
	if m.SummarySchema != "" && m.SummarySchema != SchemaDescription(SummaryRow{}) {
		return nil, corrupted(MetaFile, "summary schema %q is not supported", m.SummarySchema)
	}
	if m.FamilySchema != "" && m.FamilySchema != SchemaDescription(FamilyRow{}) {
		return nil, corrupted(MetaFile, "family schema %q is not supported", m.FamilySchema)
	}
	return m, nil
}
