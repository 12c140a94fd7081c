package dataset

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"

	"github.com/parquet-go/parquet-go"
	log "github.com/sirupsen/logrus"

	"github.com/scttfrdmn/varquery-go/pkg/partition"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// WriterOptions controls how a bucket is written
type WriterOptions struct {
	// RowGroupSize is the number of rows buffered per file before a row
	// group is flushed
	RowGroupSize int

	// IncludeReference also stores reference alleles and all-reference
	// family variants
	IncludeReference bool
}

// tableWriter accumulates one parquet file in memory
type tableWriter[T any] struct {
	path    string
	buf     *bytes.Buffer
	w       *parquet.GenericWriter[T]
	pending int
	rows    int64
}

func newTableWriter[T any](p string) *tableWriter[T] {
	buf := new(bytes.Buffer)
	return &tableWriter[T]{
		path: p,
		buf:  buf,
		w:    parquet.NewGenericWriter[T](buf, parquet.Compression(&parquet.Zstd)),
	}
}

func (tw *tableWriter[T]) write(row T, rowGroupSize int) error {
	if _, err := tw.w.Write([]T{row}); err != nil {
		return fmt.Errorf("failed to write row to %s: %w", tw.path, err)
	}
	tw.pending++
	tw.rows++
	if tw.pending >= rowGroupSize {
		if err := tw.w.Flush(); err != nil {
			return fmt.Errorf("failed to flush row group of %s: %w", tw.path, err)
		}
		tw.pending = 0
	}
	return nil
}

func (tw *tableWriter[T]) close(ctx context.Context, store Storage) (int64, error) {
	if err := tw.w.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", tw.path, err)
	}
	size := int64(tw.buf.Len())
	if err := store.WriteFile(ctx, tw.path, tw.buf.Bytes()); err != nil {
		return 0, fmt.Errorf("failed to store %s: %w", tw.path, err)
	}
	return size, nil
}

// WriteStats summarizes what a PartitionWriter stored
type WriteStats struct {
	SummaryVariants int64
	SummaryAlleles  int64
	FamilyVariants  int64
	FamilyAlleles   int64
	Files           int
	Bytes           int64
	// MaxVariantSpan is the longest end - position seen
	MaxVariantSpan int
}

// Add accumulates o into s
func (s *WriteStats) Add(o WriteStats) {
	s.SummaryVariants += o.SummaryVariants
	s.SummaryAlleles += o.SummaryAlleles
	s.FamilyVariants += o.FamilyVariants
	s.FamilyAlleles += o.FamilyAlleles
	s.Files += o.Files
	s.Bytes += o.Bytes
	s.MaxVariantSpan = max(s.MaxVariantSpan, o.MaxVariantSpan)
}

// PartitionWriter writes the variants of one import bucket. Every file
// name carries the bucket index, so writers of different buckets never
// touch the same file.
type PartitionWriter struct {
	store  Storage
	desc   *partition.Descriptor
	codec  *Codec
	bucket int
	opts   WriterOptions

	summary map[string]*tableWriter[SummaryRow]
	family  map[string]*tableWriter[FamilyRow]
	index   map[string]*tableWriter[FamilyIndexRow]

	stats WriteStats
}

func NewPartitionWriter(store Storage, desc *partition.Descriptor, codec *Codec, bucketIndex int, opts WriterOptions) *PartitionWriter {
	if opts.RowGroupSize <= 0 {
		opts.RowGroupSize = 50000
	}
	return &PartitionWriter{
		store:   store,
		desc:    desc,
		codec:   codec,
		bucket:  bucketIndex,
		opts:    opts,
		summary: make(map[string]*tableWriter[SummaryRow]),
		family:  make(map[string]*tableWriter[FamilyRow]),
		index:   make(map[string]*tableWriter[FamilyIndexRow]),
	}
}

func table[T any](tables map[string]*tableWriter[T], dir, prefix string, p partition.Partition, bucket int) *tableWriter[T] {
	rel := path.Join(dir, p.Path(prefix, bucket))
	tw, ok := tables[rel]
	if !ok {
		tw = newTableWriter[T](rel)
		tables[rel] = tw
	}
	return tw
}

func seenAsDenovo(a *variants.SummaryAllele) bool {
	v, _ := a.Attributes.Bool(AttrSeenAsDenovo)
	return v
}

func alleleFrequency(a *variants.SummaryAllele) (*int64, *float64) {
	var count *int64
	var freq *float64
	if v, ok := a.Attributes.Int(AttrAlleleCount); ok {
		count = &v
	}
	if v, ok := a.Attributes.Float(AttrAlleleFreq); ok {
		freq = &v
	}
	return count, freq
}

func binInt(p partition.Partition, name string) int32 {
	v, ok := p.Get(name)
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(v)
	return int32(n)
}

func binString(p partition.Partition, name string) string {
	v, _ := p.Get(name)
	return v
}

// Write stores a summary variant with its family variants. Summary alleles
// are written only when at least one family allele was.
func (pw *PartitionWriter) Write(sv *variants.SummaryVariant, fvs []*variants.FamilyVariant) error {
	written := 0
	for _, fv := range fvs {
		if fv.IsReference() && !pw.opts.IncludeReference {
			continue
		}
		alleles := fv.AltAlleles()
		if pw.opts.IncludeReference {
			alleles = fv.Alleles
		}
		if len(alleles) == 0 {
			continue
		}
		data, err := pw.codec.EncodeFamily(fv)
		if err != nil {
			return err
		}
		for _, fa := range alleles {
			if err := pw.writeFamilyAllele(fa, data); err != nil {
				return err
			}
		}
		pw.stats.FamilyVariants++
		written++
	}
	if written == 0 {
		return nil
	}

	data, err := pw.codec.EncodeSummary(sv)
	if err != nil {
		return err
	}
	for _, sa := range sv.Alleles {
		if sa.IsReference() && !pw.opts.IncludeReference {
			continue
		}
		if err := pw.writeSummaryAllele(sa, data); err != nil {
			return err
		}
	}
	pw.stats.SummaryVariants++
	pw.stats.MaxVariantSpan = max(pw.stats.MaxVariantSpan, sv.End()-sv.Position())
	return nil
}

func (pw *PartitionWriter) writeSummaryAllele(sa *variants.SummaryAllele, data []byte) error {
	p := pw.desc.SummaryPartition(sa, seenAsDenovo(sa))
	count, freq := alleleFrequency(sa)
	familyCount, _ := sa.Attributes.Int(AttrFamilyVariantsCount)
	row := SummaryRow{
		BucketIndex:         int32(sa.BucketIndex),
		SummaryIndex:        int32(sa.SummaryIndex),
		AlleleIndex:         int32(sa.AlleleIndex),
		Chromosome:          sa.Chrom,
		Position:            int32(sa.Position),
		EndPosition:         int32(sa.End()),
		VariantType:         int32(sa.VariantType),
		TransmissionType:    int32(sa.TransmissionType),
		EffectTypes:         JoinList(sa.EffectTypes()),
		EffectGenes:         JoinList(sa.EffectGenes()),
		AfAlleleCount:       count,
		AfAlleleFreq:        freq,
		SeenAsDenovo:        seenAsDenovo(sa),
		FamilyVariantsCount: int32(familyCount),
		RegionBin:           binString(p, partition.RegionBin),
		CodingBin:           binInt(p, partition.CodingBin),
		FrequencyBin:        binInt(p, partition.FrequencyBin),
		SummaryData:         data,
	}
	pw.stats.SummaryAlleles++
	return table(pw.summary, SummaryDir, SummaryPrefix, p, pw.bucket).write(row, pw.opts.RowGroupSize)
}

func (pw *PartitionWriter) writeFamilyAllele(fa *variants.FamilyAllele, data []byte) error {
	p := pw.desc.FamilyPartition(fa, seenAsDenovo(fa.SummaryAllele))
	count, freq := alleleFrequency(fa.SummaryAllele)
	index := FamilyIndexRow{
		BucketIndex:          int32(fa.BucketIndex),
		SummaryIndex:         int32(fa.SummaryIndex),
		AlleleIndex:          int32(fa.AlleleIndex),
		FamilyID:             fa.FamilyID(),
		Chromosome:           fa.Chrom,
		Position:             int32(fa.Position),
		EndPosition:          int32(fa.End()),
		InheritanceInMembers: int32(fa.InheritanceMask()),
		VariantInMembers:     JoinList(fa.VariantInMembers),
		VariantInRoles:       int32(fa.VariantInRoles),
		VariantInSexes:       int32(fa.VariantInSexes),
		VariantInStatuses:    int32(fa.VariantInStatuses),
		RegionBin:            binString(p, partition.RegionBin),
		FamilyBin:            binInt(p, partition.FamilyBin),
		CodingBin:            binInt(p, partition.CodingBin),
		FrequencyBin:         binInt(p, partition.FrequencyBin),
	}
	row := FamilyRow{
		BucketIndex:          index.BucketIndex,
		SummaryIndex:         index.SummaryIndex,
		AlleleIndex:          index.AlleleIndex,
		FamilyID:             index.FamilyID,
		Chromosome:           index.Chromosome,
		Position:             index.Position,
		EndPosition:          index.EndPosition,
		VariantType:          int32(fa.VariantType),
		EffectTypes:          JoinList(fa.EffectTypes()),
		EffectGenes:          JoinList(fa.EffectGenes()),
		AfAlleleCount:        count,
		AfAlleleFreq:         freq,
		InheritanceInMembers: index.InheritanceInMembers,
		VariantInMembers:     index.VariantInMembers,
		VariantInRoles:       index.VariantInRoles,
		VariantInSexes:       index.VariantInSexes,
		VariantInStatuses:    index.VariantInStatuses,
		RegionBin:            index.RegionBin,
		FamilyBin:            index.FamilyBin,
		CodingBin:            index.CodingBin,
		FrequencyBin:         index.FrequencyBin,
		FamilyData:           data,
	}
	pw.stats.FamilyAlleles++
	if err := table(pw.family, FamilyDir, FamilyPrefix, p, pw.bucket).write(row, pw.opts.RowGroupSize); err != nil {
		return err
	}
	return table(pw.index, FamilyIndexDir, FamilyIndexPrefix, p, pw.bucket).write(index, pw.opts.RowGroupSize)
}

func closeTables[T any](ctx context.Context, store Storage, tables map[string]*tableWriter[T], stats *WriteStats) error {
	paths := make([]string, 0, len(tables))
	for p := range tables {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		size, err := tables[p].close(ctx, store)
		if err != nil {
			return err
		}
		stats.Files++
		stats.Bytes += size
	}
	return nil
}

// Close flushes and stores every open file
func (pw *PartitionWriter) Close(ctx context.Context) (WriteStats, error) {
	if err := closeTables(ctx, pw.store, pw.summary, &pw.stats); err != nil {
		return pw.stats, err
	}
	if err := closeTables(ctx, pw.store, pw.family, &pw.stats); err != nil {
		return pw.stats, err
	}
	if err := closeTables(ctx, pw.store, pw.index, &pw.stats); err != nil {
		return pw.stats, err
	}
	log.WithFields(log.Fields{
		"bucket": pw.bucket,
		"files":  pw.stats.Files,
		"family": pw.stats.FamilyVariants,
	}).Debug("bucket written")
	return pw.stats, nil
}
