package dataset

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/parquet-go/parquet-go"
	log "github.com/sirupsen/logrus"

	"github.com/scttfrdmn/varquery-go/pkg/partition"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// Dataset is an opened partitioned dataset. It is safe for concurrent
// readers.
type Dataset struct {
	store      Storage
	meta       *Meta
	families   *variants.Families
	compressor *Compressor
	codec      *Codec
}

// Open reads the metadata and the pedigree of the dataset at store
func Open(ctx context.Context, store Storage) (*Dataset, error) {
	meta, err := ReadMeta(ctx, store)
	if err != nil {
		return nil, err
	}
	families, err := ReadPedigree(ctx, store)
	if err != nil {
		return nil, err
	}
	compressor, err := NewCompressor(0)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"root":        store.Root(),
		"partitioned": meta.Partitioned,
		"families":    families.Len(),
	}).Debug("dataset opened")
	return &Dataset{
		store:      store,
		meta:       meta,
		families:   families,
		compressor: compressor,
		codec:      NewCodec(compressor, meta.VariantOptions()),
	}, nil
}

func (d *Dataset) Close() { d.compressor.Close() }

func (d *Dataset) Storage() Storage                  { return d.store }
func (d *Dataset) Meta() *Meta                       { return d.meta }
func (d *Dataset) Descriptor() *partition.Descriptor { return d.meta.Descriptor }
func (d *Dataset) Families() *variants.Families      { return d.families }
func (d *Dataset) Codec() *Codec                     { return d.codec }
func (d *Dataset) ChromLengths() map[string]int      { return d.meta.ChromLengths }

// BinFilter restricts bins by name to a set of values. A bin without an
// entry is unrestricted.
type BinFilter map[string][]string

// Allows reports whether a partition passes every restriction
func (f BinFilter) Allows(p partition.Partition) bool {
	for name, values := range f {
		v, ok := p.Get(name)
		if ok && !slices.Contains(values, v) {
			return false
		}
	}
	return true
}

func (d *Dataset) binEnabled(name string) bool {
	desc := d.meta.Descriptor
	switch name {
	case partition.RegionBin:
		return desc.HasRegionBins()
	case partition.FamilyBin:
		return desc.HasFamilyBins()
	case partition.CodingBin:
		return desc.HasCodingBins()
	case partition.FrequencyBin:
		return desc.HasFrequencyBins()
	}
	return false
}

// files lists the parquet files under dir whose partition passes filter
func (d *Dataset) files(ctx context.Context, dir string, filter BinFilter) ([]string, error) {
	all, err := d.store.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var out []string
	for _, rel := range all {
		if !strings.HasSuffix(rel, ".parquet") {
			continue
		}
		p, err := partition.PathToPartition(strings.TrimPrefix(rel, dir+"/"))
		if err != nil {
			return nil, &DatasetCorruptionError{Path: rel, Err: err}
		}
		for _, b := range p {
			if !d.binEnabled(b.Name) {
				return nil, corrupted(rel, "bin %s is not in the partition description", b.Name)
			}
		}
		if filter.Allows(p) {
			out = append(out, rel)
		}
	}
	log.WithFields(log.Fields{"dir": dir, "total": len(all), "selected": len(out)}).Debug("partition files pruned")
	return out, nil
}

func (d *Dataset) SummaryFiles(ctx context.Context, filter BinFilter) ([]string, error) {
	return d.files(ctx, SummaryDir, filter)
}

func (d *Dataset) FamilyFiles(ctx context.Context, filter BinFilter) ([]string, error) {
	return d.files(ctx, FamilyDir, filter)
}

func (d *Dataset) FamilyIndexFiles(ctx context.Context, filter BinFilter) ([]string, error) {
	return d.files(ctx, FamilyIndexDir, filter)
}

func (d *Dataset) ReadSummaryRows(ctx context.Context, rel string) ([]SummaryRow, error) {
	return readRows[SummaryRow](ctx, d.store, rel)
}

func (d *Dataset) ReadFamilyRows(ctx context.Context, rel string) ([]FamilyRow, error) {
	return readRows[FamilyRow](ctx, d.store, rel)
}

func (d *Dataset) ReadFamilyIndexRows(ctx context.Context, rel string) ([]FamilyIndexRow, error) {
	return readRows[FamilyIndexRow](ctx, d.store, rel)
}

// DecodeSummary rebuilds the summary variant of a row read from rel
func (d *Dataset) DecodeSummary(rel string, row *SummaryRow) (*variants.SummaryVariant, error) {
	sv, err := d.codec.DecodeSummary(row.SummaryData)
	if err != nil {
		return nil, &DatasetCorruptionError{Path: rel, Err: err}
	}
	if sv.BucketIndex() != int(row.BucketIndex) || sv.SummaryIndex() != int(row.SummaryIndex) {
		return nil, corrupted(rel, "row %d.%d holds summary variant %d.%d",
			row.BucketIndex, row.SummaryIndex, sv.BucketIndex(), sv.SummaryIndex())
	}
	return sv, nil
}

// DecodeFamily rebuilds the family variant of a row read from rel. The
// inheritance recomputed from the best state must match the stored
// inheritance of the row allele.
func (d *Dataset) DecodeFamily(rel string, row *FamilyRow) (*variants.FamilyVariant, error) {
	fv, err := d.codec.DecodeFamily(row.FamilyData, d.families)
	if err != nil {
		return nil, &DatasetCorruptionError{Path: rel, Err: err}
	}
	if fv.FamilyID() != row.FamilyID {
		return nil, corrupted(rel, "row of family %s holds a variant of family %s", row.FamilyID, fv.FamilyID())
	}
	fa, ok := fv.Allele(int(row.AlleleIndex))
	if !ok {
		return nil, corrupted(rel, "%s has no allele %d", fv.FVUID(), row.AlleleIndex)
	}
	if int32(fa.InheritanceMask()) != row.InheritanceInMembers {
		return nil, corrupted(rel, "%s allele %d: inheritance %s, stored %s",
			fv.FVUID(), row.AlleleIndex, fa.InheritanceMask(), variants.Inheritance(row.InheritanceInMembers))
	}
	return fv, nil
}

// CountFamilyVariants counts distinct family variants from the family
// index files selected by filter. match, when set, selects index rows.
func (d *Dataset) CountFamilyVariants(ctx context.Context, filter BinFilter, match func(*FamilyIndexRow) bool) (int, error) {
	files, err := d.FamilyIndexFiles(ctx, filter)
	if err != nil {
		return 0, err
	}
	seen := make(map[FamilyKey]struct{})
	for _, rel := range files {
		rows, err := d.ReadFamilyIndexRows(ctx, rel)
		if err != nil {
			return 0, err
		}
		for i := range rows {
			r := &rows[i]
			if match != nil && !match(r) {
				continue
			}
			seen[FamilyKey{FamilyID: r.FamilyID, BucketIndex: r.BucketIndex, SummaryIndex: r.SummaryIndex}] = struct{}{}
		}
	}
	return len(seen), nil
}

// TableStats describes the files of one table
type TableStats struct {
	Files      int
	Partitions int
	Rows       int64
	Bytes      int64
}

// Stats describes the stored tables
type Stats struct {
	Summary     TableStats
	Family      TableStats
	FamilyIndex TableStats
	Families    int
	Persons     int
}

// Stats reads the row counts of every file from its footer
func (d *Dataset) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Families: d.families.Len()}
	for range d.families.Persons() {
		st.Persons++
	}
	tables := []struct {
		dir string
		out *TableStats
	}{
		{SummaryDir, &st.Summary},
		{FamilyDir, &st.Family},
		{FamilyIndexDir, &st.FamilyIndex},
	}
	for _, t := range tables {
		files, err := d.files(ctx, t.dir, nil)
		if err != nil {
			return nil, err
		}
		partitions := make(map[string]bool)
		for _, rel := range files {
			data, err := d.store.ReadFile(ctx, rel)
			if err != nil {
				return nil, &DatasetCorruptionError{Path: rel, Err: err}
			}
			file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
			if err != nil {
				return nil, corrupted(rel, "not a parquet file: %w", err)
			}
			t.out.Files++
			t.out.Rows += file.NumRows()
			t.out.Bytes += int64(len(data))
			partitions[path.Dir(rel)] = true
		}
		t.out.Partitions = len(partitions)
	}
	return st, nil
}
