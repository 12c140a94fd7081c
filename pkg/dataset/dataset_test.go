package dataset_test

import (
	"context"
	"errors"
	"maps"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
	"github.com/scttfrdmn/varquery-go/pkg/dataset/datasettest"
	"github.com/scttfrdmn/varquery-go/pkg/genotype"
	"github.com/scttfrdmn/varquery-go/pkg/partition"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

func barBins() dataset.BinFilter {
	return dataset.BinFilter{partition.RegionBin: {"bar_0", "bar_1", "bar_2", "bar_3"}}
}

func TestImportAndOpen(t *testing.T) {
	ds := datasettest.Import(t, t.TempDir(), datasettest.Descriptor())

	meta := ds.Meta()
	assert.True(t, meta.Partitioned)
	assert.True(t, meta.Descriptor.Equal(datasettest.Descriptor()))
	assert.Equal(t, datasettest.ChromLengths(), meta.ChromLengths)
	assert.Equal(t, "hg38", meta.Genome)
	assert.Equal(t, "datasettest", meta.CreatedBy)
	assert.Equal(t, 0, meta.MaxVariantSpan)
	assert.Equal(t, 2, ds.Families().Len())

	st, err := ds.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(datasettest.SummaryVariants), st.Summary.Rows)
	assert.Equal(t, int64(datasettest.FamilyVariants), st.Family.Rows)
	assert.Equal(t, int64(datasettest.FamilyVariants), st.FamilyIndex.Rows)
	assert.Equal(t, 6, st.Persons)
	assert.Equal(t, st.Family.Files, st.FamilyIndex.Files)
	assert.Positive(t, st.Summary.Partitions)
}

func TestFamilyRoundTrip(t *testing.T) {
	ctx := context.Background()
	ds := datasettest.Import(t, t.TempDir(), datasettest.Descriptor())

	files, err := ds.FamilyFiles(ctx, nil)
	require.NoError(t, err)

	seen := make(map[dataset.FamilyKey]*variants.FamilyVariant)
	inheritance := make(map[variants.Inheritance]int)
	for _, rel := range files {
		rows, err := ds.ReadFamilyRows(ctx, rel)
		require.NoError(t, err)
		for i := range rows {
			fv, err := ds.DecodeFamily(rel, &rows[i])
			require.NoError(t, err)
			_, dup := seen[rows[i].Key()]
			require.False(t, dup, "duplicate family variant %s", fv.FVUID())
			seen[rows[i].Key()] = fv

			fa, ok := fv.Allele(int(rows[i].AlleleIndex))
			require.True(t, ok)
			inheritance[fa.InheritanceMask()]++
			assert.Same(t, fv.Family, mustFamily(t, ds, rows[i].FamilyID))
		}
	}
	assert.Len(t, seen, datasettest.FamilyVariants)
	assert.Equal(t, 6, inheritance[variants.InheritanceMendelian])
	assert.Equal(t, 6, inheritance[variants.InheritanceMissing])

	for _, fv := range seen {
		sa := fv.Summary.Alleles[1]
		count, ok := sa.Attributes.Int(dataset.AttrAlleleCount)
		require.True(t, ok)
		assert.GreaterOrEqual(t, count, int64(2))
		fc, ok := sa.Attributes.Int(dataset.AttrFamilyVariantsCount)
		require.True(t, ok)
		assert.Equal(t, int64(2), fc)
		assert.Equal(t, "hg38", ds.Meta().Genome)
	}
}

func mustFamily(t *testing.T, ds *dataset.Dataset, id string) *variants.Family {
	t.Helper()
	f, ok := ds.Families().Get(id)
	require.True(t, ok)
	return f
}

func TestSummaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	ds := datasettest.Import(t, t.TempDir(), datasettest.Descriptor())

	files, err := ds.SummaryFiles(ctx, nil)
	require.NoError(t, err)
	var svuids []string
	for _, rel := range files {
		rows, err := ds.ReadSummaryRows(ctx, rel)
		require.NoError(t, err)
		for i := range rows {
			sv, err := ds.DecodeSummary(rel, &rows[i])
			require.NoError(t, err)
			svuids = append(svuids, sv.SVUID())
			assert.Equal(t, sv.Chrom(), rows[i].Chromosome)
		}
	}
	assert.ElementsMatch(t, []string{
		"foo:10.A.T", "foo:110.C.G", "foo:210.G.A",
		"bar:20.T.C", "bar:120.A.G", "bar:220.C.T",
	}, svuids)
}

// typedRecords adds int, float, bool and string attribute columns to the
// fixture rows. Rows of one locus share their values.
func typedRecords(chrom string) []variants.Record {
	records := datasettest.Records(chrom)
	for i, r := range records {
		fields := maps.Clone(r.Fields)
		pos, _ := strconv.Atoi(fields["pos"])
		fields["depth"] = strconv.Itoa(pos + 30)
		fields["score"] = strconv.Itoa(pos) + ".25"
		fields["validated"] = strconv.FormatBool(pos > 100)
		fields["source"] = "lab-" + chrom
		fields["qual"] = "nan"
		records[i].Fields = fields
	}
	return records
}

func TestAttributeRoundTrip(t *testing.T) {
	ctx := context.Background()
	input := map[string][]variants.Record{}
	var buckets []dataset.Bucket
	for i, chrom := range []string{"foo", "bar"} {
		records := typedRecords(chrom)
		for _, r := range records {
			key := r.Fields["chrom"] + ":" + r.Fields["pos"]
			input[key] = append(input[key], r)
		}
		buckets = append(buckets, dataset.Bucket{Index: i, Name: chrom, Records: datasettest.Seq(records)})
	}
	ds := datasettest.ImportBuckets(t, t.TempDir(), datasettest.Descriptor(), buckets)

	expectedSummary := func(t *testing.T, decoded *variants.SummaryVariant) *variants.SummaryVariant {
		t.Helper()
		records := input[decoded.Chrom()+":"+strconv.Itoa(decoded.Position())]
		require.NotEmpty(t, records)
		sv, err := variants.ParseSummaryVariant(records[0])
		require.NoError(t, err)
		sv.SetIndex(decoded.BucketIndex(), decoded.SummaryIndex())
		return sv
	}
	checkAlleles := func(t *testing.T, expected, decoded *variants.SummaryVariant) {
		t.Helper()
		require.Equal(t, expected.NumAlleles(), decoded.NumAlleles())
		for i, want := range expected.Alleles {
			got := decoded.Alleles[i]
			for _, name := range want.Attributes.Names() {
				wv, _ := want.Attributes.Get(name)
				gv, ok := got.Attributes.Get(name)
				require.True(t, ok, "%s allele %d lost %s", decoded.SVUID(), i, name)
				assert.IsType(t, wv, gv, name)
			}
			// attributes computed at import
			for _, name := range got.Attributes.Names() {
				if !want.Attributes.Has(name) {
					v, _ := got.Attributes.Get(name)
					require.NoError(t, want.Attributes.Set(name, v))
				}
			}
			assert.True(t, want.Equal(got), "allele %d of %s", i, decoded.SVUID())
		}
	}

	summaryFiles, err := ds.SummaryFiles(ctx, nil)
	require.NoError(t, err)
	summaries := 0
	for _, rel := range summaryFiles {
		rows, err := ds.ReadSummaryRows(ctx, rel)
		require.NoError(t, err)
		for i := range rows {
			sv, err := ds.DecodeSummary(rel, &rows[i])
			require.NoError(t, err)
			checkAlleles(t, expectedSummary(t, sv), sv)

			alt := sv.Alleles[1]
			depth, ok := alt.Attributes.Int("depth")
			require.True(t, ok)
			assert.Equal(t, int64(sv.Position()+30), depth)
			score, ok := alt.Attributes.Float("score")
			require.True(t, ok)
			assert.Equal(t, float64(sv.Position())+0.25, score)
			validated, ok := alt.Attributes.Bool("validated")
			require.True(t, ok)
			assert.Equal(t, sv.Position() > 100, validated)
			source, ok := alt.Attributes.Str("source")
			require.True(t, ok)
			assert.Equal(t, "lab-"+sv.Chrom(), source)
			qual, ok := alt.Attributes.Float("qual")
			require.True(t, ok)
			assert.True(t, math.IsNaN(qual))
			summaries++
		}
	}
	assert.Equal(t, datasettest.SummaryVariants, summaries)

	familyFiles, err := ds.FamilyFiles(ctx, nil)
	require.NoError(t, err)
	seen := make(map[dataset.FamilyKey]bool)
	for _, rel := range familyFiles {
		rows, err := ds.ReadFamilyRows(ctx, rel)
		require.NoError(t, err)
		for i := range rows {
			fv, err := ds.DecodeFamily(rel, &rows[i])
			require.NoError(t, err)
			seen[rows[i].Key()] = true

			expected := expectedSummary(t, fv.Summary)
			checkAlleles(t, expected, fv.Summary)

			var record variants.Record
			found := false
			for _, r := range input[fv.Summary.Chrom()+":"+strconv.Itoa(fv.Summary.Position())] {
				if r.Fields["family_id"] == fv.FamilyID() {
					record, found = r, true
				}
			}
			require.True(t, found, fv.FVUID())
			want, err := variants.ParseFamilyVariant(record, expected, ds.Families(), ds.Meta().VariantOptions())
			require.NoError(t, err)
			assert.True(t, want.BestState.Equal(fv.BestState), "%s: %s != %s",
				fv.FVUID(), genotype.FormatBestState(want.BestState), genotype.FormatBestState(fv.BestState))
		}
	}
	assert.Len(t, seen, datasettest.FamilyVariants)
}

func TestPruning(t *testing.T) {
	ctx := context.Background()
	ds := datasettest.Import(t, t.TempDir(), datasettest.Descriptor())

	files, err := ds.FamilyFiles(ctx, barBins())
	require.NoError(t, err)
	rows := 0
	for _, rel := range files {
		r, err := ds.ReadFamilyRows(ctx, rel)
		require.NoError(t, err)
		rows += len(r)
	}
	assert.Equal(t, 6, rows)

	n, err := ds.CountFamilyVariants(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, datasettest.FamilyVariants, n)

	n, err = ds.CountFamilyVariants(ctx, barBins(), nil)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = ds.CountFamilyVariants(ctx, nil, func(r *dataset.FamilyIndexRow) bool {
		return r.FamilyID == "f1"
	})
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	none, err := ds.FamilyFiles(ctx, dataset.BinFilter{partition.RegionBin: {"other_0"}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUnpartitioned(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ds := datasettest.Import(t, dir, nil)

	assert.False(t, ds.Meta().Partitioned)
	assert.FileExists(t, filepath.Join(dir, "summary", "summary_bucket_index_000000.parquet"))
	assert.FileExists(t, filepath.Join(dir, "family", "family_bucket_index_000001.parquet"))

	n, err := ds.CountFamilyVariants(ctx, barBins(), nil)
	require.NoError(t, err)
	assert.Equal(t, datasettest.FamilyVariants, n)
}

func TestOpenMissingMeta(t *testing.T) {
	_, err := dataset.Open(context.Background(), dataset.NewLocalStorage(t.TempDir()))
	var corruption *dataset.DatasetCorruptionError
	require.ErrorAs(t, err, &corruption)
	assert.Equal(t, dataset.MetaFile, corruption.Path)
}

func TestCorruptedFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ds := datasettest.Import(t, dir, datasettest.Descriptor())

	files, err := ds.FamilyFiles(ctx, nil)
	require.NoError(t, err)
	require.NotEmpty(t, files)

	t.Run("garbage", func(t *testing.T) {
		rel := files[0]
		require.NoError(t, os.WriteFile(filepath.Join(dir, rel), []byte("not parquet"), 0o644))
		_, err := ds.ReadFamilyRows(ctx, rel)
		var corruption *dataset.DatasetCorruptionError
		require.ErrorAs(t, err, &corruption)
		assert.Equal(t, rel, corruption.Path)
	})

	t.Run("schema mismatch", func(t *testing.T) {
		rel := files[len(files)-1]
		meta, err := os.ReadFile(filepath.Join(dir, dataset.MetaFile))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, rel), meta, 0o644))
		_, err = ds.ReadFamilyRows(ctx, rel)
		var corruption *dataset.DatasetCorruptionError
		require.ErrorAs(t, err, &corruption)
		assert.Contains(t, corruption.Error(), "schema mismatch")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ds.ReadSummaryRows(ctx, "summary/nothing.parquet")
		var corruption *dataset.DatasetCorruptionError
		require.ErrorAs(t, err, &corruption)
	})

	t.Run("stray directory", func(t *testing.T) {
		stray := filepath.Join(dir, dataset.SummaryDir, "scratch", "x.parquet")
		require.NoError(t, os.MkdirAll(filepath.Dir(stray), 0o755))
		require.NoError(t, os.WriteFile(stray, nil, 0o644))
		_, err := ds.SummaryFiles(ctx, nil)
		var corruption *dataset.DatasetCorruptionError
		require.ErrorAs(t, err, &corruption)
	})
}

func TestImportBadRows(t *testing.T) {
	records := datasettest.Records("foo")
	bad := variants.Record{File: "foo.tsv", Line: 99, Fields: map[string]string{
		"chrom": "foo", "pos": "250", "ref": "A", "alt": "C",
		"family_id": "f9", "best_state": "122/100",
	}}
	records = append(records, bad)

	tests := []struct {
		name string
		skip bool
	}{
		{"abort", false},
		{"skip", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := dataset.NewLocalStorage(t.TempDir())
			im, err := dataset.NewImporter(store, datasettest.Descriptor(), datasettest.Families(t), dataset.ImportOptions{
				Workers:      1,
				SkipBadRows:  tt.skip,
				ChromLengths: datasettest.ChromLengths(),
			})
			require.NoError(t, err)
			res, err := im.Import(context.Background(), []dataset.Bucket{
				{Index: 0, Name: "foo", Records: datasettest.Seq(records)},
			})
			if !tt.skip {
				var malformed variants.MalformedRecordErrors
				require.True(t, errors.As(err, &malformed))
				assert.Len(t, malformed, 1)
				assert.Equal(t, 99, malformed[0].Line)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, res.BadRecords)
			assert.Equal(t, int64(3), res.SummaryVariants)
			assert.Equal(t, int64(6), res.FamilyVariants)
		})
	}
}

func TestImportDuplicateBucket(t *testing.T) {
	store := dataset.NewLocalStorage(t.TempDir())
	im, err := dataset.NewImporter(store, nil, datasettest.Families(t), dataset.ImportOptions{})
	require.NoError(t, err)
	_, err = im.Import(context.Background(), []dataset.Bucket{
		{Index: 3, Name: "a", Records: datasettest.Seq(nil)},
		{Index: 3, Name: "b", Records: datasettest.Seq(nil)},
	})
	assert.ErrorContains(t, err, "share index 3")
}

func TestNewImporterUnknownGenome(t *testing.T) {
	_, err := dataset.NewImporter(dataset.NewLocalStorage(t.TempDir()), nil, datasettest.Families(t),
		dataset.ImportOptions{Genome: "hg99"})
	assert.ErrorContains(t, err, "unknown genome")
}
