package dataset

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/scttfrdmn/varquery-go/pkg/genotype"
	"github.com/scttfrdmn/varquery-go/pkg/partition"
	"github.com/scttfrdmn/varquery-go/pkg/sysinfo"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// ImportOptions configures an Importer
type ImportOptions struct {
	// Workers is the number of buckets imported at once. 0 uses
	// sysinfo.Workers.
	Workers          int
	RowGroupSize     int
	SkipBadRows      bool
	IncludeReference bool

	// Genome selects the pseudo-autosomal regions (hg19 or hg38)
	Genome       string
	ChromLengths map[string]int

	AnnotationPipeline string
	CreatedBy          string
}

// Bucket is one independently importable slice of the input
type Bucket struct {
	Index   int
	Name    string
	Records iter.Seq2[variants.Record, error]
}

// ImportResult reports what an import stored
type ImportResult struct {
	WriteStats
	Buckets    int
	BadRecords int
	Elapsed    time.Duration
}

// Importer writes buckets of variant records into a partitioned dataset
type Importer struct {
	store    Storage
	desc     *partition.Descriptor
	families *variants.Families
	opts     ImportOptions
	vopts    variants.Options
	parents  int
}

func NewImporter(store Storage, desc *partition.Descriptor, families *variants.Families, opts ImportOptions) (*Importer, error) {
	if err := ValidatePedigree(families); err != nil {
		return nil, err
	}
	if desc == nil {
		desc = &partition.Descriptor{}
	}
	if opts.Workers <= 0 {
		opts.Workers = sysinfo.Workers()
	}
	if opts.RowGroupSize <= 0 {
		opts.RowGroupSize = 50000
	}
	var pars []genotype.PAR
	if opts.Genome != "" {
		var ok bool
		if pars, ok = genotype.PseudoAutosomalRegions[opts.Genome]; !ok {
			return nil, fmt.Errorf("unknown genome %q", opts.Genome)
		}
	}
	if desc.HasRegionBins() {
		if _, err := desc.AllRegionBins(opts.ChromLengths); err != nil {
			return nil, err
		}
	}
	return &Importer{
		store:    store,
		desc:     desc,
		families: families,
		opts:     opts,
		vopts:    variants.Options{PARs: pars},
		parents:  countParents(families),
	}, nil
}

// Import writes every bucket, then the pedigree and the metadata. Buckets
// are imported in parallel, each by its own PartitionWriter.
func (im *Importer) Import(ctx context.Context, buckets []Bucket) (*ImportResult, error) {
	start := time.Now()
	seen := make(map[int]string, len(buckets))
	for _, b := range buckets {
		if other, dup := seen[b.Index]; dup {
			return nil, fmt.Errorf("buckets %s and %s share index %d", other, b.Name, b.Index)
		}
		seen[b.Index] = b.Name
	}

	compressor, err := NewCompressor(0)
	if err != nil {
		return nil, err
	}
	defer compressor.Close()
	codec := NewCodec(compressor, im.vopts)

	result := &ImportResult{Buckets: len(buckets)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.opts.Workers)
	for _, b := range buckets {
		g.Go(func() error {
			stats, bad, err := im.importBucket(gctx, codec, b)
			if err != nil {
				return fmt.Errorf("bucket %s: %w", b.Name, err)
			}
			mu.Lock()
			result.Add(stats)
			result.BadRecords += bad
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := WritePedigree(ctx, im.store, im.families, im.desc); err != nil {
		return nil, err
	}
	meta := &Meta{
		Descriptor:         im.desc,
		Partitioned:        im.desc.HasPartitions(),
		AnnotationPipeline: im.opts.AnnotationPipeline,
		SummarySchema:      SchemaDescription(SummaryRow{}),
		FamilySchema:       SchemaDescription(FamilyRow{}),
		ChromLengths:       im.opts.ChromLengths,
		MaxVariantSpan:     result.MaxVariantSpan,
		Genome:             im.opts.Genome,
		Created:            time.Now(),
		CreatedBy:          im.opts.CreatedBy,
	}
	if err := WriteMeta(ctx, im.store, meta); err != nil {
		return nil, err
	}
	result.Elapsed = time.Since(start)

	log.WithFields(log.Fields{
		"buckets": result.Buckets,
		"summary": result.SummaryVariants,
		"family":  result.FamilyVariants,
		"files":   result.Files,
		"elapsed": result.Elapsed,
	}).Info("import complete")
	return result, nil
}

// locus is the group of consecutive records of one summary variant
type locus struct {
	key     string
	records []variants.Record
}

// importBucket reads the records of one bucket. Malformed rows are
// collected and reported at the end of the bucket; in skip mode they are
// logged and the bucket is kept.
func (im *Importer) importBucket(ctx context.Context, codec *Codec, b Bucket) (WriteStats, int, error) {
	pw := NewPartitionWriter(im.store, im.desc, codec, b.Index, WriterOptions{
		RowGroupSize:     im.opts.RowGroupSize,
		IncludeReference: im.opts.IncludeReference,
	})

	var bad variants.MalformedRecordErrors
	summaryIndex := 0
	flush := func(l *locus) error {
		if l == nil || len(l.records) == 0 {
			return nil
		}
		sv, fvs, err := im.parseLocus(l)
		var malformed *variants.MalformedRecordError
		if errors.As(err, &malformed) {
			bad = append(bad, malformed)
			return nil
		}
		if err != nil {
			return err
		}
		sv.SetIndex(b.Index, summaryIndex)
		summaryIndex++
		if err := alleleStats(sv, fvs, im.parents); err != nil {
			return err
		}
		return pw.Write(sv, fvs)
	}

	var current *locus
	for rec, err := range b.Records {
		if err := ctx.Err(); err != nil {
			return WriteStats{}, 0, err
		}
		if err != nil {
			var malformed *variants.MalformedRecordError
			if errors.As(err, &malformed) {
				bad = append(bad, malformed)
				continue
			}
			return WriteStats{}, 0, err
		}
		key := rec.LocusKey()
		if current == nil || current.key != key {
			if err := flush(current); err != nil {
				return WriteStats{}, 0, err
			}
			current = &locus{key: key}
		}
		current.records = append(current.records, rec)
	}
	if err := flush(current); err != nil {
		return WriteStats{}, 0, err
	}

	if len(bad) > 0 {
		if !im.opts.SkipBadRows {
			return WriteStats{}, len(bad), bad
		}
		log.WithFields(log.Fields{"bucket": b.Name, "bad": len(bad)}).Warnf("skipped bad rows: %v", bad)
	}
	stats, err := pw.Close(ctx)
	return stats, len(bad), err
}

// parseLocus builds the summary variant from the first record and one
// family variant per record. A family appearing twice at the same locus is
// malformed.
func (im *Importer) parseLocus(l *locus) (*variants.SummaryVariant, []*variants.FamilyVariant, error) {
	sv, err := variants.ParseSummaryVariant(l.records[0])
	if err != nil {
		return nil, nil, err
	}
	fvs := make([]*variants.FamilyVariant, 0, len(l.records))
	seen := make(map[string]bool, len(l.records))
	for _, rec := range l.records {
		fv, err := variants.ParseFamilyVariant(rec, sv, im.families, im.vopts)
		if err != nil {
			return nil, nil, err
		}
		if seen[fv.FamilyID()] {
			return nil, nil, &variants.MalformedRecordError{
				File: rec.File, Line: rec.Line,
				Msg: fmt.Sprintf("family %s repeated at %s", fv.FamilyID(), sv.SVUID()),
			}
		}
		seen[fv.FamilyID()] = true
		fvs = append(fvs, fv)
	}
	return sv, fvs, nil
}
