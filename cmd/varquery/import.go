package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
	"github.com/scttfrdmn/varquery-go/pkg/input"
	"github.com/scttfrdmn/varquery-go/pkg/partition"
	"github.com/scttfrdmn/varquery-go/pkg/sysinfo"
)

var (
	pedigreeFile     string
	partitionFile    string
	faiFile          string
	importWorkers    int
	rowGroupSize     int
	skipBadRows      bool
	includeReference bool
	genome           string
	annotationPipe   string
	showImportConfig bool
)

var importCmd = &cobra.Command{
	Use:   "import <output> <variants.tsv>...",
	Short: "Import variant files into a partitioned dataset",
	Long: `Import family variant files into a partitioned Parquet dataset.

Each variant file is one import bucket. Files are tab separated with a
header line and may be gzip or bgzip compressed. Required columns are
chrom, pos, ref, alt, family_id and best_state.

Partitioning:
  The partition description (--partition) is an INI (.conf) or YAML
  file with region_bin, frequency_bin, coding_bin and family_bin
  sections. Without one the dataset is written unpartitioned.

  Region bins need chromosome lengths, read from a FASTA index (--fai).

Output:
  A local directory or an S3 location (s3://bucket/prefix).

Examples:
  # Unpartitioned import
  varquery import study/ --pedigree study.ped calls.tsv.gz

  # Partitioned import into S3
  varquery import s3://bucket/study --pedigree study.ped \
    --partition partition.conf --fai hg38.fa.fai chr*.tsv.gz

  # Show effective configuration
  varquery import --show-config study/ calls.tsv`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := importOptions(cmd)
		if showImportConfig {
			printImportConfig(opts)
			return nil
		}
		if pedigreeFile == "" {
			return fmt.Errorf("--pedigree is required")
		}

		var desc *partition.Descriptor
		if partitionFile != "" {
			d, err := partition.ParseFile(partitionFile)
			if err != nil {
				return err
			}
			desc = d
		}
		if faiFile != "" {
			lengths, err := input.ChromLengths(faiFile)
			if err != nil {
				return err
			}
			opts.ChromLengths = lengths
		}
		if desc != nil && desc.HasRegionBins() && opts.ChromLengths == nil {
			return fmt.Errorf("region bins need chromosome lengths, use --fai")
		}

		families, err := input.LoadFamilies(pedigreeFile)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		store, err := dataset.NewStorage(ctx, args[0], settings.S3.Region)
		if err != nil {
			return err
		}
		im, err := dataset.NewImporter(store, desc, families, opts)
		if err != nil {
			return err
		}

		fmt.Printf("Importing %d variant files into %s\n", len(args)-1, store.Root())
		res, err := im.Import(ctx, input.FileBuckets(args[1:], 0))
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		printImportResult(res)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&pedigreeFile, "pedigree", "",
		"Pedigree file (family, person, dad, mom, sex, status, role)")
	importCmd.Flags().StringVar(&partitionFile, "partition", "",
		"Partition description (.conf or .yaml)")
	importCmd.Flags().StringVar(&faiFile, "fai", "",
		"FASTA index with chromosome lengths")
	importCmd.Flags().IntVar(&importWorkers, "workers", 0,
		"Buckets imported in parallel (0 = auto-detect performance cores)")
	importCmd.Flags().IntVar(&rowGroupSize, "row-group-size", 0,
		"Rows per Parquet row group (default from VARQUERY_IMPORT_ROW_GROUP_SIZE)")
	importCmd.Flags().BoolVar(&skipBadRows, "skip-bad-rows", false,
		"Log and skip malformed input rows instead of failing")
	importCmd.Flags().BoolVar(&includeReference, "include-reference", false,
		"Store reference-only family variants")
	importCmd.Flags().StringVar(&genome, "genome", "",
		"Reference genome for pseudo-autosomal regions: hg19, hg38")
	importCmd.Flags().StringVar(&annotationPipe, "annotation-pipeline", "",
		"Annotation pipeline recorded in the dataset metadata")
	importCmd.Flags().BoolVar(&showImportConfig, "show-config", false,
		"Show effective configuration and exit")
}

// importOptions merges flags over the environment settings
func importOptions(cmd *cobra.Command) dataset.ImportOptions {
	s := settings.Import
	opts := dataset.ImportOptions{
		Workers:            s.Workers,
		RowGroupSize:       s.RowGroupSize,
		SkipBadRows:        s.SkipBadRows,
		IncludeReference:   s.IncludeReference,
		Genome:             s.Genome,
		AnnotationPipeline: annotationPipe,
		CreatedBy:          "varquery-go " + version,
	}
	flags := cmd.Flags()
	if flags.Changed("workers") {
		opts.Workers = importWorkers
	}
	if flags.Changed("row-group-size") {
		opts.RowGroupSize = rowGroupSize
	}
	if flags.Changed("skip-bad-rows") {
		opts.SkipBadRows = skipBadRows
	}
	if flags.Changed("include-reference") {
		opts.IncludeReference = includeReference
	}
	if flags.Changed("genome") {
		opts.Genome = genome
	}
	if opts.Workers <= 0 {
		opts.Workers = sysinfo.Workers()
	}
	return opts
}

func printImportConfig(opts dataset.ImportOptions) {
	mem := sysinfo.HostMemory()
	fmt.Println("Import Configuration")
	fmt.Println("====================")
	fmt.Printf("Workers:           %d\n", opts.Workers)
	fmt.Printf("Row group size:    %s\n", humanize.Comma(int64(opts.RowGroupSize)))
	fmt.Printf("Skip bad rows:     %v\n", opts.SkipBadRows)
	fmt.Printf("Include reference: %v\n", opts.IncludeReference)
	fmt.Printf("Genome:            %s\n", opts.Genome)
	if mem.Total > 0 {
		fmt.Printf("Host memory:       %s total, %s available\n",
			humanize.IBytes(uint64(mem.Total)), humanize.IBytes(uint64(mem.Available)))
	}
}

func printImportResult(res *dataset.ImportResult) {
	fmt.Println()
	fmt.Println("Import Complete")
	fmt.Println("===============")
	fmt.Printf("Buckets:          %d\n", res.Buckets)
	fmt.Printf("Summary variants: %s (%s alleles)\n",
		humanize.Comma(res.SummaryVariants), humanize.Comma(res.SummaryAlleles))
	fmt.Printf("Family variants:  %s (%s alleles)\n",
		humanize.Comma(res.FamilyVariants), humanize.Comma(res.FamilyAlleles))
	fmt.Printf("Files written:    %d (%s)\n", res.Files, humanize.Bytes(uint64(res.Bytes)))
	fmt.Printf("Max variant span: %d\n", res.MaxVariantSpan)
	if res.BadRecords > 0 {
		fmt.Printf("Skipped rows:     %d\n", res.BadRecords)
	}
	fmt.Printf("Elapsed:          %s\n", res.Elapsed.Round(time.Millisecond))
}
