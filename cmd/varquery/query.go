package main

import (
	"context"
	"fmt"
	"iter"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
	"github.com/scttfrdmn/varquery-go/pkg/genotype"
	"github.com/scttfrdmn/varquery-go/pkg/query"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

var (
	backendName   string
	sqlitePath    string
	impalaPrefix  string
	regions       []string
	genes         []string
	effectTypes   []string
	familyIDs     []string
	personIDs     []string
	inheritance   []string
	roles         string
	sexes         string
	statuses      string
	variantType   string
	realAttrs     []string
	frequencies   []string
	ultraRare     bool
	returnRef     bool
	returnUnknown bool
	limit         int
	sortResults   bool
	skipInMemory  bool
	countOnly     bool
	summaryOnly   bool
	explain       bool
)

var queryCmd = &cobra.Command{
	Use:   "query <dataset>",
	Short: "Query variants of a dataset",
	Long: `Query family or summary variants of a dataset.

Filters combine with AND. List flags take comma separated values; an
empty --family-ids or --person-ids matches nothing.

Expressions:
  --inheritance, --roles, --sexes and --statuses take boolean expressions
  over their vocabulary, e.g. "denovo or mendelian", "prb and not sib".
  --inheritance may be given more than once; every expression must hold.

Attribute filters:
  --real-attr and --frequency take name:min:max, either bound may be
  empty. Frequency filters also match alleles without the attribute when
  the lower bound is open.

Backends:
  parquet - read the dataset files directly (default)
  sqlite  - load the dataset into sqlite (--sqlite-db keeps it)
  duckdb  - query the files through DuckDB (build tag duckdb)
  impala  - query tables loaded in Impala (build tag impala)

Examples:
  # De novo variants in two genes
  varquery query study/ --genes CHD8,SCN2A --inheritance denovo

  # Rare coding summary variants in a region
  varquery query study/ --summary --regions 1:1,000,000-2,000,000 \
    --effect-types missense,frame-shift --frequency af_allele_freq::1

  # Count family variants of affected probands
  varquery query study/ --count --roles prb --statuses affected

  # Show the backend statements without running them
  varquery query study/ --backend sqlite --explain --regions 2`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := queryParams(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		ds, err := openDataset(ctx, args[0])
		if err != nil {
			return err
		}
		defer ds.Close()

		backend, err := query.DefaultRegistry().Open(ctx, backendName, ds, backendOptions())
		if err != nil {
			return err
		}
		defer backend.Close()

		engine := query.NewEngine(ds, backend)
		engine.SortBuffer = settings.Query.SortBuffer

		switch {
		case explain && summaryOnly:
			return explainQuery(engine.SummaryQuery(p))
		case explain:
			return explainQuery(engine.FamilyQuery(p))
		case countOnly:
			n, err := engine.CountFamilyVariants(ctx, p)
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		case summaryOnly:
			return printSummaryVariants(engine.QuerySummaryVariants(ctx, p))
		}
		return printFamilyVariants(ds, engine.QueryVariants(ctx, p))
	},
}

func init() {
	f := queryCmd.Flags()
	f.StringVar(&backendName, "backend", "parquet", "Query backend: "+strings.Join(query.DefaultRegistry().Names(), ", "))
	f.StringVar(&sqlitePath, "sqlite-db", "", "sqlite database file, created on first use")
	f.StringVar(&impalaPrefix, "impala-prefix", "", "Impala table name prefix")

	f.StringArrayVar(&regions, "regions", nil, "Region chrom, chrom:pos or chrom:start-end (repeatable)")
	f.StringSliceVar(&genes, "genes", nil, "Gene symbols")
	f.StringSliceVar(&effectTypes, "effect-types", nil, "Effect types")
	f.StringSliceVar(&familyIDs, "family-ids", nil, "Family IDs")
	f.StringSliceVar(&personIDs, "person-ids", nil, "Person IDs carrying the variant")
	f.StringArrayVar(&inheritance, "inheritance", nil, "Inheritance expression (repeatable)")
	f.StringVar(&roles, "roles", "", "Role expression over the carriers")
	f.StringVar(&sexes, "sexes", "", "Sex expression over the carriers")
	f.StringVar(&statuses, "statuses", "", "Status expression over the carriers")
	f.StringVar(&variantType, "variant-type", "", "Variant type expression (sub, ins, del, comp, cnv+, cnv-)")
	f.StringArrayVar(&realAttrs, "real-attr", nil, "Attribute range name:min:max (repeatable)")
	f.StringArrayVar(&frequencies, "frequency", nil, "Frequency range name:min:max (repeatable)")
	f.BoolVar(&ultraRare, "ultra-rare", false, "Only alleles seen in a single family")
	f.BoolVar(&returnRef, "return-reference", false, "Match reference alleles")
	f.BoolVar(&returnUnknown, "return-unknown", false, "Keep family variants with unknown genotypes")

	f.IntVar(&limit, "limit", 0, "Maximum number of results (0 = no limit)")
	f.BoolVar(&sortResults, "sort", false, "Sort results by genomic position")
	f.BoolVar(&skipInMemory, "skip-in-memory-filtering", false, "Trust the backend filters")
	f.BoolVar(&countOnly, "count", false, "Print the number of matching family variants")
	f.BoolVar(&summaryOnly, "summary", false, "Query summary variants")
	f.BoolVar(&explain, "explain", false, "Print the backend statements and exit")
}

// queryParams builds query parameters from the flags. A list flag that
// was given stays non-nil even when empty.
func queryParams(cmd *cobra.Command) (*query.Params, error) {
	flags := cmd.Flags()
	list := func(name string, values []string) []string {
		if !flags.Changed(name) {
			return nil
		}
		out := []string{}
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		return out
	}

	rs, err := query.ParseRegions(regions)
	if err != nil {
		return nil, err
	}
	p := &query.Params{
		Regions:               rs,
		Genes:                 list("genes", genes),
		EffectTypes:           list("effect-types", effectTypes),
		FamilyIDs:             list("family-ids", familyIDs),
		PersonIDs:             list("person-ids", personIDs),
		Inheritance:           inheritance,
		Roles:                 roles,
		Sexes:                 sexes,
		Statuses:              statuses,
		VariantType:           variantType,
		UltraRare:             ultraRare,
		ReturnReference:       returnRef,
		ReturnUnknown:         returnUnknown,
		Limit:                 limit,
		SortResults:           sortResults,
		SkipInMemoryFiltering: skipInMemory,
		Timeout:               settings.Query.Timeout,
	}
	for _, s := range realAttrs {
		af, err := query.ParseAttrFilter(s)
		if err != nil {
			return nil, err
		}
		p.RealAttrFilter = append(p.RealAttrFilter, af)
	}
	for _, s := range frequencies {
		af, err := query.ParseAttrFilter(s)
		if err != nil {
			return nil, err
		}
		p.FrequencyFilter = append(p.FrequencyFilter, af)
	}
	return p, p.Validate()
}

func backendOptions() query.BackendOptions {
	return query.BackendOptions{
		Runner: query.RunnerOptions{
			QueueSize:  settings.Query.QueueSize,
			PutTimeout: settings.Query.PutTimeout,
			MaxRetries: settings.Query.MaxRetries,
		},
		SQLitePath: sqlitePath,
		DuckDBPath: settings.DuckDB.Path,
		Impala: query.ImpalaOptions{
			Host:        settings.Impala.Host,
			Port:        settings.Impala.Port,
			Database:    settings.Impala.Database,
			TablePrefix: impalaPrefix,
			PoolSize:    settings.Impala.PoolSize,
		},
	}
}

func explainQuery[T any](q *query.Query[T]) error {
	if err := q.BuildWhere(); err != nil {
		return err
	}
	defer q.Close()
	statements := q.Statements()
	fmt.Printf("%d statements\n", len(statements))
	for i, s := range statements {
		fmt.Printf("-- %d\n%s\n", i, s)
	}
	return nil
}

func printSummaryVariants(seq iter.Seq2[*variants.SummaryVariant, error]) error {
	fmt.Println("chrom\tposition\tend\tref\talt\tvariant_type\teffects\taf_allele_count\taf_allele_freq")
	for sv, err := range seq {
		if err != nil {
			return err
		}
		for _, a := range sv.Alleles {
			if a.IsReference() && !returnRef {
				continue
			}
			count, freq := "", ""
			if v, ok := a.Attributes.Int(dataset.AttrAlleleCount); ok {
				count = strconv.FormatInt(v, 10)
			}
			if v, ok := a.Attributes.Float(dataset.AttrAlleleFreq); ok {
				freq = strconv.FormatFloat(v, 'g', 6, 64)
			}
			fmt.Printf("%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				a.Chrom, a.Position, a.End(), a.Reference, a.Alternative,
				a.VariantType, strings.Join(a.EffectTypes(), ","), count, freq)
		}
	}
	return nil
}

func printFamilyVariants(ds *dataset.Dataset, seq iter.Seq2[*variants.FamilyVariant, error]) error {
	fmt.Println("family_id\tchrom\tposition\tref\talt\tbest_state\tinheritance\tcarriers")
	n := 0
	for fv, err := range seq {
		if err != nil {
			return err
		}
		alleles := fv.AltAlleles()
		if len(fv.MatchedAlleles) > 0 {
			alleles = nil
			for _, idx := range fv.MatchedAlleles {
				if fa, ok := fv.Allele(idx); ok {
					alleles = append(alleles, fa)
				}
			}
		}
		bestState := genotype.FormatBestState(fv.BestState)
		for _, fa := range alleles {
			fmt.Printf("%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
				fv.FamilyID(), fv.Summary.Chrom(), fv.Summary.Position(),
				fv.Summary.Reference(), fa.Alternative,
				bestState, fa.InheritanceMask(), strings.Join(fa.VariantInMembers, ","))
		}
		n++
	}
	fmt.Fprintf(os.Stderr, "%d family variants from %s\n", n, ds.Storage().Root())
	return nil
}
