package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
)

var statsCmd = &cobra.Command{
	Use:   "stats <dataset>",
	Short: "Show statistics for a dataset",
	Long: `Display metadata and table statistics for a dataset.

Row counts are read from the Parquet footers without scanning the data.

Example:
  varquery stats study/
  varquery stats s3://bucket/study`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		ds, err := openDataset(ctx, args[0])
		if err != nil {
			return err
		}
		defer ds.Close()

		st, err := ds.Stats(ctx)
		if err != nil {
			return fmt.Errorf("failed to read statistics: %w", err)
		}
		meta := ds.Meta()

		fmt.Println("===========================================")
		fmt.Println("Variant Dataset Statistics")
		fmt.Println("===========================================")
		fmt.Println()
		fmt.Printf("Location: %s\n", ds.Storage().Root())
		fmt.Printf("Created: %s (%s)\n", meta.Created.Format("2006-01-02 15:04:05"), humanize.Time(meta.Created))
		fmt.Printf("Created by: %s\n", meta.CreatedBy)
		if meta.Genome != "" {
			fmt.Printf("Genome: %s\n", meta.Genome)
		}
		if meta.AnnotationPipeline != "" {
			fmt.Printf("Annotation pipeline: %s\n", meta.AnnotationPipeline)
		}
		fmt.Printf("Max variant span: %d bp\n", meta.MaxVariantSpan)
		fmt.Println()

		fmt.Println("Pedigree:")
		fmt.Printf("  Families: %s\n", humanize.Comma(int64(st.Families)))
		fmt.Printf("  Persons: %s\n", humanize.Comma(int64(st.Persons)))
		fmt.Println()

		fmt.Println("Tables:")
		printTableStats("summary", st.Summary)
		printTableStats("family", st.Family)
		printTableStats("family_index", st.FamilyIndex)
		fmt.Println()

		fmt.Println("Partitioning:")
		if !meta.Partitioned {
			fmt.Println("  none")
		} else {
			fmt.Println(indent(meta.Descriptor.String()))
		}

		if len(meta.ChromLengths) > 0 {
			fmt.Println()
			fmt.Println("References:")
			chroms := make([]string, 0, len(meta.ChromLengths))
			for c := range meta.ChromLengths {
				chroms = append(chroms, c)
			}
			slices.Sort(chroms)
			for _, c := range chroms {
				fmt.Printf("  %s: %s bp\n", c, humanize.Comma(int64(meta.ChromLengths[c])))
			}
		}
		return nil
	},
}

func printTableStats(name string, t dataset.TableStats) {
	fmt.Printf("  %-13s %s rows in %d files, %d partitions (%s)\n", name+":",
		humanize.Comma(t.Rows), t.Files, t.Partitions, humanize.Bytes(uint64(t.Bytes)))
}
