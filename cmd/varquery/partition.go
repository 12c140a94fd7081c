package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scttfrdmn/varquery-go/pkg/input"
	"github.com/scttfrdmn/varquery-go/pkg/partition"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

var (
	outputFormat   string
	partitionFai   string
	listPartitions bool
	regionBins     []string
)

var partitionCmd = &cobra.Command{
	Use:   "partition <description>",
	Short: "Inspect a partition description",
	Long: `Parse a partition description and print it back, optionally in the
other format, with the partitions it produces.

Region bins depend on the chromosome lengths; --list and --region need
a FASTA index (--fai) when the description has a region_bin section.

Examples:
  # Convert an INI description to YAML
  varquery partition partition.conf --format yaml

  # List every partition directory
  varquery partition partition.yaml --fai hg38.fa.fai --list

  # Region bins touched by a query region
  varquery partition partition.conf --fai hg38.fa.fai --region chr1:1-3000000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := partition.ParseFile(args[0])
		if err != nil {
			return err
		}
		out, err := desc.Serialize(outputFormat)
		if err != nil {
			return err
		}
		if out == "" {
			fmt.Println("# unpartitioned")
		} else {
			fmt.Print(out)
		}
		if !listPartitions && len(regionBins) == 0 {
			return nil
		}

		var chromLens map[string]int
		if partitionFai != "" {
			if chromLens, err = input.ChromLengths(partitionFai); err != nil {
				return err
			}
		} else if desc.HasRegionBins() {
			return fmt.Errorf("region bins need chromosome lengths, use --fai")
		}

		for _, s := range regionBins {
			r, err := variants.ParseRegion(s)
			if err != nil {
				return err
			}
			fmt.Printf("\n%s: %s\n", r, strings.Join(desc.RegionToBins(r, chromLens), " "))
		}
		if listPartitions {
			summary, family, err := desc.Partitions(chromLens)
			if err != nil {
				return err
			}
			fmt.Printf("\nSummary partitions (%d):\n", len(summary))
			printPartitions(summary)
			fmt.Printf("\nFamily partitions (%d):\n", len(family))
			printPartitions(family)
		}
		return nil
	},
}

func init() {
	partitionCmd.Flags().StringVar(&outputFormat, "format", partition.FormatConf,
		"Output format: conf, yaml")
	partitionCmd.Flags().StringVar(&partitionFai, "fai", "",
		"FASTA index with chromosome lengths")
	partitionCmd.Flags().BoolVar(&listPartitions, "list", false,
		"List the summary and family partitions")
	partitionCmd.Flags().StringArrayVar(&regionBins, "region", nil,
		"Print the region bins of a region (repeatable)")
}

func printPartitions(parts []partition.Partition) {
	for _, p := range parts {
		dir := p.Directory()
		if dir == "" {
			dir = "."
		}
		fmt.Printf("  %s\n", dir)
	}
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
