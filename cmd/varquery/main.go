package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scttfrdmn/varquery-go/pkg/config"
	"github.com/scttfrdmn/varquery-go/pkg/dataset"
)

const version = "0.1.0"

var (
	settings *config.Settings
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "varquery",
	Short: "varquery - partitioned genomic variant store",
	Long: `varquery imports family genotype calls into a partitioned Parquet
dataset and answers variant queries over it.

Datasets live on local disk or in S3 (s3://bucket/prefix). Queries run
directly over the Parquet files or through a SQL backend.

Settings are read from VARQUERY_* environment variables; flags override
them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			settings.LogLevel = logLevel
		}
		return setupLogging(settings.LogLevel)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(partitionCmd)
	rootCmd.AddCommand(versionCmd)
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	}
	return nil
}

// openDataset opens the dataset at a local path or s3:// URI
func openDataset(ctx context.Context, location string) (*dataset.Dataset, error) {
	store, err := dataset.NewStorage(ctx, location, settings.S3.Region)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.Open(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", location, err)
	}
	return ds, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("varquery-go version %s\n", version)
		fmt.Println("Partitioned variant storage and queries")
	},
}
