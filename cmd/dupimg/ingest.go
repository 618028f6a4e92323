package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/hubenschmidt/go-dupimg/index"
	"github.com/hubenschmidt/go-dupimg/match"
	"github.com/hubenschmidt/go-dupimg/phash"
	"github.com/spf13/cobra"
)

var (
	ingestPartition int64
	ingestRecord    int64
	ingestLabel     string
	ingestThreshold int

	comparePartition int64
	compareExclude   int64
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Run one image through the duplicate check and record it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		threshold := cfg.SimilarityThreshold
		if cmd.Flags().Changed("threshold") {
			threshold = ingestThreshold
		}

		img, err := readAttachment(args[0])
		if err != nil {
			return err
		}

		idx, err := index.Open(cfg.DatabaseDSN, logger)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()

		policy := match.NewPolicy(idx, match.Config{
			Extractor: &phash.Hasher{MaxPixels: cfg.MaxPixels},
			Logger:    logger,
		})
		out, err := policy.Ingest(cmd.Context(), core.PartitionID(ingestPartition), ingestLabel,
			core.RecordID(ingestRecord), img, threshold)
		if err != nil {
			return err
		}
		printOutcome(cmd.OutOrStdout(), out)
		return nil
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <file>",
	Short: "Find the closest stored image to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		img, err := readAttachment(args[0])
		if err != nil {
			return err
		}

		idx, err := index.Open(cfg.DatabaseDSN, logger)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()

		policy := match.NewPolicy(idx, match.Config{
			Extractor: &phash.Hasher{MaxPixels: cfg.MaxPixels},
			Logger:    logger,
		})
		out, err := policy.CompareAgainst(cmd.Context(), core.PartitionID(comparePartition), img,
			core.RecordID(compareExclude))
		if err != nil {
			return err
		}
		printOutcome(cmd.OutOrStdout(), out)
		return nil
	},
}

func printOutcome(w io.Writer, out match.Outcome) {
	var paint func(a ...any) string
	switch out.Kind {
	case match.Duplicate:
		paint = color.New(color.FgRed, color.Bold).SprintFunc()
	case match.Closest:
		paint = color.New(color.FgCyan).SprintFunc()
	case match.Recorded, match.NoPriorRecords:
		paint = color.New(color.FgGreen).SprintFunc()
	default:
		paint = color.New(color.FgHiBlack).SprintFunc()
	}

	switch {
	case out.Match != nil:
		fmt.Fprintf(w, "%s  record %d  dst %d\n", paint(out.Kind), out.Match.Record, out.Match.Distance)
	case out.Kind == match.NotAnImage:
		fmt.Fprintln(w, paint(out.Kind))
	default:
		fmt.Fprintf(w, "%s  %s\n", paint(out.Kind), out.Fingerprint)
	}
}

func init() {
	f := ingestCmd.Flags()
	f.Int64VarP(&ingestPartition, "partition", "p", 0, "partition (chat) id")
	f.Int64VarP(&ingestRecord, "record", "r", 0, "record (message) id to store the image under")
	f.StringVarP(&ingestLabel, "label", "l", "", "partition label")
	f.IntVar(&ingestThreshold, "threshold", 10, "duplicate threshold (0-64)")
	ingestCmd.MarkFlagRequired("partition")
	ingestCmd.MarkFlagRequired("record")

	f = compareCmd.Flags()
	f.Int64VarP(&comparePartition, "partition", "p", 0, "partition (chat) id")
	f.Int64VarP(&compareExclude, "exclude", "x", 0, "record id to leave out of the comparison")
	compareCmd.MarkFlagRequired("partition")

	rootCmd.AddCommand(ingestCmd, compareCmd)
}
