package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/hubenschmidt/go-dupimg/phash"
	"github.com/spf13/cobra"
)

var distanceThreshold int

var distanceCmd = &cobra.Command{
	Use:   "distance <a> <b>",
	Short: "Hamming distance between two images or hashes",
	Long: `Compare two operands, each either an image file or a 16 hex digit
hash as printed by "dupimg hash".`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		threshold := cfg.SimilarityThreshold
		if cmd.Flags().Changed("threshold") {
			threshold = distanceThreshold
		}

		hasher := &phash.Hasher{MaxPixels: cfg.MaxPixels}
		a, err := resolveOperand(hasher, args[0])
		if err != nil {
			return err
		}
		b, err := resolveOperand(hasher, args[1])
		if err != nil {
			return err
		}

		d := phash.Distance(a, b)
		verdict := color.New(color.FgYellow).Sprint("different")
		if d <= threshold {
			verdict = color.New(color.FgGreen, color.Bold).Sprint("duplicate")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s  dst %d  similarity %.2f  %s\n",
			a, b, d, phash.Similarity(a, b), verdict)
		return nil
	},
}

func init() {
	distanceCmd.Flags().IntVar(&distanceThreshold, "threshold", 10, "duplicate threshold (0-64)")
	rootCmd.AddCommand(distanceCmd)
}
