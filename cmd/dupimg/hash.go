package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/hubenschmidt/go-dupimg/phash"
	"github.com/spf13/cobra"
)

var hashCmd = &cobra.Command{
	Use:   "hash <file>...",
	Short: "Print the perceptual hash of image files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		results, err := hashFiles(cmd.Context(), &phash.Hasher{MaxPixels: cfg.MaxPixels}, args)
		if err != nil {
			return err
		}

		red := color.New(color.FgRed).SprintFunc()
		failed := 0
		out := cmd.OutOrStdout()
		for _, r := range results {
			if r.Err != nil {
				failed++
				fmt.Fprintf(out, "%s  %s: %v\n", red("error           "), r.Path, r.Err)
				continue
			}
			fmt.Fprintf(out, "%s  %s\n", r.Fingerprint, r.Path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be hashed", failed, len(results))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashCmd)
}
