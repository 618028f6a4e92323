// Command dupimg detects near-duplicate images per chat partition.
//
// Usage:
//
//	dupimg [flags] <command> [args]
//
// Commands:
//
//	serve     - run the HTTP event server
//	hash      - print the perceptual hash of image files
//	distance  - Hamming distance between two images or hashes
//	ingest    - run one image through the duplicate check and record it
//	compare   - find the closest stored image to a file
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hubenschmidt/go-dupimg/config"
	"github.com/hubenschmidt/go-dupimg/logging"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dsnFlag    string
	levelFlag  string
	formatFlag string
)

var rootCmd = &cobra.Command{
	Use:           "dupimg",
	Short:         "Near-duplicate image detection",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", getEnvOr("DUPIMG_CONFIG", ""), "YAML config file")
	pf.StringVar(&dsnFlag, "dsn", "", "index DSN (postgres://, badger://, sqlite path, :memory:)")
	pf.StringVar(&levelFlag, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&formatFlag, "log-format", "", "log format (text, json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig applies the persistent flags over file and environment settings.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("dsn") {
		cfg.DatabaseDSN = dsnFlag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = levelFlag
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = formatFlag
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := logging.New(cfg.LogFormat, level)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
