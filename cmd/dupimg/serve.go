package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hubenschmidt/go-dupimg/index"
	"github.com/hubenschmidt/go-dupimg/monitor"
	"github.com/hubenschmidt/go-dupimg/phash"
	"github.com/hubenschmidt/go-dupimg/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr      string
	serveThreshold int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP event server",
	Long: `Serve the duplicate-detection API:

  POST /events                              JSON chat message with base64 attachments
  POST /partitions/{partition}/ingest       raw image body, ?record_id=&label=&threshold=
  POST /partitions/{partition}/compare      raw image body, ?exclude=
  GET  /partitions/{partition}              partition label and image count
  GET  /metrics/summary                     outcome counters
  GET  /metrics                             Prometheus metrics
  GET  /health`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Addr = serveAddr
		}
		if cmd.Flags().Changed("threshold") {
			cfg.SimilarityThreshold = serveThreshold
		}

		idx, err := index.Open(cfg.DatabaseDSN, logger)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}

		srv, err := server.New(server.Config{
			Index:        idx,
			Threshold:    cfg.SimilarityThreshold,
			Extractor:    &phash.Hasher{MaxPixels: cfg.MaxPixels},
			Collector:    monitor.NewPrometheusCollector(),
			Logger:       logger,
			MaxBodyBytes: cfg.MaxBodyBytes,
		})
		if err != nil {
			idx.Close()
			return err
		}
		defer srv.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		httpSrv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("starting dupimg server", "addr", cfg.Addr, "threshold", cfg.SimilarityThreshold)
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8000", "listen address")
	serveCmd.Flags().IntVar(&serveThreshold, "threshold", 10, "duplicate threshold (0-64)")
	rootCmd.AddCommand(serveCmd)
}
