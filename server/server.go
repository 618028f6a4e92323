package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/hubenschmidt/go-dupimg/event"
	"github.com/hubenschmidt/go-dupimg/index"
	"github.com/hubenschmidt/go-dupimg/logging"
	"github.com/hubenschmidt/go-dupimg/match"
	"github.com/hubenschmidt/go-dupimg/monitor"
	"github.com/hubenschmidt/go-dupimg/notify"
)

const defaultMaxBodyBytes = 20 << 20

// Config configures a new Server instance.
type Config struct {
	Index     index.Index
	Threshold int

	Extractor match.Extractor          // Optional: defaults to the pHash extractor
	Collector monitor.MetricsCollector // Optional: defaults to an in-memory collector
	Sink      notify.Sink              // Optional: defaults to logging each notification
	Logger    *slog.Logger

	MaxBodyBytes int64
}

// metricsExporter is implemented by collectors that serve a scrape endpoint.
type metricsExporter interface {
	Handler() http.Handler
}

// metricsResetter is implemented by collectors whose summary can be cleared.
type metricsResetter interface {
	Reset()
}

// Server exposes the matching policy over HTTP.
type Server struct {
	index      index.Index
	policy     *match.Policy
	dispatcher *event.Dispatcher
	sink       notify.Sink
	collector  monitor.MetricsCollector
	logger     *slog.Logger
	threshold  int
	maxBody    int64
}

// New creates a new Server with the given configuration. The server owns
// cfg.Index and closes it in Close.
func New(cfg Config) (*Server, error) {
	if cfg.Index == nil {
		return nil, errors.New("server: index is required")
	}
	if err := core.ValidateThreshold(cfg.Threshold); err != nil {
		return nil, err
	}

	logger := logging.OrDefault(cfg.Logger)

	collector := cfg.Collector
	if collector == nil {
		collector = monitor.NewInMemoryCollector()
	}

	sink := cfg.Sink
	if sink == nil {
		sink = notify.LogSink{Logger: logger}
	}

	policy := match.NewPolicy(cfg.Index, match.Config{
		Extractor: cfg.Extractor,
		Logger:    logger,
		Collector: collector,
	})

	dispatcher, err := event.NewDispatcher(policy, sink, cfg.Threshold, logger)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	return &Server{
		index:      cfg.Index,
		policy:     policy,
		dispatcher: dispatcher,
		sink:       sink,
		collector:  collector,
		logger:     logger,
		threshold:  cfg.Threshold,
		maxBody:    maxBody,
	}, nil
}

// Close closes the server and releases resources.
func (s *Server) Close() error {
	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	return nil
}

// Handler returns an http.Handler for the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics/summary", s.handleMetricsSummary)
	if exp, ok := s.collector.(metricsExporter); ok {
		mux.Handle("GET /metrics", exp.Handler())
	}
	if _, ok := s.collector.(metricsResetter); ok {
		mux.HandleFunc("POST /metrics/reset", s.handleMetricsReset)
	}

	mux.HandleFunc("POST /events", s.handleEvent)

	mux.HandleFunc("GET /partitions/{partition}", s.handlePartition)
	mux.HandleFunc("POST /partitions/{partition}/ingest", s.handleIngest)
	mux.HandleFunc("POST /partitions/{partition}/compare", s.handleCompare)

	return corsMiddleware(mux)
}
