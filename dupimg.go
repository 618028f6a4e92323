// Package dupimg detects near-duplicate images within chat partitions.
//
// Example usage:
//
//	idx, err := dupimg.OpenIndex("data/dupimg.db", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer idx.Close()
//
//	policy := dupimg.NewPolicy(idx, dupimg.PolicyConfig{})
//	out, err := policy.Ingest(ctx, chatID, "family", messageID, dupimg.Photo(jpegBytes), 10)
//	if out.Kind == dupimg.Duplicate {
//	    fmt.Printf("duplicate of %d (dst %d)\n", out.Match.Record, out.Match.Distance)
//	}
package dupimg

import (
	"log/slog"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/hubenschmidt/go-dupimg/event"
	"github.com/hubenschmidt/go-dupimg/index"
	"github.com/hubenschmidt/go-dupimg/match"
	"github.com/hubenschmidt/go-dupimg/monitor"
	"github.com/hubenschmidt/go-dupimg/notify"
	"github.com/hubenschmidt/go-dupimg/phash"
	"github.com/hubenschmidt/go-dupimg/server"
)

// Core type aliases
type (
	Fingerprint = core.Fingerprint
	PartitionID = core.PartitionID
	RecordID    = core.RecordID
	Match       = core.Match
	IndexError  = core.IndexError
)

// Sentinel errors
var (
	ErrDecode           = core.ErrDecode
	ErrDuplicateRecord  = core.ErrDuplicateRecord
	ErrStoreUnavailable = core.ErrStoreUnavailable
	ErrInvalidThreshold = core.ErrInvalidThreshold
)

// Extract computes the perceptual hash of encoded image bytes.
func Extract(data []byte) (Fingerprint, error) {
	return phash.Extract(data)
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b Fingerprint) int {
	return phash.Distance(a, b)
}

// Index aliases
type (
	Index       = index.Index
	MemoryIndex = index.MemoryIndex
)

// OpenIndex creates an index from a DSN; see index.Open.
func OpenIndex(dsn string, logger *slog.Logger) (Index, error) {
	return index.Open(dsn, logger)
}

// NewMemoryIndex creates a new in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return index.NewMemoryIndex()
}

// Policy aliases
type (
	Policy       = match.Policy
	PolicyConfig = match.Config
	Attachment   = match.Attachment
	Outcome      = match.Outcome
	OutcomeKind  = match.OutcomeKind
)

const (
	NotAnImage     = match.NotAnImage
	Recorded       = match.Recorded
	Duplicate      = match.Duplicate
	NoPriorRecords = match.NoPriorRecords
	Closest        = match.Closest
)

// NewPolicy creates a matching policy over idx.
func NewPolicy(idx Index, cfg PolicyConfig) *Policy {
	return match.NewPolicy(idx, cfg)
}

// Photo wraps compressed photo bytes.
func Photo(data []byte) Attachment {
	return match.Photo(data)
}

// Document wraps a file attachment with its MIME type.
func Document(mime string, data []byte) Attachment {
	return match.Document(mime, data)
}

// Event aliases
type (
	Dispatcher   = event.Dispatcher
	Message      = event.Message
	Notification = notify.Notification
)

// NewDispatcher creates a chat message dispatcher.
func NewDispatcher(policy *Policy, sink notify.Sink, threshold int, logger *slog.Logger) (*Dispatcher, error) {
	return event.NewDispatcher(policy, sink, threshold, logger)
}

// Monitor aliases
type (
	MetricsCollector  = monitor.MetricsCollector
	InMemoryCollector = monitor.InMemoryCollector
)

// NewInMemoryCollector creates a new in-memory metrics collector.
func NewInMemoryCollector() *InMemoryCollector {
	return monitor.NewInMemoryCollector()
}

// Server aliases
type (
	Server       = server.Server
	ServerConfig = server.Config
)

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) (*Server, error) {
	return server.New(cfg)
}
