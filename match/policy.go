// Package match decides, per inbound image, whether it duplicates an
// earlier image in the same partition.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/hubenschmidt/go-dupimg/index"
	"github.com/hubenschmidt/go-dupimg/logging"
	"github.com/hubenschmidt/go-dupimg/monitor"
	"github.com/hubenschmidt/go-dupimg/phash"
)

// Extractor turns encoded image bytes into a fingerprint.
type Extractor interface {
	Extract(data []byte) (core.Fingerprint, error)
}

// Config holds optional policy collaborators.
type Config struct {
	Extractor Extractor                // default: phash.DefaultHasher
	Logger    *slog.Logger             // default: slog.Default()
	Collector monitor.MetricsCollector // default: no-op
}

// Policy combines fingerprint extraction with index lookups. It keeps no
// state of its own and is safe for concurrent use.
type Policy struct {
	index     index.Index
	extractor Extractor
	logger    *slog.Logger
	collector monitor.MetricsCollector
}

// NewPolicy creates a policy over idx.
func NewPolicy(idx index.Index, cfg Config) *Policy {
	p := &Policy{
		index:     idx,
		extractor: cfg.Extractor,
		logger:    logging.OrDefault(cfg.Logger),
		collector: cfg.Collector,
	}
	if p.extractor == nil {
		p.extractor = phash.DefaultHasher
	}
	if p.collector == nil {
		p.collector = monitor.NewNoOpCollector()
	}
	return p
}

// Ingest classifies img and either reports the duplicate it matches within
// threshold or records its fingerprint under record.
func (p *Policy) Ingest(ctx context.Context, partition core.PartitionID, label string, record core.RecordID, img Attachment, threshold int) (out Outcome, err error) {
	defer p.observe("ingest", time.Now(), &out, &err)

	if err := core.ValidateThreshold(threshold); err != nil {
		return Outcome{}, err
	}

	logger := p.logger.With("partition", int64(partition), "record", int64(record))
	fp, ok := p.fingerprint(ctx, logger, img)
	if !ok {
		return Outcome{Kind: NotAnImage}, nil
	}

	m, err := p.index.QueryNearest(ctx, partition, fp, threshold, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("ingest: %w", err)
	}
	if m != nil {
		logger.DebugContext(ctx, "duplicate image", "match", int64(m.Record), "distance", m.Distance)
		return Outcome{Kind: Duplicate, Match: m, Fingerprint: fp}, nil
	}

	logger.DebugContext(ctx, "new image, adding fingerprint", "label", label, "fingerprint", fp.String())
	if err := p.index.Insert(ctx, partition, label, record, fp); err != nil {
		return Outcome{}, fmt.Errorf("ingest: %w", err)
	}
	return Outcome{Kind: Recorded, Fingerprint: fp}, nil
}

// CompareAgainst finds the closest record to img at any distance, skipping
// exclude (normally the record img itself was stored under).
func (p *Policy) CompareAgainst(ctx context.Context, partition core.PartitionID, img Attachment, exclude core.RecordID) (out Outcome, err error) {
	defer p.observe("compare", time.Now(), &out, &err)

	logger := p.logger.With("partition", int64(partition), "exclude", int64(exclude))
	fp, ok := p.fingerprint(ctx, logger, img)
	if !ok {
		return Outcome{Kind: NotAnImage}, nil
	}

	m, err := p.index.QueryNearest(ctx, partition, fp, core.MaxDistance, &exclude)
	if err != nil {
		return Outcome{}, fmt.Errorf("compare: %w", err)
	}
	if m == nil {
		return Outcome{Kind: NoPriorRecords, Fingerprint: fp}, nil
	}
	return Outcome{Kind: Closest, Match: m, Fingerprint: fp}, nil
}

// fingerprint returns ok=false for anything that is not a usable image.
// Image-typed payloads that fail to decode are logged louder than plain
// non-image attachments.
func (p *Policy) fingerprint(ctx context.Context, logger *slog.Logger, img Attachment) (core.Fingerprint, bool) {
	if !img.IsImage() {
		logger.DebugContext(ctx, "attachment is not an image", "kind", string(img.Kind), "mime", img.MIME)
		return 0, false
	}

	fp, err := p.extractor.Extract(img.Data)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, core.ErrDecode) {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "error decoding image",
			"kind", string(img.Kind), "mime", img.MIME, "bytes", len(img.Data), "error", err)
		return 0, false
	}
	return fp, true
}

func (p *Policy) observe(op string, start time.Time, out *Outcome, err *error) {
	m := monitor.CallMetrics{
		Op:       op,
		Duration: time.Since(start),
		Success:  *err == nil,
	}
	if *err != nil {
		m.Error = (*err).Error()
	} else {
		m.Outcome = out.Kind.String()
	}
	p.collector.Record(m)
}
