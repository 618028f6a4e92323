// Package index stores partition-scoped image fingerprints and answers
// exact nearest-neighbor queries over Hamming distance.
package index

import (
	"context"
	"fmt"

	"github.com/hubenschmidt/go-dupimg/core"
)

// Index is an append-only collection of fingerprints grouped by partition.
type Index interface {
	// QueryNearest returns the record in partition closest to fp whose
	// distance is at most threshold, skipping exclude when it is non-nil.
	// Ties on distance go to the smallest record id. It returns nil when
	// no record qualifies.
	QueryNearest(ctx context.Context, partition core.PartitionID, fp core.Fingerprint, threshold int, exclude *core.RecordID) (*core.Match, error)

	// Insert upserts the partition label and appends the record as one
	// atomic unit. It fails with core.ErrDuplicateRecord when the record
	// id is already used in the partition.
	Insert(ctx context.Context, partition core.PartitionID, label string, record core.RecordID, fp core.Fingerprint) error

	// Close releases resources.
	Close() error
}

// Inspector is implemented by indexes that can describe a partition.
type Inspector interface {
	// Label returns the partition's latest label; ok is false when the
	// partition has no records.
	Label(ctx context.Context, partition core.PartitionID) (label string, ok bool, err error)

	// Count returns the number of records stored in the partition.
	Count(ctx context.Context, partition core.PartitionID) (int, error)
}

// nearest accumulates the best candidate of a scan.
type nearest struct {
	query     core.Fingerprint
	threshold int
	exclude   *core.RecordID
	best      *core.Match
}

func newNearest(fp core.Fingerprint, threshold int, exclude *core.RecordID) *nearest {
	return &nearest{query: fp, threshold: threshold, exclude: exclude}
}

func (n *nearest) consider(id core.RecordID, fp core.Fingerprint) {
	if n.exclude != nil && id == *n.exclude {
		return
	}
	d := n.query.Distance(fp)
	if d > n.threshold {
		return
	}
	m := core.Match{Record: id, Distance: d}
	if n.best == nil || m.Closer(*n.best) {
		n.best = &m
	}
}

func duplicateError(partition core.PartitionID, record core.RecordID) error {
	return core.NewIndexError("insert", partition, fmt.Errorf("%w: record %d", core.ErrDuplicateRecord, record))
}

var (
	_ Index     = (*MemoryIndex)(nil)
	_ Index     = (*SQLiteIndex)(nil)
	_ Index     = (*PostgresIndex)(nil)
	_ Index     = (*BadgerIndex)(nil)
	_ Inspector = (*MemoryIndex)(nil)
	_ Inspector = (*SQLiteIndex)(nil)
	_ Inspector = (*PostgresIndex)(nil)
	_ Inspector = (*BadgerIndex)(nil)
)
