package index

import (
	"context"
	"sync"

	"github.com/hubenschmidt/go-dupimg/core"
)

// MemoryIndex is an in-memory index for development and testing.
type MemoryIndex struct {
	mu         sync.RWMutex
	partitions map[core.PartitionID]*memPartition
}

type memPartition struct {
	label   string
	records map[core.RecordID]core.Fingerprint
}

// NewMemoryIndex creates a new in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		partitions: make(map[core.PartitionID]*memPartition),
	}
}

// QueryNearest scans every record of the partition.
func (s *MemoryIndex) QueryNearest(ctx context.Context, partition core.PartitionID, fp core.Fingerprint, threshold int, exclude *core.RecordID) (*core.Match, error) {
	if err := core.ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.partitions[partition]
	if !ok {
		return nil, nil
	}

	n := newNearest(fp, threshold, exclude)
	for id, candidate := range p.records {
		n.consider(id, candidate)
	}
	return n.best, nil
}

// Insert stores the record, updating the partition label.
func (s *MemoryIndex) Insert(ctx context.Context, partition core.PartitionID, label string, record core.RecordID, fp core.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partitions[partition]
	if !ok {
		p = &memPartition{records: make(map[core.RecordID]core.Fingerprint)}
		s.partitions[partition] = p
	}
	if _, exists := p.records[record]; exists {
		return duplicateError(partition, record)
	}

	p.label = label
	p.records[record] = fp
	return nil
}

// Label returns the current label of a partition.
func (s *MemoryIndex) Label(ctx context.Context, partition core.PartitionID) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.partitions[partition]
	if !ok {
		return "", false, nil
	}
	return p.label, true, nil
}

// Count returns the number of records in a partition.
func (s *MemoryIndex) Count(ctx context.Context, partition core.PartitionID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.partitions[partition]
	if !ok {
		return 0, nil
	}
	return len(p.records), nil
}

// Close is a no-op for the in-memory index.
func (s *MemoryIndex) Close() error {
	return nil
}
