package core

import (
	"fmt"
	"math/bits"
	"strconv"
)

// MaxDistance is the largest possible Hamming distance between two fingerprints.
const MaxDistance = 64

type (
	PartitionID int64
	RecordID    int64
)

// Fingerprint is a 64-bit perceptual hash. The first DCT coefficient
// occupies the most significant bit.
type Fingerprint uint64

// Distance returns the Hamming distance between two fingerprints.
func (f Fingerprint) Distance(other Fingerprint) int {
	return bits.OnesCount64(uint64(f ^ other))
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// Int64 returns the bit pattern as a signed value for BIGINT columns.
func (f Fingerprint) Int64() int64 {
	return int64(f)
}

func FingerprintFromInt64(v int64) Fingerprint {
	return Fingerprint(uint64(v))
}

// ParseFingerprint parses the 16 hex digit form produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	if len(s) != 16 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFingerprint, s)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFingerprint, s)
	}
	return Fingerprint(v), nil
}

type Record struct {
	Partition   PartitionID `json:"partition_id"`
	ID          RecordID    `json:"record_id"`
	Fingerprint Fingerprint `json:"fingerprint"`
}

// Match is the closest prior record found by a nearest-neighbor query.
type Match struct {
	Record   RecordID `json:"record_id"`
	Distance int      `json:"distance"`
}

// Closer reports whether m should be preferred over other: smaller
// distance first, then the smaller (earlier) record id.
func (m Match) Closer(other Match) bool {
	if m.Distance != other.Distance {
		return m.Distance < other.Distance
	}
	return m.Record < other.Record
}
