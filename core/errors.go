package core

import (
	"errors"
	"fmt"
)

var (
	ErrDecode             = errors.New("image could not be decoded")
	ErrDuplicateRecord    = errors.New("record already exists in partition")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrInvalidThreshold   = errors.New("threshold must be between 0 and 64")
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
)

type IndexError struct {
	Op        string
	Partition PartitionID
	Err       error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s [partition=%d]: %v", e.Op, e.Partition, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

func NewIndexError(op string, partition PartitionID, err error) *IndexError {
	return &IndexError{Op: op, Partition: partition, Err: err}
}

// Unavailable wraps a backend failure so callers can match it with
// errors.Is(err, ErrStoreUnavailable) while keeping the cause.
func Unavailable(op string, partition PartitionID, err error) *IndexError {
	return NewIndexError(op, partition, fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
}

func ValidateThreshold(threshold int) error {
	if threshold < 0 || threshold > MaxDistance {
		return fmt.Errorf("%w: got %d", ErrInvalidThreshold, threshold)
	}
	return nil
}
