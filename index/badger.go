package index

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/hubenschmidt/go-dupimg/logging"
)

// Key layout:
//
//	chat/<partition>            -> label
//	img/<partition>/<record>    -> fingerprint (8 bytes, big-endian)
//
// Ids are encoded big-endian with the sign bit flipped so byte order
// matches numeric order and prefix scans visit records by ascending id.
var (
	chatPrefix  = []byte("chat/")
	imagePrefix = []byte("img/")
)

// BadgerIndex is an Index backed by an embedded BadgerDB.
type BadgerIndex struct {
	db *badger.DB
}

// BadgerOptions configures the BadgerDB index.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool

	// Logger receives badger's warnings and errors. If nil, slog.Default is used.
	Logger *slog.Logger
}

// NewBadgerIndex opens a BadgerDB-backed index.
func NewBadgerIndex(opts BadgerOptions) (*BadgerIndex, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger index: Dir is required for on-disk mode")
	}
	logger := logging.OrDefault(opts.Logger)

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger})
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{logger})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	logger.Info("initialized badger index", "component", "index", "dir", opts.Dir, "in_memory", opts.InMemory)
	return &BadgerIndex{db: db}, nil
}

func encodeID(v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v)^(1<<63))
	return b[:]
}

func decodeID(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

func chatKey(partition core.PartitionID) []byte {
	return append(append([]byte{}, chatPrefix...), encodeID(int64(partition))...)
}

func partitionPrefix(partition core.PartitionID) []byte {
	k := append(append([]byte{}, imagePrefix...), encodeID(int64(partition))...)
	return append(k, '/')
}

func imageKey(partition core.PartitionID, record core.RecordID) []byte {
	return append(partitionPrefix(partition), encodeID(int64(record))...)
}

func (s *BadgerIndex) QueryNearest(ctx context.Context, partition core.PartitionID, fp core.Fingerprint, threshold int, exclude *core.RecordID) (*core.Match, error) {
	if err := core.ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	prefix := partitionPrefix(partition)
	n := newNearest(fp, threshold, exclude)
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := core.RecordID(decodeID(item.Key()[len(prefix):]))
			err := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return fmt.Errorf("record %d: corrupt fingerprint of %d bytes", id, len(val))
				}
				n.consider(id, core.Fingerprint(binary.BigEndian.Uint64(val)))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, core.Unavailable("query nearest", partition, err)
	}
	return n.best, nil
}

// Insert checks and writes in one transaction. Badger detects a
// concurrent transaction writing the same record key as a conflict,
// which is reported as a duplicate.
func (s *BadgerIndex) Insert(ctx context.Context, partition core.PartitionID, label string, record core.RecordID, fp core.Fingerprint) error {
	key := imageKey(partition, record)
	errExists := errors.New("exists")

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return errExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		var val [8]byte
		binary.BigEndian.PutUint64(val[:], uint64(fp))
		if err := txn.Set(chatKey(partition), []byte(label)); err != nil {
			return err
		}
		return txn.Set(key, val[:])
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errExists), errors.Is(err, badger.ErrConflict):
		return duplicateError(partition, record)
	default:
		return core.Unavailable("insert", partition, err)
	}
}

func (s *BadgerIndex) Label(ctx context.Context, partition core.PartitionID) (string, bool, error) {
	var label string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(partition))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		label = string(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, core.Unavailable("label", partition, err)
	}
	return label, true, nil
}

func (s *BadgerIndex) Count(ctx context.Context, partition core.PartitionID) (int, error) {
	prefix := partitionPrefix(partition)
	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.PrefetchValues = false
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, core.Unavailable("count", partition, err)
	}
	return n, nil
}

func (s *BadgerIndex) Close() error {
	return s.db.Close()
}

// badgerLogger forwards badger's warnings and errors to slog and drops
// its info and debug chatter.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{}) {
	b.l.Error(fmt.Sprintf(f, v...), "component", "badger")
}

func (b badgerLogger) Warningf(f string, v ...interface{}) {
	b.l.Warn(fmt.Sprintf(f, v...), "component", "badger")
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
