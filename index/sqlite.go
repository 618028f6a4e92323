package index

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"path/filepath"
	"strings"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/hubenschmidt/go-dupimg/index/migrations"
	"github.com/hubenschmidt/go-dupimg/logging"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func init() {
	sqlite.MustRegisterDeterministicScalarFunction("hamming", 2, hammingFunc)
}

// hammingFunc is the SQL function hamming(a, b) over two INTEGER fingerprints.
func hammingFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, ok := args[0].(int64)
	if !ok {
		return nil, fmt.Errorf("hamming: argument 1 is %T, want integer", args[0])
	}
	b, ok := args[1].(int64)
	if !ok {
		return nil, fmt.Errorf("hamming: argument 2 is %T, want integer", args[1])
	}
	return int64(bits.OnesCount64(uint64(a ^ b))), nil
}

// SQLiteIndex implements Index using SQLite
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens (creating if needed) a SQLite-backed index at path.
func NewSQLiteIndex(path string, logger *slog.Logger) (*SQLiteIndex, error) {
	if path == "" {
		path = "data/dupimg.db"
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := runSQLiteMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logging.OrDefault(logger).Info("initialized sqlite index", "component", "index", "path", path)
	return &SQLiteIndex{db: db}, nil
}

// sqliteDSN enables WAL and a busy timeout so concurrent writers from
// several connections or processes wait instead of failing.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func runSQLiteMigrations(db *sql.DB) error {
	data, err := migrations.SQLite.ReadFile("sqlite/001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	_, err = db.Exec(string(data))
	if err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) QueryNearest(ctx context.Context, partition core.PartitionID, fp core.Fingerprint, threshold int, exclude *core.RecordID) (*core.Match, error) {
	if err := core.ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	var ex any
	if exclude != nil {
		ex = int64(*exclude)
	}

	var m core.Match
	err := s.db.QueryRowContext(ctx, `
		SELECT message_id, hamming(phash, ?) AS distance
		FROM images
		WHERE chat_id = ?
			AND hamming(phash, ?) <= ?
			AND (? IS NULL OR message_id != ?)
		ORDER BY distance ASC, message_id ASC
		LIMIT 1`,
		fp.Int64(), int64(partition), fp.Int64(), threshold, ex, ex,
	).Scan(&m.Record, &m.Distance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, core.Unavailable("query nearest", partition, err)
	}
	return &m, nil
}

func (s *SQLiteIndex) Insert(ctx context.Context, partition core.PartitionID, label string, record core.RecordID, fp core.Fingerprint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Unavailable("insert", partition, fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chats (id, title) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title`,
		int64(partition), label,
	)
	if err != nil {
		return core.Unavailable("insert", partition, fmt.Errorf("upsert chat: %w", err))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO images (chat_id, message_id, phash) VALUES (?, ?, ?)`,
		int64(partition), int64(record), fp.Int64(),
	)
	if isSQLiteConstraint(err) {
		return duplicateError(partition, record)
	}
	if err != nil {
		return core.Unavailable("insert", partition, fmt.Errorf("insert image: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return core.Unavailable("insert", partition, fmt.Errorf("commit: %w", err))
	}
	return nil
}

func isSQLiteConstraint(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

func (s *SQLiteIndex) Label(ctx context.Context, partition core.PartitionID) (string, bool, error) {
	var title string
	err := s.db.QueryRowContext(ctx, `SELECT title FROM chats WHERE id = ?`, int64(partition)).Scan(&title)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, core.Unavailable("label", partition, err)
	}
	return title, true, nil
}

func (s *SQLiteIndex) Count(ctx context.Context, partition core.PartitionID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images WHERE chat_id = ?`, int64(partition)).Scan(&n)
	if err != nil {
		return 0, core.Unavailable("count", partition, err)
	}
	return n, nil
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
