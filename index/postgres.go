package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/hubenschmidt/go-dupimg/index/migrations"
	"github.com/hubenschmidt/go-dupimg/logging"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresIndex implements Index using PostgreSQL
type PostgresIndex struct {
	db *sql.DB
}

// NewPostgresIndex connects to PostgreSQL and applies the schema.
func NewPostgresIndex(dsn string, logger *slog.Logger) (*PostgresIndex, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := runPostgresMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logging.OrDefault(logger).Info("initialized postgres index", "component", "index")
	return &PostgresIndex{db: db}, nil
}

func runPostgresMigrations(ctx context.Context, db *sql.DB) error {
	data, err := migrations.Postgres.ReadFile("postgres/001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	_, err = db.ExecContext(ctx, string(data))
	if err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

func (s *PostgresIndex) QueryNearest(ctx context.Context, partition core.PartitionID, fp core.Fingerprint, threshold int, exclude *core.RecordID) (*core.Match, error) {
	if err := core.ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	var ex *int64
	if exclude != nil {
		v := int64(*exclude)
		ex = &v
	}

	var m core.Match
	err := s.db.QueryRowContext(ctx, `
		SELECT
			message_id,
			bit_count((phash # $1)::bit(64)) AS distance
		FROM images
		WHERE chat_id = $2
			AND bit_count((phash # $1)::bit(64)) <= $3
			AND ($4::BIGINT IS NULL OR message_id != $4)
		ORDER BY distance ASC, message_id ASC
		LIMIT 1`,
		fp.Int64(), int64(partition), threshold, ex,
	).Scan(&m.Record, &m.Distance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, core.Unavailable("query nearest", partition, err)
	}
	return &m, nil
}

// Insert upserts the chat title and inserts the image in a single
// statement, so a failure leaves neither behind.
func (s *PostgresIndex) Insert(ctx context.Context, partition core.PartitionID, label string, record core.RecordID, fp core.Fingerprint) error {
	_, err := s.db.ExecContext(ctx, `
		WITH ensure_chat AS (
			INSERT INTO chats (id, title)
			VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE
			SET title = EXCLUDED.title
		)
		INSERT INTO images (chat_id, message_id, phash)
		VALUES ($1, $3, $4)`,
		int64(partition), label, int64(record), fp.Int64(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return duplicateError(partition, record)
		}
		return core.Unavailable("insert", partition, err)
	}
	return nil
}

func (s *PostgresIndex) Label(ctx context.Context, partition core.PartitionID) (string, bool, error) {
	var title string
	err := s.db.QueryRowContext(ctx, `SELECT title FROM chats WHERE id = $1`, int64(partition)).Scan(&title)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, core.Unavailable("label", partition, err)
	}
	return title, true, nil
}

func (s *PostgresIndex) Count(ctx context.Context, partition core.PartitionID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images WHERE chat_id = $1`, int64(partition)).Scan(&n)
	if err != nil {
		return 0, core.Unavailable("count", partition, err)
	}
	return n, nil
}

func (s *PostgresIndex) Close() error {
	return s.db.Close()
}
