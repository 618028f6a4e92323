package index

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hubenschmidt/go-dupimg/logging"
)

const badgerScheme = "badger://"

// Open creates an index based on the DSN.
//   - Empty DSN or ":memory:": in-memory index
//   - postgres:// or postgresql://: PostgreSQL
//   - badger://<dir>: BadgerDB at dir (in-memory when dir is empty)
//   - Anything else: SQLite at the specified path
func Open(dsn string, logger *slog.Logger) (Index, error) {
	logger = logging.OrDefault(logger)

	switch {
	case dsn == "" || dsn == ":memory:":
		logger.Info("using in-memory index", "component", "index")
		return NewMemoryIndex(), nil

	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		idx, err := NewPostgresIndex(dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return idx, nil

	case strings.HasPrefix(dsn, badgerScheme):
		dir := strings.TrimPrefix(dsn, badgerScheme)
		idx, err := NewBadgerIndex(BadgerOptions{Dir: dir, InMemory: dir == "", Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("badger: %w", err)
		}
		return idx, nil
	}

	idx, err := NewSQLiteIndex(strings.TrimPrefix(dsn, "sqlite://"), logger)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return idx, nil
}
