package index

import (
	"context"
	"os"
	"testing"

	"github.com/hubenschmidt/go-dupimg/logging"
	"github.com/stretchr/testify/require"
)

// TestPostgresIndexContract runs against a live database when
// DUPIMG_TEST_POSTGRES_DSN is set. Each subtest truncates the tables.
func TestPostgresIndexContract(t *testing.T) {
	dsn := os.Getenv("DUPIMG_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DUPIMG_TEST_POSTGRES_DSN not set")
	}

	runContract(t, func(t *testing.T) indexUnderTest {
		idx, err := NewPostgresIndex(dsn, logging.Noop())
		require.NoError(t, err)
		t.Cleanup(func() { idx.Close() })

		_, err = idx.db.ExecContext(context.Background(), `TRUNCATE images, chats`)
		require.NoError(t, err)
		return idx
	})
}
