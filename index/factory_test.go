package index

import (
	"path/filepath"
	"testing"

	"github.com/hubenschmidt/go-dupimg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		dsn  string
		want any
	}{
		{"", &MemoryIndex{}},
		{":memory:", &MemoryIndex{}},
		{"badger://", &BadgerIndex{}},
		{"badger://" + filepath.Join(dir, "kv"), &BadgerIndex{}},
		{filepath.Join(dir, "plain.db"), &SQLiteIndex{}},
		{"sqlite://" + filepath.Join(dir, "scheme.db"), &SQLiteIndex{}},
	}

	for _, tc := range cases {
		t.Run(tc.dsn, func(t *testing.T) {
			idx, err := Open(tc.dsn, logging.Noop())
			require.NoError(t, err)
			defer idx.Close()
			assert.IsType(t, tc.want, idx)
		})
	}
}
