package store

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/shelf/internal/ir"
	"github.com/roach88/shelf/internal/metrics"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	require.NoError(t, err, "Open() failed")
	t.Cleanup(func() { s.Close() })
	return s
}

// createMeteredStore creates a test store recording into a fresh registry.
func createMeteredStore(t *testing.T) (*Store, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	return createTestStore(t, WithMetrics(m)), m
}

// textRecord builds a record from alternating name/value pairs.
func textRecord(pairs ...string) ir.Record {
	var r ir.Record
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], ir.Text(pairs[i+1]))
	}
	return r
}

// idOf returns the integer id of a stored record.
func idOf(t *testing.T, rec ir.Record) int64 {
	t.Helper()
	v, ok := rec.Get(ir.IdentityColumn)
	require.True(t, ok, "record has no id")
	id, ok := ir.Int64(v)
	require.True(t, ok, "id is not an integer: %#v", v)
	return id
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
