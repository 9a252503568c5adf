package schema

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shelf/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "schema.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SatisfiesMigrator(t *testing.T) {
	var _ Migrator = (*store.Store)(nil)
}

func TestStore_VersionAdvancesOnChange(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()
	r := NewReconciler(s)
	p := NewProvisioner(s, nil, nil)

	plan, err := r.Reconcile(ctx, "widgets", []string{"name"})
	require.NoError(t, err)
	created, err := p.Ensure(ctx, plan)
	require.NoError(t, err)
	assert.Positive(t, created.Version)

	again, err := r.Reconcile(ctx, "widgets", []string{"name", "color"})
	require.NoError(t, err)
	assert.Equal(t, []string{"color"}, again.Missing)
	extended, err := p.Ensure(ctx, again)
	require.NoError(t, err)
	assert.Greater(t, extended.Version, created.Version)

	current, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, current, extended.Version)
}

func TestStore_ConcurrentWritersAddSameColumn(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()
	r := NewReconciler(s)
	p := NewProvisioner(s, nil, nil)

	plan, err := r.Reconcile(ctx, "widgets", []string{"name"})
	require.NoError(t, err)
	_, err = p.Ensure(ctx, plan)
	require.NoError(t, err)

	// Both writers plan against the same snapshot, then race to add.
	plans := make([]Plan, 2)
	for i := range plans {
		plans[i], err = r.Reconcile(ctx, "widgets", []string{"name", "flavor"})
		require.NoError(t, err)
		require.Equal(t, []string{"flavor"}, plans[i].Missing)
	}

	var wg sync.WaitGroup
	results := make([]Changes, 2)
	errs := make([]error, 2)
	for i := range plans {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Ensure(ctx, plans[i])
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	added := len(results[0].Added) + len(results[1].Added)
	tolerated := len(results[0].Tolerated) + len(results[1].Tolerated)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, tolerated)

	cols, err := s.Columns(ctx, "widgets")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "flavor"}, cols)
}
