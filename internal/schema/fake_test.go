package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// fakeMigrator is an in-memory Migrator with injectable failures.
type fakeMigrator struct {
	mu      sync.Mutex
	tables  map[string][]string
	version int64

	columnsErr error
	versionErr error
	createErr  error
	addErr     map[string]error

	// onCreate runs before CreateTable applies, to simulate a concurrent
	// creator.
	onCreate func(f *fakeMigrator)
	// onAdd runs before AddColumn applies, to simulate a concurrent writer.
	onAdd func(f *fakeMigrator, col string)

	calls []string
}

func newFakeMigrator() *fakeMigrator {
	return &fakeMigrator{tables: map[string][]string{}, addErr: map[string]error{}}
}

func (f *fakeMigrator) Columns(_ context.Context, table string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "columns "+table)
	if f.columnsErr != nil {
		return nil, f.columnsErr
	}
	return append([]string(nil), f.tables[table]...), nil
}

func (f *fakeMigrator) SchemaVersion(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "version")
	if f.versionErr != nil {
		return 0, f.versionErr
	}
	return f.version, nil
}

func (f *fakeMigrator) CreateTable(_ context.Context, table string, cols []string) error {
	if f.onCreate != nil {
		f.onCreate(f)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("create %s %v", table, cols))
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.tables[table]; ok {
		return nil
	}
	f.tables[table] = append([]string{"id"}, cols...)
	f.version++
	return nil
}

func (f *fakeMigrator) AddColumn(_ context.Context, table, col string) error {
	if f.onAdd != nil {
		f.onAdd(f, col)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "add "+table+"."+col)
	if err := f.addErr[col]; err != nil {
		return err
	}
	for _, existing := range f.tables[table] {
		if strings.EqualFold(existing, col) {
			return errors.New("duplicate column name: " + col)
		}
	}
	f.tables[table] = append(f.tables[table], col)
	f.version++
	return nil
}

// put sets a table's columns directly.
func (f *fakeMigrator) put(table string, cols ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table] = cols
	f.version++
}

func (f *fakeMigrator) ddlCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, "create ") || strings.HasPrefix(c, "add ") {
			out = append(out, c)
		}
	}
	return out
}
