package schema

import (
	"context"
	"strings"
)

// Catalog reads a table's current shape.
type Catalog interface {
	// Columns returns the table's column names; none if it does not exist.
	Columns(ctx context.Context, table string) ([]string, error)

	// SchemaVersion returns a counter that changes on every DDL statement.
	SchemaVersion(ctx context.Context) (int64, error)
}

// Snapshot is a table's column set at the moment it was read.
type Snapshot struct {
	Collection string
	Columns    []string
}

// Exists reports whether the table existed when the snapshot was taken.
func (s Snapshot) Exists() bool {
	return len(s.Columns) > 0
}

// Has reports whether the table has column name, compared
// case-insensitively.
func (s Snapshot) Has(name string) bool {
	for _, col := range s.Columns {
		if strings.EqualFold(col, name) {
			return true
		}
	}
	return false
}

// Take reads a fresh snapshot of collection. It costs one catalog read.
func Take(ctx context.Context, c Catalog, collection string) (Snapshot, error) {
	cols, err := c.Columns(ctx, collection)
	if err != nil {
		return Snapshot{}, &Error{Code: ErrCodeIntrospection, Collection: collection, Err: err}
	}
	return Snapshot{Collection: collection, Columns: cols}, nil
}
