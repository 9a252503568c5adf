package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/shelf/internal/ir"
	"github.com/roach88/shelf/internal/queryir"
)

// UsersTable is the system table holding registered users.
const UsersTable = "users"

// reservedTables are system tables never exposed as collections.
var reservedTables = map[string]bool{
	UsersTable: true,
}

// IsReserved reports whether name is a system table or uses SQLite's
// internal prefix.
func IsReserved(name string) bool {
	lower := strings.ToLower(name)
	return reservedTables[lower] || strings.HasPrefix(lower, "sqlite_")
}

// checkCollection validates a collection name for use by the catalog and
// the generic model.
func checkCollection(name string) error {
	if !ir.ValidIdentifier(name) || IsReserved(name) {
		return fmt.Errorf("%w: %q", ir.ErrInvalidCollection, name)
	}
	return nil
}

// Columns returns the column names of table in declaration order.
// A table that does not exist has zero columns.
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	cols, err := s.columns(ctx, table)
	return cols, s.observe("columns", err)
}

func (s *Store) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return cols, nil
}

// SchemaVersion returns SQLite's schema cookie. It changes whenever any
// table is created or altered.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, "PRAGMA schema_version").Scan(&v)
	if err != nil {
		err = fmt.Errorf("schema version: %w", err)
	}
	return v, s.observe("schema_version", err)
}

// CreateTable creates a collection with the identity column and one TEXT
// column per entry of cols, if it does not already exist.
func (s *Store) CreateTable(ctx context.Context, table string, cols []string) error {
	err := s.createTable(ctx, table, cols)
	return s.observe("create_table", err)
}

func (s *Store) createTable(ctx context.Context, table string, cols []string) error {
	if err := checkCollection(table); err != nil {
		return err
	}
	return s.exec(ctx, queryir.CreateTable{Name: table, Columns: cols})
}

// AddColumn adds one TEXT column to table.
func (s *Store) AddColumn(ctx context.Context, table, col string) error {
	err := s.addColumn(ctx, table, col)
	return s.observe("add_column", err)
}

func (s *Store) addColumn(ctx context.Context, table, col string) error {
	if err := checkCollection(table); err != nil {
		return err
	}
	return s.exec(ctx, queryir.AddColumn{Table: table, Column: col})
}

// Tables lists user tables in name order, excluding SQLite internals.
// System tables such as users are included, matching what the database holds.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	tables, err := s.tables(ctx)
	return tables, s.observe("tables", err)
}

func (s *Store) tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// exec compiles and runs a statement that returns no rows.
func (s *Store) exec(ctx context.Context, q queryir.Query) error {
	query, args, err := s.compiler.Compile(q)
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "exec", "sql", query)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec %q: %w", query, err)
	}
	return nil
}
