// Package store provides SQLite-backed storage for shelf collections.
//
// A Store owns one *sql.DB configured for SQLite (WAL mode, a single open
// connection). It serves three kinds of callers:
//
//   - the schema package, through the catalog methods Columns,
//     SchemaVersion, CreateTable and AddColumn;
//   - the resource endpoints and extensions, through Model, a minimal
//     generic data-access object bound to one collection;
//   - the auth package, through the users system table.
//
// Collection and column names are validated identifiers and are always
// double-quoted in SQL text. Values are always bound parameters.
//
// # Ordering
//
// List returns records newest first (id DESC). Find and Tables return
// ascending order. Every SELECT carries an ORDER BY.
package store
