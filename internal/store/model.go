package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/shelf/internal/ir"
	"github.com/roach88/shelf/internal/queryir"
)

// Model is a generic data-access object bound to one collection.
// It is cheap to create and holds no state beyond the table name.
type Model struct {
	store *Store
	table string
}

// Collection returns the Model for table. The name must be a valid
// identifier and must not be a reserved system table.
func (s *Store) Collection(table string) (*Model, error) {
	if err := checkCollection(table); err != nil {
		return nil, err
	}
	return &Model{store: s, table: table}, nil
}

// Table returns the collection name.
func (m *Model) Table() string {
	return m.table
}

// Insert adds a record and returns it with the assigned id first,
// followed by fields in their given order.
func (m *Model) Insert(ctx context.Context, fields ir.Record) (ir.Record, error) {
	id, err := m.insert(ctx, fields)
	if err := m.store.observe("insert", err); err != nil {
		return ir.Record{}, err
	}
	out := ir.NewRecord(ir.F(ir.IdentityColumn, ir.Int(id)))
	return out.Merge(fields), nil
}

func (m *Model) insert(ctx context.Context, fields ir.Record) (int64, error) {
	query, args, err := m.store.compiler.Compile(queryir.Insert{Into: m.table, Values: fields})
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", m.table, err)
	}
	res, err := m.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", m.table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert into %s: last insert id: %w", m.table, err)
	}
	return id, nil
}

// Get returns the record with the given id, or ErrNotFound.
func (m *Model) Get(ctx context.Context, id int64) (ir.Record, error) {
	recs, err := m.query(ctx, queryir.Select{From: m.table, Filter: queryir.ByID(id)})
	if err == nil && len(recs) == 0 {
		err = ErrNotFound
	}
	if err := m.store.observe("get", err); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ir.Record{}, err
		}
		return ir.Record{}, fmt.Errorf("get %s/%d: %w", m.table, id, err)
	}
	return recs[0], nil
}

// List returns every record, newest first. The result is fully
// materialized before return.
func (m *Model) List(ctx context.Context) ([]ir.Record, error) {
	recs, err := m.query(ctx, queryir.Select{From: m.table, Order: queryir.Order{Desc: true}})
	if err := m.store.observe("list", err); err != nil {
		return nil, fmt.Errorf("list %s: %w", m.table, err)
	}
	return recs, nil
}

// Find returns the records whose columns equal every criteria field,
// in id order. Empty criteria match every record.
func (m *Model) Find(ctx context.Context, criteria ir.Record) ([]ir.Record, error) {
	var filter queryir.Predicate
	if criteria.Len() > 0 {
		filter = queryir.Matching(criteria)
	}
	recs, err := m.query(ctx, queryir.Select{From: m.table, Filter: filter})
	if err := m.store.observe("find", err); err != nil {
		return nil, fmt.Errorf("find %s: %w", m.table, err)
	}
	return recs, nil
}

// Update sets fields on the record with the given id and returns
// {id, fields...}. Returns ErrNotFound when no row matched.
func (m *Model) Update(ctx context.Context, id int64, fields ir.Record) (ir.Record, error) {
	n, err := m.mutate(ctx, queryir.Update{Table: m.table, Set: fields, Filter: queryir.ByID(id)})
	if err == nil && n == 0 {
		err = ErrNotFound
	}
	if err := m.store.observe("update", err); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ir.Record{}, err
		}
		return ir.Record{}, fmt.Errorf("update %s/%d: %w", m.table, id, err)
	}
	out := ir.NewRecord(ir.F(ir.IdentityColumn, ir.Int(id)))
	return out.Merge(fields), nil
}

// Delete removes the record with the given id. Returns ErrNotFound when
// no row matched.
func (m *Model) Delete(ctx context.Context, id int64) error {
	n, err := m.mutate(ctx, queryir.Delete{From: m.table, Filter: queryir.ByID(id)})
	if err == nil && n == 0 {
		err = ErrNotFound
	}
	if err := m.store.observe("delete", err); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete %s/%d: %w", m.table, id, err)
	}
	return nil
}

func (m *Model) mutate(ctx context.Context, q queryir.Query) (int64, error) {
	query, args, err := m.store.compiler.Compile(q)
	if err != nil {
		return 0, err
	}
	res, err := m.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (m *Model) query(ctx context.Context, q queryir.Select) ([]ir.Record, error) {
	query, args, err := m.store.compiler.Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := m.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// scanRecords materializes rows as records keyed by column name in
// table column order.
func scanRecords(rows *sql.Rows) ([]ir.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	recs := []ir.Record{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		fields := make([]ir.Field, len(cols))
		for i, col := range cols {
			fields[i] = ir.F(col, ir.FromColumn(vals[i]))
		}
		recs = append(recs, ir.NewRecord(fields...))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return recs, nil
}
