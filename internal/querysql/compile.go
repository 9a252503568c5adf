package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/shelf/internal/ir"
	"github.com/roach88/shelf/internal/queryir"
)

// SQLCompiler compiles queryir statements to parameterized SQL for SQLite.
//
// Every SELECT carries an ORDER BY so that listing order is deterministic.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a statement to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case queryir.Insert:
		return c.compileInsert(query)
	case queryir.Update:
		return c.compileUpdate(query)
	case queryir.Delete:
		return c.compileDelete(query)
	case queryir.CreateTable:
		return c.compileCreateTable(query), nil, nil
	case queryir.AddColumn:
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT",
			Quote(query.Table), Quote(query.Column)), nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// Quote double-quotes an identifier, doubling any embedded quote.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	cols := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, len(q.Columns))
		for i, col := range q.Columns {
			quoted[i] = Quote(col)
		}
		cols = strings.Join(quoted, ", ")
	}

	where, params, err := c.whereClause(q.Filter)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		cols, Quote(q.From), where, orderKey(q.Order))
	return sql, params, nil
}

// orderKey returns the ORDER BY expression. The identity column is always
// the final tiebreaker.
func orderKey(o queryir.Order) string {
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	col := o.Column
	if col == "" || ir.IsIdentity(col) {
		return fmt.Sprintf("%s %s", Quote(ir.IdentityColumn), dir)
	}
	return fmt.Sprintf("%s %s COLLATE BINARY, %s %s", Quote(col), dir, Quote(ir.IdentityColumn), dir)
}

func (c *SQLCompiler) compileInsert(q queryir.Insert) (string, []any, error) {
	if q.Values.Len() == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", Quote(q.Into)), nil, nil
	}

	fields := q.Values.Fields()
	cols := make([]string, len(fields))
	marks := make([]string, len(fields))
	params := make([]any, len(fields))
	for i, f := range fields {
		cols[i] = Quote(f.Name)
		marks[i] = "?"
		params[i] = ir.Param(f.Value)
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		Quote(q.Into), strings.Join(cols, ", "), strings.Join(marks, ", "))
	return sql, params, nil
}

func (c *SQLCompiler) compileUpdate(q queryir.Update) (string, []any, error) {
	fields := q.Set.Fields()
	sets := make([]string, len(fields))
	params := make([]any, 0, len(fields))
	for i, f := range fields {
		sets[i] = Quote(f.Name) + " = ?"
		params = append(params, ir.Param(f.Value))
	}

	where, whereParams, err := c.whereClause(q.Filter)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("UPDATE %s SET %s%s", Quote(q.Table), strings.Join(sets, ", "), where)
	return sql, append(params, whereParams...), nil
}

func (c *SQLCompiler) compileDelete(q queryir.Delete) (string, []any, error) {
	where, params, err := c.whereClause(q.Filter)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s%s", Quote(q.From), where), params, nil
}

func (c *SQLCompiler) compileCreateTable(q queryir.CreateTable) string {
	defs := make([]string, 0, len(q.Columns)+1)
	defs = append(defs, Quote(ir.IdentityColumn)+" INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, col := range q.Columns {
		defs = append(defs, Quote(col)+" TEXT")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", Quote(q.Name), strings.Join(defs, ", "))
}

func (c *SQLCompiler) whereClause(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	sql, params, err := c.compilePredicate(p)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return " WHERE " + sql, params, nil
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
// Values are never interpolated.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		if _, null := pred.Value.(ir.Null); null {
			return Quote(pred.Column) + " IS NULL", nil, nil
		}
		return Quote(pred.Column) + " = ?", []any{ir.Param(pred.Value)}, nil
	case queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil // vacuous truth
		}
		parts := make([]string, 0, len(pred.Predicates))
		var params []any
		for _, inner := range pred.Predicates {
			sql, innerParams, err := c.compilePredicate(inner)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			params = append(params, innerParams...)
		}
		if len(parts) == 1 {
			return parts[0], params, nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}
