package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/shelf/internal/ir"
)

// Validate checks that every identifier in q is safe to interpolate and that
// the statement has the shape the store allows (no unfiltered update or
// delete, no writes to the identity column, no duplicate columns).
//
// Validate is a pure function with no side effects.
func Validate(q Query) error {
	switch query := q.(type) {
	case nil:
		return fmt.Errorf("nil query")
	case Select:
		if err := checkTable(query.From); err != nil {
			return err
		}
		for _, col := range query.Columns {
			if err := checkColumn(col); err != nil {
				return err
			}
		}
		if query.Order.Column != "" {
			if err := checkColumn(query.Order.Column); err != nil {
				return fmt.Errorf("order: %w", err)
			}
		}
		return validatePredicate(query.Filter)
	case Insert:
		if err := checkTable(query.Into); err != nil {
			return err
		}
		return checkWritable(query.Values.Keys())
	case Update:
		if err := checkTable(query.Table); err != nil {
			return err
		}
		if query.Set.Len() == 0 {
			return fmt.Errorf("update sets no columns")
		}
		if err := checkWritable(query.Set.Keys()); err != nil {
			return err
		}
		if query.Filter == nil {
			return fmt.Errorf("update requires a filter")
		}
		return validatePredicate(query.Filter)
	case Delete:
		if err := checkTable(query.From); err != nil {
			return err
		}
		if query.Filter == nil {
			return fmt.Errorf("delete requires a filter")
		}
		return validatePredicate(query.Filter)
	case CreateTable:
		if err := checkTable(query.Name); err != nil {
			return err
		}
		return checkWritable(query.Columns)
	case AddColumn:
		if err := checkTable(query.Table); err != nil {
			return err
		}
		return checkWritable([]string{query.Column})
	default:
		return fmt.Errorf("unsupported query type: %T", q)
	}
}

func validatePredicate(p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case Equals:
		if pred.Value == nil {
			return fmt.Errorf("equals %q: nil value", pred.Column)
		}
		return checkColumn(pred.Column)
	case And:
		for i, inner := range pred.Predicates {
			if err := validatePredicate(inner); err != nil {
				return fmt.Errorf("and[%d]: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func checkTable(name string) error {
	if !ir.ValidIdentifier(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

func checkColumn(name string) error {
	if !ir.ValidIdentifier(name) {
		return fmt.Errorf("invalid column name %q", name)
	}
	return nil
}

// checkWritable validates user-writable columns: valid, not the identity,
// and unique under SQLite's case-insensitive comparison.
func checkWritable(cols []string) error {
	seen := make(map[string]bool, len(cols))
	for _, col := range cols {
		if err := checkColumn(col); err != nil {
			return err
		}
		if ir.IsIdentity(col) {
			return fmt.Errorf("column %q is the identity column", col)
		}
		folded := strings.ToLower(col)
		if seen[folded] {
			return fmt.Errorf("duplicate column %q", col)
		}
		seen[folded] = true
	}
	return nil
}
