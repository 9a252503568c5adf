package queryir

import "github.com/roach88/shelf/internal/ir"

// Query represents one statement against a collection.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select reads rows from a collection.
//
//	SELECT <columns|*> FROM <from> [WHERE <filter>] ORDER BY <order>
//
// Every select is ordered; the zero Order means identity ascending.
type Select struct {
	From    string    // Collection name
	Columns []string  // nil selects every column
	Filter  Predicate // nil = no filter
	Order   Order
}

func (Select) queryNode() {}

// Order is an ORDER BY clause on a single column.
type Order struct {
	Column string // empty means the identity column
	Desc   bool
}

// Insert adds one row. An empty Values record inserts a row of defaults.
type Insert struct {
	Into   string
	Values ir.Record
}

func (Insert) queryNode() {}

// Update sets columns on the rows matching Filter. Filter is required.
type Update struct {
	Table  string
	Set    ir.Record
	Filter Predicate
}

func (Update) queryNode() {}

// Delete removes the rows matching Filter. Filter is required.
type Delete struct {
	From   string
	Filter Predicate
}

func (Delete) queryNode() {}

// CreateTable creates a collection table if it is not already present.
// The identity column is implicit; every listed column is declared TEXT.
type CreateTable struct {
	Name    string
	Columns []string
}

func (CreateTable) queryNode() {}

// AddColumn extends a collection with one TEXT column.
type AddColumn struct {
	Table  string
	Column string
}

func (AddColumn) queryNode() {}

// Equals matches rows where Column equals Value.
// A Null value matches rows where the column IS NULL.
type Equals struct {
	Column string
	Value  ir.Value
}

func (Equals) predicateNode() {}

// And matches rows satisfying every predicate. An empty And matches all rows.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// ByID is shorthand for an identity equality filter.
func ByID(id int64) Equals {
	return Equals{Column: ir.IdentityColumn, Value: ir.Int(id)}
}

// Matching builds an And of Equals predicates from a criteria record,
// in the record's field order.
func Matching(criteria ir.Record) And {
	preds := make([]Predicate, 0, criteria.Len())
	for _, f := range criteria.Fields() {
		preds = append(preds, Equals{Column: f.Name, Value: f.Value})
	}
	return And{Predicates: preds}
}
