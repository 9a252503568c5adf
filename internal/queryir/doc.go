// Package queryir describes the statements the generic record store issues,
// independent of SQL text.
//
// Every statement the store runs against a dynamic collection is first
// expressed as a queryir value and then compiled by package querysql. The
// split keeps one rule enforceable in one place: identifiers (table and
// column names) are validated here, and values only ever travel as bound
// parameters.
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so backends can switch
// exhaustively:
//
//	switch q := query.(type) {
//	case Select:
//	case Insert:
//	...
//	}
package queryir
