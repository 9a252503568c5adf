// Package querysql compiles queryir statements to parameterized SQLite SQL.
//
// Identifiers are validated by queryir.Validate and then double-quoted;
// values are never interpolated and always travel as ? parameters.
package querysql
