//go:build !cgo

package store

// cgoUniqueViolation: without cgo the github.com/mattn/go-sqlite3 driver is a
// stub that never opens a connection, so no cgo driver error can occur.
func cgoUniqueViolation(error) (unique, ok bool) {
	return false, false
}
