//go:build cgo

package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// cgoUniqueViolation reports whether err is a github.com/mattn/go-sqlite3
// unique-constraint error. ok is false when err is not a cgo driver error.
func cgoUniqueViolation(err error) (unique, ok bool) {
	var cgoErr sqlite3.Error
	if errors.As(err, &cgoErr) {
		return cgoErr.ExtendedCode == sqlite3.ErrConstraintUnique, true
	}
	return false, false
}
