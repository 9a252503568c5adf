package ir

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxIdentifierLength bounds collection and column names.
const MaxIdentifierLength = 64

// IdentityColumn is the system-assigned, never user-writable key column.
const IdentityColumn = "id"

// ErrInvalidCollection is returned when a path segment cannot name a collection.
var ErrInvalidCollection = errors.New("invalid collection name")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s may be used as a table or column name.
// Only identifiers passing this check are ever interpolated into SQL text.
func ValidIdentifier(s string) bool {
	return len(s) <= MaxIdentifierLength && identifierPattern.MatchString(s)
}

// IsIdentity reports whether name refers to the identity column.
// SQLite identifiers are case-insensitive, so "ID" is the identity too.
func IsIdentity(name string) bool {
	return strings.EqualFold(name, IdentityColumn)
}

// NormalizeCollection maps a raw path segment to a collection name.
//
// The segment is NFC normalized and lower-cased, and every rune outside
// [a-z0-9_] becomes '_'. The result must be a valid identifier and must not
// use SQLite's reserved "sqlite_" prefix.
func NormalizeCollection(raw string) (string, error) {
	lowered := strings.ToLower(norm.NFC.String(raw))

	var b strings.Builder
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	name := b.String()
	if !ValidIdentifier(name) || strings.HasPrefix(name, "sqlite_") {
		return "", ErrInvalidCollection
	}
	return name, nil
}
