// Package marker decides which collections are readable.
//
// A collection is declared by a file named <collection>.schema.json in the
// marker directory. Only the file's presence matters; its contents are not
// read. Presence is checked on every request so markers can be added or
// removed while the server runs.
package marker

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Suffix is appended to a collection name to form its marker file name.
const Suffix = ".schema.json"

// Checker reports whether a collection has been declared.
type Checker interface {
	Declared(collection string) bool
}

// Dir is a Checker backed by a directory of marker files.
type Dir struct {
	root string
	fsys fs.FS
}

// NewDir returns a Checker for marker files in root.
func NewDir(root string) *Dir {
	return &Dir{root: root, fsys: os.DirFS(root)}
}

// Root returns the marker directory.
func (d *Dir) Root() string {
	return d.root
}

// Declared reports whether <collection>.schema.json exists. Names
// containing path separators are never declared.
func (d *Dir) Declared(collection string) bool {
	if collection == "" || strings.ContainsAny(collection, `/\`) || collection == "." || collection == ".." {
		return false
	}
	info, err := fs.Stat(d.fsys, collection+Suffix)
	return err == nil && !info.IsDir()
}

// List returns the declared collections in name order.
func (d *Dir) List() ([]string, error) {
	matches, err := doublestar.Glob(d.fsys, "*"+Suffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if !d.Declared(strings.TrimSuffix(m, Suffix)) {
			continue
		}
		names = append(names, strings.TrimSuffix(m, Suffix))
	}
	sort.Strings(names)
	return names, nil
}

// Declare creates an empty marker for collection.
func (d *Dir) Declare(collection string) error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.root, collection+Suffix), []byte("{}\n"), 0o644)
}

// Set is an in-memory Checker.
type Set map[string]bool

// Declared implements Checker.
func (s Set) Declared(collection string) bool {
	return s[collection]
}
