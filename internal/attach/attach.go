// Package attach stores uploaded files and serves them back.
package attach

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// PublicPrefix is the URL path under which stored files are served.
const PublicPrefix = "/uploads/"

// ErrTooLarge is returned when an upload exceeds the size limit.
var ErrTooLarge = errors.New("file too large")

// Store writes uploads into a directory under unique names.
type Store struct {
	dir     string
	maxSize int64
	newName func() string
}

// NewStore creates a Store writing to dir, creating it if needed.
// maxSize <= 0 disables the size check.
func NewStore(dir string, maxSize int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, maxSize: maxSize, newName: defaultName}, nil
}

// WithNames replaces the name generator, for tests.
func (s *Store) WithNames(gen func() string) *Store {
	s.newName = gen
	return s
}

// Dir returns the upload directory.
func (s *Store) Dir() string {
	return s.dir
}

// MaxSize returns the per-file size limit.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

func defaultName() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SaveReader writes src under a unique name and returns its public path.
// Only the original file name's extension is kept. ErrTooLarge is
// returned, and nothing is kept, when src exceeds the size limit.
func (s *Store) SaveReader(filename string, src io.Reader) (string, error) {
	if s.maxSize > 0 {
		src = io.LimitReader(src, s.maxSize+1)
	}

	name := s.newName() + cleanExt(filename)
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(dst.Name())
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write upload: %w", err)
	}
	return PublicPrefix + name, nil
}

// Remove deletes a file previously returned by SaveReader. Unknown paths are
// ignored.
func (s *Store) Remove(publicPath string) error {
	name := strings.TrimPrefix(publicPath, PublicPrefix)
	if name == publicPath || name == "" || strings.ContainsAny(name, `/\`) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// cleanExt returns the file extension when it is short and alphanumeric.
func cleanExt(filename string) string {
	ext := path.Ext(strings.ReplaceAll(filename, `\`, "/"))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return strings.ToLower(ext)
}

// Handler serves stored files under PublicPrefix with cross-origin
// headers. Directory listings are not served.
func (s *Store) Handler() http.Handler {
	files := http.StripPrefix(PublicPrefix, http.FileServer(http.Dir(s.dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, PublicPrefix)
		if name == "" || strings.HasSuffix(name, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		files.ServeHTTP(w, r)
	})
}
