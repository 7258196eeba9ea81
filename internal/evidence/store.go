package evidence

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Store is a flat, read-only collection of evidence files.
type Store interface {
	// Root describes the store location for logs and errors.
	Root() string
	// List returns the names of all regular entries. Order is
	// store-defined; callers sort when they need determinism.
	List(ctx context.Context) ([]string, error)
	// Open returns the content of the named entry.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Path returns the store-internal location of the named entry.
	Path(name string) string
}

// LocalStore reads evidence from a directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a store rooted at dir. The directory is not
// checked until the first List.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Root returns the evidence directory.
func (s *LocalStore) Root() string { return s.dir }

// Path returns the file path of name inside the directory.
func (s *LocalStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// List returns the names of the regular files in the directory.
func (s *LocalStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "evidence: list")
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Root: s.dir, Cause: err}
		}
		return nil, eris.Wrapf(err, "evidence: read dir %s", s.dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Open opens name for reading. Names that escape the directory are rejected.
func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if name != filepath.Base(name) {
		return nil, eris.Errorf("evidence: invalid name %q", name)
	}
	f, err := os.Open(s.Path(name))
	if err != nil {
		return nil, eris.Wrapf(err, "evidence: open %s", name)
	}
	return f, nil
}
