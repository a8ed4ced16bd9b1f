// Package file implements the local filesystem source for raw extracts:
// discovery of input files in a stable order and sequential-read opening.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local is a filesystem data source bound to one path.
type Local struct{ path string }

// NewLocal returns a Local for path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the path for reading. A context that is already done is
// reported without touching the filesystem. Filesystem errors are wrapped
// with the path and still match errors.Is(err, os.ErrNotExist).
//
// The kernel is told the file will be read front to back (see adviseSequential).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}
