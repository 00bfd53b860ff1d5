// Package file reads flow inputs from local disk: single files opened as
// streams and line-based list files.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Local opens one file from local disk. A file:// prefix is accepted.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local {
	return &Local{path: strings.TrimPrefix(path, "file://")}
}

// Path returns the filesystem path Local reads.
func (l *Local) Path() string { return l.path }

// Open returns the file for reading. A done context short-circuits before
// the filesystem is touched; filesystem errors wrap the os error so
// errors.Is(err, os.ErrNotExist) works.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("file: open %s: %w", l.path, err)
	}
	return f, nil
}
