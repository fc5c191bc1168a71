package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore reads and writes local files. The location key is the path;
// the container is ignored.
type FileStore struct{}

var _ Store = FileStore{}

func (FileStore) Open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(loc.Key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", loc.Key, classifyFileError(err))
	}
	return f, nil
}

func (FileStore) Put(ctx context.Context, loc Location, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(loc.Key); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, classifyFileError(err))
		}
	}
	if err := os.WriteFile(loc.Key, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", loc.Key, classifyFileError(err))
	}
	return nil
}

func classifyFileError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	default:
		return err
	}
}
