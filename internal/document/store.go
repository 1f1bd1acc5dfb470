package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore writes rendered artifacts under a flat directory, referenced by
// relative path. No deduplication and no durability guarantee beyond the
// filesystem itself.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Save(ctx context.Context, a *Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create document dir: %w", err)
	}

	full := filepath.Join(s.dir, a.Filename)
	if err := os.WriteFile(full, a.Data, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	a.Path = filepath.ToSlash(filepath.Join(filepath.Base(s.dir), a.Filename))
	return nil
}
