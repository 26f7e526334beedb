package storage

import (
	"context"
	"os"
	"path/filepath"
)

// LocalBackend stores blobs on the local filesystem, one file per key.
type LocalBackend struct {
	root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalBackend{root: root}, nil
}

func (l *LocalBackend) path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

func (l *LocalBackend) Put(_ context.Context, key string, data []byte) error {
	full := l.path(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

func (l *LocalBackend) Get(_ context.Context, key string) ([]byte, error) {
	return os.ReadFile(l.path(key))
}

func (l *LocalBackend) Delete(_ context.Context, key string) error {
	err := os.Remove(l.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

var _ Backend = (*LocalBackend)(nil)
