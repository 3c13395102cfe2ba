package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is an InmemoryStore that writes its document to a file after
// every Set, and restores from that file when opened.
type FileStore struct {
	*InmemoryStore

	mu   sync.Mutex
	path string
}

func OpenFileStore(path string) (*FileStore, error) {
	store := &FileStore{
		InmemoryStore: NewInmemoryStore(),
		path:          path,
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err == nil {
		if err := store.Restore(data); err != nil {
			return nil, err
		}
	}

	return store, nil
}

func (f *FileStore) Set(ctx context.Context, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.InmemoryStore.Set(ctx, key, value); err != nil {
		return err
	}

	return f.flush()
}

func (f *FileStore) Path() string {
	return f.path
}

// flush replaces the file atomically.
func (f *FileStore) flush() error {
	data, err := f.Backup()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*")
	if err != nil {
		return err
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), f.path)
}

var _ Store = (*FileStore)(nil)
