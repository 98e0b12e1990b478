// Package store holds AssetStore adapters. The catalog only sees names
// and bytes; where assets physically live stays behind this boundary.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore serves assets from a directory on disk. Subdirectories are
// ignored; the file name is the catalog name.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) List(ctx context.Context) (map[string]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing asset directory %s: %w", s.dir, err)
	}

	assets := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		assets[e.Name()] = filepath.Join(s.dir, e.Name())
	}
	return assets, nil
}

func (s *LocalStore) Fetch(ctx context.Context, name string) ([]byte, error) {
	// Names come from our own List output, but never trust a name to
	// stay inside the directory.
	path := filepath.Join(s.dir, filepath.Base(name))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading asset %s: %w", name, err)
	}
	return data, nil
}
