package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// FileStore guarda cada clave como <dir>/<key>.json.
// Escribe a un temporal y renombra; antes de sobrescribir deja <key>.json.bak.
type FileStore struct {
	dir string
}

// NewFileStore crea el directorio si no existe.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage.NewFileStore: mkdir %q: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(strings.ReplaceAll(key, "/", "_"))+".json")
}

// Load lee la clave. domain.ErrNotFound si el fichero no existe.
func (s *FileStore) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage.FileStore.Load %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.FileStore.Load %s: %w", key, err)
	}
	return data, nil
}

// Save escribe de forma atómica con copia .bak del contenido anterior.
func (s *FileStore) Save(_ context.Context, key string, data []byte) error {
	target := s.path(key)

	tmp, err := os.CreateTemp(s.dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("storage.FileStore.Save %s: temp: %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage.FileStore.Save %s: write: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage.FileStore.Save %s: sync: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage.FileStore.Save %s: close: %w", key, err)
	}

	if prev, err := os.ReadFile(target); err == nil {
		if err := os.WriteFile(target+".bak", prev, 0o644); err != nil {
			return fmt.Errorf("storage.FileStore.Save %s: backup: %w", key, err)
		}
	}

	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("storage.FileStore.Save %s: rename: %w", key, err)
	}
	return nil
}

// Close no hace nada; existe por ports.StateStore.
func (s *FileStore) Close() error { return nil }
