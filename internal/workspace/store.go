// Package workspace reads the starter template and persists generated
// artifacts.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Store reads and writes text files.
type Store interface {
	Read(path string) (string, error)
	Write(path, text string) error
}

// FS is a Store over an afero filesystem. Relative paths resolve against
// root.
type FS struct {
	fs   afero.Fs
	root string
}

// NewFS creates a store rooted at root on fs.
func NewFS(fs afero.Fs, root string) *FS {
	return &FS{fs: fs, root: root}
}

// NewOS creates a store on the host filesystem rooted at root.
func NewOS(root string) *FS {
	return NewFS(afero.NewOsFs(), root)
}

func (s *FS) resolve(path string) string {
	if filepath.IsAbs(path) || s.root == "" {
		return path
	}
	return filepath.Join(s.root, path)
}

// Read returns the content of path.
func (s *FS) Read(path string) (string, error) {
	data, err := afero.ReadFile(s.fs, s.resolve(path))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// Write replaces the content of path, creating parent directories.
func (s *FS) Write(path, text string) error {
	full := s.resolve(path)
	if err := s.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(s.fs, full, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists.
func (s *FS) Exists(path string) (bool, error) {
	_, err := s.fs.Stat(s.resolve(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// WriteJSON persists v as indented JSON.
func WriteJSON(store Store, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	return store.Write(path, string(data)+"\n")
}
