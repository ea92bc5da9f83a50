package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStorage writes exports into a local directory
type FileStorage struct {
	dir string
}

// NewFileStorage creates the directory if needed
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}
	return &FileStorage{dir: dir}, nil
}

// Save writes data to a temporary file and renames it into place, so a
// reader never sees a partial export
func (fs *FileStorage) Save(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}

	filePath := filepath.Join(fs.dir, name)
	tempFile := filePath + ".tmp"

	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, filePath); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	log.Printf("[STORAGE] Export written: %s (%d bytes)", filePath, len(data))
	return nil
}

// Load reads an export from the directory
func (fs *FileStorage) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(fs.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	return data, nil
}

// List returns the CSV files in the directory
func (fs *FileStorage) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read export directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes an export file
func (fs *FileStorage) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(fs.dir, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("failed to delete export: %w", err)
	}
	return nil
}

// Location returns the file path of name
func (fs *FileStorage) Location(name string) string {
	return filepath.Join(fs.dir, name)
}

// Close cleans up resources
func (fs *FileStorage) Close() error {
	return nil
}
