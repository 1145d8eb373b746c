// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

// Package directory persists the manager's layer and project directories as
// JSON objects keyed by id.
//
// A missing file is an empty directory. A corrupt file is reported as an
// error alongside an empty directory so the caller can log it and start
// clean. Writes go to a temporary file that is renamed into place, so a crash
// never leaves a half-written directory behind.
package directory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// ErrCorrupt wraps a directory file that exists but does not parse.
var ErrCorrupt = errors.New("directory file is corrupt")

// File reads and writes one directory file.
type File[T any] struct {
	path string
}

// NewFile returns a File for path.
func NewFile[T any](path string) *File[T] {
	return &File[T]{path: path}
}

// Path returns the file location.
func (f *File[T]) Path() string {
	return f.path
}

// Load reads the directory. It never returns a nil map.
func (f *File[T]) Load() (map[string]T, error) {
	entries := make(map[string]T)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return entries, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return entries, nil
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		return make(map[string]T), fmt.Errorf("%w: %s: %v", ErrCorrupt, f.path, err)
	}
	return entries, nil
}

// Save writes the directory atomically.
func (f *File[T]) Save(entries map[string]T) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal directory: %w", err)
	}

	return WriteAtomic(f.path, data)
}

// WriteAtomic writes data to a temporary file next to path and renames it
// into place, creating the parent directory when needed.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
