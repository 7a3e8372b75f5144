package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore is a flat directory of server-managed files (uploads, icons).
type FileStore struct {
	dir string
}

// StoredFile describes one file in a FileStore.
type StoredFile struct {
	Name    string
	Size    int64
	ModTime time.Time
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path resolves name inside the store. Names with any directory component
// are rejected.
func (s *FileStore) Path(name string) (string, error) {
	if !isSafeFilename(name) {
		return "", invalid("filename", "invalid file name")
	}
	return filepath.Join(s.dir, name), nil
}

// Write stores data under name, replacing any existing file atomically.
func (s *FileStore) Write(name string, data []byte) error {
	fullPath, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// Stat returns ErrNotFound when name does not exist.
func (s *FileStore) Stat(name string) (StoredFile, error) {
	fullPath, err := s.Path(name)
	if err != nil {
		return StoredFile{}, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return StoredFile{}, ErrNotFound
		}
		return StoredFile{}, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return StoredFile{}, ErrNotFound
	}
	return StoredFile{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Remove returns ErrNotFound when name does not exist.
func (s *FileStore) Remove(name string) error {
	fullPath, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// List returns regular, non-hidden files. A missing directory is empty.
func (s *FileStore) List() ([]StoredFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	files := make([]StoredFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, StoredFile{Name: entry.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return files, nil
}

func isSafeFilename(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	return filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}
