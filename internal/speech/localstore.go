package speech

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore is the on-disk tier. Files are named after the key stem, so the
// existence of a complete file is the whole cache index.
type LocalStore struct {
	dir string
	ext string
}

// NewLocalStore creates dir if needed. ext is the audio file extension,
// including the dot.
func NewLocalStore(dir, ext string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("local cache dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &LocalStore{dir: dir, ext: ext}, nil
}

// Dir returns the cache directory.
func (s *LocalStore) Dir() string { return s.dir }

// Ext returns the audio file extension.
func (s *LocalStore) Ext() string { return s.ext }

// Path returns the deterministic location of key's audio.
func (s *LocalStore) Path(key Key) string {
	return filepath.Join(s.dir, key.Stem()+s.ext)
}

// Lookup reports whether a usable file exists for key. Empty files are
// treated as absent.
func (s *LocalStore) Lookup(key Key) (path string, size int64, ok bool) {
	path = s.Path(key)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return path, 0, false
	}
	return path, info.Size(), true
}

// Write stores data under key. The data goes to a temporary file in the same
// directory first and is renamed into place, so readers never observe a
// partial file under the final name.
func (s *LocalStore) Write(key Key, data []byte) (string, error) {
	path := s.Path(key)
	tmp, err := os.CreateTemp(s.dir, ".speech-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		// Another writer may have won the race with identical content.
		if _, _, ok := s.Lookup(key); ok {
			_ = os.Remove(tmpPath)
			return path, nil
		}
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename into cache: %w", err)
	}
	return path, nil
}

// Read returns the bytes stored for key.
func (s *LocalStore) Read(key Key) ([]byte, error) {
	return os.ReadFile(s.Path(key))
}

// Remove deletes key's file. Missing files are not an error.
func (s *LocalStore) Remove(key Key) error {
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
