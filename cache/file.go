package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultMaxBytes caps the size of a file cache directory.
const DefaultMaxBytes = 512 * 1024 * 1024 // 512 MB

const fileExt = ".bolc"

// DefaultDir returns the per-user directory for the file cache.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "bolt", "modules"), nil
}

// FileBackend stores one file per entry in a directory. Reading an entry
// touches it; writes evict the least recently used entries once the
// directory grows past its cap.
type FileBackend struct {
	dir      string
	maxBytes int64
	mu       sync.Mutex // serializes eviction
}

// NewFileBackend returns a backend rooted at dir. A non-positive maxBytes
// selects DefaultMaxBytes.
func NewFileBackend(dir string, maxBytes int64) *FileBackend {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &FileBackend{dir: dir, maxBytes: maxBytes}
}

// Dir returns the cache directory.
func (b *FileBackend) Dir() string { return b.dir }

func (b *FileBackend) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\.`) {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return filepath.Join(b.dir, key+fileExt), nil
}

func (b *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	now := time.Now()
	os.Chtimes(p, now, now)
	return data, nil
}

func (b *FileBackend) Put(_ context.Context, key string, data []byte) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	b.evict()
	return nil
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every entry. Other files in the directory are left alone.
func (b *FileBackend) Clear(_ context.Context) error {
	entries, err := os.ReadDir(b.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		if err := os.Remove(filepath.Join(b.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// evict removes the oldest entries until the directory is under the cap.
func (b *FileBackend) evict() {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return
	}

	type entry struct {
		path    string
		size    int64
		modTime time.Time
	}

	var files []entry
	var totalSize int64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, entry{path: filepath.Join(b.dir, e.Name()), size: info.Size(), modTime: info.ModTime()})
		totalSize += info.Size()
	}

	if totalSize <= b.maxBytes {
		return
	}

	// Oldest first.
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	for _, f := range files {
		if totalSize <= b.maxBytes {
			break
		}
		os.Remove(f.path)
		totalSize -= f.size
	}
}
