package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries bounds a MemoryBackend created with a non-positive
// size.
const DefaultMemoryEntries = 1024

// MemoryBackend keeps entries in a bounded in-process LRU.
type MemoryBackend struct {
	entries *lru.Cache[string, []byte]
}

func NewMemoryBackend(size int) (*MemoryBackend, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &MemoryBackend{entries: entries}, nil
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := b.entries.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (b *MemoryBackend) Put(_ context.Context, key string, data []byte) error {
	b.entries.Add(key, append([]byte(nil), data...))
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.entries.Remove(key)
	return nil
}

func (b *MemoryBackend) Clear(_ context.Context) error {
	b.entries.Purge()
	return nil
}

// Len returns the number of entries held.
func (b *MemoryBackend) Len() int { return b.entries.Len() }
