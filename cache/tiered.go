package cache

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
)

type MetricsSnapshot struct {
	Hits           uint64
	Misses         uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginReadErr  uint64
	OriginWriteErr uint64
}

type metrics struct {
	hits           atomic.Uint64
	misses         atomic.Uint64
	originReads    atomic.Uint64
	originWrites   atomic.Uint64
	originReadErr  atomic.Uint64
	originWriteErr atomic.Uint64
}

func (m *metrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Hits:           m.hits.Load(),
		Misses:         m.misses.Load(),
		OriginReads:    m.originReads.Load(),
		OriginWrites:   m.originWrites.Load(),
		OriginReadErr:  m.originReadErr.Load(),
		OriginWriteErr: m.originWriteErr.Load(),
	}
}

// TieredBackend serves reads from an in-memory front and falls through to
// an origin backend. Writes go to the origin first.
type TieredBackend struct {
	front   *MemoryBackend
	origin  Backend
	metrics metrics
}

func NewTieredBackend(origin Backend, entries int) (*TieredBackend, error) {
	front, err := NewMemoryBackend(entries)
	if err != nil {
		return nil, err
	}
	return &TieredBackend{front: front, origin: origin}, nil
}

func (b *TieredBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if data, err := b.front.Get(ctx, key); err == nil {
		b.metrics.hits.Add(1)
		return data, nil
	}
	b.metrics.misses.Add(1)
	b.metrics.originReads.Add(1)

	data, err := b.origin.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			b.metrics.originReadErr.Add(1)
		}
		return nil, err
	}
	b.front.Put(ctx, key, data)
	return data, nil
}

func (b *TieredBackend) Put(ctx context.Context, key string, data []byte) error {
	b.metrics.originWrites.Add(1)
	if err := b.origin.Put(ctx, key, data); err != nil {
		b.metrics.originWriteErr.Add(1)
		return err
	}
	return b.front.Put(ctx, key, data)
}

func (b *TieredBackend) Delete(ctx context.Context, key string) error {
	b.front.Delete(ctx, key)
	return b.origin.Delete(ctx, key)
}

func (b *TieredBackend) Clear(ctx context.Context) error {
	b.front.Clear(ctx)
	return b.origin.Clear(ctx)
}

// Metrics returns the hit and origin counters.
func (b *TieredBackend) Metrics() MetricsSnapshot { return b.metrics.snapshot() }

// Close closes the origin when it holds resources.
func (b *TieredBackend) Close() error {
	if c, ok := b.origin.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
