package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBackend checks the contract every backend shares.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, err := b.Get(ctx, "0123456789abcdef")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Put(ctx, "0123456789abcdef", []byte("one")))
	require.NoError(t, b.Put(ctx, "fedcba9876543210", []byte("two")))
	got, err := b.Get(ctx, "0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	require.NoError(t, b.Put(ctx, "0123456789abcdef", []byte("uno")))
	got, err = b.Get(ctx, "0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, []byte("uno"), got)

	require.NoError(t, b.Delete(ctx, "0123456789abcdef"))
	_, err = b.Get(ctx, "0123456789abcdef")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, b.Delete(ctx, "0123456789abcdef"), "deleting a missing key")

	require.NoError(t, b.Clear(ctx))
	_, err = b.Get(ctx, "fedcba9876543210")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBackend(t *testing.T) {
	b, err := NewMemoryBackend(4)
	require.NoError(t, err)
	exerciseBackend(t, b)
}

func TestMemoryBackendEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	b, err := NewMemoryBackend(2)
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, "a", []byte("a")))
	require.NoError(t, b.Put(ctx, "b", []byte("b")))
	_, err = b.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, "c", []byte("c")))

	_, err = b.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = b.Get(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, 2, b.Len())
}

func TestMemoryBackendCopies(t *testing.T) {
	ctx := context.Background()
	b, err := NewMemoryBackend(2)
	require.NoError(t, err)
	data := []byte("abc")
	require.NoError(t, b.Put(ctx, "k", data))
	data[0] = 'X'
	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'Y'
	again, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestFileBackend(t *testing.T) {
	exerciseBackend(t, NewFileBackend(filepath.Join(t.TempDir(), "cache"), 0))
}

func TestFileBackendRejectsPathKeys(t *testing.T) {
	b := NewFileBackend(t.TempDir(), 0)
	ctx := context.Background()
	for _, key := range []string{"", "../x", "a/b", `a\b`} {
		assert.Error(t, b.Put(ctx, key, []byte("x")), key)
		_, err := b.Get(ctx, key)
		assert.Error(t, err, key)
	}
}

func TestFileBackendClearKeepsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	b := NewFileBackend(dir, 0)
	require.NoError(t, b.Put(ctx, "k1", []byte("x")))
	foreign := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(foreign, []byte("keep"), 0o644))

	require.NoError(t, b.Clear(ctx))
	_, err := os.Stat(filepath.Join(dir, "k1"+fileExt))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(foreign)
	assert.NoError(t, err)
}

func TestFileBackendEvictsOldest(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	b := NewFileBackend(dir, 25)

	require.NoError(t, b.Put(ctx, "old", make([]byte, 10)))
	require.NoError(t, b.Put(ctx, "mid", make([]byte, 10)))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old"+fileExt), past, past))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "mid"+fileExt), past.Add(time.Minute), past.Add(time.Minute)))

	// Reading touches the entry, making it the newest.
	_, err := b.Get(ctx, "old")
	require.NoError(t, err)

	require.NoError(t, b.Put(ctx, "new", make([]byte, 10)))

	_, err = b.Get(ctx, "mid")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = b.Get(ctx, "old")
	assert.NoError(t, err)
	_, err = b.Get(ctx, "new")
	assert.NoError(t, err)
}

type failingBackend struct {
	MemoryBackend
	err error
}

func (b *failingBackend) Get(context.Context, string) ([]byte, error) { return nil, b.err }
func (b *failingBackend) Put(context.Context, string, []byte) error { return b.err }

func TestTieredBackend(t *testing.T) {
	origin, err := NewMemoryBackend(8)
	require.NoError(t, err)
	b, err := NewTieredBackend(origin, 4)
	require.NoError(t, err)
	exerciseBackend(t, b)
}

func TestTieredBackendReadThroughAndMetrics(t *testing.T) {
	ctx := context.Background()
	origin, err := NewMemoryBackend(8)
	require.NoError(t, err)
	require.NoError(t, origin.Put(ctx, "k", []byte("v")))
	b, err := NewTieredBackend(origin, 4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := b.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)
	}
	_, err = b.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, b.Put(ctx, "k2", []byte("v2")))

	assert.Equal(t, MetricsSnapshot{
		Hits:         2,
		Misses:       2,
		OriginReads:  2,
		OriginWrites: 1,
	}, b.Metrics())

	// Writes land in the origin too.
	got, err := origin.Get(ctx, "k2")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestTieredBackendOriginErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("origin down")
	b, err := NewTieredBackend(&failingBackend{err: boom}, 4)
	require.NoError(t, err)

	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, b.Put(ctx, "k", []byte("v")), boom)
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, boom, "failed writes are not served from memory")

	m := b.Metrics()
	assert.Equal(t, uint64(2), m.OriginReadErr)
	assert.Equal(t, uint64(1), m.OriginWriteErr)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, Options{Kind: KindNone})
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = Open(ctx, Options{Kind: KindMemory, Entries: 2})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	dir := t.TempDir()
	b, err = Open(ctx, Options{Dir: dir})
	require.NoError(t, err)
	require.IsType(t, &FileBackend{}, b)
	assert.Equal(t, dir, b.(*FileBackend).Dir())

	_, err = Open(ctx, Options{Kind: "floppy"})
	assert.ErrorContains(t, err, `unknown cache backend "floppy"`)

	_, err = Open(ctx, Options{Kind: KindS3})
	assert.ErrorContains(t, err, "s3 endpoint is required")
}

func TestS3Backend(t *testing.T) {
	endpoint := os.Getenv("BOLT_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("BOLT_TEST_S3_ENDPOINT not set")
	}
	b, err := NewS3Backend(S3Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("BOLT_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("BOLT_TEST_S3_SECRET_KEY"),
		Bucket:    "bolt-test",
		Prefix:    t.Name(),
	})
	require.NoError(t, err)
	exerciseBackend(t, b)
}

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("BOLT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("BOLT_TEST_PG_DSN not set")
	}
	b, err := OpenPostgres(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	exerciseBackend(t, b)
}
