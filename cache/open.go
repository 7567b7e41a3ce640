package cache

import (
	"context"
	"fmt"
)

// Backend kinds accepted by Open.
const (
	KindNone     = "none"
	KindMemory   = "memory"
	KindFile     = "file"
	KindS3       = "s3"
	KindPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Kind     string
	Dir      string // file
	MaxBytes int64  // file
	Entries  int    // memory, and the front tier of remote backends
	S3       S3Config
	DSN      string // postgres
	// Tiered puts an in-memory LRU in front of the s3 and postgres backends.
	Tiered bool
}

// Open builds the backend described by opts. KindNone yields a nil backend
// and no error.
func Open(ctx context.Context, opts Options) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch opts.Kind {
	case KindNone:
		return nil, nil
	case KindMemory:
		return NewMemoryBackend(opts.Entries)
	case "", KindFile:
		dir := opts.Dir
		if dir == "" {
			if dir, err = DefaultDir(); err != nil {
				return nil, fmt.Errorf("cache dir: %w", err)
			}
		}
		return NewFileBackend(dir, opts.MaxBytes), nil
	case KindS3:
		b, err = NewS3Backend(opts.S3)
	case KindPostgres:
		b, err = OpenPostgres(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Kind)
	}
	if err != nil {
		return nil, err
	}
	if opts.Tiered {
		return NewTieredBackend(b, opts.Entries)
	}
	return b, nil
}
