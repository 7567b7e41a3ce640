// Package cache persists compiled Bolt modules across process runs.
//
// A ModuleCache turns compiled modules into Records, encodes them into a
// compressed container and stores the bytes in a Backend under a key
// derived from the module's location and source. Records compiled by a
// different runtime version or against a different set of globals are
// treated as misses.
package cache

import (
	"context"
	"errors"
)

// ErrNotFound is returned by backends when a key has no entry.
var ErrNotFound = errors.New("cache entry not found")

// Backend stores encoded records. Implementations are safe for concurrent
// use.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
