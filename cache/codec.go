package cache

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	magic = "BOLT"
	// containerFormat changes when the container layout changes.
	containerFormat byte = 1
)

// ErrCorrupt is returned when an entry is not a readable record.
var ErrCorrupt = errors.New("corrupt cache record")

// The zstd coders are shared; EncodeAll and DecodeAll are safe for
// concurrent use.
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
)

// Encode serializes rec into the on-disk container: the magic bytes, a
// format byte and the zstd-compressed msgpack body.
func Encode(rec *Record) ([]byte, error) {
	encoder, err := zstdEncoder()
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	body, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	out := make([]byte, 0, len(magic)+1+len(body)/2)
	out = append(out, magic...)
	out = append(out, containerFormat)
	return encoder.EncodeAll(body, out), nil
}

// Decode parses a container produced by Encode.
func Decode(data []byte) (*Record, error) {
	if len(data) < len(magic)+1 || !bytes.Equal(data[:len(magic)], []byte(magic)) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if f := data[len(magic)]; f != containerFormat {
		return nil, fmt.Errorf("%w: unknown container format %d", ErrCorrupt, f)
	}
	decoder, err := zstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	body, err := decoder.DecodeAll(data[len(magic)+1:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var rec Record
	if err := msgpack.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &rec, nil
}
