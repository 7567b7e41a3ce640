package cache

import (
	"crypto/sha256"
	"fmt"
)

// Key returns the cache key for a module: a hex hash of its resource
// location and source text.
func Key(location, source string) string {
	h := sha256.New()
	h.Write([]byte(location))
	h.Write([]byte{0}) // separator
	h.Write([]byte(source))
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}
