package store

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// ContentHash returns the hex xxh3 hash of text. Equal hashes are treated
// as equal content.
func ContentHash(text string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(text))
}
