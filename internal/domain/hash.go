package domain

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashString returns the stable fingerprint used throughout the store's key
// space and the posts_hash sequence: hash(subscribe_url) for feeds,
// hash(post.link) for posts. blake2b-256 is used in place of the original
// source's process-local DefaultHasher precisely because this hash must be
// stable across restarts and process versions -- it is a durable key, not an
// in-memory map bucket.
func HashString(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
