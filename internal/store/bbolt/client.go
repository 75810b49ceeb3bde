// Package bbolt implements domain.SubscriptionStore (C3) on top of
// go.etcd.io/bbolt, an embedded ordered key-value store satisfying the
// spec's explicit requirement for one.
package bbolt

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/alanyoungcy/ksbot/internal/domain"
)

var (
	feedBucket    = []byte("feed")
	channelBucket = []byte("channel")
)

// Open opens (creating if absent) the bbolt database at path and ensures
// both top-level buckets exist. bbolt's own commit-time fsync already
// satisfies the spec's "flushes to disk at least every 4s" durability
// bound, so no separate flush timer is run by this package.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, domain.Fatal(fmt.Sprintf("opening store %s", path), err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(feedBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(channelBucket); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, domain.Fatal("initializing store buckets", err)
	}

	return &Store{db: db}, nil
}
