package redis

import (
	"time"

	"github.com/redis/rueidis"
)

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client, now func() time.Time) *Store {
	return newStore(c, Config{Now: now})
}
