// Package cache holds fetched day payloads in a buntdb store so completed
// calendar days, which are immutable upstream, are paged only once.
package cache

import (
	"fmt"
	"time"

	"github.com/tidwall/buntdb"
)

type Config struct {
	// Path is a file path or ":memory:".
	Path string `mapstructure:"path"`
}

type DayCache struct {
	db *buntdb.DB
}

func New(c Config) (*DayCache, error) {
	path := c.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open day cache: %w", err)
	}
	return &DayCache{db: db}, nil
}

func dayKey(branchID, day string) string {
	return fmt.Sprintf("page:%s:%s", branchID, day)
}

// Get returns the cached payload for one (branch, day), if present.
func (dc *DayCache) Get(branchID, day string) ([]byte, bool) {
	var payload []byte
	err := dc.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(dayKey(branchID, day))
		if err != nil {
			return err
		}
		payload = []byte(v)
		return nil
	})
	if err != nil {
		return nil, false
	}
	return payload, true
}

// Set stores a day payload. A zero ttl keeps the entry indefinitely; the
// orchestrator passes a short ttl only for the still-open current day.
func (dc *DayCache) Set(branchID, day string, payload []byte, ttl time.Duration) error {
	return dc.db.Update(func(tx *buntdb.Tx) error {
		var opts *buntdb.SetOptions
		if ttl > 0 {
			opts = &buntdb.SetOptions{Expires: true, TTL: ttl}
		}
		_, _, err := tx.Set(dayKey(branchID, day), string(payload), opts)
		return err
	})
}

// Close flushes and closes the underlying store.
func (dc *DayCache) Close() error {
	return dc.db.Close()
}
