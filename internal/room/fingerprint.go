package room

import (
	"fmt"
	"time"
)

// fingerprintCapacity bounds the recent-fingerprint set. Oldest entries
// evict first; an unbounded set would leak over a long session.
const fingerprintCapacity = 100

// fingerprintCache remembers recently seen chat fingerprints to suppress
// redelivered duplicates.
type fingerprintCache struct {
	capacity int
	order    []string
	seen     map[string]struct{}
}

func newFingerprintCache(capacity int) *fingerprintCache {
	return &fingerprintCache{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// Observe records a fingerprint and reports whether it was already
// present. Inserting past capacity evicts the oldest entry.
func (c *fingerprintCache) Observe(fingerprint string) (duplicate bool) {
	if _, ok := c.seen[fingerprint]; ok {
		return true
	}
	c.seen[fingerprint] = struct{}{}
	c.order = append(c.order, fingerprint)
	if len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
	}
	return false
}

func (c *fingerprintCache) Len() int { return len(c.order) }

// chatFingerprint derives the dedup key for a chat frame: sender id plus
// server timestamp when one is present, else sender id, name, content and
// the local arrival instant.
func chatFingerprint(senderID, senderName, content string, serverTime, arrival time.Time) string {
	if !serverTime.IsZero() {
		return fmt.Sprintf("%s-%s", senderID, serverTime.UTC().Format(time.RFC3339Nano))
	}
	return fmt.Sprintf("%s-%s-%s-%d", senderID, senderName, content, arrival.UnixMilli())
}
