// ABOUTME: TTL cache of recently accepted provider message SIDs
// ABOUTME: CheckAndMark is the single atomic entry point used by the orchestrator

package dedupe

import (
	"sync"
	"time"
)

// Cache remembers message SIDs accepted within the TTL. It is safe for
// concurrent use. Expired entries are swept opportunistically when the
// cache is full, so no background goroutine is needed; provider retry
// windows are minutes, not hours, and the cap keeps memory bounded.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a cache that remembers SIDs for ttl, holding at most maxSize
// entries.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// CheckAndMark reports whether sid was already accepted within the TTL,
// marking it as seen if it was not. Check and mark are one atomic step so
// two concurrent deliveries of the same SID cannot both pass.
func (c *Cache) CheckAndMark(sid string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if t, ok := c.seen[sid]; ok && now.Sub(t) < c.ttl {
		return true
	}

	if len(c.seen) >= c.maxSize {
		c.sweep(now)
	}
	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}
	c.seen[sid] = now
	return false
}

// sweep drops expired entries. Caller holds mu.
func (c *Cache) sweep(now time.Time) {
	for sid, t := range c.seen {
		if now.Sub(t) >= c.ttl {
			delete(c.seen, sid)
		}
	}
}

// evictOldest removes the entry with the oldest timestamp. Linear scan is
// fine at the sizes this cache runs at. Caller holds mu.
func (c *Cache) evictOldest() {
	var (
		oldest   string
		oldestAt time.Time
		found    bool
	)
	for sid, t := range c.seen {
		if !found || t.Before(oldestAt) {
			oldest, oldestAt, found = sid, t, true
		}
	}
	if found {
		delete(c.seen, oldest)
	}
}
