package listing

import "time"

// TTL is how long a completed listing is served before a query triggers a
// new refresh.
const TTL = 300 * time.Second

// Clock returns the current time. Tests substitute a controllable clock.
type Clock func() time.Time

// Cache holds the entries of the most recent listing and the time it was
// refreshed. It has no locking of its own: a Cache is only ever touched by
// the Coordinator that owns it, under the Coordinator's lock.
type Cache struct {
	entries     []Entry
	lastRefresh time.Time
	now         Clock
}

// NewCache returns an empty cache stamped with the current time.
func NewCache(now Clock) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{lastRefresh: now(), now: now}
}

// HasExpired reports whether strictly more than TTL has elapsed since the
// last stamp.
func (c *Cache) HasExpired() bool {
	return c.now().Sub(c.lastRefresh) > TTL
}

// Reset clears the entries and stamps the current time. It runs when a
// refresh is initiated, so the TTL window starts before the listing is
// complete.
func (c *Cache) Reset() {
	c.entries = nil
	c.lastRefresh = c.now()
}

// Invalidate clears the entries and zeroes the stamp so the cache reports
// itself expired on the next check.
func (c *Cache) Invalidate() {
	c.entries = nil
	c.lastRefresh = time.Time{}
}

// Append adds e after every entry already present.
func (c *Cache) Append(e Entry) {
	c.entries = append(c.entries, e)
}

// StampNow records the completion time of a refresh.
func (c *Cache) StampNow() {
	c.lastRefresh = c.now()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Age returns the time elapsed since the last stamp.
func (c *Cache) Age() time.Duration {
	return c.now().Sub(c.lastRefresh)
}

// Snapshot is a consistent view of the cache: entries and age come from the
// same refresh cycle.
type Snapshot struct {
	Entries []Entry
	Age     time.Duration
}

// Snapshot returns the current entries and their age. Entries are only ever
// appended and Reset starts a new slice, so the returned slice is capped and
// shared rather than copied.
func (c *Cache) Snapshot() Snapshot {
	n := len(c.entries)
	return Snapshot{Entries: c.entries[:n:n], Age: c.Age()}
}
