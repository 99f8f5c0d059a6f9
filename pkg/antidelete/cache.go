// Package antidelete keeps recent messages so they can be re-sent when the
// author deletes them for everyone.
package antidelete

import (
	"sync"
	"time"

	"axiombot/pkg/message"
)

// DefaultTTL is how long a message stays recoverable.
const DefaultTTL = 24 * time.Hour

// Entry is one recorded message.
type Entry struct {
	Message  *message.Message
	Recorded time.Time
}

// Cache maps message ids to recorded messages. Entries older than the TTL
// are invisible to Lookup and dropped by Sweep.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCache creates a cache. A nil clock uses time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now, entries: make(map[string]Entry)}
}

// Record stores msg under its id. Messages without an id are ignored; a
// repeated id overwrites the earlier entry.
func (c *Cache) Record(msg *message.Message) {
	if msg == nil || msg.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[msg.ID] = Entry{Message: msg, Recorded: c.now()}
}

// Lookup returns the entry for id if it has not expired.
func (c *Cache) Lookup(id string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok || c.expired(e) {
		return Entry{}, false
	}
	return e, true
}

// Forget removes id.
func (c *Cache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Sweep drops expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) expired(e Entry) bool {
	return !c.now().Before(e.Recorded.Add(c.ttl))
}
