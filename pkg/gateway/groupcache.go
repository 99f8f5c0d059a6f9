package gateway

import (
	"sync"
	"time"
)

const groupCacheTTL = 400 * time.Second

type groupEntry struct {
	info    *GroupInfo
	expires time.Time
}

// groupCache holds group metadata for a fixed TTL. Membership events drop
// entries early.
type groupCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]groupEntry
}

func newGroupCache(ttl time.Duration, now func() time.Time) *groupCache {
	return &groupCache{ttl: ttl, now: now, entries: make(map[string]groupEntry)}
}

func (g *groupCache) get(jid string) (*GroupInfo, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[jid]
	if !ok {
		return nil, false
	}
	if !g.now().Before(e.expires) {
		delete(g.entries, jid)
		return nil, false
	}
	return e.info, true
}

func (g *groupCache) put(jid string, info *GroupInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[jid] = groupEntry{info: info, expires: g.now().Add(g.ttl)}
}

func (g *groupCache) invalidate(jid string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, jid)
}
