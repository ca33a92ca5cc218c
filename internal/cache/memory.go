package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	timer     *time.Timer
}

// MemoryCache is an in-process Cache backend with real TTL behaviour.
// Expirations fire off time.AfterFunc timers and feed the same event
// stream contract as the Redis backend.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	sets    map[string]map[string]struct{}
	expired chan string
	closed  bool
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*memoryEntry),
		sets:    make(map[string]map[string]struct{}),
		expired: make(chan string, 256),
	}
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if old, ok := c.entries[key]; ok && old.timer != nil {
		old.timer.Stop()
	}
	e := &memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
		e.timer = time.AfterFunc(ttl, func() { c.expire(key, e) })
	}
	c.entries[key] = e
	return nil
}

// expire kills exactly the entry its timer was armed for. A stale timer
// that lost the Stop race against a refreshing Set finds a different entry
// under the key and must leave it alone. The send stays under the lock so
// Close cannot close the channel between the decision and the send.
func (c *MemoryCache) expire(key string, e *memoryEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.entries[key] != e {
		return
	}
	delete(c.entries, key)

	select {
	case c.expired <- key:
	default:
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	// The timer may not have fired yet; never serve a stale value.
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		return nil, ErrMiss
	}
	return e.value, nil
}

func (c *MemoryCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		if e, ok := c.entries[key]; ok {
			if e.timer != nil {
				e.timer.Stop()
			}
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *MemoryCache) SAdd(_ context.Context, key, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.sets[key]
	if !ok {
		set = make(map[string]struct{})
		c.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

func (c *MemoryCache) SRem(_ context.Context, key, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.sets[key]; ok {
		delete(set, member)
	}
	return nil
}

func (c *MemoryCache) SMembers(_ context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	members := make([]string, 0, len(c.sets[key]))
	for member := range c.sets[key] {
		members = append(members, member)
	}
	return members, nil
}

func (c *MemoryCache) Expired() <-chan string {
	return c.expired
}

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, e := range c.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	close(c.expired)
	return nil
}
