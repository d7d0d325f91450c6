// ABOUTME: Thread-safe TTL cache of inbound event IDs
// ABOUTME: Lets the dispatcher drop events a transport delivers more than once

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// Defaults used when New is given zero values.
const (
	DefaultTTL     = 10 * time.Minute
	DefaultMaxSize = 10000
)

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache tracks event IDs for a TTL, holding at most maxSize of them. The
// oldest ID is evicted first when full.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // event IDs, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done    chan struct{}
	stopped chan struct{}
	closed  bool
}

// New creates a cache and starts its expiry goroutine. Call Close to stop it.
func New(ttl time.Duration, maxSize int) *Cache {
	return newCache(ttl, maxSize, time.Now)
}

func newCache(ttl time.Duration, maxSize int, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	c := &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go c.expireLoop(cleanupInterval(ttl))
	return c
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < time.Minute {
		return ttl
	}
	return time.Minute
}

// CheckAndMark reports whether id was already seen within the TTL. A new or
// expired id is marked as seen. The check and mark are atomic.
func (c *Cache) CheckAndMark(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.seen[id]; ok {
		if now.Sub(e.seenAt) < c.ttl {
			return true
		}
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}
	c.seen[id] = &entry{seenAt: now, element: c.order.PushBack(id)}
	return false
}

// Seen reports whether id was marked within the TTL without marking it.
func (c *Cache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.seen[id]
	return ok && c.now().Sub(e.seenAt) < c.ttl
}

// Len returns how many IDs are held, expired ones included until the next sweep.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// evictOldest drops the front of the order list. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, id)
}

func (c *Cache) expireLoop(interval time.Duration) {
	defer close(c.stopped)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.expire()
		case <-c.done:
			return
		}
	}
}

// expire removes IDs older than the TTL. The order list is oldest first, so
// it stops at the first live entry.
func (c *Cache) expire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		id, _ := front.Value.(string)
		if now.Sub(c.seen[id].seenAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, id)
	}
}

// Close stops the expiry goroutine and waits for it. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
	c.mu.Unlock()
	<-c.stopped
}
