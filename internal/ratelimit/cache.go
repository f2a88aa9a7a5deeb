package ratelimit

import (
	"container/list"
	"net/http"
	"sync"
	"time"

	"github.com/sakif/life-tracker/internal/clock"
)

// Response is a captured HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

type cacheEntry struct {
	key      string
	resp     Response
	storedAt time.Time
}

// ResponseCache keeps responses by request id for ttl, holding at most
// maxEntries; the oldest entry is evicted first.
type ResponseCache struct {
	ttl        time.Duration
	maxEntries int
	clock      clock.Clock

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is oldest

	janitor *janitor
}

func NewResponseCache(ttl time.Duration, maxEntries int, clk clock.Clock) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	c := &ResponseCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		clock:      clk,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
	c.janitor = newJanitor(ttl, c.evictExpired)
	return c
}

// Get returns a copy of the live response stored under key.
func (c *ResponseCache) Get(key string) (Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return Response{}, false
	}
	e := el.Value.(*cacheEntry)
	if c.expired(e) {
		c.remove(el)
		return Response{}, false
	}
	return clone(e.resp), true
}

// Put stores resp under key, replacing any previous entry.
func (c *ResponseCache) Put(key string, resp Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}
	for c.order.Len() >= c.maxEntries {
		c.remove(c.order.Front())
	}
	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, resp: clone(resp), storedAt: c.clock.Now()})
}

func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Start launches the janitor that drops expired entries.
func (c *ResponseCache) Start() { c.janitor.start() }

func (c *ResponseCache) Stop() { c.janitor.stop() }

func (c *ResponseCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Entries are in insertion order, so the first live one ends the sweep.
	for el := c.order.Front(); el != nil; el = c.order.Front() {
		if !c.expired(el.Value.(*cacheEntry)) {
			return
		}
		c.remove(el)
	}
}

func (c *ResponseCache) expired(e *cacheEntry) bool {
	return c.clock.Now().Sub(e.storedAt) >= c.ttl
}

func (c *ResponseCache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*cacheEntry).key)
}

func clone(r Response) Response {
	return Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   append([]byte(nil), r.Body...),
	}
}
