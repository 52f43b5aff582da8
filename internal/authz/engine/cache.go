package engine

import (
	"strings"
	"sync"
	"time"

	"trading-platform/authcore/internal/authz/domain"
)

type cacheEntry struct {
	decision  domain.Decision
	subject   string
	resource  string
	expiresAt time.Time
}

// DecisionCache caches check decisions for a short TTL. Permission-change
// events invalidate affected entries so revocation takes effect ahead of
// the TTL.
type DecisionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	nowF    func() time.Time
}

// NewDecisionCache returns a cache with the given TTL. A zero or negative
// TTL disables caching (Get always misses).
func NewDecisionCache(ttl time.Duration) *DecisionCache {
	return &DecisionCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

func cacheKey(subject, action, resource string) string {
	return subject + "\x00" + action + "\x00" + resource
}

// Get returns a cached decision if present and unexpired.
func (c *DecisionCache) Get(subject, action, resource string) (domain.Decision, bool) {
	if c.ttl <= 0 {
		return domain.Decision{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey(subject, action, resource)]
	if !ok || c.nowF().After(e.expiresAt) {
		return domain.Decision{}, false
	}
	return e.decision, true
}

// Put stores a decision under the check triple.
func (c *DecisionCache) Put(subject, action, resource string, d domain.Decision) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(subject, action, resource)] = cacheEntry{
		decision:  d,
		subject:   subject,
		resource:  resource,
		expiresAt: c.nowF().Add(c.ttl),
	}
}

// InvalidateFor drops entries matching subject and resource. An empty
// subject or resource matches every entry on that axis; both empty flushes
// the cache.
func (c *DecisionCache) InvalidateFor(subject, resource string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if subject != "" && e.subject != subject {
			continue
		}
		if resource != "" && !resourceCovers(resource, e.resource) {
			continue
		}
		delete(c.entries, k)
	}
}

// resourceCovers reports whether changed covers cached, treating changed as
// a prefix on colon segments so "trading_account:456" also drops
// "trading_account:456:orders".
func resourceCovers(changed, cached string) bool {
	if changed == cached {
		return true
	}
	return strings.HasPrefix(cached, changed+":")
}

// Len returns the number of live entries. Used by tests and metrics.
func (c *DecisionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowF()
	n := 0
	for _, e := range c.entries {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}
