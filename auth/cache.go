package auth

import "sync"

// TokenCache caches token -> user id so the hot auth path skips a query.
// User ids are immutable and tokens are never revoked, so entries only need
// removal when a lookup through the cache comes back empty.
type TokenCache struct {
	entries map[string]int64
	mu      sync.RWMutex
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		entries: make(map[string]int64),
	}
}

func (c *TokenCache) Get(token string) (int64, bool) {
	c.mu.RLock()
	userID, ok := c.entries[token]
	c.mu.RUnlock()
	return userID, ok
}

func (c *TokenCache) Put(token string, userID int64) {
	c.mu.Lock()
	c.entries[token] = userID
	c.mu.Unlock()
}

func (c *TokenCache) Delete(token string) {
	c.mu.Lock()
	delete(c.entries, token)
	c.mu.Unlock()
}
