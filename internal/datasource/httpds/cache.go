package httpds

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a bounded, goroutine-safe map from URL to response body. A nil
// *Cache is valid and never hits.
type Cache struct {
	l *lru.Cache[string, []byte]
}

// NewCache returns a cache holding at most size bodies.
func NewCache(size int) (*Cache, error) {
	l, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Cache{l: l}, nil
}

// Get returns the cached body for url.
func (c *Cache) Get(url string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	return c.l.Get(url)
}

// Add stores body under url.
func (c *Cache) Add(url string, body []byte) {
	if c == nil {
		return
	}
	c.l.Add(url, body)
}

// Len reports the number of cached bodies.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.l.Len()
}
