package imagecache

import (
	"context"
	"sync"
)

// Cache maps a treatment template ID to its image URL.
type Cache interface {
	Get(ctx context.Context, templateID string) (string, bool, error)
	Set(ctx context.Context, templateID, imageURL string) error
}

type MemoryCache struct {
	mu     sync.RWMutex
	images map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{images: make(map[string]string)}
}

func (c *MemoryCache) Get(_ context.Context, templateID string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	img, ok := c.images[templateID]
	return img, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, templateID, imageURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.images[templateID] = imageURL
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}
