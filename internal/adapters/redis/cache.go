package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps the shared redis client. Capture reference dedupe and
// the rate limiter both ride on it.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// captureRefTTL bounds how long a provider reference blocks replays.
// Providers retry callbacks for at most a few days.
const captureRefTTL = 72 * time.Hour

// Register claims a capture reference id. Returns false when another
// request already settled the same reference.
func (c *Cache) Register(ctx context.Context, ref string) (bool, error) {
	res := c.client.SetNX(ctx, "capref:"+ref, 1, captureRefTTL)
	return res.Val(), res.Err()
}
