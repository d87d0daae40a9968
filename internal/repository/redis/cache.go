package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/mamadbah2/materialbot/internal/apperrors"
)

// Cache shares cached views across every replica through Redis.
type Cache struct {
	client *backend.Client
	prefix string
}

// NewCache builds a cache on an existing client.
func NewCache(client *backend.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix + "cache:"}
}

// Get returns the value stored under key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get %s: %w: %w", key, apperrors.ErrCollaborator, err)
	}
	return val, true, nil
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w: %w", key, apperrors.ErrCollaborator, err)
	}
	return nil
}

// Delete drops key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w: %w", key, apperrors.ErrCollaborator, err)
	}
	return nil
}
