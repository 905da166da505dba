package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedResolver 把成功解析的名称缓存在 Redis；缓存故障时直接回源。
type CachedResolver struct {
	next Resolver
	rdb  *redis.Client
	ttl  time.Duration
}

func NewCachedResolver(next Resolver, rdb *redis.Client, ttl time.Duration) *CachedResolver {
	return &CachedResolver{next: next, rdb: rdb, ttl: ttl}
}

func nameKey(memberID string) string {
	return fmt.Sprintf("identity:name:%s", memberID)
}

func (c *CachedResolver) DisplayName(ctx context.Context, memberID string) (string, error) {
	if name, err := c.rdb.Get(ctx, nameKey(memberID)).Result(); err == nil && name != "" {
		return name, nil
	}

	name, err := c.next.DisplayName(ctx, memberID)
	if err != nil {
		return "", err
	}
	_ = c.rdb.Set(ctx, nameKey(memberID), name, c.ttl).Err()
	return name, nil
}
