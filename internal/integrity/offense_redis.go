package integrity

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "sentra/pkg/domain"
)

const offenseKeyPrefix = "integrity:oob:"

// RedisOffenseCounter shares out-of-zone offense counts across server
// instances. INCR with a window-sized TTL set on first offense.
type RedisOffenseCounter struct {
	client *redis.Client
	window time.Duration
}

func NewRedisOffenseCounter(client *redis.Client, window time.Duration) *RedisOffenseCounter {
	return &RedisOffenseCounter{client: client, window: window}
}

func (c *RedisOffenseCounter) Incr(ctx context.Context, agentID id.AgentID, eventID id.EventID) (int, error) {
	key := fmt.Sprintf("%s%s:%s", offenseKeyPrefix, agentID, eventID)
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr offense counter: %w", err)
	}
	if n == 1 {
		if err := c.client.Expire(ctx, key, c.window).Err(); err != nil {
			return int(n), fmt.Errorf("set offense counter ttl: %w", err)
		}
	}
	return int(n), nil
}
