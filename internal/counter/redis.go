// Package counter keeps per-viewer unread counters in Redis.
package counter

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/workhub-social/chatsync/internal/backend"
)

const keyPrefix = "unread:"

// Redis stores one hash per viewer, conversation id -> unread count.
type Redis struct {
	rdb *redis.Client
}

var _ backend.Counters = (*Redis)(nil)

// NewRedis creates counters over rdb.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func key(viewerID string) string {
	return keyPrefix + viewerID
}

// Increment atomically adds one to viewerID's count for conversationID.
func (r *Redis) Increment(ctx context.Context, viewerID, conversationID string) (int64, error) {
	n, err := r.rdb.HIncrBy(ctx, key(viewerID), conversationID, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment unread count: %w", err)
	}
	return n, nil
}

// Reset clears viewerID's count for conversationID.
func (r *Redis) Reset(ctx context.Context, viewerID, conversationID string) error {
	if err := r.rdb.HDel(ctx, key(viewerID), conversationID).Err(); err != nil {
		return fmt.Errorf("failed to reset unread count: %w", err)
	}
	return nil
}

// All returns every non-zero count of viewerID.
func (r *Redis) All(ctx context.Context, viewerID string) (map[string]int64, error) {
	raw, err := r.rdb.HGetAll(ctx, key(viewerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read unread counts: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for conv, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		out[conv] = n
	}
	return out, nil
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
