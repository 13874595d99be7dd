// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// seenKeyPrefix prefixes every deduplication key in Redis.
const seenKeyPrefix = "seen:"

// redisClient is the subset of go-redis methods the store needs.
// This allows us to mock Redis for testing while using the real client in
// production.
type redisClient interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Close() error
}

// Verify that *redis.Client implements redisClient at compile time.
var _ redisClient = (*redis.Client)(nil)

// DedupStore tracks already-delivered message identifiers in Redis with an
// expiry. It fails open: if Redis is unreachable, IsDuplicate reports "not a
// duplicate" and MarkSeen errors are logged and swallowed. An occasional
// duplicate broadcast is preferred over a dropped message, and a missed mark
// only risks a future duplicate, never data loss.
type DedupStore struct {
	client redisClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewDedupStore connects the store to Redis.
func NewDedupStore(cfg RedisConfig, logger *zap.Logger) *DedupStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
	})
	return &DedupStore{
		client: client,
		ttl:    cfg.DedupTTL,
		logger: orNop(logger),
	}
}

// IsDuplicate reports whether id has already been delivered. Store errors
// resolve to false.
func (s *DedupStore) IsDuplicate(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}

	n, err := s.client.Exists(ctx, seenKeyPrefix+id).Result()
	if err != nil {
		s.logger.Error("dedup check failed, allowing message through",
			zap.String("messageId", id),
			zap.Error(err))
		return false
	}
	return n > 0
}

// MarkSeen records id as delivered, with the configured TTL. The write is
// SETNX so concurrent workers marking the same identifier cannot race.
//
// Call only after the delivery is confirmed successful: marking first and
// then failing to deliver would silently suppress legitimate retries.
func (s *DedupStore) MarkSeen(ctx context.Context, id string) {
	if id == "" {
		return
	}

	if err := s.client.SetNX(ctx, seenKeyPrefix+id, 1, s.ttl).Err(); err != nil {
		s.logger.Error("dedup mark failed",
			zap.String("messageId", id),
			zap.Error(err))
	}
}

// Close releases the Redis client.
func (s *DedupStore) Close() error {
	return s.client.Close()
}
