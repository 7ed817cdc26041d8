// Package social persists the block relationships the matchmaking core
// consults. Blocks are stored per session as a Redis set with a TTL matching
// the anonymous session lifetime:
//
//	Key:     block:<session_id>
//	Members: blocked session IDs
//	TTL:     refresh on write
//
// The server side is write-only: handlers mirror each block into the
// in-memory session record at the moment it is filed, so the matcher's
// mutual-block check stays free of I/O. The Redis sets exist for external
// readers (moderation tooling).
package social

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// BlockPrefix is the Redis key prefix for block sets.
	BlockPrefix = "block:"

	// BlockTTL is how long a block set survives without new writes. Sessions
	// are anonymous and short-lived, so blocks expire with them.
	BlockTTL = 2 * time.Hour
)

// Store manages block relationships in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a block store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Add records that blocker never wants to meet target again and refreshes
// the set's TTL.
func (s *Store) Add(ctx context.Context, blocker, target string) error {
	key := BlockPrefix + blocker

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, key, target)
	pipe.Expire(ctx, key, BlockTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("social: add block %s -> %s: %w", blocker, target, err)
	}
	return nil
}

// Clear removes the block set for a session, used on teardown.
func (s *Store) Clear(ctx context.Context, blocker string) error {
	return s.client.Del(ctx, BlockPrefix+blocker).Err()
}
