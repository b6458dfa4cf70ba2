package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the subset of the Redis API the lock needs.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// SingleFlight is a mutual-exclusion lock keyed by task name and time bucket.
// It guarantees that a scheduled job firing more than once within the same
// bucket runs its work a single time across all instances.
type SingleFlight struct {
	client Client
	ttl    time.Duration
	bucket time.Duration
}

// NewSingleFlight creates a single-flight lock. bucket determines the
// granularity of deduplication (e.g. one hour); ttl must outlive the bucket
// so a crashed holder cannot free the slot early.
func NewSingleFlight(client Client, bucket, ttl time.Duration) *SingleFlight {
	if ttl < bucket {
		ttl = bucket
	}
	return &SingleFlight{client: client, ttl: ttl, bucket: bucket}
}

// Acquire attempts to take the lock for the given task in the bucket that
// contains now. It returns true when this caller won the slot.
func (s *SingleFlight) Acquire(ctx context.Context, task string, now time.Time) (bool, error) {
	key := s.key(task, now)
	ok, err := s.client.SetNX(ctx, key, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

func (s *SingleFlight) key(task string, now time.Time) string {
	return fmt.Sprintf("lock:%s:%d", task, now.Truncate(s.bucket).Unix())
}
