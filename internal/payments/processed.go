package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProcessedTracker short-circuits confirmations the gateway has already
// applied. It is an optimization in front of the lifecycle manager's
// compare-and-set, which remains the correctness guard; losing tracker
// state only costs an extra no-op round trip.
type ProcessedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, reference string) (bool, error)
	MarkProcessed(ctx context.Context, provider, reference string) error
}

// RedisTracker records processed references in Redis with a TTL.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTracker creates a tracker over the given client.
func NewRedisTracker(client *redis.Client, ttl time.Duration) *RedisTracker {
	if client == nil {
		panic("payments: redis client required")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisTracker{client: client, ttl: ttl}
}

func processedKey(provider, reference string) string {
	return "payments:processed:" + provider + ":" + reference
}

// AlreadyProcessed checks whether the reference was seen before.
func (t *RedisTracker) AlreadyProcessed(ctx context.Context, provider, reference string) (bool, error) {
	n, err := t.client.Exists(ctx, processedKey(provider, reference)).Result()
	if err != nil {
		return false, fmt.Errorf("payments: processed lookup: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records the reference.
func (t *RedisTracker) MarkProcessed(ctx context.Context, provider, reference string) error {
	if err := t.client.SetNX(ctx, processedKey(provider, reference), "1", t.ttl).Err(); err != nil {
		return fmt.Errorf("payments: mark processed: %w", err)
	}
	return nil
}

// MemoryTracker is the in-process fallback when Redis is not configured.
type MemoryTracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryTracker creates an empty in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{seen: make(map[string]struct{})}
}

// AlreadyProcessed checks whether the reference was seen before.
func (t *MemoryTracker) AlreadyProcessed(ctx context.Context, provider, reference string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[processedKey(provider, reference)]
	return ok, nil
}

// MarkProcessed records the reference.
func (t *MemoryTracker) MarkProcessed(ctx context.Context, provider, reference string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[processedKey(provider, reference)] = struct{}{}
	return nil
}
