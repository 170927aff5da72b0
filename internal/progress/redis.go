package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCommander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStoreConfig configures the Redis-backed progress store.
type RedisStoreConfig struct {
	Namespace string
	TTL       time.Duration
}

// RedisStore keeps progress records in Redis so multiple replicas can serve
// the same polling clients. Expiry relies on the key TTL; Sweep is a no-op.
type RedisStore struct {
	mu        sync.Mutex
	client    redisCommander
	closeFn   func() error
	namespace string
	ttl       time.Duration
}

// NewRedisStore creates a Redis-backed progress store.
func NewRedisStore(client redis.UniversalClient, cfg RedisStoreConfig) *RedisStore {
	closeFn := func() error { return nil }
	if client != nil {
		closeFn = client.Close
	}
	return newRedisStoreFromCommander(client, closeFn, cfg)
}

func newRedisStoreFromCommander(client redisCommander, closeFn func() error, cfg RedisStoreConfig) *RedisStore {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "contribase"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}

	return &RedisStore{
		client:    client,
		closeFn:   closeFn,
		namespace: namespace,
		ttl:       ttl,
	}
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	if s == nil || s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// Set merges the update into the stored record. Read-modify-write is
// serialized in process; cross-process writers are distinct runs on distinct
// keys by construction.
func (s *RedisStore) Set(ctx context.Context, owner, repo string, update Update) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redis store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := Record{}
	if !update.Reset {
		existing, found, err := s.read(ctx, owner, repo)
		if err != nil {
			return err
		}
		if found {
			record = existing
		}
	}

	record = mergeRecord(record, update)
	record.LastUpdated = time.Now()

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal progress record: %w", err)
	}
	if err := s.client.Set(ctx, s.recordKey(owner, repo), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("write progress record: %w", err)
	}
	return nil
}

// Get reads the record for (owner, repo).
func (s *RedisStore) Get(ctx context.Context, owner, repo string) (Record, bool, error) {
	if s == nil || s.client == nil {
		return Record{}, false, fmt.Errorf("redis store is not initialized")
	}
	return s.read(ctx, owner, repo)
}

// Delete removes the record for (owner, repo).
func (s *RedisStore) Delete(ctx context.Context, owner, repo string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redis store is not initialized")
	}
	if err := s.client.Del(ctx, s.recordKey(owner, repo)).Err(); err != nil {
		return fmt.Errorf("delete progress record: %w", err)
	}
	return nil
}

// Sweep is a no-op; Redis expires records through the per-key TTL.
func (s *RedisStore) Sweep(context.Context, time.Time) error {
	return nil
}

func (s *RedisStore) read(ctx context.Context, owner, repo string) (Record, bool, error) {
	payload, err := s.client.Get(ctx, s.recordKey(owner, repo)).Result()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("read progress record: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return Record{}, false, fmt.Errorf("unmarshal progress record: %w", err)
	}
	return record, true, nil
}

func (s *RedisStore) recordKey(owner, repo string) string {
	return s.namespace + ":progress:" + Key(owner, repo)
}
