package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/errors"
)

// cacheRecorder observes hit/miss outcomes and lookup latency.
type cacheRecorder interface {
	RecordCacheOperation(hit bool, duration time.Duration)
}

// CacheRepository provides helpers around Redis interactions for caching
// outpass stats and other derived payloads.
type CacheRepository struct {
	client   *redis.Client
	logger   *zap.Logger
	recorder cacheRecorder
}

// CacheRepositoryOption configures the repository.
type CacheRepositoryOption func(*CacheRepository)

// WithCacheRecorder wires cache lookups into metrics.
func WithCacheRecorder(recorder cacheRecorder) CacheRepositoryOption {
	return func(r *CacheRepository) {
		r.recorder = recorder
	}
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger, opts ...CacheRepositoryOption) *CacheRepository {
	repo := &CacheRepository{client: client, logger: logger}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Get retrieves and unmarshals the cached value into the provided destination.
// A disabled cache (nil client) reads as a miss.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	start := time.Now()
	if r.client == nil {
		r.record(false, start)
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			r.record(false, start)
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}

	r.record(true, start)
	return nil
}

func (r *CacheRepository) record(hit bool, start time.Time) {
	if r.recorder != nil {
		r.recorder.RecordCacheOperation(hit, time.Since(start))
	}
}

// Set marshals the provided value and stores it with the given TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// DeleteByPattern removes cached entries matching the provided pattern.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", key, err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}

	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
