package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"farmland-checkout/internal/dto"

	"github.com/redis/go-redis/v9"
)

func NewRedisStatusCache(client *redis.Client, baseTTL time.Duration) *RedisStatusCache {
	return &RedisStatusCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

type RedisStatusCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisStatusCache) Get(ctx context.Context, referenceID string) (*dto.PaymentStatusResponse, error) {
	data, err := r.client.Get(ctx, statusKey(referenceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var status dto.PaymentStatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("unmarshal status failed: %w", err)
	}
	return &status, nil
}

func (r RedisStatusCache) Set(ctx context.Context, referenceID string, status *dto.PaymentStatusResponse) error {
	if status.Status != dto.StatusPaid {
		return nil
	}

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(60)) * time.Second
	if err := r.client.Set(ctx, statusKey(referenceID), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func statusKey(referenceID string) string {
	return fmt.Sprintf("payment-status:%s", referenceID)
}

func NewRedisTimerStore(client *redis.Client, ttl time.Duration) *RedisTimerStore {
	return &RedisTimerStore{client: client, ttl: ttl}
}

// RedisTimerStore keeps start times as unix millis with SETNX semantics.
type RedisTimerStore struct {
	client *redis.Client
	ttl    time.Duration
}

func (r RedisTimerStore) StartOrResume(ctx context.Context, key string, now time.Time) (time.Time, error) {
	if _, err := r.client.SetNX(ctx, key, now.UnixMilli(), r.ttl).Result(); err != nil {
		return time.Time{}, fmt.Errorf("redis setnx failed: %w", err)
	}

	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("redis get failed: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timer start %q: %w", raw, err)
	}
	return time.UnixMilli(ms), nil
}

func (r RedisTimerStore) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
