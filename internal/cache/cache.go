package cache

import (
	"context"
	"errors"
	"time"

	"farmland-checkout/internal/dto"
)

var ErrCacheMiss = errors.New("cache miss")

// StatusCache remembers settled payment statuses. Only paid results are
// stored since they never change.
type StatusCache interface {
	Get(ctx context.Context, referenceID string) (*dto.PaymentStatusResponse, error)
	Set(ctx context.Context, referenceID string, status *dto.PaymentStatusResponse) error
}

// TimerStore persists countdown start times so a view can resume them.
type TimerStore interface {
	// StartOrResume stores now under key unless a start is already stored,
	// and returns the stored start.
	StartOrResume(ctx context.Context, key string, now time.Time) (time.Time, error)
	Clear(ctx context.Context, key string) error
}

type noopStatusCache struct{}

func NewNoopStatusCache() StatusCache {
	return noopStatusCache{}
}

func (noopStatusCache) Get(context.Context, string) (*dto.PaymentStatusResponse, error) {
	return nil, ErrCacheMiss
}

func (noopStatusCache) Set(context.Context, string, *dto.PaymentStatusResponse) error {
	return nil
}
