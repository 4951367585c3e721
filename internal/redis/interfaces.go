package redis

import (
	"context"
	"time"

	"coffeeshop/internal/domain"
)

// VerificationCacheInterface defines the interface for settled payment lookups.
type VerificationCacheInterface interface {
	GetVerification(ctx context.Context, contentHash string) (*domain.VerificationOutcome, error)
	SetVerification(ctx context.Context, contentHash string, outcome domain.VerificationOutcome) error
}

// OrderCacheInterface defines the interface for order caching.
type OrderCacheInterface interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	SetOrder(ctx context.Context, order *domain.Order) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireCheckoutLock(ctx context.Context, checkoutID, owner string, ttl time.Duration) (bool, error)
	ReleaseCheckoutLock(ctx context.Context, checkoutID, owner string) error
}

// IdempotencyStoreInterface defines the interface for replayable responses.
type IdempotencyStoreInterface interface {
	GetResponse(ctx context.Context, key string) ([]byte, error)
	SetResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Ensure concrete types implement interfaces.
var (
	_ VerificationCacheInterface = (*CacheStore)(nil)
	_ OrderCacheInterface        = (*CacheStore)(nil)
	_ LockStoreInterface         = (*LockStore)(nil)
	_ IdempotencyStoreInterface  = (*IdempotencyStore)(nil)
)
