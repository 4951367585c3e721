package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"coffeeshop/internal/domain"
)

// CacheStore handles verification and order caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Cache TTL constants
const (
	VerificationCacheTTL = 24 * time.Hour  // A settled payment never becomes unsettled
	OrderCacheTTL        = 60 * time.Second // Orders only change through the order service
)

// Key prefixes
const (
	verificationCachePrefix = "cache:khqr:verified:"
	orderCachePrefix        = "cache:order:"
)

// cachedVerification is the stored form of a settled outcome.
type cachedVerification struct {
	TransactionID string `json:"transaction_id"`
	Synthesized   bool   `json:"synthesized"`
	CachedAt      int64  `json:"cached_at"`
}

// GetVerification retrieves a settled outcome by content hash.
// A cache miss returns nil, nil.
func (s *CacheStore) GetVerification(ctx context.Context, contentHash string) (*domain.VerificationOutcome, error) {
	data, err := s.client.Get(ctx, verificationCachePrefix+contentHash).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cached cachedVerification
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &domain.VerificationOutcome{
		Status:        domain.VerificationVerified,
		TransactionID: cached.TransactionID,
		Synthesized:   cached.Synthesized,
	}, nil
}

// SetVerification stores a settled outcome. Unsettled outcomes are ignored.
func (s *CacheStore) SetVerification(ctx context.Context, contentHash string, outcome domain.VerificationOutcome) error {
	if !outcome.Verified() {
		return nil
	}
	data, err := json.Marshal(cachedVerification{
		TransactionID: outcome.TransactionID,
		Synthesized:   outcome.Synthesized,
		CachedAt:      time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, verificationCachePrefix+contentHash, data, VerificationCacheTTL).Err()
}

// GetOrder retrieves an order from cache.
func (s *CacheStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	data, err := s.client.Get(ctx, orderCachePrefix+orderID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// SetOrder stores an order in cache.
func (s *CacheStore) SetOrder(ctx context.Context, order *domain.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, orderCachePrefix+order.ID, data, OrderCacheTTL).Err()
}
