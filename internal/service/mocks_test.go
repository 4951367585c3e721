package service

import (
	"context"
	"sync"
	"sync/atomic"

	"coffeeshop/internal/domain"
	"coffeeshop/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK ORDER REPOSITORY
// ──────────────────────────────────────────────

// MockOrderRepository is a mock implementation of repository.OrderRepository.
type MockOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order

	// Counters for verification
	CreateCallCount int32

	// Error injection
	CreateError error
	// DuplicateOnCreate stores the order under its reference then reports a unique violation,
	// as a concurrent insert would.
	DuplicateOnCreate bool

	failCreates int
	failErr     error
}

// FailCreates makes the next n creates fail with err.
func (m *MockOrderRepository) FailCreates(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCreates = n
	m.failErr = err
}

// NewMockOrderRepository creates a new mock order repository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[string]*domain.Order)}
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreates > 0 {
		m.failCreates--
		return m.failErr
	}
	if m.DuplicateOnCreate {
		winner := *order
		winner.ID = "winner-" + order.PaymentReference
		m.orders[winner.ID] = &winner
		return repository.ErrDuplicate
	}
	copy := *order
	m.orders[order.ID] = &copy
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *order
	return &copy, nil
}

func (m *MockOrderRepository) GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.PaymentReference == reference {
			copy := *o
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockOrderRepository) Creates() int32 {
	return atomic.LoadInt32(&m.CreateCallCount)
}

func (m *MockOrderRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

// ──────────────────────────────────────────────
// MOCK ORDER CACHE
// ──────────────────────────────────────────────

type MockOrderCache struct {
	mu     sync.Mutex
	orders map[string]*domain.Order

	GetCallCount int32
	SetCallCount int32
}

func NewMockOrderCache() *MockOrderCache {
	return &MockOrderCache{orders: make(map[string]*domain.Order)}
}

func (m *MockOrderCache) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	copy := *o
	return &copy, nil
}

func (m *MockOrderCache) SetOrder(ctx context.Context, order *domain.Order) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *order
	m.orders[order.ID] = &copy
	return nil
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

type publishedEvent struct {
	RoutingKey string
	Body       any
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent

	PublishError error
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, v any) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{RoutingKey: routingKey, Body: v})
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func (m *MockPublisher) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, len(m.events))
	for i, e := range m.events {
		keys[i] = e.RoutingKey
	}
	return keys
}

func (m *MockPublisher) Find(routingKey string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.RoutingKey == routingKey {
			return e.Body, true
		}
	}
	return nil, false
}

// ──────────────────────────────────────────────
// MOCK VERIFIER
// ──────────────────────────────────────────────

// MockVerifier answers Pending until VerifyAfter calls, then Verified with TransactionID.
type MockVerifier struct {
	TransactionID string
	VerifyAfter   int32
	Err           error
	NotConfigured bool

	calls  int32
	hashes sync.Map
}

func (m *MockVerifier) Verify(ctx context.Context, contentHash string) (domain.VerificationOutcome, error) {
	n := atomic.AddInt32(&m.calls, 1)
	m.hashes.Store(contentHash, true)
	if m.Err != nil {
		return domain.VerificationOutcome{}, m.Err
	}
	if m.TransactionID != "" && n >= m.VerifyAfter {
		return domain.VerifiedOutcome(m.TransactionID), nil
	}
	return domain.PendingOutcome("transaction not found"), nil
}

func (m *MockVerifier) Configured() bool { return !m.NotConfigured }

func (m *MockVerifier) Calls() int32 { return atomic.LoadInt32(&m.calls) }

func (m *MockVerifier) Saw(contentHash string) bool {
	_, ok := m.hashes.Load(contentHash)
	return ok
}
