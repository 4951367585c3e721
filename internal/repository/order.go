package repository

import (
	"context"

	"coffeeshop/internal/domain"
)

// OrderRepository defines the persistence operations for orders.
type OrderRepository interface {
	// Create persists a new order together with its items.
	// Returns ErrDuplicate if an order already carries the same payment reference.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by ID.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByPaymentReference retrieves an order by its Bakong transaction id.
	// Returns nil if no order exists with the given reference.
	GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error)
}
