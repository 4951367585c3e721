package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"coffeeshop/internal/domain"
	"coffeeshop/internal/repository"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	db *sql.DB
	q  Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db, q: db}
}

// Create persists a new order and its items atomically.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	if err := insertOrder(ctx, tx, order); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertOrder(ctx context.Context, q Querier, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, user_id, total_amount, currency, payment_method, payment_reference,
			status, shipping_address, tracking_number, shipping_carrier, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := q.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.TotalAmount,
		order.Currency,
		order.PaymentMethod,
		nullString(order.PaymentReference),
		order.Status,
		order.ShippingAddress,
		order.TrackingNumber,
		order.ShippingCarrier,
		order.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrDuplicate
		}
		return err
	}

	itemQuery := `
		INSERT INTO order_items (order_id, position, product_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i, item := range order.Items {
		if _, err := q.ExecContext(ctx, itemQuery, order.ID, i, item.ProductID, item.Quantity, item.Price); err != nil {
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}

	return nil
}

const selectOrder = `
	SELECT id, user_id, total_amount, currency, payment_method, payment_reference,
		status, shipping_address, tracking_number, shipping_carrier, created_at
	FROM orders
`

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := r.scanOrder(ctx, selectOrder+` WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

// GetByPaymentReference retrieves an order by its Bakong transaction id.
// Returns nil if no order exists with the given reference.
func (r *OrderRepository) GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error) {
	order, err := r.scanOrder(ctx, selectOrder+` WHERE payment_reference = $1`, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) scanOrder(ctx context.Context, query string, arg any) (*domain.Order, error) {
	var order domain.Order
	var reference sql.NullString
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&order.ID,
		&order.UserID,
		&order.TotalAmount,
		&order.Currency,
		&order.PaymentMethod,
		&reference,
		&order.Status,
		&order.ShippingAddress,
		&order.TrackingNumber,
		&order.ShippingCarrier,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.PaymentReference = reference.String

	items, err := r.items(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (r *OrderRepository) items(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	query := `
		SELECT product_id, quantity, price
		FROM order_items WHERE order_id = $1
		ORDER BY position
	`

	rows, err := r.q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ repository.OrderRepository = (*OrderRepository)(nil)
