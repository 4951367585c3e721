package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod represents how an order is paid.
type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "COD"
	PaymentMethodBakong PaymentMethod = "BAKONG"
)

// OrderStatus represents the current status of an order.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
)

// DefaultShippingCarrier is stamped on every new order.
const DefaultShippingCarrier = "Standard Delivery"

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// LineTotal is price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a placed storefront order.
type Order struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Items            []OrderItem     `json:"items"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         Currency        `json:"currency"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentReference string          `json:"payment_reference,omitempty"` // Bakong transaction id, empty for COD
	Status           OrderStatus     `json:"status"`
	ShippingAddress  string          `json:"shipping_address"`
	TrackingNumber   string          `json:"tracking_number"`
	ShippingCarrier  string          `json:"shipping_carrier"`
	CreatedAt        time.Time       `json:"created_at"`
}
