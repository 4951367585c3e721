package events

import (
	"time"

	"github.com/shopspring/decimal"

	"coffeeshop/internal/domain"
)

// Routing keys on the events exchange.
const (
	KeyPaymentVerified = "payment.bakong.verified"
	KeyPaymentExpired  = "payment.bakong.expired"
	KeyOrderCreated    = "order.created"
)

// PaymentVerified is published when the payment switch confirms a KHQR payment.
type PaymentVerified struct {
	CheckoutID    string          `json:"checkout_id"`
	OrderID       string          `json:"order_id,omitempty"`
	TransactionID string          `json:"transaction_id"`
	Synthesized   bool            `json:"synthesized"`
	MD5           string          `json:"md5"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      domain.Currency `json:"currency"`
	VerifiedAt    time.Time       `json:"verified_at"`
}

// PaymentExpired is published when a KHQR code ran out without payment.
type PaymentExpired struct {
	CheckoutID string          `json:"checkout_id"`
	MD5        string          `json:"md5"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   domain.Currency `json:"currency"`
	ExpiredAt  time.Time       `json:"expired_at"`
}

// OrderCreated is published for every persisted order.
type OrderCreated struct {
	OrderID          string               `json:"order_id"`
	UserID           string               `json:"user_id"`
	TotalAmount      decimal.Decimal      `json:"total_amount"`
	Currency         domain.Currency      `json:"currency"`
	PaymentMethod    domain.PaymentMethod `json:"payment_method"`
	PaymentReference string               `json:"payment_reference,omitempty"`
	TrackingNumber   string               `json:"tracking_number"`
	CreatedAt        time.Time            `json:"created_at"`
}
