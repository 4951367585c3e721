package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"coffeeshop/internal/domain"
	"coffeeshop/internal/repository"
)

// OrderCache is the optional read-through cache for orders.
type OrderCache interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	SetOrder(ctx context.Context, order *domain.Order) error
}

// OrderService creates and reads storefront orders.
type OrderService struct {
	orderRepo repository.OrderRepository
	cache     OrderCache
	notifier  *NotificationService
	now       func() time.Time
}

// NewOrderService creates a new OrderService. cache may be nil.
func NewOrderService(orderRepo repository.OrderRepository, cache OrderCache, notifier *NotificationService) *OrderService {
	if notifier == nil {
		notifier = NewNotificationService(nil)
	}
	return &OrderService{
		orderRepo: orderRepo,
		cache:     cache,
		notifier:  notifier,
		now:       time.Now,
	}
}

// OrderDraft is what the storefront submits at checkout.
type OrderDraft struct {
	UserID          string
	Items           []domain.OrderItem
	Currency        domain.Currency
	ShippingAddress string
}

// Total returns the sum of line totals rounded to the currency's minor units.
func (d OrderDraft) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range d.Items {
		total = total.Add(item.LineTotal())
	}
	return total.Round(d.Currency.MinorUnits())
}

// Validate checks the draft.
func (d OrderDraft) Validate() error {
	if strings.TrimSpace(d.UserID) == "" {
		return ErrInvalidUserID
	}
	if !d.Currency.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, d.Currency)
	}
	if len(d.Items) == 0 {
		return ErrEmptyOrder
	}
	for i, item := range d.Items {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity <= 0 || item.Price.IsNegative() {
			return fmt.Errorf("%w: line %d", ErrInvalidOrderItem, i+1)
		}
	}
	if !d.Total().IsPositive() {
		return fmt.Errorf("%w: order total must be greater than 0", domain.ErrInvalidAmount)
	}
	return nil
}

// CreateOrderRequest contains the parameters for creating an order.
type CreateOrderRequest struct {
	Draft            OrderDraft
	PaymentMethod    domain.PaymentMethod
	PaymentReference string
}

// CreateOrder persists an order. Orders are idempotent on PaymentReference:
// a second call with the same reference returns the existing order.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	if err := req.Draft.Validate(); err != nil {
		return nil, err
	}

	switch req.PaymentMethod {
	case domain.PaymentMethodCOD:
	case domain.PaymentMethodBakong:
		if req.PaymentReference == "" {
			return nil, ErrMissingPaymentReference
		}
	default:
		return nil, ErrInvalidPaymentMethod
	}

	if req.PaymentReference != "" {
		existing, err := s.orderRepo.GetByPaymentReference(ctx, req.PaymentReference)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	now := s.now()
	order := &domain.Order{
		ID:               uuid.New().String(),
		UserID:           req.Draft.UserID,
		Items:            req.Draft.Items,
		TotalAmount:      req.Draft.Total(),
		Currency:         req.Draft.Currency,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		Status:           domain.OrderStatusPending,
		ShippingAddress:  req.Draft.ShippingAddress,
		TrackingNumber:   generateTrackingNumber(now),
		ShippingCarrier:  domain.DefaultShippingCarrier,
		CreatedAt:        now,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicate) && req.PaymentReference != "" {
			// Lost a race with a concurrent create for the same payment.
			existing, getErr := s.orderRepo.GetByPaymentReference(ctx, req.PaymentReference)
			if getErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	log.Info().
		Str("order_id", order.ID).
		Str("payment_method", string(order.PaymentMethod)).
		Str("total", order.TotalAmount.StringFixed(order.Currency.MinorUnits())).
		Str("tracking_number", order.TrackingNumber).
		Msg("order created")

	if s.cache != nil {
		if err := s.cache.SetOrder(ctx, order); err != nil {
			log.Warn().Err(err).Str("order_id", order.ID).Msg("failed to cache order")
		}
	}
	_ = s.notifier.NotifyOrderCreated(ctx, order)

	return order, nil
}

// PlaceCashOrder persists a cash-on-delivery order immediately.
func (s *OrderService) PlaceCashOrder(ctx context.Context, draft OrderDraft) (*domain.Order, error) {
	return s.CreateOrder(ctx, CreateOrderRequest{Draft: draft, PaymentMethod: domain.PaymentMethodCOD})
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	if s.cache != nil {
		cached, err := s.cache.GetOrder(ctx, orderID)
		if err != nil {
			log.Warn().Err(err).Str("order_id", orderID).Msg("order cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.SetOrder(ctx, order)
	}
	return order, nil
}

const trackingAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateTrackingNumber returns RCF-<unix seconds>-<4 base36 characters>.
func generateTrackingNumber(now time.Time) string {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = trackingAlphabet[rand.Intn(len(trackingAlphabet))]
	}
	return fmt.Sprintf("RCF-%d-%s", now.Unix(), suffix)
}
