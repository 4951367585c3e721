package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"coffeeshop/internal/domain"
	"coffeeshop/internal/events"
)

// NotificationService publishes payment and order events.
type NotificationService struct {
	publisher events.Publisher
	now       func() time.Time
}

// NewNotificationService creates a new NotificationService. A nil publisher discards events.
func NewNotificationService(publisher events.Publisher) *NotificationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &NotificationService{publisher: publisher, now: time.Now}
}

// NotifyPaymentVerified announces a settled KHQR payment.
func (s *NotificationService) NotifyPaymentVerified(ctx context.Context, checkoutID string, payload domain.KHQRPayload, transactionID string, synthesized bool, orderID string) error {
	return s.send(ctx, events.KeyPaymentVerified, events.PaymentVerified{
		CheckoutID:    checkoutID,
		OrderID:       orderID,
		TransactionID: transactionID,
		Synthesized:   synthesized,
		MD5:           payload.ContentHash,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		VerifiedAt:    s.now(),
	})
}

// NotifyPaymentExpired announces a KHQR code that ran out unpaid.
func (s *NotificationService) NotifyPaymentExpired(ctx context.Context, checkoutID string, payload domain.KHQRPayload) error {
	return s.send(ctx, events.KeyPaymentExpired, events.PaymentExpired{
		CheckoutID: checkoutID,
		MD5:        payload.ContentHash,
		Amount:     payload.Amount,
		Currency:   payload.Currency,
		ExpiredAt:  s.now(),
	})
}

// NotifyOrderCreated announces a persisted order.
func (s *NotificationService) NotifyOrderCreated(ctx context.Context, order *domain.Order) error {
	return s.send(ctx, events.KeyOrderCreated, events.OrderCreated{
		OrderID:          order.ID,
		UserID:           order.UserID,
		TotalAmount:      order.TotalAmount,
		Currency:         order.Currency,
		PaymentMethod:    order.PaymentMethod,
		PaymentReference: order.PaymentReference,
		TrackingNumber:   order.TrackingNumber,
		CreatedAt:        order.CreatedAt,
	})
}

func (s *NotificationService) send(ctx context.Context, routingKey string, event any) error {
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		log.Error().Err(err).Str("routing_key", routingKey).Msg("failed to publish event")
		return err
	}
	log.Debug().Str("routing_key", routingKey).Msg("event published")
	return nil
}
