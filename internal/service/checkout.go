package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"coffeeshop/internal/domain"
	"coffeeshop/internal/khqr"
	"coffeeshop/internal/session"
)

// callbackTimeout bounds the work done when a session ends.
const callbackTimeout = 15 * time.Second

// resultRetention is how long the order id of a verified checkout stays readable.
const resultRetention = time.Hour

const (
	orderAttempts = 4
	orderBackoff  = 500 * time.Millisecond
)

// SessionManager runs one payment session per checkout.
type SessionManager interface {
	Start(ctx context.Context, p session.Params, cb session.Callbacks) (*session.Session, error)
	Get(checkoutID string) (*session.Session, error)
	Regenerate(ctx context.Context, checkoutID string) (*session.Session, error)
	Cancel(checkoutID string) error
}

// CheckoutService drives Bakong checkouts: it starts payment sessions and turns
// verified payments into orders.
type CheckoutService struct {
	sessions SessionManager
	orders   *OrderService
	notifier *NotificationService

	// backoff is the first wait between order attempts; it doubles per attempt.
	backoff time.Duration

	mu      sync.RWMutex
	results map[string]checkoutResult
}

type checkoutResult struct {
	sessionID string
	draft     OrderDraft
	txID      string
	orderID   string
	err       error
	at        time.Time
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(sessions SessionManager, orders *OrderService, notifier *NotificationService) *CheckoutService {
	if notifier == nil {
		notifier = NewNotificationService(nil)
	}
	return &CheckoutService{
		sessions: sessions,
		orders:   orders,
		notifier: notifier,
		backoff:  orderBackoff,
		results:  make(map[string]checkoutResult),
	}
}

// StartCheckoutRequest contains the parameters for a Bakong checkout.
type StartCheckoutRequest struct {
	CheckoutID string // optional, generated when empty
	Draft      OrderDraft
}

// CheckoutView is the client-facing state of a Bakong checkout.
type CheckoutView struct {
	CheckoutID       string
	State            domain.SessionState
	SecondsRemaining int
	Payload          domain.KHQRPayload
	DeepLink         string
	TransactionID    string
	Synthesized      bool
	OrderID          string
	Error            string
}

// StartBakongCheckout validates the draft and starts a payment session for its total.
// Starting again with the same checkout id replaces the previous code.
func (s *CheckoutService) StartBakongCheckout(ctx context.Context, req StartCheckoutRequest) (*CheckoutView, error) {
	if err := req.Draft.Validate(); err != nil {
		return nil, err
	}

	checkoutID := strings.TrimSpace(req.CheckoutID)
	if checkoutID == "" {
		checkoutID = uuid.New().String()
	}

	draft := req.Draft
	sess, err := s.sessions.Start(ctx, session.Params{
		CheckoutID:    checkoutID,
		Amount:        draft.Total().InexactFloat64(),
		Currency:      draft.Currency,
		BillReference: billReference(checkoutID),
	}, s.callbacks(draft))
	if err != nil {
		return nil, err
	}
	return s.view(sess.Snapshot()), nil
}

// GetCheckout returns the current state of a checkout. A verified checkout whose
// order could not be created is retried here, once per call.
func (s *CheckoutService) GetCheckout(ctx context.Context, checkoutID string) (*CheckoutView, error) {
	if checkoutID == "" {
		return nil, ErrInvalidCheckoutID
	}
	sess, err := s.sessions.Get(checkoutID)
	if err != nil {
		return nil, err
	}
	snap := sess.Snapshot()

	s.mu.RLock()
	result, ok := s.results[checkoutID]
	s.mu.RUnlock()
	if ok && result.err != nil && result.sessionID == snap.ID {
		s.retryOrder(ctx, checkoutID, result)
	}
	return s.view(snap), nil
}

// RegenerateCheckout issues a fresh code for the same draft.
func (s *CheckoutService) RegenerateCheckout(ctx context.Context, checkoutID string) (*CheckoutView, error) {
	if checkoutID == "" {
		return nil, ErrInvalidCheckoutID
	}
	sess, err := s.sessions.Regenerate(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	return s.view(sess.Snapshot()), nil
}

// CancelCheckout abandons the checkout, e.g. when the customer switches payment method.
func (s *CheckoutService) CancelCheckout(checkoutID string) error {
	if checkoutID == "" {
		return ErrInvalidCheckoutID
	}
	return s.sessions.Cancel(checkoutID)
}

func (s *CheckoutService) callbacks(draft OrderDraft) session.Callbacks {
	return session.Callbacks{
		OnVerified: func(snap session.Snapshot) { s.onPaymentVerified(draft, snap) },
		OnExpired: func(snap session.Snapshot) {
			ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
			defer cancel()
			_ = s.notifier.NotifyPaymentExpired(ctx, snap.CheckoutID, snap.Payload)
		},
		OnFailed: func(snap session.Snapshot) {
			log.Error().Err(snap.Err).Str("checkout_id", snap.CheckoutID).Msg("bakong checkout failed")
		},
	}
}

// onPaymentVerified creates the order for a settled checkout, retrying transient
// failures until callbackTimeout runs out.
func (s *CheckoutService) onPaymentVerified(draft OrderDraft, snap session.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()

	result := checkoutResult{sessionID: snap.ID, draft: draft, txID: snap.TransactionID}
	wait := s.backoff
	for attempt := 1; ; attempt++ {
		result.orderID, result.err = s.createOrder(ctx, draft, snap.TransactionID)
		if result.err == nil || attempt == orderAttempts {
			break
		}
		log.Warn().Err(result.err).
			Str("checkout_id", snap.CheckoutID).
			Int("attempt", attempt).
			Msg("order creation failed, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		wait *= 2
	}

	if result.err != nil {
		log.Error().Err(result.err).
			Str("checkout_id", snap.CheckoutID).
			Str("transaction_id", snap.TransactionID).
			Msg("payment verified but order creation failed")
	}
	s.storeResult(snap.CheckoutID, result)

	_ = s.notifier.NotifyPaymentVerified(ctx, snap.CheckoutID, snap.Payload, snap.TransactionID, snap.Synthesized, result.orderID)
}

// retryOrder makes one more attempt for a verified checkout that has no order yet.
func (s *CheckoutService) retryOrder(ctx context.Context, checkoutID string, result checkoutResult) {
	orderID, err := s.createOrder(ctx, result.draft, result.txID)
	if err != nil {
		log.Warn().Err(err).Str("checkout_id", checkoutID).Msg("order retry failed")
		result.err = err
	} else {
		log.Info().Str("checkout_id", checkoutID).Str("order_id", orderID).Msg("order created on retry")
		result.orderID, result.err = orderID, nil
	}
	s.storeResult(checkoutID, result)
}

func (s *CheckoutService) createOrder(ctx context.Context, draft OrderDraft, transactionID string) (string, error) {
	order, err := s.orders.CreateOrder(ctx, CreateOrderRequest{
		Draft:            draft,
		PaymentMethod:    domain.PaymentMethodBakong,
		PaymentReference: transactionID,
	})
	if err != nil {
		return "", err
	}
	return order.ID, nil
}

func (s *CheckoutService) storeResult(checkoutID string, result checkoutResult) {
	result.at = time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.results {
		if time.Since(r.at) > resultRetention {
			delete(s.results, id)
		}
	}
	// A success recorded concurrently is never overwritten by a failure.
	if prev, ok := s.results[checkoutID]; ok && prev.sessionID == result.sessionID && prev.err == nil && result.err != nil {
		return
	}
	s.results[checkoutID] = result
}

func (s *CheckoutService) view(snap session.Snapshot) *CheckoutView {
	v := &CheckoutView{
		CheckoutID:       snap.CheckoutID,
		State:            snap.State,
		SecondsRemaining: snap.SecondsRemaining,
		Payload:          snap.Payload,
		DeepLink:         deepLink(snap.Payload),
		TransactionID:    snap.TransactionID,
		Synthesized:      snap.Synthesized,
	}
	if snap.Err != nil {
		v.Error = snap.Err.Error()
	}

	s.mu.RLock()
	result, ok := s.results[snap.CheckoutID]
	s.mu.RUnlock()
	if ok && result.sessionID == snap.ID {
		v.OrderID = result.orderID
		if result.err != nil {
			v.Error = result.err.Error()
		}
	}
	return v
}

// billReference derives the tag 62 bill number from a checkout id.
func billReference(checkoutID string) string {
	ref := strings.ToUpper(strings.ReplaceAll(checkoutID, "-", ""))
	if len(ref) > 12 {
		ref = ref[:12]
	}
	return "ORD-" + ref
}

func deepLink(p domain.KHQRPayload) string {
	if p.EncodedString == "" {
		return ""
	}
	return khqr.DeepLink(p.EncodedString)
}
