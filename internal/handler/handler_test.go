package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"coffeeshop/internal/domain"
	"coffeeshop/internal/khqr"
	"coffeeshop/internal/repository"
	"coffeeshop/internal/service"
	"coffeeshop/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ──────────────────────────────────────────────
// MOCK ORDER REPOSITORY
// ──────────────────────────────────────────────

type mockOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[string]*domain.Order)}
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepository) GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if reference != "" && o.PaymentReference == reference {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

// ──────────────────────────────────────────────
// MOCK VERIFIER
// ──────────────────────────────────────────────

type mockVerifier struct {
	outcome       domain.VerificationOutcome
	err           error
	notConfigured bool
}

func (m *mockVerifier) Verify(ctx context.Context, contentHash string) (domain.VerificationOutcome, error) {
	return m.outcome, m.err
}

func (m *mockVerifier) Configured() bool { return !m.notConfigured }

// ──────────────────────────────────────────────
// HELPERS
// ──────────────────────────────────────────────

type testServer struct {
	router *gin.Engine
	repo   *mockOrderRepository
}

func testMerchant() domain.MerchantIdentity {
	return domain.MerchantIdentity{
		AccountID:     "rattanak@aclb",
		MerchantName:  "Rattanak Coffee",
		MerchantCity:  "Phnom Penh",
		AcquiringBank: domain.DefaultAcquiringBank,
	}
}

func newTestServer(t *testing.T, merchant domain.MerchantIdentity, v *mockVerifier) *testServer {
	t.Helper()

	encoder := khqr.NewEncoder(merchant)
	repo := newMockOrderRepository()
	notifier := service.NewNotificationService(nil)
	orders := service.NewOrderService(repo, nil, notifier)

	manager := session.NewManager(encoder, v)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	khqrHandler := NewKHQRHandler(service.NewPaymentService(encoder, v, domain.CurrencyUSD))
	checkoutHandler := NewCheckoutHandler(service.NewCheckoutService(manager, orders, notifier))
	orderHandler := NewOrderHandler(orders)

	r := gin.New()
	v1 := r.Group("/v1")
	v1.POST("/bakong/generate-khqr", khqrHandler.GenerateKHQR)
	v1.POST("/bakong/verify", khqrHandler.VerifyKHQR)
	v1.POST("/bakong/decode", khqrHandler.DecodeKHQR)
	v1.GET("/bakong/status", khqrHandler.Status)
	v1.POST("/checkout/bakong", checkoutHandler.StartCheckout)
	v1.GET("/checkout/bakong/:checkoutID", checkoutHandler.GetCheckout)
	v1.POST("/checkout/bakong/:checkoutID/regenerate", checkoutHandler.RegenerateCheckout)
	v1.DELETE("/checkout/bakong/:checkoutID", checkoutHandler.CancelCheckout)
	v1.POST("/orders", orderHandler.CreateOrder)
	v1.GET("/orders/:id", orderHandler.GetOrder)

	return &testServer{router: r, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func cartBody() map[string]any {
	return map[string]any{
		"user_id": "user-1",
		"items": []map[string]any{
			{"product_id": "espresso-beans", "quantity": 2, "price": "9.75"},
			{"product_id": "drip-filter", "quantity": 1, "price": 5},
		},
		"shipping_address": "St. 240, Phnom Penh",
	}
}

// ──────────────────────────────────────────────
// 1. ERROR MAPPING
// ──────────────────────────────────────────────

func TestMapErrorToHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: amount must be greater than 0", domain.ErrInvalidAmount), http.StatusBadRequest},
		{domain.ErrInvalidCurrency, http.StatusBadRequest},
		{fmt.Errorf("tag 59: %w", khqr.ErrFieldTooLong), http.StatusBadRequest},
		{service.ErrInvalidContentHash, http.StatusBadRequest},
		{service.ErrEmptyOrder, http.StatusBadRequest},
		{fmt.Errorf("%w: missing", domain.ErrConfiguration), http.StatusServiceUnavailable},
		{repository.ErrNotFound, http.StatusNotFound},
		{session.ErrSessionNotFound, http.StatusNotFound},
		{session.ErrSessionCompleted, http.StatusConflict},
		{session.ErrSessionLocked, http.StatusConflict},
		{repository.ErrDuplicate, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := mapErrorToHTTPStatus(tt.err); got != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

// ──────────────────────────────────────────────
// 2. KHQR ENDPOINTS
// ──────────────────────────────────────────────

func TestGenerateKHQR(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testMerchant(), &mockVerifier{})
	w := s.do(t, http.MethodPost, "/v1/bakong/generate-khqr", map[string]any{"amount": 24.504, "billNumber": "ORD-1001"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode[GenerateKHQRResponse](t, w)
	if resp.Amount != 24.5 {
		t.Errorf("expected amount 24.5, got %v", resp.Amount)
	}
	if resp.Currency != "USD" {
		t.Errorf("expected USD, got %s", resp.Currency)
	}
	if resp.MD5 != khqr.ContentHash(resp.QRCode) {
		t.Error("md5 does not match qr code")
	}
	if !khqr.VerifyCRC(resp.QRCode) {
		t.Error("qr code checksum does not verify")
	}
	if resp.DeepLink == "" || resp.ExpiresAt.IsZero() {
		t.Errorf("expected deep link and expiry, got %+v", resp)
	}
}

func TestGenerateKHQR_BadRequests(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testMerchant(), &mockVerifier{})
	tests := []struct {
		name string
		body any
	}{
		{"malformed body", "{"},
		{"zero amount", map[string]any{"amount": 0}},
		{"negative amount", map[string]any{"amount": -3}},
		{"rounds to zero", map[string]any{"amount": 0.001}},
		{"unknown currency", map[string]any{"amount": 5, "currency": "EUR"}},
	}

	for _, tt := range tests {
		w := s.do(t, http.MethodPost, "/v1/bakong/generate-khqr", tt.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", tt.name, w.Code, w.Body.String())
		}
	}
}

func TestGenerateKHQR_Unconfigured(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, domain.MerchantIdentity{}, &mockVerifier{})
	w := s.do(t, http.MethodPost, "/v1/bakong/generate-khqr", map[string]any{"amount": 5})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", w.Code, w.Body.String())
	}
}

func TestVerifyKHQR(t *testing.T) {
	t.Parallel()

	hash := khqr.ContentHash("payload")
	tests := []struct {
		name     string
		verifier *mockVerifier
		body     any
		wantCode int
		want     VerifyKHQRResponse
	}{
		{
			name:     "verified",
			verifier: &mockVerifier{outcome: domain.VerifiedOutcome("abc123")},
			body:     map[string]any{"md5": hash},
			wantCode: http.StatusOK,
			want:     VerifyKHQRResponse{Verified: true, TransactionID: "abc123"},
		},
		{
			name:     "pending",
			verifier: &mockVerifier{outcome: domain.PendingOutcome("Transaction not found")},
			body:     map[string]any{"md5": hash},
			wantCode: http.StatusOK,
			want:     VerifyKHQRResponse{Error: "Transaction not found"},
		},
		{
			name:     "missing md5",
			verifier: &mockVerifier{},
			body:     map[string]any{},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed md5",
			verifier: &mockVerifier{},
			body:     map[string]any{"md5": "not-a-hash"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "not configured",
			verifier: &mockVerifier{err: fmt.Errorf("%w: missing BAKONG_TOKEN", domain.ErrConfiguration)},
			body:     map[string]any{"md5": hash},
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t, testMerchant(), tt.verifier)
			w := s.do(t, http.MethodPost, "/v1/bakong/verify", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if got := decode[VerifyKHQRResponse](t, w); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestDecodeKHQR(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testMerchant(), &mockVerifier{})
	gen := decode[GenerateKHQRResponse](t, s.do(t, http.MethodPost, "/v1/bakong/generate-khqr",
		map[string]any{"amount": 4100, "currency": "KHR", "billNumber": "ORD-7"}))

	w := s.do(t, http.MethodPost, "/v1/bakong/decode", map[string]any{"qrCode": gen.QRCode})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode[DecodeKHQRResponse](t, w)
	if resp.MD5 != gen.MD5 {
		t.Errorf("expected md5 %s, got %s", gen.MD5, resp.MD5)
	}
	if !resp.Dynamic || resp.Expired {
		t.Errorf("expected a live dynamic code, got %+v", resp)
	}
	if resp.Currency != "KHR" || resp.Amount != 4100 {
		t.Errorf("expected 4100 KHR, got %v %s", resp.Amount, resp.Currency)
	}
	if resp.AccountID != "rattanak@aclb" || resp.BillNumber != "ORD-7" {
		t.Errorf("unexpected merchant fields %+v", resp)
	}

	tampered := gen.QRCode[:len(gen.QRCode)-1] + "0"
	if tampered == gen.QRCode {
		tampered = gen.QRCode[:len(gen.QRCode)-1] + "1"
	}
	if w := s.do(t, http.MethodPost, "/v1/bakong/decode", map[string]any{"qrCode": tampered}); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for tampered checksum, got %d", w.Code)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, domain.MerchantIdentity{AccountID: "rattanak@aclb"}, &mockVerifier{notConfigured: true})
	w := s.do(t, http.MethodGet, "/v1/bakong/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	resp := decode[StatusResponse](t, w)
	if resp.CanGenerate || resp.CanVerify {
		t.Errorf("expected nothing configured, got %+v", resp)
	}
	if len(resp.MissingFields) != 2 {
		t.Errorf("expected 2 missing fields, got %v", resp.MissingFields)
	}
}

// ──────────────────────────────────────────────
// 3. CHECKOUT ENDPOINTS
// ──────────────────────────────────────────────

func TestCheckout_StartGetCancel(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testMerchant(), &mockVerifier{outcome: domain.PendingOutcome("")})
	body := cartBody()
	body["checkout_id"] = "chk-1"

	w := s.do(t, http.MethodPost, "/v1/checkout/bakong", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	started := decode[CheckoutResponse](t, w)
	if started.State != string(domain.SessionAwaitingPayment) {
		t.Errorf("expected AWAITING_PAYMENT, got %s", started.State)
	}
	if started.Amount != "24.50" || started.SecondsRemaining != 300 {
		t.Errorf("unexpected checkout %+v", started)
	}

	got := decode[CheckoutResponse](t, s.do(t, http.MethodGet, "/v1/checkout/bakong/chk-1", nil))
	if got.MD5 != started.MD5 {
		t.Errorf("expected md5 %s, got %s", started.MD5, got.MD5)
	}

	if w := s.do(t, http.MethodDelete, "/v1/checkout/bakong/chk-1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	cancelled := decode[CheckoutResponse](t, s.do(t, http.MethodGet, "/v1/checkout/bakong/chk-1", nil))
	if cancelled.State != string(domain.SessionCancelled) {
		t.Errorf("expected CANCELLED, got %s", cancelled.State)
	}
}

func TestCheckout_Errors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testMerchant(), &mockVerifier{})

	if w := s.do(t, http.MethodGet, "/v1/checkout/bakong/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown checkout, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/v1/checkout/bakong/missing/regenerate", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for regenerating unknown checkout, got %d", w.Code)
	}

	empty := cartBody()
	empty["items"] = []map[string]any{}
	if w := s.do(t, http.MethodPost, "/v1/checkout/bakong", empty); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty cart, got %d", w.Code)
	}

	euro := cartBody()
	euro["currency"] = "EUR"
	if w := s.do(t, http.MethodPost, "/v1/checkout/bakong", euro); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported currency, got %d", w.Code)
	}
}

// ──────────────────────────────────────────────
// 4. ORDER ENDPOINTS
// ──────────────────────────────────────────────

func TestCreateOrder_CashOnDelivery(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testMerchant(), &mockVerifier{})
	body := cartBody()
	body["payment_method"] = "COD"

	w := s.do(t, http.MethodPost, "/v1/orders", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	order := decode[domain.Order](t, w)
	if order.PaymentMethod != domain.PaymentMethodCOD {
		t.Errorf("expected COD, got %s", order.PaymentMethod)
	}
	if order.TotalAmount.StringFixed(2) != "24.50" {
		t.Errorf("expected total 24.50, got %s", order.TotalAmount)
	}

	w = s.do(t, http.MethodGet, "/v1/orders/"+order.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[domain.Order](t, w); got.TrackingNumber != order.TrackingNumber {
		t.Errorf("expected tracking %s, got %s", order.TrackingNumber, got.TrackingNumber)
	}
}

func TestCreateOrder_RejectsBakong(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testMerchant(), &mockVerifier{})
	body := cartBody()
	body["payment_method"] = "BAKONG"

	if w := s.do(t, http.MethodPost, "/v1/orders", body); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testMerchant(), &mockVerifier{})
	if w := s.do(t, http.MethodGet, "/v1/orders/nope", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
