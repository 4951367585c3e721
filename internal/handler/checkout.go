package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"coffeeshop/internal/domain"
	"coffeeshop/internal/service"
)

// CheckoutHandler handles HTTP requests for Bakong checkouts.
type CheckoutHandler struct {
	checkoutService *service.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkoutService *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

// OrderItemRequest is one line of an order in a request body.
type OrderItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// StartCheckoutRequest is the HTTP request body for starting a Bakong checkout.
type StartCheckoutRequest struct {
	CheckoutID      string             `json:"checkout_id"`
	UserID          string             `json:"user_id"`
	Items           []OrderItemRequest `json:"items"`
	Currency        string             `json:"currency"`
	ShippingAddress string             `json:"shipping_address"`
}

// CheckoutResponse is the HTTP response for checkout operations.
type CheckoutResponse struct {
	CheckoutID       string    `json:"checkout_id"`
	State            string    `json:"state"`
	SecondsRemaining int       `json:"seconds_remaining"`
	QRCode           string    `json:"qr_code"`
	MD5              string    `json:"md5"`
	Amount           string    `json:"amount"`
	Currency         string    `json:"currency"`
	BillNumber       string    `json:"bill_number,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
	DeepLink         string    `json:"deep_link"`
	TransactionID    string    `json:"transaction_id,omitempty"`
	Synthesized      bool      `json:"synthesized,omitempty"`
	OrderID          string    `json:"order_id,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// StartCheckout handles POST /v1/checkout/bakong
func (h *CheckoutHandler) StartCheckout(c *gin.Context) {
	var req StartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	draft, err := toDraft(req.UserID, req.Items, req.Currency, req.ShippingAddress)
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := h.checkoutService.StartBakongCheckout(c.Request.Context(), service.StartCheckoutRequest{
		CheckoutID: req.CheckoutID,
		Draft:      draft,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toCheckoutResponse(view))
}

// GetCheckout handles GET /v1/checkout/bakong/:checkoutID
func (h *CheckoutHandler) GetCheckout(c *gin.Context) {
	view, err := h.checkoutService.GetCheckout(c.Request.Context(), c.Param("checkoutID"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toCheckoutResponse(view))
}

// RegenerateCheckout handles POST /v1/checkout/bakong/:checkoutID/regenerate
func (h *CheckoutHandler) RegenerateCheckout(c *gin.Context) {
	view, err := h.checkoutService.RegenerateCheckout(c.Request.Context(), c.Param("checkoutID"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toCheckoutResponse(view))
}

// CancelCheckout handles DELETE /v1/checkout/bakong/:checkoutID
func (h *CheckoutHandler) CancelCheckout(c *gin.Context) {
	if err := h.checkoutService.CancelCheckout(c.Param("checkoutID")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// toDraft converts request fields to an order draft. An empty currency means USD.
func toDraft(userID string, items []OrderItemRequest, currency, shippingAddress string) (service.OrderDraft, error) {
	cur := domain.CurrencyUSD
	if currency != "" {
		parsed, ok := domain.ParseCurrency(currency)
		if !ok {
			return service.OrderDraft{}, domain.ErrInvalidCurrency
		}
		cur = parsed
	}

	lines := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	return service.OrderDraft{
		UserID:          userID,
		Items:           lines,
		Currency:        cur,
		ShippingAddress: shippingAddress,
	}, nil
}

func toCheckoutResponse(v *service.CheckoutView) CheckoutResponse {
	return CheckoutResponse{
		CheckoutID:       v.CheckoutID,
		State:            string(v.State),
		SecondsRemaining: v.SecondsRemaining,
		QRCode:           v.Payload.EncodedString,
		MD5:              v.Payload.ContentHash,
		Amount:           v.Payload.FormattedAmount(),
		Currency:         string(v.Payload.Currency),
		BillNumber:       v.Payload.BillReference,
		ExpiresAt:        v.Payload.ExpiresAt,
		DeepLink:         v.DeepLink,
		TransactionID:    v.TransactionID,
		Synthesized:      v.Synthesized,
		OrderID:          v.OrderID,
		Error:            v.Error,
	}
}
