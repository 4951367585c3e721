package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coffeeshop/internal/domain"
	"coffeeshop/internal/service"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	orderService *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// CreateOrderRequest is the HTTP request body for placing an order.
type CreateOrderRequest struct {
	UserID          string             `json:"user_id"`
	Items           []OrderItemRequest `json:"items"`
	Currency        string             `json:"currency"`
	PaymentMethod   string             `json:"payment_method"`
	ShippingAddress string             `json:"shipping_address"`
}

// CreateOrder handles POST /v1/orders
// Only cash on delivery is accepted here; Bakong orders are created by a verified checkout.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.PaymentMethod != "" && domain.PaymentMethod(req.PaymentMethod) != domain.PaymentMethodCOD {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "payment_method must be COD; use /v1/checkout/bakong for Bakong"})
		return
	}

	draft, err := toDraft(req.UserID, req.Items, req.Currency, req.ShippingAddress)
	if err != nil {
		respondError(c, err)
		return
	}

	order, err := h.orderService.PlaceCashOrder(c.Request.Context(), draft)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, order)
}

// GetOrder handles GET /v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, order)
}
