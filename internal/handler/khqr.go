package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"coffeeshop/internal/service"
)

// KHQRHandler handles the Bakong KHQR endpoints used by the storefront.
// Field names follow the storefront's camelCase contract.
type KHQRHandler struct {
	paymentService *service.PaymentService
}

// NewKHQRHandler creates a new KHQRHandler.
func NewKHQRHandler(paymentService *service.PaymentService) *KHQRHandler {
	return &KHQRHandler{paymentService: paymentService}
}

// GenerateKHQRRequest is the HTTP request body for generating a KHQR code.
type GenerateKHQRRequest struct {
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	BillNumber string  `json:"billNumber"`
}

// GenerateKHQRResponse is the HTTP response for a generated KHQR code.
type GenerateKHQRResponse struct {
	QRCode    string    `json:"qrCode"`
	MD5       string    `json:"md5"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	ExpiresAt time.Time `json:"expiresAt"`
	DeepLink  string    `json:"deepLink"`
}

// VerifyKHQRRequest is the HTTP request body for a payment lookup.
type VerifyKHQRRequest struct {
	MD5 string `json:"md5"`
}

// VerifyKHQRResponse is the HTTP response for a payment lookup.
type VerifyKHQRResponse struct {
	Verified      bool   `json:"verified"`
	TransactionID string `json:"transactionId,omitempty"`
	Synthesized   bool   `json:"synthesized,omitempty"`
	Error         string `json:"error,omitempty"`
}

// DecodeKHQRRequest is the HTTP request body for decoding a KHQR string.
type DecodeKHQRRequest struct {
	QRCode string `json:"qrCode"`
}

// DecodeKHQRResponse is the HTTP response for a decoded KHQR string.
type DecodeKHQRResponse struct {
	MD5           string     `json:"md5"`
	Dynamic       bool       `json:"dynamic"`
	AccountID     string     `json:"accountId"`
	AcquiringBank string     `json:"acquiringBank,omitempty"`
	MerchantName  string     `json:"merchantName"`
	MerchantCity  string     `json:"merchantCity"`
	Amount        float64    `json:"amount,omitempty"`
	Currency      string     `json:"currency"`
	BillNumber    string     `json:"billNumber,omitempty"`
	StoreLabel    string     `json:"storeLabel,omitempty"`
	TerminalLabel string     `json:"terminalLabel,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	Expired       bool       `json:"expired"`
}

// StatusResponse is the HTTP response for the gateway status.
type StatusResponse struct {
	CanGenerate     bool     `json:"canGenerate"`
	CanVerify       bool     `json:"canVerify"`
	MissingFields   []string `json:"missingFields,omitempty"`
	DefaultCurrency string   `json:"defaultCurrency"`
}

// GenerateKHQR handles POST /v1/bakong/generate-khqr
func (h *KHQRHandler) GenerateKHQR(c *gin.Context) {
	var req GenerateKHQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid amount. Amount must be a positive number."})
		return
	}

	qr, err := h.paymentService.GenerateQR(c.Request.Context(), service.GenerateQRRequest{
		Amount:        req.Amount,
		Currency:      req.Currency,
		BillReference: req.BillNumber,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, GenerateKHQRResponse{
		QRCode:    qr.Payload.EncodedString,
		MD5:       qr.Payload.ContentHash,
		Amount:    qr.Payload.Amount.InexactFloat64(),
		Currency:  string(qr.Payload.Currency),
		ExpiresAt: qr.Payload.ExpiresAt,
		DeepLink:  qr.DeepLink,
	})
}

// VerifyKHQR handles POST /v1/bakong/verify
func (h *KHQRHandler) VerifyKHQR(c *gin.Context) {
	var req VerifyKHQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if strings.TrimSpace(req.MD5) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing md5 hash"})
		return
	}

	outcome, err := h.paymentService.VerifyPayment(c.Request.Context(), req.MD5)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := VerifyKHQRResponse{Verified: outcome.Verified()}
	if resp.Verified {
		resp.TransactionID = outcome.TransactionID
		resp.Synthesized = outcome.Synthesized
	} else {
		resp.Error = outcome.Message
	}
	respondJSON(c, http.StatusOK, resp)
}

// DecodeKHQR handles POST /v1/bakong/decode
func (h *KHQRHandler) DecodeKHQR(c *gin.Context) {
	var req DecodeKHQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if strings.TrimSpace(req.QRCode) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "qrCode is required"})
		return
	}

	d, err := h.paymentService.Decode(req.QRCode)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := DecodeKHQRResponse{
		MD5:           d.ContentHash,
		Dynamic:       d.Dynamic(),
		AccountID:     d.AccountID,
		AcquiringBank: d.AcquiringBank,
		MerchantName:  d.MerchantName,
		MerchantCity:  d.MerchantCity,
		Amount:        d.Amount.InexactFloat64(),
		Currency:      string(d.Currency),
		BillNumber:    d.BillNumber,
		StoreLabel:    d.StoreLabel,
		TerminalLabel: d.TerminalLabel,
		Expired:       d.Expired,
	}
	if !d.CreatedAt.IsZero() {
		resp.CreatedAt = &d.CreatedAt
	}
	if !d.ExpiresAt.IsZero() {
		resp.ExpiresAt = &d.ExpiresAt
	}
	respondJSON(c, http.StatusOK, resp)
}

// Status handles GET /v1/bakong/status
func (h *KHQRHandler) Status(c *gin.Context) {
	st := h.paymentService.Status()
	respondJSON(c, http.StatusOK, StatusResponse{
		CanGenerate:     st.EncoderConfigured,
		CanVerify:       st.VerifierConfigured,
		MissingFields:   st.MissingFields,
		DefaultCurrency: string(st.DefaultCurrency),
	})
}
