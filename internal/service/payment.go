package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"coffeeshop/internal/domain"
	"coffeeshop/internal/khqr"
)

// QREncoder builds KHQR payloads.
type QREncoder interface {
	Encode(amount float64, currency domain.Currency, billReference string) (*domain.KHQRPayload, error)
	MissingFields() []string
}

// PaymentVerifier looks up settlement for a content hash.
type PaymentVerifier interface {
	Verify(ctx context.Context, contentHash string) (domain.VerificationOutcome, error)
	Configured() bool
}

// PaymentService is the KHQR gateway: code generation, one-shot verification and decoding.
type PaymentService struct {
	encoder         QREncoder
	verifier        PaymentVerifier
	defaultCurrency domain.Currency
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(encoder QREncoder, verifier PaymentVerifier, defaultCurrency domain.Currency) *PaymentService {
	if !defaultCurrency.Valid() {
		defaultCurrency = domain.CurrencyUSD
	}
	return &PaymentService{
		encoder:         encoder,
		verifier:        verifier,
		defaultCurrency: defaultCurrency,
	}
}

// GenerateQRRequest contains the parameters for generating a KHQR code.
type GenerateQRRequest struct {
	Amount        float64
	Currency      string // empty means the configured default
	BillReference string
}

// QRCode is a generated KHQR code ready to render.
type QRCode struct {
	Payload  *domain.KHQRPayload
	DeepLink string
}

// GenerateQR encodes a payment request.
func (s *PaymentService) GenerateQR(ctx context.Context, req GenerateQRRequest) (*QRCode, error) {
	currency, err := s.resolveCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	payload, err := s.encoder.Encode(req.Amount, currency, req.BillReference)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("md5", payload.ContentHash).
		Str("amount", payload.FormattedAmount()).
		Str("currency", string(currency)).
		Str("bill_reference", payload.BillReference).
		Msg("khqr generated")

	return &QRCode{Payload: payload, DeepLink: khqr.DeepLink(payload.EncodedString)}, nil
}

func (s *PaymentService) resolveCurrency(raw string) (domain.Currency, error) {
	if strings.TrimSpace(raw) == "" {
		return s.defaultCurrency, nil
	}
	currency, ok := domain.ParseCurrency(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, raw)
	}
	return currency, nil
}

// VerifyPayment performs a single settlement lookup.
// Only a malformed hash or missing configuration is an error; everything else is in the outcome.
func (s *PaymentService) VerifyPayment(ctx context.Context, contentHash string) (domain.VerificationOutcome, error) {
	contentHash = strings.ToLower(strings.TrimSpace(contentHash))
	if !validContentHash(contentHash) {
		return domain.VerificationOutcome{}, ErrInvalidContentHash
	}
	return s.verifier.Verify(ctx, contentHash)
}

func validContentHash(h string) bool {
	if len(h) != 32 {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}

// DecodedPayload is a decoded KHQR string with derived fields.
type DecodedPayload struct {
	*khqr.Decoded
	ContentHash string
	Expired     bool
}

// Decode parses a KHQR string and checks its checksum.
func (s *PaymentService) Decode(payload string) (*DecodedPayload, error) {
	payload = strings.TrimSpace(payload)
	d, err := khqr.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &DecodedPayload{
		Decoded:     d,
		ContentHash: khqr.ContentHash(payload),
		Expired:     d.Expired(time.Now()),
	}, nil
}

// GatewayStatus reports whether the gateway can generate and verify codes.
type GatewayStatus struct {
	EncoderConfigured  bool
	MissingFields      []string
	VerifierConfigured bool
	DefaultCurrency    domain.Currency
}

// Status returns the gateway configuration state.
func (s *PaymentService) Status() GatewayStatus {
	missing := s.encoder.MissingFields()
	return GatewayStatus{
		EncoderConfigured:  len(missing) == 0,
		MissingFields:      missing,
		VerifierConfigured: s.verifier.Configured(),
		DefaultCurrency:    s.defaultCurrency,
	}
}
