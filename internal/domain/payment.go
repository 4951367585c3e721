package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAcquiringBank is used when no acquiring bank is configured.
const DefaultAcquiringBank = "National Bank of Cambodia"

// MerchantIdentity is the merchant side of every KHQR payload.
// It is loaded once at start and never mutated.
type MerchantIdentity struct {
	AccountID     string
	MerchantName  string
	MerchantCity  string
	AcquiringBank string
	MobileNumber  string

	StoreLabel           string
	TerminalLabel        string
	PurposeOfTransaction string

	LanguagePreference string
	MerchantNameAlt    string
	MerchantCityAlt    string
}

// KHQRPayload is an encoded KHQR string and the hash used to look it up.
type KHQRPayload struct {
	EncodedString string
	ContentHash   string
	Amount        decimal.Decimal
	Currency      Currency
	BillReference string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// FormattedAmount renders the amount with the currency's minor units.
func (p *KHQRPayload) FormattedAmount() string {
	return p.Amount.StringFixed(p.Currency.MinorUnits())
}

// VerificationStatus is the result kind of a single settlement lookup.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationError    VerificationStatus = "ERROR"
)

// VerificationOutcome is produced by each poll against the payment switch.
type VerificationOutcome struct {
	Status        VerificationStatus
	TransactionID string
	// Synthesized is set when the switch confirmed settlement without returning a reference
	// and TransactionID was generated locally.
	Synthesized bool
	Message     string
}

// Verified reports whether the outcome confirms settlement.
func (o VerificationOutcome) Verified() bool {
	return o.Status == VerificationVerified
}

// PendingOutcome returns a Pending outcome with the given message.
func PendingOutcome(msg string) VerificationOutcome {
	return VerificationOutcome{Status: VerificationPending, Message: msg}
}

// VerifiedOutcome returns a Verified outcome for a bank-issued transaction id.
func VerifiedOutcome(transactionID string) VerificationOutcome {
	return VerificationOutcome{Status: VerificationVerified, TransactionID: transactionID}
}

// ErrorOutcome returns a retryable Error outcome.
func ErrorOutcome(msg string) VerificationOutcome {
	return VerificationOutcome{Status: VerificationError, Message: msg}
}

// SessionState represents the current state of a payment session.
type SessionState string

const (
	SessionAwaitingPayment SessionState = "AWAITING_PAYMENT"
	SessionVerified        SessionState = "VERIFIED"
	SessionExpired         SessionState = "EXPIRED"
	SessionFailed          SessionState = "FAILED"
	SessionCancelled       SessionState = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s SessionState) Terminal() bool {
	return s != SessionAwaitingPayment
}
