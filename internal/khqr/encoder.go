package khqr

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"coffeeshop/internal/domain"
)

// DefaultTTL is how long a generated code stays payable.
const DefaultTTL = 5 * time.Minute

// Tags of the top-level payload, in emission order.
const (
	tagPayloadFormat    = "00"
	tagInitiationMethod = "01"
	tagIndividual       = "29"
	tagCategoryCode     = "52"
	tagCurrency         = "53"
	tagAmount           = "54"
	tagCountryCode      = "58"
	tagMerchantName     = "59"
	tagMerchantCity     = "60"
	tagAdditionalData   = "62"
	tagLanguage         = "64"
	tagTimestamp        = "99"
	tagCRC              = "63"
)

// Sub-tags.
const (
	subAccountID     = "00"
	subAccountInfo   = "01"
	subAcquiringBank = "02"

	subBillNumber    = "01"
	subMobileNumber  = "02"
	subStoreLabel    = "03"
	subTerminalLabel = "07"
	subPurpose       = "08"

	subLanguagePreference = "00"
	subMerchantNameAlt    = "01"
	subMerchantCityAlt    = "02"

	subCreatedAt = "00"
	subExpiresAt = "01"
)

const (
	payloadFormatIndicator = "01"
	initiationDynamic      = "12"
	defaultCategoryCode    = "5999"
	countryCambodia        = "KH"
)

// Encoder builds KHQR payloads for a fixed merchant.
type Encoder struct {
	merchant domain.MerchantIdentity
	ttl      time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time // creation time of the previous payload
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(e *Encoder) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Encoder) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEncoder creates an Encoder for merchant.
func NewEncoder(merchant domain.MerchantIdentity, opts ...Option) *Encoder {
	e := &Encoder{
		merchant: merchant,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MissingFields lists the env names of required merchant settings that are empty.
func (e *Encoder) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(e.merchant.AccountID) == "" {
		missing = append(missing, "BAKONG_ACCOUNT_ID")
	}
	if strings.TrimSpace(e.merchant.MerchantName) == "" {
		missing = append(missing, "BAKONG_MERCHANT_NAME")
	}
	if strings.TrimSpace(e.merchant.MerchantCity) == "" {
		missing = append(missing, "BAKONG_MERCHANT_CITY")
	}
	return missing
}

// Configured reports whether codes can be generated.
func (e *Encoder) Configured() bool {
	return len(e.MissingFields()) == 0
}

// RoundAmount rounds amount to the currency's minor units and rejects anything non-positive.
func RoundAmount(amount float64, currency domain.Currency) (decimal.Decimal, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return decimal.Zero, fmt.Errorf("%w: amount must be a finite number", domain.ErrInvalidAmount)
	}
	if !currency.Valid() {
		return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, currency)
	}
	rounded := decimal.NewFromFloat(amount).Round(currency.MinorUnits())
	if !rounded.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be greater than 0", domain.ErrInvalidAmount)
	}
	return rounded, nil
}

// Encode builds a payload for amount in currency. billReference may be empty.
func (e *Encoder) Encode(amount float64, currency domain.Currency, billReference string) (*domain.KHQRPayload, error) {
	if missing := e.MissingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing Bakong merchant configuration: %s", domain.ErrConfiguration, strings.Join(missing, ", "))
	}

	rounded, err := RoundAmount(amount, currency)
	if err != nil {
		return nil, err
	}

	createdAt := e.stamp()
	expiresAt := createdAt.Add(e.ttl)
	m := e.merchant
	billReference = strings.TrimSpace(billReference)

	w := &tlvWriter{}
	w.put(tagPayloadFormat, payloadFormatIndicator)
	w.put(tagInitiationMethod, initiationDynamic)
	w.template(tagIndividual, func(sub *tlvWriter) {
		sub.put(subAccountID, m.AccountID)
		sub.put(subAcquiringBank, m.AcquiringBank)
	})
	w.put(tagCategoryCode, defaultCategoryCode)
	w.put(tagCurrency, currency.NumericCode())
	w.put(tagAmount, rounded.StringFixed(currency.MinorUnits()))
	w.put(tagCountryCode, countryCambodia)
	w.put(tagMerchantName, m.MerchantName)
	w.put(tagMerchantCity, m.MerchantCity)
	w.template(tagAdditionalData, func(sub *tlvWriter) {
		sub.put(subBillNumber, billReference)
		sub.put(subMobileNumber, m.MobileNumber)
		sub.put(subStoreLabel, m.StoreLabel)
		sub.put(subTerminalLabel, m.TerminalLabel)
		sub.put(subPurpose, m.PurposeOfTransaction)
	})
	if m.MerchantNameAlt != "" {
		w.template(tagLanguage, func(sub *tlvWriter) {
			sub.put(subLanguagePreference, m.LanguagePreference)
			sub.put(subMerchantNameAlt, m.MerchantNameAlt)
			sub.put(subMerchantCityAlt, m.MerchantCityAlt)
		})
	}
	w.template(tagTimestamp, func(sub *tlvWriter) {
		sub.put(subCreatedAt, strconv.FormatInt(createdAt.UnixMilli(), 10))
		sub.put(subExpiresAt, strconv.FormatInt(expiresAt.UnixMilli(), 10))
	})
	if w.err != nil {
		return nil, w.err
	}

	body := w.String() + crcTagHeader
	encoded := body + checksum(body)

	return &domain.KHQRPayload{
		EncodedString: encoded,
		ContentHash:   ContentHash(encoded),
		Amount:        rounded,
		Currency:      currency,
		BillReference: billReference,
		CreatedAt:     createdAt,
		ExpiresAt:     expiresAt,
	}, nil
}

// stamp returns the creation time of a new payload, at millisecond resolution and strictly
// after the previous one so back-to-back encodes get distinct hashes.
func (e *Encoder) stamp() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.now().Truncate(time.Millisecond)
	if !t.After(e.last) {
		t = e.last.Add(time.Millisecond)
	}
	e.last = t
	return t
}

// ContentHash returns the lowercase hex MD5 of payload, the key the payment switch indexes by.
func ContentHash(payload string) string {
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}
