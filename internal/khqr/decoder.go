package khqr

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"coffeeshop/internal/domain"
)

// ErrChecksumMismatch is returned when the tag 63 checksum does not match the payload.
var ErrChecksumMismatch = errors.New("khqr checksum mismatch")

// Decoded is the parsed form of a KHQR payload.
type Decoded struct {
	PayloadFormat    string
	InitiationMethod string

	AccountID     string
	AccountInfo   string
	AcquiringBank string

	MerchantCategoryCode string
	Currency             domain.Currency
	Amount               decimal.Decimal
	CountryCode          string
	MerchantName         string
	MerchantCity         string

	BillNumber    string
	MobileNumber  string
	StoreLabel    string
	TerminalLabel string
	Purpose       string

	LanguagePreference string
	MerchantNameAlt    string
	MerchantCityAlt    string

	CreatedAt time.Time
	ExpiresAt time.Time

	CRC    string
	Fields []Field
}

// Dynamic reports whether the code embeds an amount for one-time use.
func (d *Decoded) Dynamic() bool {
	return d.InitiationMethod == initiationDynamic
}

// Expired reports whether the embedded expiration lies before now.
func (d *Decoded) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && now.After(d.ExpiresAt)
}

// Decode parses payload and checks its checksum.
func Decode(payload string) (*Decoded, error) {
	if !VerifyCRC(payload) {
		return nil, ErrChecksumMismatch
	}

	fields, err := ParseFields(payload)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields[len(fields)-1].Tag != tagCRC {
		return nil, fmt.Errorf("%w: checksum is not the last field", ErrMalformedPayload)
	}

	d := &Decoded{Fields: fields}
	for _, f := range fields {
		switch f.Tag {
		case tagPayloadFormat:
			d.PayloadFormat = f.Value
		case tagInitiationMethod:
			d.InitiationMethod = f.Value
		case tagIndividual:
			sub, err := ParseFields(f.Value)
			if err != nil {
				return nil, err
			}
			d.AccountID, _ = lookup(sub, subAccountID)
			d.AccountInfo, _ = lookup(sub, subAccountInfo)
			d.AcquiringBank, _ = lookup(sub, subAcquiringBank)
		case tagCategoryCode:
			d.MerchantCategoryCode = f.Value
		case tagCurrency:
			c, ok := domain.CurrencyFromNumeric(f.Value)
			if !ok {
				return nil, fmt.Errorf("%w: currency code %s", domain.ErrInvalidCurrency, f.Value)
			}
			d.Currency = c
		case tagAmount:
			amount, err := decimal.NewFromString(f.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: amount %q", ErrMalformedPayload, f.Value)
			}
			d.Amount = amount
		case tagCountryCode:
			d.CountryCode = f.Value
		case tagMerchantName:
			d.MerchantName = f.Value
		case tagMerchantCity:
			d.MerchantCity = f.Value
		case tagAdditionalData:
			sub, err := ParseFields(f.Value)
			if err != nil {
				return nil, err
			}
			d.BillNumber, _ = lookup(sub, subBillNumber)
			d.MobileNumber, _ = lookup(sub, subMobileNumber)
			d.StoreLabel, _ = lookup(sub, subStoreLabel)
			d.TerminalLabel, _ = lookup(sub, subTerminalLabel)
			d.Purpose, _ = lookup(sub, subPurpose)
		case tagLanguage:
			sub, err := ParseFields(f.Value)
			if err != nil {
				return nil, err
			}
			d.LanguagePreference, _ = lookup(sub, subLanguagePreference)
			d.MerchantNameAlt, _ = lookup(sub, subMerchantNameAlt)
			d.MerchantCityAlt, _ = lookup(sub, subMerchantCityAlt)
		case tagTimestamp:
			sub, err := ParseFields(f.Value)
			if err != nil {
				return nil, err
			}
			if d.CreatedAt, err = parseMillis(sub, subCreatedAt); err != nil {
				return nil, err
			}
			if d.ExpiresAt, err = parseMillis(sub, subExpiresAt); err != nil {
				return nil, err
			}
		case tagCRC:
			d.CRC = f.Value
		}
	}
	return d, nil
}

func parseMillis(fields []Field, tag string) (time.Time, error) {
	v, ok := lookup(fields, tag)
	if !ok {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrMalformedPayload, v)
	}
	return time.UnixMilli(ms), nil
}

// DeepLink returns the Bakong app link that opens payload directly on a phone.
func DeepLink(payload string) string {
	return "bakong://pay?data=" + url.QueryEscape(payload)
}
