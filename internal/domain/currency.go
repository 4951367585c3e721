package domain

import "strings"

// Currency is a KHQR transaction currency.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyKHR Currency = "KHR"
)

// ParseCurrency normalizes a currency code. An empty string yields the zero value and false.
func ParseCurrency(s string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	return c, c.Valid()
}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	return c == CurrencyUSD || c == CurrencyKHR
}

// NumericCode returns the ISO 4217 numeric code used in tag 53.
func (c Currency) NumericCode() string {
	switch c {
	case CurrencyUSD:
		return "840"
	case CurrencyKHR:
		return "116"
	default:
		return ""
	}
}

// MinorUnits returns the number of decimal places carried by the currency.
func (c Currency) MinorUnits() int32 {
	if c == CurrencyKHR {
		return 0
	}
	return 2
}

// CurrencyFromNumeric maps an ISO 4217 numeric code back to a Currency.
func CurrencyFromNumeric(code string) (Currency, bool) {
	switch code {
	case "840":
		return CurrencyUSD, true
	case "116":
		return CurrencyKHR, true
	default:
		return "", false
	}
}
