package domain

import "strings"

// currencyExponents lists currencies whose minor unit is not 1/100.
var currencyExponents = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"UGX": 0,
	"RWF": 0,
	"XOF": 0,
	"XAF": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
	"TND": 3,
}

// CurrencyExponent returns the number of minor-unit digits of an ISO 4217 code.
func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[NormalizeCurrency(currency)]; ok {
		return exp
	}
	return 2
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// ParseProviderStatus maps the status vocabulary used by payment providers onto
// the statuses the matcher compares.
func ParseProviderStatus(raw string) ProviderStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETED", "SUCCEEDED", "SUCCESS", "SETTLED", "CAPTURED", "PAID":
		return ProviderStatusCompleted
	case "REFUNDED", "REVERSED", "CHARGED_BACK":
		return ProviderStatusRefunded
	case "FAILED", "DECLINED", "CANCELLED", "CANCELED", "ERROR":
		return ProviderStatusFailed
	default:
		return ProviderStatusPending
	}
}
