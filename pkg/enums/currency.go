package enums

import "strings"

// Currency represents supported order currencies.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyMXN Currency = "MXN"
	CurrencyEUR Currency = "EUR"
)

var validCurrencies = []Currency{CurrencyUSD, CurrencyMXN, CurrencyEUR}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool { return oneOf(validCurrencies, c) }

// ParseCurrency accepts ISO codes in any case.
func ParseCurrency(value string) (Currency, error) {
	return parseOneOf("currency", validCurrencies, strings.ToUpper(strings.TrimSpace(value)))
}
