// internal/extract/normalize.go
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	priceRe    = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)
	codeLeadRe = regexp.MustCompile(`^([A-Z]{1,3})\s*(?:[$£€¥]|\d)`)
)

// currencyCodes maps leading tokens seen on marketplace listings to ISO codes
var currencyCodes = map[string]string{
	"US":  "USD",
	"USD": "USD",
	"C":   "CAD",
	"CA":  "CAD",
	"CAD": "CAD",
	"AU":  "AUD",
	"AUD": "AUD",
	"NZ":  "NZD",
	"NZD": "NZD",
	"GBP": "GBP",
	"EUR": "EUR",
	"JPY": "JPY",
	"CHF": "CHF",
}

var currencySymbols = map[rune]string{
	'$': "USD",
	'£': "GBP",
	'€': "EUR",
	'¥': "JPY",
}

// NormalizeText collapses whitespace runs to a single space and trims the result
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParsePrice returns the numeric value of the first digit run in text.
// Thousands separators are stripped. Nil is returned when no digits exist.
func ParsePrice(text string) *float64 {
	m := priceRe.FindString(text)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}

// InferCurrency guesses the currency of a price string from a leading code
// token ("US $", "EUR 12") or the first currency symbol. It is a hint only.
func InferCurrency(text string) *string {
	text = NormalizeText(text)
	if m := codeLeadRe.FindStringSubmatch(text); m != nil {
		if code, ok := currencyCodes[m[1]]; ok {
			return &code
		}
	}
	for _, r := range text {
		if code, ok := currencySymbols[r]; ok {
			return &code
		}
	}
	return nil
}
