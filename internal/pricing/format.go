package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimal lists currencies whose minor unit is the major unit.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

var symbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"jpy": "¥",
	"cad": "CA$",
	"aud": "A$",
}

// FormatAmount renders a minor-unit amount for display, e.g. 1999 usd as
// "$19.99" and 500 jpy as "¥500". Unknown currencies get an ISO code suffix.
func FormatAmount(unitAmount int64, currency string) string {
	currency = strings.ToLower(currency)

	places := int32(2)
	if zeroDecimal[currency] {
		places = 0
	}
	amount := decimal.New(unitAmount, -places).StringFixed(places)

	if sym, ok := symbols[currency]; ok {
		return sym + amount
	}
	return amount + " " + strings.ToUpper(currency)
}
